package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/photovault/internal/dbx"
	"github.com/dmitrijs2005/photovault/internal/server/repositories/devices"
	"github.com/dmitrijs2005/photovault/internal/server/repositories/photos"
	"github.com/dmitrijs2005/photovault/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Photos(db dbx.DBTX) photos.Repository
	Users(db dbx.DBTX) users.Repository
	Devices(db dbx.DBTX) devices.Repository
}
