// Package dbx holds the small database seam the repositories are built on: a
// DBTX interface satisfied by both *sql.DB and *sql.Tx, and WithTx for running
// multi-statement units (a status change plus its usage-counter move, a record
// insert plus its charge) atomically.
package dbx

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX is the subset of database/sql the repositories use. Because *sql.DB
// and *sql.Tx both satisfy it, the same repository code runs standalone or
// inside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxFunc is the unit of work WithTx runs inside a transaction.
type TxFunc func(ctx context.Context, tx DBTX) error

// WithTx begins a transaction, runs fn against it, and commits if fn returns
// nil. On error or panic the transaction is rolled back; panics are rethrown
// after the rollback.
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    if err := photosTx.UpdateByID(ctx, id, patch); err != nil {
//	        return err
//	    }
//	    return usersTx.UpdateGalleryUsage(ctx, userID, -size)
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn TxFunc) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("beginning tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	return fn(ctx, tx)
}
