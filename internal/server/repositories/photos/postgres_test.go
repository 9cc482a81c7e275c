package photos

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/photovault/internal/common"
	"github.com/dmitrijs2005/photovault/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var photoColumnNames = []string{
	"id", "user_id", "device_id", "name", "type", "hash", "taken_at", "size", "width", "height",
	"duration", "item_type", "file_id", "preview_id", "previews", "status", "status_changed_at",
	"created_at", "updated_at",
}

func photoRow(id string, previews []byte) []driver.Value {
	now := time.Date(2021, 10, 1, 12, 0, 0, 0, time.UTC)
	return []driver.Value{
		id, "u1", "d1", "IMG_0001.heic", "heic", "hash-1", now, int64(2048), 4032, 3024,
		nil, "PHOTO", "file-1", "preview-1", previews, "EXISTS", now,
		now, now,
	}
}

func addPhotoRow(rows *sqlmock.Rows, values []driver.Value) *sqlmock.Rows {
	return rows.AddRow(values...)
}

func TestGetByID_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`SELECT .* FROM photos WHERE id = \$1`)
	previews := []byte(`[{"width":512,"height":384,"size":100,"fileId":"preview-1a","type":"heic"}]`)

	rows := addPhotoRow(sqlmock.NewRows(photoColumnNames), photoRow("p1", previews))
	mock.ExpectQuery(q.String()).WithArgs("p1").WillReturnRows(rows)

	photo, err := repo.GetByID(context.Background(), "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if photo.ID != "p1" || photo.Name != "IMG_0001.heic" || photo.Status != models.PhotoStatusExists {
		t.Fatalf("unexpected photo: %+v", photo)
	}
	if len(photo.Previews) != 1 || photo.Previews[0].FileID != "preview-1a" {
		t.Fatalf("previews not decoded: %+v", photo.Previews)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`SELECT .* FROM photos WHERE id = \$1`)
	mock.ExpectQuery(q.String()).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestGetOne_FilterBuildsWhere(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	takenAt := time.Date(2021, 9, 1, 8, 30, 0, 0, time.UTC)
	q := regexp.MustCompile(`SELECT .* FROM photos WHERE user_id = \$1 AND name = \$2 AND taken_at = \$3 LIMIT 1`)

	rows := addPhotoRow(sqlmock.NewRows(photoColumnNames), photoRow("p1", nil))
	mock.ExpectQuery(q.String()).WithArgs("u1", "IMG_0001.heic", takenAt).WillReturnRows(rows)

	photo, err := repo.GetOne(context.Background(), Filter{
		UserID:  "u1",
		Name:    "IMG_0001.heic",
		TakenAt: &takenAt,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if photo.ID != "p1" {
		t.Fatalf("unexpected photo: %+v", photo)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetOne_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`SELECT .* FROM photos WHERE user_id = \$1 LIMIT 1`)
	mock.ExpectQuery(q.String()).WithArgs("u1").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetOne(context.Background(), Filter{UserID: "u1"})
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestGet_PaginatesAndFilters(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`SELECT .* FROM photos WHERE user_id = \$1 AND status = \$2 ORDER BY taken_at OFFSET \$3 LIMIT \$4`)

	rows := sqlmock.NewRows(photoColumnNames)
	rows = addPhotoRow(rows, photoRow("p1", nil))
	rows = addPhotoRow(rows, photoRow("p2", nil))
	mock.ExpectQuery(q.String()).WithArgs("u1", "EXISTS", 10, 2).WillReturnRows(rows)

	photos, err := repo.Get(context.Background(), Filter{UserID: "u1", Status: models.PhotoStatusExists}, 10, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(photos) != 2 || photos[0].ID != "p1" || photos[1].ID != "p2" {
		t.Fatalf("unexpected result: %+v", photos)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetByIDs_EmptyShortCircuits(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	photos, err := repo.GetByIDs(context.Background(), nil, 0, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if photos != nil {
		t.Fatalf("expected nil result, got %+v", photos)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetByIDs_BuildsPlaceholders(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`SELECT .* FROM photos WHERE id IN \(\$1, \$2\) ORDER BY taken_at OFFSET \$3 LIMIT \$4`)

	rows := addPhotoRow(sqlmock.NewRows(photoColumnNames), photoRow("p1", nil))
	mock.ExpectQuery(q.String()).WithArgs("p1", "p2", 0, 10).WillReturnRows(rows)

	photos, err := repo.GetByIDs(context.Background(), []string{"p1", "p2"}, 0, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(photos) != 1 {
		t.Fatalf("unexpected result: %+v", photos)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetByMultipleWhere_TupleQuery(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	takenAt := time.Date(2021, 9, 1, 8, 30, 0, 0, time.UTC)
	q := regexp.MustCompile(`SELECT .* FROM photos WHERE user_id = \$1 AND \(name, taken_at, hash\) IN \(\(\$2, \$3, \$4\), \(\$5, \$6, \$7\)\)`)

	rows := addPhotoRow(sqlmock.NewRows(photoColumnNames), photoRow("p1", nil))
	mock.ExpectQuery(q.String()).
		WithArgs("u1", "a.heic", takenAt, "h1", "b.heic", takenAt, "h2").
		WillReturnRows(rows)

	photos, err := repo.GetByMultipleWhere(context.Background(), "u1", []LookupKey{
		{Name: "a.heic", TakenAt: takenAt, Hash: "h1"},
		{Name: "b.heic", TakenAt: takenAt, Hash: "h2"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(photos) != 1 {
		t.Fatalf("unexpected result: %+v", photos)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`(?s)INSERT INTO photos .* RETURNING id, created_at, updated_at`)
	now := time.Now().UTC()

	mock.ExpectQuery(q.String()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("p1", now, now))

	photo, err := repo.Create(context.Background(), &models.Photo{
		UserID:          "u1",
		DeviceID:        "d1",
		Name:            "IMG_0001.heic",
		Type:            "heic",
		Hash:            "hash-1",
		TakenAt:         now,
		Size:            2048,
		ItemType:        models.PhotoItemTypePhoto,
		FileID:          "file-1",
		PreviewID:       "preview-1",
		Status:          models.PhotoStatusExists,
		StatusChangedAt: now,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if photo.ID != "p1" {
		t.Fatalf("id not assigned: %+v", photo)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_UniqueViolation(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`(?s)INSERT INTO photos .* RETURNING id, created_at, updated_at`)
	mock.ExpectQuery(q.String()).WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), &models.Photo{UserID: "u1", Name: "a.heic"})
	if !errors.Is(err, common.ErrorAlreadyExists) {
		t.Fatalf("want ErrorAlreadyExists, got %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`(?s)INSERT INTO photos .* RETURNING id, created_at, updated_at`)
	mock.ExpectQuery(q.String()).WillReturnError(errors.New("db is down"))

	_, err := repo.Create(context.Background(), &models.Photo{UserID: "u1", Name: "a.heic"})
	if err == nil || !regexp.MustCompile(`db error: .*db is down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestUpdateByID_HashPatch(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`UPDATE photos SET updated_at = now\(\), hash = \$1 WHERE id = \$2`)
	mock.ExpectExec(q.String()).WithArgs("new-hash", "p1").WillReturnResult(sqlmock.NewResult(0, 1))

	hash := "new-hash"
	if err := repo.UpdateByID(context.Background(), "p1", Patch{Hash: &hash}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateByID_StatusPatch(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	changedAt := time.Date(2021, 10, 2, 0, 0, 0, 0, time.UTC)
	q := regexp.MustCompile(`UPDATE photos SET updated_at = now\(\), status = \$1, status_changed_at = \$2 WHERE id = \$3`)
	mock.ExpectExec(q.String()).WithArgs("TRASHED", changedAt, "p1").WillReturnResult(sqlmock.NewResult(0, 1))

	status := models.PhotoStatusTrashed
	err := repo.UpdateByID(context.Background(), "p1", Patch{Status: &status, StatusChangedAt: &changedAt})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`UPDATE photos SET updated_at = now\(\), hash = \$1 WHERE id = \$2`)
	mock.ExpectExec(q.String()).WithArgs("h", "missing").WillReturnResult(sqlmock.NewResult(0, 0))

	hash := "h"
	err := repo.UpdateByID(context.Background(), "missing", Patch{Hash: &hash})
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestDeleteManyByFileIDs_ReportsRowsAffected(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`DELETE FROM photos WHERE file_id IN \(\$1, \$2, \$3\)`)
	mock.ExpectExec(q.String()).WithArgs("f1", "f2", "f3").WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteManyByFileIDs(context.Background(), []string{"f1", "f2", "f3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Fatalf("want 3 rows, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteManyByFileIDs_EmptyShortCircuits(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	n, err := repo.DeleteManyByFileIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("want 0 rows, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetUsage_SumsNonDeleted(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`SELECT COALESCE\(SUM\(size\), 0\) FROM photos WHERE user_id = \$1 AND status <> \$2`)
	mock.ExpectQuery(q.String()).WithArgs("u1", "DELETED").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(4096)))

	usage, err := repo.GetUsage(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if usage != 4096 {
		t.Fatalf("want 4096, got %d", usage)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetPurgeCandidates_FlattensPreviewRefs(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`SELECT id, file_id, preview_id, previews FROM photos\s+WHERE status = \$1\s+ORDER BY status_changed_at\s+LIMIT \$2`)

	previews := []byte(`[{"fileId":"pf-1"},{"fileId":"pf-2"}]`)
	rows := sqlmock.NewRows([]string{"id", "file_id", "preview_id", "previews"}).
		AddRow("p1", "f1", "pv1", previews).
		AddRow("p2", "f2", "pv2", nil)
	mock.ExpectQuery(q.String()).WithArgs("DELETED", 20).WillReturnRows(rows)

	candidates, err := repo.GetPurgeCandidates(context.Background(), 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("want 2 candidates, got %d", len(candidates))
	}
	first := candidates[0]
	if first.PhotoID != "p1" || first.FileID != "f1" || first.PreviewID != "pv1" {
		t.Fatalf("unexpected candidate: %+v", first)
	}
	if len(first.PreviewFileIDs) != 2 || first.PreviewFileIDs[0] != "pf-1" {
		t.Fatalf("preview refs not flattened: %+v", first.PreviewFileIDs)
	}
	if len(candidates[1].PreviewFileIDs) != 0 {
		t.Fatalf("expected no preview refs: %+v", candidates[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
