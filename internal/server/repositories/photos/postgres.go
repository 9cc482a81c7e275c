// Package photos provides the PostgreSQL-backed repository for photo
// metadata records.
package photos

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/photovault/internal/common"
	"github.com/dmitrijs2005/photovault/internal/dbx"
	"github.com/dmitrijs2005/photovault/internal/server/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const photoColumns = `id, user_id, device_id, name, type, hash, taken_at, size, width, height,
		duration, item_type, file_id, preview_id, previews, status, status_changed_at, created_at, updated_at`

// PostgresRepository implements photo storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPhoto(row rowScanner) (*models.Photo, error) {
	var p models.Photo
	var previews []byte
	err := row.Scan(
		&p.ID, &p.UserID, &p.DeviceID, &p.Name, &p.Type, &p.Hash, &p.TakenAt,
		&p.Size, &p.Width, &p.Height, &p.Duration, &p.ItemType, &p.FileID,
		&p.PreviewID, &previews, &p.Status, &p.StatusChangedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(previews) > 0 {
		if err := json.Unmarshal(previews, &p.Previews); err != nil {
			return nil, fmt.Errorf("decoding previews: %w", err)
		}
	}
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// GetByID returns the photo with the given id or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Photo, error) {
	query := `SELECT ` + photoColumns + ` FROM photos WHERE id = $1`

	p, err := scanPhoto(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func buildWhere(filter Filter) (string, []any) {
	var conds []string
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if filter.UserID != "" {
		add("user_id", filter.UserID)
	}
	if filter.DeviceID != "" {
		add("device_id", filter.DeviceID)
	}
	if filter.Name != "" {
		add("name", filter.Name)
	}
	if filter.Status != "" {
		add("status", string(filter.Status))
	}
	if filter.TakenAt != nil {
		add("taken_at", filter.TakenAt.UTC())
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Get returns photos matching the filter, ordered by taken_at, with
// skip/limit pagination.
func (r *PostgresRepository) Get(ctx context.Context, filter Filter, skip, limit int) ([]*models.Photo, error) {
	where, args := buildWhere(filter)
	query := fmt.Sprintf(`SELECT %s FROM photos%s ORDER BY taken_at OFFSET $%d LIMIT $%d`,
		photoColumns, where, len(args)+1, len(args)+2)
	args = append(args, skip, limit)

	return r.queryPhotos(ctx, query, args...)
}

// GetByIDs returns photos whose id is in ids, with skip/limit pagination.
func (r *PostgresRepository) GetByIDs(ctx context.Context, ids []string, skip, limit int) ([]*models.Photo, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+2)
	for i, id := range ids {
		args = append(args, id)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	query := fmt.Sprintf(`SELECT %s FROM photos WHERE id IN (%s) ORDER BY taken_at OFFSET $%d LIMIT $%d`,
		photoColumns, strings.Join(placeholders, ", "), len(args)+1, len(args)+2)
	args = append(args, skip, limit)

	return r.queryPhotos(ctx, query, args...)
}

// GetByMultipleWhere fetches every photo of the user matching one of the
// (name, taken_at, hash) triples in a single query.
func (r *PostgresRepository) GetByMultipleWhere(ctx context.Context, userID string, keys []LookupKey) ([]*models.Photo, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	args := []any{userID}
	tuples := make([]string, len(keys))
	for i, k := range keys {
		args = append(args, k.Name, k.TakenAt.UTC(), k.Hash)
		tuples[i] = fmt.Sprintf("($%d, $%d, $%d)", len(args)-2, len(args)-1, len(args))
	}
	query := fmt.Sprintf(`SELECT %s FROM photos WHERE user_id = $1 AND (name, taken_at, hash) IN (%s)`,
		photoColumns, strings.Join(tuples, ", "))

	return r.queryPhotos(ctx, query, args...)
}

// GetOne returns the single photo matching the filter or common.ErrorNotFound.
func (r *PostgresRepository) GetOne(ctx context.Context, filter Filter) (*models.Photo, error) {
	where, args := buildWhere(filter)
	query := `SELECT ` + photoColumns + ` FROM photos` + where + ` LIMIT 1`

	p, err := scanPhoto(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

// Create inserts a new record and returns it with its assigned id and
// timestamps. A (user_id, name, taken_at) collision yields
// common.ErrorAlreadyExists so the caller can re-read and reconcile.
func (r *PostgresRepository) Create(ctx context.Context, photo *models.Photo) (*models.Photo, error) {
	previews := photo.Previews
	if previews == nil {
		previews = []models.Preview{}
	}
	encoded, err := json.Marshal(previews)
	if err != nil {
		return nil, fmt.Errorf("encoding previews: %w", err)
	}

	query := `
		INSERT INTO photos (id, user_id, device_id, name, type, hash, taken_at, size, width, height,
			duration, item_type, file_id, preview_id, previews, status, status_changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at, updated_at
	`
	id := uuid.NewString()
	err = r.db.QueryRowContext(ctx, query,
		id, photo.UserID, photo.DeviceID, photo.Name, photo.Type, photo.Hash, photo.TakenAt.UTC(),
		photo.Size, photo.Width, photo.Height, photo.Duration, photo.ItemType, photo.FileID,
		photo.PreviewID, encoded, photo.Status, photo.StatusChangedAt.UTC(),
	).Scan(&photo.ID, &photo.CreatedAt, &photo.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return photo, nil
}

// UpdateByID applies the non-nil patch fields to the record.
func (r *PostgresRepository) UpdateByID(ctx context.Context, id string, patch Patch) error {
	sets := []string{"updated_at = now()"}
	var args []any

	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Hash != nil {
		set("hash", *patch.Hash)
	}
	if patch.Status != nil {
		set("status", string(*patch.Status))
	}
	if patch.StatusChangedAt != nil {
		set("status_changed_at", patch.StatusChangedAt.UTC())
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE photos SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// DeleteByID removes a single record.
func (r *PostgresRepository) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM photos WHERE id = $1`, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// DeleteManyByFileIDs removes every record whose primary file reference is in
// fileIDs and reports the number of records removed.
func (r *PostgresRepository) DeleteManyByFileIDs(ctx context.Context, fileIDs []string) (int64, error) {
	if len(fileIDs) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(fileIDs))
	args := make([]any, len(fileIDs))
	for i, fileID := range fileIDs {
		args[i] = fileID
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(`DELETE FROM photos WHERE file_id IN (%s)`, strings.Join(placeholders, ", "))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

// GetUsage sums the size of the user's non-deleted records.
func (r *PostgresRepository) GetUsage(ctx context.Context, userID string) (int64, error) {
	query := `SELECT COALESCE(SUM(size), 0) FROM photos WHERE user_id = $1 AND status <> $2`

	var usage int64
	err := r.db.QueryRowContext(ctx, query, userID, string(models.PhotoStatusDeleted)).Scan(&usage)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return usage, nil
}

// GetPurgeCandidates returns up to limit Deleted records with their blob
// references, oldest status change first.
func (r *PostgresRepository) GetPurgeCandidates(ctx context.Context, limit int) ([]*models.PurgeCandidate, error) {
	query := `
		SELECT id, file_id, preview_id, previews FROM photos
		WHERE status = $1
		ORDER BY status_changed_at
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, string(models.PhotoStatusDeleted), limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.PurgeCandidate
	for rows.Next() {
		var c models.PurgeCandidate
		var previews []byte
		if err := rows.Scan(&c.PhotoID, &c.FileID, &c.PreviewID, &previews); err != nil {
			return nil, err
		}
		if len(previews) > 0 {
			var decoded []models.Preview
			if err := json.Unmarshal(previews, &decoded); err != nil {
				return nil, fmt.Errorf("decoding previews: %w", err)
			}
			for _, p := range decoded {
				c.PreviewFileIDs = append(c.PreviewFileIDs, p.FileID)
			}
		}
		result = append(result, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) queryPhotos(ctx context.Context, query string, args ...any) ([]*models.Photo, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
