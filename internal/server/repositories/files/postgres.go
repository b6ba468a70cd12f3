package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shareguard/shareguard/internal/common"
	"github.com/shareguard/shareguard/internal/dbx"
	"github.com/shareguard/shareguard/internal/server/models"
)

// PostgresRepository implements the file registry over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const fileColumns = `id, stored_name, original_name, mime_type, size, key_ref, COALESCE(client_key, ''), owner_id, created_at, updated_at`

func scanFiles(rows *sql.Rows) ([]*models.File, error) {
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		var item models.File
		if err := rows.Scan(&item.ID, &item.StoredName, &item.OriginalName, &item.MimeType,
			&item.Size, &item.KeyRef, &item.ClientKey, &item.OwnerID, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Create inserts the registry row for a file whose blob has already been
// durably written. The row is the commit point making the file visible.
func (r *PostgresRepository) Create(ctx context.Context, file *models.File) error {
	query := `
		INSERT INTO files (id, stored_name, original_name, mime_type, size, key_ref, client_key, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		file.ID, file.StoredName, file.OriginalName, file.MimeType,
		file.Size, file.KeyRef, file.ClientKey, file.OwnerID).
		Scan(&file.CreatedAt, &file.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`

	item := &models.File{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&item.ID, &item.StoredName, &item.OriginalName, &item.MimeType,
			&item.Size, &item.KeyRef, &item.ClientKey, &item.OwnerID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return item, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM files WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// ListVisible returns the actor's own files plus files reachable through a
// live grant bound to them, most recent first. The same predicate backs the
// authorization check in the services layer, so list and get cannot drift.
func (r *PostgresRepository) ListVisible(ctx context.Context, userID string, now time.Time) ([]*models.File, error) {
	query := `
		SELECT DISTINCT f.id, f.stored_name, f.original_name, f.mime_type, f.size,
			f.key_ref, COALESCE(f.client_key, ''), f.owner_id, f.created_at, f.updated_at
		FROM files f
		LEFT JOIN share_grants g
			ON g.file_id = f.id AND g.shared_with = $1 AND g.expires_at > $2
		WHERE f.owner_id = $1 OR g.id IS NOT NULL
		ORDER BY f.created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	return scanFiles(rows)
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	return scanFiles(rows)
}

func (r *PostgresRepository) StoredNameExists(ctx context.Context, storedName string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM files WHERE stored_name = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, storedName).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}
