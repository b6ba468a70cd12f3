package shares

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

// PostgresRepository implements share-grant storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const grantColumns = `id, file_id, created_by, COALESCE(shared_with::text, ''), shared_with_email, permission, access_token, expires_at, created_at`

func scanGrant(scan func(dest ...any) error) (*models.ShareGrant, error) {
	g := &models.ShareGrant{}
	var perm string
	err := scan(&g.ID, &g.FileID, &g.CreatedBy, &g.SharedWith, &g.SharedWithEmail,
		&perm, &g.AccessToken, &g.ExpiresAt, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	g.Permission = models.SharePermission(perm)
	return g, nil
}

func (r *PostgresRepository) Create(ctx context.Context, grant *models.ShareGrant) error {
	query := `
		INSERT INTO share_grants (id, file_id, created_by, shared_with_email, permission, access_token, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		grant.ID, grant.FileID, grant.CreatedBy, grant.SharedWithEmail,
		string(grant.Permission), grant.AccessToken, grant.ExpiresAt).
		Scan(&grant.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.ShareGrant, error) {
	query := `SELECT ` + grantColumns + ` FROM share_grants WHERE id = $1`
	return scanGrant(r.db.QueryRowContext(ctx, query, id).Scan)
}

func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*models.ShareGrant, error) {
	query := `SELECT ` + grantColumns + ` FROM share_grants WHERE access_token = $1`
	return scanGrant(r.db.QueryRowContext(ctx, query, token).Scan)
}

// Claim is the single conditional update serializing concurrent verify
// calls: only one caller can flip shared_with from NULL.
func (r *PostgresRepository) Claim(ctx context.Context, grantID, userID string, now time.Time) (bool, error) {
	query := `
		UPDATE share_grants SET shared_with = $2
		WHERE id = $1 AND shared_with IS NULL AND expires_at > $3
	`
	result, err := r.db.ExecContext(ctx, query, grantID, userID, now)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n == 1, nil
}

// Expire revokes by forcing expiry. Only moves the timestamp backwards so a
// revoked grant can never be resurrected by a stale concurrent revoke.
func (r *PostgresRepository) Expire(ctx context.Context, grantID string, now time.Time) error {
	query := `
		UPDATE share_grants SET expires_at = $2
		WHERE id = $1 AND expires_at > $2
	`
	if _, err := r.db.ExecContext(ctx, query, grantID, now); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindLiveForUserAndFile(ctx context.Context, userID, fileID string, now time.Time) (*models.ShareGrant, error) {
	query := `
		SELECT ` + grantColumns + ` FROM share_grants
		WHERE shared_with = $1 AND file_id = $2 AND expires_at > $3
		ORDER BY expires_at DESC
		LIMIT 1
	`
	return scanGrant(r.db.QueryRowContext(ctx, query, userID, fileID, now).Scan)
}

func (r *PostgresRepository) listQuery(ctx context.Context, query string, args ...any) ([]*models.ShareGrant, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select share grants: %w", err)
	}
	defer rows.Close()

	var result []*models.ShareGrant
	for rows.Next() {
		g, err := scanGrant(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) ListForActor(ctx context.Context, userID string) ([]*models.ShareGrant, error) {
	query := `
		SELECT ` + grantColumns + ` FROM share_grants
		WHERE created_by = $1 OR shared_with = $1
		ORDER BY created_at DESC
	`
	return r.listQuery(ctx, query, userID)
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]*models.ShareGrant, error) {
	query := `SELECT ` + grantColumns + ` FROM share_grants ORDER BY created_at DESC`
	return r.listQuery(ctx, query)
}
