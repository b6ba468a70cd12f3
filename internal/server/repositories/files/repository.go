package files

import (
	"context"
	"time"

	"github.com/shareguard/shareguard/internal/server/models"
)

// Repository is the file registry: the authoritative metadata table for
// encrypted files.
type Repository interface {
	Create(ctx context.Context, file *models.File) error
	GetByID(ctx context.Context, id string) (*models.File, error)
	Delete(ctx context.Context, id string) error
	// ListVisible returns files owned by userID plus files with a live
	// share grant bound to userID at instant now, newest first.
	ListVisible(ctx context.Context, userID string, now time.Time) ([]*models.File, error)
	// ListAll returns every file, newest first. Admin-only path.
	ListAll(ctx context.Context) ([]*models.File, error)
	// StoredNameExists reports whether any registry row references the
	// given blob name. Used by the orphan-blob sweep.
	StoredNameExists(ctx context.Context, storedName string) (bool, error)
}
