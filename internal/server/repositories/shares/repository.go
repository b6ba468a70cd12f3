package shares

import (
	"context"
	"time"

	"github.com/shareguard/shareguard/internal/server/models"
)

// Repository persists share grants. Revocation is modeled as forcing the
// expiry timestamp, never as deletion.
type Repository interface {
	Create(ctx context.Context, grant *models.ShareGrant) error
	GetByID(ctx context.Context, id string) (*models.ShareGrant, error)
	GetByToken(ctx context.Context, token string) (*models.ShareGrant, error)
	// Claim binds the grant to userID iff it is still unclaimed and live at
	// instant now. Returns true when this call won the binding; false means
	// the caller must re-read and handle the already-claimed/expired case.
	Claim(ctx context.Context, grantID, userID string, now time.Time) (bool, error)
	// Expire forces the grant's expiry to now (revocation).
	Expire(ctx context.Context, grantID string, now time.Time) error
	// FindLiveForUserAndFile returns the live grant bound to userID for
	// fileID, or common.ErrorNotFound.
	FindLiveForUserAndFile(ctx context.Context, userID, fileID string, now time.Time) (*models.ShareGrant, error)
	// ListForActor returns grants created by or bound to userID, newest first.
	ListForActor(ctx context.Context, userID string) ([]*models.ShareGrant, error)
	// ListAll returns every grant, newest first. Admin-only path.
	ListAll(ctx context.Context) ([]*models.ShareGrant, error)
}
