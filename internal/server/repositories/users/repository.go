package users

import (
	"context"

	"github.com/shareguard/shareguard/internal/server/models"
)

// Repository is the identity store consumed by the share-authorization and
// auth services.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByEmail looks up a user by email, case-insensitively.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
}
