package users

import (
	"context"

	"github.com/cygnus07/zeroLock/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	IncrementFailedLogins(ctx context.Context, userID string, threshold int) (attempts int, locked bool, err error)
	ResetFailedLogins(ctx context.Context, userID string) error
	UpdateSRPCredentials(ctx context.Context, userID, salt, verifier string) error
	Delete(ctx context.Context, userID string) (*models.User, error)
}
