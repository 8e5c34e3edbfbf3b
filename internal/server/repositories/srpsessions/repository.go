package srpsessions

import (
	"context"
	"time"

	"github.com/cygnus07/zeroLock/internal/server/models"
)

// Repository stores in-flight handshake state. A session is created at
// login-init and consumed at login-verify; expired rows are swept in the
// background.
type Repository interface {
	Create(ctx context.Context, userID, serverSecret string, ttl time.Duration) (*models.SRPSession, error)
	Find(ctx context.Context, id string) (*models.SRPSession, error)
	Delete(ctx context.Context, id string) error
	DeleteByUserID(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context) (int64, error)
	CountActive(ctx context.Context) (int64, error)
}
