package securitylogs

import (
	"context"
	"time"

	"github.com/cygnus07/zeroLock/internal/server/models"
)

// Repository is the append-only audit store. Records are never updated.
type Repository interface {
	Create(ctx context.Context, log *models.SecurityLog) (*models.SecurityLog, error)
	CountRecentFailures(ctx context.Context, userID string, window time.Duration) (int64, error)
	RecentActivity(ctx context.Context, userID string, limit int) ([]*models.SecurityLog, error)
	SuspiciousActivity(ctx context.Context, limit int) ([]*models.SecurityLog, error)
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}
