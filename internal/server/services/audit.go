// Package services contains server-side business logic. This file implements
// AuditService, the append-only security trail every authentication decision
// is recorded to.
package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/cygnus07/zeroLock/internal/logging"
	"github.com/cygnus07/zeroLock/internal/server/models"
	"github.com/cygnus07/zeroLock/internal/server/repositories/repomanager"
)

// ClientMeta carries request attribution captured at the transport edge.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

// AuditService records security events. Recording is best-effort: a storage
// failure is logged and swallowed so the audit trail can never turn a
// successful authentication into an error.
type AuditService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

// NewAuditService constructs an AuditService.
func NewAuditService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *AuditService {
	return &AuditService{db: db, repomanager: m, logger: logger.With("component", "audit")}
}

// Record appends one event. userID may be nil for events that precede
// identity resolution.
func (s *AuditService) Record(ctx context.Context, action models.SecurityAction, userID *string, success bool, meta ClientMeta, details map[string]any) {
	repo := s.repomanager.SecurityLogs(s.db)
	log := &models.SecurityLog{
		UserID:    userID,
		Action:    action,
		Success:   success,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Details:   details,
	}
	if _, err := repo.Create(ctx, log); err != nil {
		s.logger.Error(ctx, "failed to record security event",
			"action", string(action), "error", err)
	}
}

// RecentActivity returns the user's newest audit records.
func (s *AuditService) RecentActivity(ctx context.Context, userID string, limit int) ([]*models.SecurityLog, error) {
	return s.repomanager.SecurityLogs(s.db).RecentActivity(ctx, userID, limit)
}

// SuspiciousActivity returns recent records that warrant operator attention.
func (s *AuditService) SuspiciousActivity(ctx context.Context, limit int) ([]*models.SecurityLog, error) {
	return s.repomanager.SecurityLogs(s.db).SuspiciousActivity(ctx, limit)
}

// CountRecentFailures counts the user's failed events inside the window.
func (s *AuditService) CountRecentFailures(ctx context.Context, userID string, window time.Duration) (int64, error) {
	return s.repomanager.SecurityLogs(s.db).CountRecentFailures(ctx, userID, window)
}

// Prune enforces the retention horizon. Protected actions are never removed.
func (s *AuditService) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repomanager.SecurityLogs(s.db).Prune(ctx, retention)
}
