// This file implements the background sweeper that removes expired handshake
// sessions and enforces the audit retention horizon.
package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/cygnus07/zeroLock/internal/logging"
	"github.com/cygnus07/zeroLock/internal/server/config"
	"github.com/cygnus07/zeroLock/internal/server/repositories/repomanager"
)

const pruneCadence = 24 * time.Hour

// Sweeper periodically deletes expired SRP sessions and prunes old audit
// records. Expiry is enforced at read time too; the sweeper only keeps the
// tables from growing without bound.
type Sweeper struct {
	db             *sql.DB
	repomanager    repomanager.RepositoryManager
	audit          *AuditService
	logger         logging.Logger
	sweepInterval  time.Duration
	auditRetention time.Duration
}

// NewSweeper constructs a Sweeper using repositories and server config.
func NewSweeper(db *sql.DB, m repomanager.RepositoryManager, audit *AuditService, logger logging.Logger, cfg *config.Config) *Sweeper {
	return &Sweeper{
		db:             db,
		repomanager:    m,
		audit:          audit,
		logger:         logger.With("component", "sweeper"),
		sweepInterval:  cfg.SweepInterval,
		auditRetention: cfg.AuditRetention,
	}
}

// Run blocks until ctx is cancelled, sweeping sessions every sweep interval
// and pruning the audit trail once a day.
func (s *Sweeper) Run(ctx context.Context) {
	sweep := time.NewTicker(s.sweepInterval)
	defer sweep.Stop()
	prune := time.NewTicker(pruneCadence)
	defer prune.Stop()

	s.logger.Info(ctx, "sweeper started",
		"sweep_interval", s.sweepInterval.String(),
		"audit_retention", s.auditRetention.String())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(context.Background(), "sweeper stopped")
			return
		case <-sweep.C:
			s.SweepSessions(ctx)
		case <-prune.C:
			s.PruneAudit(ctx)
		}
	}
}

// SweepSessions deletes sessions past their deadline.
func (s *Sweeper) SweepSessions(ctx context.Context) {
	n, err := s.repomanager.SRPSessions(s.db).DeleteExpired(ctx)
	if err != nil {
		s.logger.Error(ctx, "session sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info(ctx, "expired sessions swept", "count", n)
	}
}

// PruneAudit enforces the retention horizon on the audit trail.
func (s *Sweeper) PruneAudit(ctx context.Context) {
	n, err := s.audit.Prune(ctx, s.auditRetention)
	if err != nil {
		s.logger.Error(ctx, "audit prune failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info(ctx, "audit records pruned", "count", n)
	}
}
