// Package securitylogs provides the PostgreSQL-backed append-only audit
// trail.
package securitylogs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cygnus07/zeroLock/internal/dbx"
	"github.com/cygnus07/zeroLock/internal/server/models"
)

const logColumns = `id, user_id, action, success, ip_address, user_agent, details, timestamp`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create appends one audit record. Details round-trips through JSONB; a nil
// map is stored as an empty object.
func (r *PostgresRepository) Create(ctx context.Context, log *models.SecurityLog) (*models.SecurityLog, error) {
	details := log.Details
	if details == nil {
		details = map[string]any{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshal details: %w", err)
	}

	query := `
		INSERT INTO security_logs (user_id, action, success, ip_address, user_agent, details)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, timestamp
	`
	err = r.db.QueryRowContext(ctx, query,
		log.UserID, string(log.Action), log.Success, log.IPAddress, log.UserAgent, payload,
	).Scan(&log.ID, &log.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return log, nil
}

// CountRecentFailures counts unsuccessful records for the user inside the
// window. Feeds the suspicious-activity signal, not the lockout counter.
func (r *PostgresRepository) CountRecentFailures(ctx context.Context, userID string, window time.Duration) (int64, error) {
	query := `
		SELECT count(*)
		FROM security_logs
		WHERE user_id = $1 AND success = FALSE AND timestamp > now() - $2::interval
	`
	var n int64
	interval := fmt.Sprintf("%d milliseconds", window.Milliseconds())
	if err := r.db.QueryRowContext(ctx, query, userID, interval).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// RecentActivity returns the user's newest records first.
func (r *PostgresRepository) RecentActivity(ctx context.Context, userID string, limit int) ([]*models.SecurityLog, error) {
	query := `
		SELECT ` + logColumns + `
		FROM security_logs
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scanLogs(rows)
}

// SuspiciousActivity returns recent records that warrant operator attention:
// explicit security events plus any failed action.
func (r *PostgresRepository) SuspiciousActivity(ctx context.Context, limit int) ([]*models.SecurityLog, error) {
	query := `
		SELECT ` + logColumns + `
		FROM security_logs
		WHERE action IN ('suspicious_activity', 'account_locked', 'rate_limit_exceeded')
			OR success = FALSE
		ORDER BY timestamp DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scanLogs(rows)
}

// Prune deletes records older than the retention horizon, except actions in
// models.ProtectedActions, which are kept indefinitely.
func (r *PostgresRepository) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	query := `
		DELETE FROM security_logs
		WHERE timestamp < now() - $1::interval
			AND action NOT IN (` + protectedActionList() + `)
	`
	interval := fmt.Sprintf("%d milliseconds", retention.Milliseconds())
	res, err := r.db.ExecContext(ctx, query, interval)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// protectedActionList renders models.ProtectedActions as a quoted SQL list.
// The values are code constants, not user input.
func protectedActionList() string {
	list := ""
	for i, a := range models.ProtectedActions {
		if i > 0 {
			list += ", "
		}
		list += "'" + string(a) + "'"
	}
	return list
}

func scanLogs(rows *sql.Rows) ([]*models.SecurityLog, error) {
	defer rows.Close()

	var logs []*models.SecurityLog
	for rows.Next() {
		log := &models.SecurityLog{}
		var userID sql.NullString
		var action string
		var payload []byte
		err := rows.Scan(&log.ID, &userID, &action, &log.Success,
			&log.IPAddress, &log.UserAgent, &payload, &log.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if userID.Valid {
			log.UserID = &userID.String
		}
		log.Action = models.SecurityAction(action)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &log.Details); err != nil {
				return nil, fmt.Errorf("unmarshal details: %w", err)
			}
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return logs, nil
}
