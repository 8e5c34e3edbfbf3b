// Package srpsessions provides the PostgreSQL-backed store for in-flight
// handshake sessions.
package srpsessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cygnus07/zeroLock/internal/common"
	"github.com/cygnus07/zeroLock/internal/dbx"
	"github.com/cygnus07/zeroLock/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create stores a session that expires ttl from now. The unique index on
// user_id keeps one live handshake per user; a concurrent handshake for the
// same user lands on the upsert and supersedes the row instead of erroring.
func (r *PostgresRepository) Create(ctx context.Context, userID, serverSecret string, ttl time.Duration) (*models.SRPSession, error) {
	query := `
		INSERT INTO srp_sessions (user_id, srp_b, expires_at)
		VALUES ($1, $2, now() + $3::interval)
		ON CONFLICT (user_id) DO UPDATE
		SET srp_b = EXCLUDED.srp_b, session_key = NULL,
			expires_at = EXCLUDED.expires_at, created_at = now()
		RETURNING id, expires_at, created_at
	`
	s := &models.SRPSession{UserID: userID, SRPB: serverSecret}
	interval := fmt.Sprintf("%d milliseconds", ttl.Milliseconds())
	err := r.db.QueryRowContext(ctx, query, userID, serverSecret, interval).
		Scan(&s.ID, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

// Find returns the session only while it is still live; an expired row is
// indistinguishable from a missing one.
func (r *PostgresRepository) Find(ctx context.Context, id string) (*models.SRPSession, error) {
	query := `
		SELECT id, user_id, srp_b, session_key, expires_at, created_at
		FROM srp_sessions
		WHERE id = $1 AND expires_at > now()
	`
	s := &models.SRPSession{}
	var sessionKey sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&s.ID, &s.UserID, &s.SRPB, &sessionKey, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	s.SessionKey = sessionKey.String
	return s, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM srp_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteByUserID(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM srp_sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions past their deadline and reports how many
// were swept.
func (r *PostgresRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM srp_sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM srp_sessions WHERE expires_at > now()`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
