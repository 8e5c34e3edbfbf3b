// Package users provides a PostgreSQL-backed repository for durable identity
// records, including the account-lockout bookkeeping on the user row.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cygnus07/zeroLock/internal/common"
	"github.com/cygnus07/zeroLock/internal/dbx"
	"github.com/cygnus07/zeroLock/internal/server/models"
)

const userColumns = `id, email, username, srp_salt, srp_verifier, vault_key_encrypted,
		public_key, private_key_encrypted, failed_login_attempts, account_locked,
		last_failed_login, last_login, created_at, updated_at`

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new user. Duplicate email or username map to
// common.ErrorEmailExists / common.ErrorUsernameExists via the unique
// constraints, which makes concurrent registration race-safe.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (email, username, srp_salt, srp_verifier,
			vault_key_encrypted, public_key, private_key_encrypted)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		strings.ToLower(user.Email), user.Username, user.SRPSalt, user.SRPVerifier,
		user.VaultKeyEncrypted, user.PublicKey, user.PrivateKeyEncrypted,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if strings.Contains(pgErr.ConstraintName, "email") {
				return nil, common.ErrorEmailExists
			}
			if strings.Contains(pgErr.ConstraintName, "username") {
				return nil, common.ErrorUsernameExists
			}
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	user.Email = strings.ToLower(user.Email)
	return user, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.queryUser(ctx, query, id)
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.queryUser(ctx, query, strings.ToLower(email))
}

func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return r.queryUser(ctx, query, username)
}

// FindByIdentifier resolves an identifier to a user: anything containing '@'
// is treated as an email, everything else as a username.
func (r *PostgresRepository) FindByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	if strings.Contains(identifier, "@") {
		return r.FindByEmail(ctx, identifier)
	}
	return r.FindByUsername(ctx, identifier)
}

func (r *PostgresRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT 1 FROM users WHERE email = $1 LIMIT 1`, strings.ToLower(email))
}

func (r *PostgresRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `SELECT 1 FROM users WHERE username = $1 LIMIT 1`, username)
}

// IncrementFailedLogins atomically increments the failure counter, stamps the
// failure time, and engages the lock once the post-increment count reaches
// threshold. Increment and lock decision read the same row version, so the
// lock can neither fire early nor lag a concurrent attempt.
func (r *PostgresRepository) IncrementFailedLogins(ctx context.Context, userID string, threshold int) (int, bool, error) {
	query := `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
			last_failed_login = now(),
			account_locked = (failed_login_attempts + 1 >= $2)
		WHERE id = $1
		RETURNING failed_login_attempts, account_locked
	`
	var attempts int
	var locked bool
	if err := r.db.QueryRowContext(ctx, query, userID, threshold).Scan(&attempts, &locked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, common.ErrorNotFound
		}
		return 0, false, fmt.Errorf("db error: %w", err)
	}
	return attempts, locked, nil
}

// ResetFailedLogins clears the failure counter and lock flag and stamps a
// successful login.
func (r *PostgresRepository) ResetFailedLogins(ctx context.Context, userID string) error {
	query := `
		UPDATE users
		SET failed_login_attempts = 0,
			account_locked = FALSE,
			last_failed_login = NULL,
			last_login = now()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// UpdateSRPCredentials swaps the salt and verifier together; they are never
// written individually.
func (r *PostgresRepository) UpdateSRPCredentials(ctx context.Context, userID, salt, verifier string) error {
	query := `
		UPDATE users
		SET srp_salt = $2, srp_verifier = $3
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, userID, salt, verifier)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// Delete removes the user and returns the identifying fields for the audit
// trail. Sessions cascade via the schema.
func (r *PostgresRepository) Delete(ctx context.Context, userID string) (*models.User, error) {
	query := `DELETE FROM users WHERE id = $1 RETURNING id, email, username`
	user := &models.User{}
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&user.ID, &user.Email, &user.Username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) queryUser(ctx context.Context, query string, arg any) (*models.User, error) {
	user := &models.User{}
	var lastFailed, lastLogin sql.NullTime

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Email, &user.Username, &user.SRPSalt, &user.SRPVerifier,
		&user.VaultKeyEncrypted, &user.PublicKey, &user.PrivateKeyEncrypted,
		&user.FailedLoginAttempts, &user.AccountLocked,
		&lastFailed, &lastLogin, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if lastFailed.Valid {
		user.LastFailedLogin = &lastFailed.Time
	}
	if lastLogin.Valid {
		user.LastLogin = &lastLogin.Time
	}
	return user, nil
}

func (r *PostgresRepository) exists(ctx context.Context, query string, arg any) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}
