// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/cygnus07/zeroLock/internal/dbx"
	"github.com/cygnus07/zeroLock/internal/server/migrations"
	"github.com/cygnus07/zeroLock/internal/server/repositories/securitylogs"
	"github.com/cygnus07/zeroLock/internal/server/repositories/srpsessions"
	"github.com/cygnus07/zeroLock/internal/server/repositories/users"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

// SRPSessions returns a srpsessions.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) SRPSessions(db dbx.DBTX) srpsessions.Repository {
	return srpsessions.NewPostgresRepository(db)
}

// SecurityLogs returns a securitylogs.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) SecurityLogs(db dbx.DBTX) securitylogs.Repository {
	return securitylogs.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetDialect("pgx")
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager(db *sql.DB) (RepositoryManager, error) {
	return &PostgresRepositoryManager{}, nil
}
