package repomanager

import (
	"context"
	"database/sql"

	"github.com/cygnus07/zeroLock/internal/dbx"
	"github.com/cygnus07/zeroLock/internal/server/repositories/securitylogs"
	"github.com/cygnus07/zeroLock/internal/server/repositories/srpsessions"
	"github.com/cygnus07/zeroLock/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	SRPSessions(db dbx.DBTX) srpsessions.Repository
	SecurityLogs(db dbx.DBTX) securitylogs.Repository
}
