package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/cygnus07/zeroLock/internal/common"
	"github.com/cygnus07/zeroLock/internal/dbx"
	"github.com/cygnus07/zeroLock/internal/logging"
	"github.com/cygnus07/zeroLock/internal/server/config"
	"github.com/cygnus07/zeroLock/internal/server/models"
	securitylogsrepo "github.com/cygnus07/zeroLock/internal/server/repositories/securitylogs"
	srpsessionsrepo "github.com/cygnus07/zeroLock/internal/server/repositories/srpsessions"
	usersrepo "github.com/cygnus07/zeroLock/internal/server/repositories/users"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	return cfg
}

func newAuthService(t *testing.T, db *sql.DB, rm *fakeRepoManager) (*AuthService, *AuditService) {
	t.Helper()
	logger := testLogger()
	audit := NewAuditService(db, rm, logger)
	return NewAuthService(db, rm, audit, logger, testConfig()), audit
}

// --- fake users repository ---

type fakeUsersRepo struct {
	users map[string]*models.User // by ID

	createErr error
	findErr   error

	incrementAttempts int
	incrementLocked   bool
	incrementErr      error
	resetErr          error
	updateErr         error
	deleteErr         error

	resetCalls  int
	updateCalls int
}

func newFakeUsersRepo(users ...*models.User) *fakeUsersRepo {
	f := &fakeUsersRepo{users: map[string]*models.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	u.ID = uuid.NewString()
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeUsersRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) FindByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if strings.Contains(identifier, "@") {
		return f.FindByEmail(ctx, identifier)
	}
	return f.FindByUsername(ctx, identifier)
}

func (f *fakeUsersRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	if f.findErr != nil {
		return false, f.findErr
	}
	_, err := f.FindByEmail(ctx, email)
	return err == nil, nil
}

func (f *fakeUsersRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	if f.findErr != nil {
		return false, f.findErr
	}
	_, err := f.FindByUsername(ctx, username)
	return err == nil, nil
}

func (f *fakeUsersRepo) IncrementFailedLogins(ctx context.Context, userID string, threshold int) (int, bool, error) {
	if f.incrementErr != nil {
		return 0, false, f.incrementErr
	}
	return f.incrementAttempts, f.incrementLocked, nil
}

func (f *fakeUsersRepo) ResetFailedLogins(ctx context.Context, userID string) error {
	f.resetCalls++
	return f.resetErr
}

func (f *fakeUsersRepo) UpdateSRPCredentials(ctx context.Context, userID, salt, verifier string) error {
	f.updateCalls++
	return f.updateErr
}

func (f *fakeUsersRepo) Delete(ctx context.Context, userID string) (*models.User, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	u, ok := f.users[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	delete(f.users, userID)
	return u, nil
}

// --- fake sessions repository ---

type fakeSessionsRepo struct {
	sessions map[string]*models.SRPSession // by ID

	createErr error
	findErr   error
	deleteErr error

	deleteByUserCalls int
}

func newFakeSessionsRepo(sessions ...*models.SRPSession) *fakeSessionsRepo {
	f := &fakeSessionsRepo{sessions: map[string]*models.SRPSession{}}
	for _, s := range sessions {
		f.sessions[s.ID] = s
	}
	return f
}

func (f *fakeSessionsRepo) Create(ctx context.Context, userID, serverSecret string, ttl time.Duration) (*models.SRPSession, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	// mirrors the store's upsert on user_id
	for id, s := range f.sessions {
		if s.UserID == userID {
			delete(f.sessions, id)
		}
	}
	s := &models.SRPSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		SRPB:      serverSecret,
		ExpiresAt: time.Now().Add(ttl),
		CreatedAt: time.Now(),
	}
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeSessionsRepo) Find(ctx context.Context, id string) (*models.SRPSession, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	s, ok := f.sessions[id]
	if !ok || s.Expired(time.Now()) {
		return nil, common.ErrorNotFound
	}
	return s, nil
}

func (f *fakeSessionsRepo) Delete(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.sessions, id)
	return nil
}

func (f *fakeSessionsRepo) DeleteByUserID(ctx context.Context, userID string) error {
	f.deleteByUserCalls++
	for id, s := range f.sessions {
		if s.UserID == userID {
			delete(f.sessions, id)
		}
	}
	return nil
}

func (f *fakeSessionsRepo) DeleteExpired(ctx context.Context) (int64, error) {
	var n int64
	for id, s := range f.sessions {
		if s.Expired(time.Now()) {
			delete(f.sessions, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeSessionsRepo) CountActive(ctx context.Context) (int64, error) {
	return int64(len(f.sessions)), nil
}

// --- fake security logs repository ---

type fakeLogsRepo struct {
	logs []*models.SecurityLog

	createErr error
	pruneN    int64
	pruneErr  error
}

func (f *fakeLogsRepo) Create(ctx context.Context, log *models.SecurityLog) (*models.SecurityLog, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	log.ID = uuid.NewString()
	log.Timestamp = time.Now()
	f.logs = append(f.logs, log)
	return log, nil
}

func (f *fakeLogsRepo) CountRecentFailures(ctx context.Context, userID string, window time.Duration) (int64, error) {
	var n int64
	for _, l := range f.logs {
		if l.UserID != nil && *l.UserID == userID && !l.Success {
			n++
		}
	}
	return n, nil
}

func (f *fakeLogsRepo) RecentActivity(ctx context.Context, userID string, limit int) ([]*models.SecurityLog, error) {
	return f.logs, nil
}

func (f *fakeLogsRepo) SuspiciousActivity(ctx context.Context, limit int) ([]*models.SecurityLog, error) {
	return f.logs, nil
}

func (f *fakeLogsRepo) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	return f.pruneN, f.pruneErr
}

// actions returns the recorded action names in order.
func (f *fakeLogsRepo) actions() []models.SecurityAction {
	out := make([]models.SecurityAction, 0, len(f.logs))
	for _, l := range f.logs {
		out = append(out, l.Action)
	}
	return out
}

func (f *fakeLogsRepo) last() *models.SecurityLog {
	if len(f.logs) == 0 {
		return nil
	}
	return f.logs[len(f.logs)-1]
}

// --- fake repository manager ---

type fakeRepoManager struct {
	u *fakeUsersRepo
	s *fakeSessionsRepo
	l *fakeLogsRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		u: newFakeUsersRepo(),
		s: newFakeSessionsRepo(),
		l: &fakeLogsRepo{},
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository      { return m.u }
func (m *fakeRepoManager) SRPSessions(db dbx.DBTX) srpsessionsrepo.Repository {
	return m.s
}
func (m *fakeRepoManager) SecurityLogs(db dbx.DBTX) securitylogsrepo.Repository {
	return m.l
}
