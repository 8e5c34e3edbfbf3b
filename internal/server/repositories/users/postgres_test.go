package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cygnus07/zeroLock/internal/common"
	"github.com/cygnus07/zeroLock/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var userRowColumns = []string{
	"id", "email", "username", "srp_salt", "srp_verifier", "vault_key_encrypted",
	"public_key", "private_key_encrypted", "failed_login_attempts", "account_locked",
	"last_failed_login", "last_login", "created_at", "updated_at",
}

func sampleUserRow(id string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(userRowColumns).
		AddRow(id, "alice@example.com", "alice", "ab12", "cd34", "vault",
			"pub", "priv", 0, false, nil, nil, now, now)
}

const insertQuery = `(?s)^\s*INSERT\s+INTO\s+users\s*\(email,\s*username,\s*srp_salt,\s*srp_verifier,\s*vault_key_encrypted,\s*public_key,\s*private_key_encrypted\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*\$7\)\s*RETURNING\s+id,\s*created_at,\s*updated_at\s*$`

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("u-1", now, now)
	mock.ExpectQuery(insertQuery).
		WithArgs("alice@example.com", "alice", "ab12", "cd34", "vault", "pub", "priv").
		WillReturnRows(rows)

	u := &models.User{
		Email: "Alice@Example.com", Username: "alice",
		SRPSalt: "ab12", SRPVerifier: "cd34",
		VaultKeyEncrypted: "vault", PublicKey: "pub", PrivateKeyEncrypted: "priv",
	}
	got, err := repo.Create(context.Background(), u)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != "u-1" || got.Email != "alice@example.com" {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestCreate_DuplicateEmail(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQuery).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := repo.Create(context.Background(), &models.User{Email: "alice@example.com", Username: "alice"})
	if !errors.Is(err, common.ErrorEmailExists) {
		t.Fatalf("want common.ErrorEmailExists, got %v", err)
	}
}

func TestCreate_DuplicateUsername(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQuery).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

	_, err := repo.Create(context.Background(), &models.User{Email: "alice@example.com", Username: "alice"})
	if !errors.Is(err, common.ErrorUsernameExists) {
		t.Fatalf("want common.ErrorUsernameExists, got %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQuery).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{Email: "alice@example.com", Username: "alice"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFindByEmail_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+.*\s+FROM\s+users\s+WHERE\s+email\s*=\s*\$1\s*$`
	mock.ExpectQuery(q).WithArgs("alice@example.com").WillReturnRows(sampleUserRow("u-1"))

	got, err := repo.FindByEmail(context.Background(), "Alice@Example.com")
	if err != nil {
		t.Fatalf("FindByEmail error: %v", err)
	}
	if got.ID != "u-1" || got.Username != "alice" {
		t.Fatalf("unexpected user: %+v", got)
	}
	if got.LastFailedLogin != nil || got.LastLogin != nil {
		t.Fatalf("expected nil timestamps, got %+v", got)
	}
}

func TestFindByUsername_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+.*\s+FROM\s+users\s+WHERE\s+username\s*=\s*\$1\s*$`
	mock.ExpectQuery(q).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByUsername(context.Background(), "ghost")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestFindByIdentifier_RoutesOnAtSign(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	emailQ := `(?s)^SELECT\s+.*\s+FROM\s+users\s+WHERE\s+email\s*=\s*\$1\s*$`
	mock.ExpectQuery(emailQ).WithArgs("alice@example.com").WillReturnRows(sampleUserRow("u-1"))

	if _, err := repo.FindByIdentifier(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("FindByIdentifier(email) error: %v", err)
	}

	userQ := `(?s)^SELECT\s+.*\s+FROM\s+users\s+WHERE\s+username\s*=\s*\$1\s*$`
	mock.ExpectQuery(userQ).WithArgs("alice").WillReturnRows(sampleUserRow("u-1"))

	if _, err := repo.FindByIdentifier(context.Background(), "alice"); err != nil {
		t.Fatalf("FindByIdentifier(username) error: %v", err)
	}
}

func TestEmailExists(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+1\s+FROM\s+users\s+WHERE\s+email\s*=\s*\$1\s+LIMIT\s+1\s*$`
	mock.ExpectQuery(q).WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	ok, err := repo.EmailExists(context.Background(), "alice@example.com")
	if err != nil || !ok {
		t.Fatalf("EmailExists = %v, %v; want true, nil", ok, err)
	}

	mock.ExpectQuery(q).WithArgs("ghost@example.com").WillReturnError(sql.ErrNoRows)
	ok, err = repo.EmailExists(context.Background(), "ghost@example.com")
	if err != nil || ok {
		t.Fatalf("EmailExists = %v, %v; want false, nil", ok, err)
	}
}

func TestIncrementFailedLogins(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*UPDATE\s+users\s+SET\s+failed_login_attempts\s*=\s*failed_login_attempts\s*\+\s*1,\s*last_failed_login\s*=\s*now\(\),\s*account_locked\s*=\s*\(failed_login_attempts\s*\+\s*1\s*>=\s*\$2\)\s+WHERE\s+id\s*=\s*\$1\s+RETURNING\s+failed_login_attempts,\s*account_locked\s*$`

	rows := sqlmock.NewRows([]string{"failed_login_attempts", "account_locked"}).AddRow(4, true)
	mock.ExpectQuery(q).WithArgs("u-1", 4).WillReturnRows(rows)

	attempts, locked, err := repo.IncrementFailedLogins(context.Background(), "u-1", 4)
	if err != nil {
		t.Fatalf("IncrementFailedLogins error: %v", err)
	}
	if attempts != 4 || !locked {
		t.Fatalf("got attempts=%d locked=%v; want 4, true", attempts, locked)
	}
}

func TestIncrementFailedLogins_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*UPDATE\s+users\s+SET\s+failed_login_attempts`
	mock.ExpectQuery(q).WithArgs("ghost", 4).WillReturnError(sql.ErrNoRows)

	_, _, err := repo.IncrementFailedLogins(context.Background(), "ghost", 4)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestResetFailedLogins(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*UPDATE\s+users\s+SET\s+failed_login_attempts\s*=\s*0,\s*account_locked\s*=\s*FALSE,\s*last_failed_login\s*=\s*NULL,\s*last_login\s*=\s*now\(\)\s+WHERE\s+id\s*=\s*\$1\s*$`
	mock.ExpectExec(q).WithArgs("u-1").WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.ResetFailedLogins(context.Background(), "u-1"); err != nil {
		t.Fatalf("ResetFailedLogins error: %v", err)
	}
}

func TestUpdateSRPCredentials(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*UPDATE\s+users\s+SET\s+srp_salt\s*=\s*\$2,\s*srp_verifier\s*=\s*\$3\s+WHERE\s+id\s*=\s*\$1\s*$`
	mock.ExpectExec(q).WithArgs("u-1", "newsalt", "newverifier").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateSRPCredentials(context.Background(), "u-1", "newsalt", "newverifier"); err != nil {
		t.Fatalf("UpdateSRPCredentials error: %v", err)
	}

	mock.ExpectExec(q).WithArgs("ghost", "s", "v").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateSRPCredentials(context.Background(), "ghost", "s", "v")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^DELETE\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1\s+RETURNING\s+id,\s*email,\s*username\s*$`
	rows := sqlmock.NewRows([]string{"id", "email", "username"}).
		AddRow("u-1", "alice@example.com", "alice")
	mock.ExpectQuery(q).WithArgs("u-1").WillReturnRows(rows)

	got, err := repo.Delete(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if got.Username != "alice" {
		t.Fatalf("unexpected user: %+v", got)
	}

	mock.ExpectQuery(q).WithArgs("ghost").WillReturnError(sql.ErrNoRows)
	if _, err := repo.Delete(context.Background(), "ghost"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}
