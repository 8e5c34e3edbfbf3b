package srpsessions

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/cygnus07/zeroLock/internal/common"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*INSERT\s+INTO\s+srp_sessions\s*\(user_id,\s*srp_b,\s*expires_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*now\(\)\s*\+\s*\$3::interval\)\s*ON\s+CONFLICT\s+\(user_id\)\s+DO\s+UPDATE\s+SET\s+srp_b\s*=\s*EXCLUDED\.srp_b,\s*session_key\s*=\s*NULL,\s*expires_at\s*=\s*EXCLUDED\.expires_at,\s*created_at\s*=\s*now\(\)\s*RETURNING\s+id,\s*expires_at,\s*created_at\s*$`

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "expires_at", "created_at"}).
		AddRow("s-1", now.Add(5*time.Minute), now)
	mock.ExpectQuery(q).
		WithArgs("u-1", "deadbeef", "300000 milliseconds").
		WillReturnRows(rows)

	got, err := repo.Create(context.Background(), "u-1", "deadbeef", 5*time.Minute)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != "s-1" || got.UserID != "u-1" || got.SRPB != "deadbeef" {
		t.Fatalf("unexpected session: %+v", got)
	}
}

// A second handshake for the same user must land on the conflict arm and
// replace the row rather than surface a unique violation.
func TestCreate_SupersedesOnConflict(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)ON\s+CONFLICT\s+\(user_id\)\s+DO\s+UPDATE`).
		WithArgs("u-1", "cafe", "300000 milliseconds").
		WillReturnRows(sqlmock.NewRows([]string{"id", "expires_at", "created_at"}).
			AddRow("s-1", now.Add(5*time.Minute), now))

	got, err := repo.Create(context.Background(), "u-1", "cafe", 5*time.Minute)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.SRPB != "cafe" {
		t.Fatalf("unexpected session: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^\s*INSERT\s+INTO\s+srp_sessions`).
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), "u-1", "deadbeef", 5*time.Minute)
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFind_Live(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*SELECT\s+id,\s*user_id,\s*srp_b,\s*session_key,\s*expires_at,\s*created_at\s+FROM\s+srp_sessions\s+WHERE\s+id\s*=\s*\$1\s+AND\s+expires_at\s*>\s*now\(\)\s*$`

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "srp_b", "session_key", "expires_at", "created_at"}).
		AddRow("s-1", "u-1", "deadbeef", nil, now.Add(time.Minute), now)
	mock.ExpectQuery(q).WithArgs("s-1").WillReturnRows(rows)

	got, err := repo.Find(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("Find error: %v", err)
	}
	if got.UserID != "u-1" || got.SessionKey != "" {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestFind_ExpiredOrMissing(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^\s*SELECT\s+id,\s*user_id,\s*srp_b`).
		WithArgs("s-gone").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Find(context.Background(), "s-gone")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^DELETE\s+FROM\s+srp_sessions\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs("s-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), "s-1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
}

func TestDeleteByUserID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^DELETE\s+FROM\s+srp_sessions\s+WHERE\s+user_id\s*=\s*\$1$`).
		WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.DeleteByUserID(context.Background(), "u-1"); err != nil {
		t.Fatalf("DeleteByUserID error: %v", err)
	}
}

func TestDeleteExpired(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^DELETE\s+FROM\s+srp_sessions\s+WHERE\s+expires_at\s*<=\s*now\(\)$`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteExpired(context.Background())
	if err != nil {
		t.Fatalf("DeleteExpired error: %v", err)
	}
	if n != 3 {
		t.Fatalf("swept %d rows, want 3", n)
	}
}

func TestCountActive(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT\s+count\(\*\)\s+FROM\s+srp_sessions\s+WHERE\s+expires_at\s*>\s*now\(\)$`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2)))

	n, err := repo.CountActive(context.Background())
	if err != nil {
		t.Fatalf("CountActive error: %v", err)
	}
	if n != 2 {
		t.Fatalf("got %d, want 2", n)
	}
}
