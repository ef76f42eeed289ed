package credentials

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophguard/internal/common"
	"github.com/dmitrijs2005/gophguard/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

const insertQ = `(?s)^\s*INSERT\s+INTO\s+user_credentials\s*\(user_id,\s*email,\s*password_hash\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s*RETURNING\s+created_at\s*$`

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(insertQ).
		WithArgs("u-1", "a@b.c", "hash").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	cred := &models.Credential{UserID: "u-1", Email: "a@b.c", PasswordHash: "hash"}
	require.NoError(t, repo.Create(context.Background(), cred))
	assert.Equal(t, now, cred.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_UniqueViolation(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), &models.Credential{UserID: "u-1", Email: "a@b.c", PasswordHash: "h"})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &models.Credential{UserID: "u-1"})
	assert.ErrorContains(t, err, "db error: db down")
}

func TestFindByEmail(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	q := `(?s)^\s*SELECT\s+user_id,\s*email,\s*password_hash,\s*created_at\s+FROM\s+user_credentials\s+WHERE\s+email\s*=\s*\$1\s*$`
	mock.ExpectQuery(q).
		WithArgs("a@b.c").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "email", "password_hash", "created_at"}).AddRow("u-1", "a@b.c", "hash", now))

	got, err := repo.FindByEmail(context.Background(), "a@b.c")
	require.NoError(t, err)
	assert.Equal(t, &models.Credential{UserID: "u-1", Email: "a@b.c", PasswordHash: "hash", CreatedAt: now}, got)
}

func TestFindByEmail_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+user_credentials`).WithArgs("x@y.z").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "x@y.z")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestFindByUserID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	q := `(?s)WHERE\s+user_id\s*=\s*\$1\s*$`
	mock.ExpectQuery(q).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "email", "password_hash", "created_at"}).AddRow("u-1", "a@b.c", "hash", now))

	got, err := repo.FindByUserID(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", got.Email)
}

func TestFindByUserID_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+user_credentials`).WillReturnError(errors.New("boom"))

	_, err := repo.FindByUserID(context.Background(), "u-1")
	assert.ErrorContains(t, err, "db error: boom")
}
