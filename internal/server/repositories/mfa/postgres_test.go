package mfa

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophguard/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mfaColumns = []string{"user_id", "secret_base32", "enabled", "created_at", "updated_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

func TestFindByUserID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	q := `(?s)^\s*SELECT\s+user_id,\s*secret_base32,\s*enabled,\s*created_at,\s*updated_at\s+FROM\s+user_mfa\s+WHERE\s+user_id\s*=\s*\$1\s*$`
	mock.ExpectQuery(q).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(mfaColumns).AddRow("u-1", "SECRET", true, now, now))

	got, err := repo.FindByUserID(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "SECRET", got.SecretBase32)
	assert.True(t, got.Enabled)
}

func TestFindByUserID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+user_mfa`).WithArgs("u-1").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByUserID(context.Background(), "u-1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestProvision_ReturnsStoredRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	q := `(?s)^\s*INSERT\s+INTO\s+user_mfa\s*\(user_id,\s*secret_base32,\s*enabled\)\s*VALUES\s*\(\$1,\s*\$2,\s*FALSE\)\s*` +
		`ON\s+CONFLICT\s*\(user_id\)\s*DO\s+UPDATE\s+SET\s+user_id\s*=\s*user_mfa\.user_id\s*RETURNING\s+user_id,.*$`
	mock.ExpectQuery(q).
		WithArgs("u-1", "NEWSECRET").
		WillReturnRows(sqlmock.NewRows(mfaColumns).AddRow("u-1", "OLDSECRET", false, now, now))

	got, err := repo.Provision(context.Background(), "u-1", "NEWSECRET")
	require.NoError(t, err)
	assert.Equal(t, "OLDSECRET", got.SecretBase32, "existing secret wins")
	assert.False(t, got.Enabled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvision_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT\s+INTO\s+user_mfa`).WillReturnError(errors.New("boom"))

	_, err := repo.Provision(context.Background(), "u-1", "S")
	assert.ErrorContains(t, err, "db error: boom")
}

func TestActivate(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"row updated", 1, true},
		{"no enrollment", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			q := `(?s)^\s*UPDATE\s+user_mfa\s+SET\s+enabled\s*=\s*TRUE,\s*updated_at\s*=\s*now\(\)\s+WHERE\s+user_id\s*=\s*\$1\s*$`
			mock.ExpectExec(q).WithArgs("u-1").WillReturnResult(sqlmock.NewResult(0, tt.affected))

			ok, err := repo.Activate(context.Background(), "u-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestActivate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+user_mfa`).WillReturnError(errors.New("boom"))

	_, err := repo.Activate(context.Background(), "u-1")
	assert.ErrorContains(t, err, "db error: boom")
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*DELETE\s+FROM\s+user_mfa\s+WHERE\s+user_id\s*=\s*\$1\s*$`
	mock.ExpectExec(q).WithArgs("u-1").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), "u-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE\s+FROM\s+user_mfa`).WillReturnError(errors.New("boom"))

	assert.ErrorContains(t, repo.Delete(context.Background(), "u-1"), "db error: boom")
}
