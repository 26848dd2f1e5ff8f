package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shelfkeeper/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserID = "0b6f3e52-4a43-4d35-9a52-2f1f8f0c9d11"

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, mock
}

var userColumns = []string{"id", "username", "email", "role", "password_hash", "created_at", "updated_at"}

func TestUserRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`(?s)^\s*INSERT INTO users \(username, email, role, password_hash, created_at, updated_at\).*RETURNING id$`).
		WithArgs("ann", "a@x.com", "user", "hash", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(testUserID))

	got, err := repo.Create(context.Background(), types.User{
		Username:     "ann",
		Email:        "a@x.com",
		Role:         "user",
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	assert.Equal(t, testUserID, got.ID)
	assert.False(t, got.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateDuplicateEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})

	_, err := repo.Create(context.Background(), types.User{Email: "a@x.com"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestUserRepository_CreateOtherError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`INSERT INTO users`).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), types.User{Email: "a@x.com"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicate)
}

func TestUserRepository_GetByEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	now := time.Now()

	mock.ExpectQuery(`(?s)SELECT id, username, email, role, password_hash, created_at, updated_at\s+FROM users\s+WHERE email = \$1`).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(testUserID, "ann", "a@x.com", "user", "hash", now, now))

	got, err := repo.GetByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, testUserID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)
}

func TestUserRepository_GetByEmailNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`FROM users`).WithArgs("nobody@x.com").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	now := time.Now()

	mock.ExpectQuery(`WHERE id = \$1`).
		WithArgs(testUserID).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(testUserID, "ann", "a@x.com", "user", "hash", now, now))

	got, err := repo.GetByID(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, "ann", got.Username)

	_, err = repo.GetByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
