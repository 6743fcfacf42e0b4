package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/credential-service/internal/domain"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, UserRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)
	return mock, NewUserRepository(mock)
}

func TestUserRepository_Create(t *testing.T) {
	mock, repo := newMockRepo(t)

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("alice", "a@x.com", "hashed").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("11111111-1111-1111-1111-111111111111", now, now))

	user := &domain.User{Username: "alice", Email: "a@x.com", PasswordHash: "hashed"}
	require.NoError(t, repo.Create(context.Background(), user))

	assert.Equal(t, "11111111-1111-1111-1111-111111111111", user.ID)
	assert.Equal(t, now, user.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
}

func TestUserRepository_GetByUsername(t *testing.T) {
	mock, repo := newMockRepo(t)

	now := time.Now()
	mock.ExpectQuery(`SELECT id, username, email, password_hash, created_at, updated_at\s+FROM users WHERE username=\$1`).
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "email", "password_hash", "created_at", "updated_at"}).
			AddRow("id-1", "alice", "a@x.com", "hashed", now, now))

	user, err := repo.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "a@x.com", user.Email)
	assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
}

func TestUserRepository_GetByEmail_NotFound(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery(`SELECT id, username, email, password_hash, created_at, updated_at\s+FROM users WHERE email=\$1`).
		WithArgs("ghost@x.com").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "ghost@x.com")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
}

func TestUserRepository_ExistsByUsernameOrEmail(t *testing.T) {
	tests := []struct {
		name   string
		exists bool
	}{
		{name: "exists", exists: true},
		{name: "absent", exists: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, repo := newMockRepo(t)

			mock.ExpectQuery(`SELECT EXISTS`).
				WithArgs("alice", "a@x.com").
				WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(tt.exists))

			exists, err := repo.ExistsByUsernameOrEmail(context.Background(), "alice", "a@x.com")
			require.NoError(t, err)
			assert.Equal(t, tt.exists, exists)
			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestUserRepository_List(t *testing.T) {
	mock, repo := newMockRepo(t)

	now := time.Now()
	mock.ExpectQuery(`SELECT id, username, email, password_hash, created_at, updated_at\s+FROM users ORDER BY created_at`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "email", "password_hash", "created_at", "updated_at"}).
			AddRow("id-1", "alice", "a@x.com", "hash-a", now, now).
			AddRow("id-2", "bob", "b@x.com", "hash-b", now, now))

	users, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "bob", users[1].Username)
	assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
}
