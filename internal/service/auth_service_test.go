package service

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/credential-service/internal/auth"
	"github.com/spec-kit/credential-service/internal/config"
	"github.com/spec-kit/credential-service/internal/domain"
	"github.com/spec-kit/credential-service/internal/events"
	apperrors "github.com/spec-kit/credential-service/pkg/util"
)

type memoryUserRepo struct {
	mu    sync.Mutex
	users []*domain.User
}

func (m *memoryUserRepo) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.users = append(m.users, user)
	return nil
}

func (m *memoryUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memoryUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memoryUserRepo) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Username == username || user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryUserRepo) List(_ context.Context) ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.User{}, m.users...), nil
}

func newTestService() (*AuthService, *memoryUserRepo) {
	repo := &memoryUserRepo{}
	cfg := config.Config{
		Auth: config.AuthConfig{
			AccessSecret:           "access-secret",
			RefreshSecret:          "refresh-secret",
			AccessTokenTTLMinutes:  30,
			RefreshTokenTTLMinutes: 7 * 24 * 60,
			BcryptCost:             bcrypt.MinCost,
		},
	}
	svc := NewAuthService(cfg, AuthDependencies{
		UserRepo:   repo,
		Dispatcher: events.NewInMemoryDispatcher(),
	})
	return svc, repo
}

func domainCode(t *testing.T, err error) string {
	t.Helper()
	var de *apperrors.DomainError
	require.ErrorAs(t, err, &de)
	return de.Code
}

func TestSignup(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	ctx := context.Background()

	user, err := svc.Signup(ctx, "alice", "a@x.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "a@x.com", user.Email)
	assert.NotEqual(t, "secret1", user.PasswordHash)
	assert.True(t, auth.VerifyPassword(user.PasswordHash, "secret1"))
}

func TestSignup_DuplicateEitherField(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Signup(ctx, "alice", "a@x.com", "secret1")
	require.NoError(t, err)

	_, err = svc.Signup(ctx, "alice", "other@x.com", "secret1")
	assert.Equal(t, "DUPLICATE_USER", domainCode(t, err))

	_, err = svc.Signup(ctx, "other", "a@x.com", "secret1")
	assert.Equal(t, "DUPLICATE_USER", domainCode(t, err))
}

func TestLogin_IssuesTokenPairWithEmailSubject(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Signup(ctx, "alice", "a@x.com", "secret1")
	require.NoError(t, err)

	accessToken, refreshToken, err := svc.Login(ctx, "alice", "secret1")
	require.NoError(t, err)
	require.NotEmpty(t, accessToken)
	require.NotEmpty(t, refreshToken)

	accessClaims, err := svc.Codec().Decode(auth.TokenKindAccess, accessToken)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", accessClaims.Subject)

	refreshClaims, err := svc.Codec().Decode(auth.TokenKindRefresh, refreshToken)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", refreshClaims.Subject)
	assert.True(t, refreshClaims.ExpiresAt.After(accessClaims.ExpiresAt))
}

func TestLogin_FailuresIndistinguishable(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Signup(ctx, "alice", "a@x.com", "secret1")
	require.NoError(t, err)

	_, _, wrongPassErr := svc.Login(ctx, "alice", "wrong")
	_, _, unknownUserErr := svc.Login(ctx, "nobody", "secret1")

	require.Error(t, wrongPassErr)
	require.Error(t, unknownUserErr)
	assert.Equal(t, "INVALID_CREDENTIALS", domainCode(t, wrongPassErr))
	assert.Equal(t, "INVALID_CREDENTIALS", domainCode(t, unknownUserErr))
	assert.Equal(t, wrongPassErr.Error(), unknownUserErr.Error())
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Signup(ctx, "alice", "a@x.com", "secret1")
	require.NoError(t, err)
	_, refreshToken, err := svc.Login(ctx, "alice", "secret1")
	require.NoError(t, err)

	accessToken, email, err := svc.Refresh(ctx, refreshToken)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", email)

	claims, err := svc.Codec().Decode(auth.TokenKindAccess, accessToken)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Subject)
}

func TestRefresh_InvalidToken(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()

	_, _, err := svc.Refresh(context.Background(), "garbage")
	assert.Equal(t, "INVALID_TOKEN", domainCode(t, err))
}

func TestRefresh_ExpiredTokenRejected(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Signup(ctx, "alice", "a@x.com", "secret1")
	require.NoError(t, err)

	expired, err := svc.Codec().EncodeWithTTL(auth.TokenKindRefresh, "a@x.com", time.Now(), -time.Minute)
	require.NoError(t, err)

	_, _, err = svc.Refresh(ctx, expired)
	assert.Equal(t, "TOKEN_EXPIRED", domainCode(t, err))
}

func TestRefresh_EmptySubject(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()

	token, err := svc.Codec().Encode(auth.TokenKindRefresh, "", time.Now())
	require.NoError(t, err)

	_, _, err = svc.Refresh(context.Background(), token)
	assert.Equal(t, "INVALID_TOKEN", domainCode(t, err))
}

func TestRefresh_UnknownUser(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()

	token, err := svc.Codec().Encode(auth.TokenKindRefresh, "ghost@x.com", time.Now())
	require.NoError(t, err)

	_, _, err = svc.Refresh(context.Background(), token)
	var de *apperrors.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "USER_NOT_FOUND", de.Code)
	assert.Equal(t, http.StatusUnauthorized, de.HTTPStatus)
}

func TestCurrentUser(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Signup(ctx, "alice", "a@x.com", "secret1")
	require.NoError(t, err)
	accessToken, _, err := svc.Login(ctx, "alice", "secret1")
	require.NoError(t, err)

	user, err := svc.CurrentUser(ctx, accessToken)
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "a@x.com", user.Email)
}

func TestCurrentUser_ExpiredToken(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Signup(ctx, "alice", "a@x.com", "secret1")
	require.NoError(t, err)

	expired, err := svc.Codec().EncodeWithTTL(auth.TokenKindAccess, "a@x.com", time.Now(), -time.Minute)
	require.NoError(t, err)

	_, err = svc.CurrentUser(ctx, expired)
	var de *apperrors.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "TOKEN_EXPIRED", de.Code)
	assert.Equal(t, http.StatusUnauthorized, de.HTTPStatus)
}

func TestCurrentUser_RefreshTokenRejected(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Signup(ctx, "alice", "a@x.com", "secret1")
	require.NoError(t, err)
	_, refreshToken, err := svc.Login(ctx, "alice", "secret1")
	require.NoError(t, err)

	// A refresh token presented as an access token fails signature
	// verification under the access secret.
	_, err = svc.CurrentUser(ctx, refreshToken)
	assert.Equal(t, "FORBIDDEN", domainCode(t, err))
}

func TestCurrentUser_UnknownUser(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()

	token, err := svc.Codec().Encode(auth.TokenKindAccess, "ghost@x.com", time.Now())
	require.NoError(t, err)

	_, err = svc.CurrentUser(context.Background(), token)
	var de *apperrors.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "USER_NOT_FOUND", de.Code)
	assert.Equal(t, http.StatusNotFound, de.HTTPStatus)
}

func TestSignup_PublishesRegistrationEvent(t *testing.T) {
	t.Parallel()

	repo := &memoryUserRepo{}
	dispatcher := events.NewInMemoryDispatcher()

	var got []events.Event
	var mu sync.Mutex
	dispatcher.Subscribe(events.EventUserRegistered, func(_ context.Context, event events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, event)
		return nil
	})

	cfg := config.Config{
		Auth: config.AuthConfig{
			AccessSecret:  "access-secret",
			RefreshSecret: "refresh-secret",
			BcryptCost:    bcrypt.MinCost,
		},
	}
	svc := NewAuthService(cfg, AuthDependencies{UserRepo: repo, Dispatcher: dispatcher})

	user, err := svc.Signup(context.Background(), "alice", "a@x.com", "secret1")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, user.ID, got[0].UserID)
	assert.Equal(t, events.EventUserRegistered, got[0].Type)
}
