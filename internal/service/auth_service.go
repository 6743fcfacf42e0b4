package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/credential-service/internal/auth"
	"github.com/spec-kit/credential-service/internal/config"
	"github.com/spec-kit/credential-service/internal/domain"
	"github.com/spec-kit/credential-service/internal/events"
	"github.com/spec-kit/credential-service/internal/repository"
	apperrors "github.com/spec-kit/credential-service/pkg/util"
)

// AuthService coordinates signup, login, refresh and current-user flows.
// Each flow is stateless: every "state" below is per-call control flow. The
// ordering invariant in every token-consuming flow is signature check, then
// expiry check, then subject lookup.
type AuthService struct {
	users      repository.UserRepository
	codec      *auth.Codec
	dispatcher events.Dispatcher
	bcryptCost int
}

// AuthDependencies encapsulates collaborator requirements for the service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Dispatcher events.Dispatcher
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		codec:      auth.NewCodec(cfg.Auth.AccessSecret, cfg.Auth.RefreshSecret, cfg.Auth.AccessTokenTTL(), cfg.Auth.RefreshTokenTTL()),
		dispatcher: deps.Dispatcher,
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// Signup creates a new account after checking that neither the username nor
// the email is taken. The exists-check and the insert are not transactional;
// a race between them surfaces as a unique violation and maps to the same
// DUPLICATE_USER failure.
func (s *AuthService) Signup(ctx context.Context, username, email, password string) (*domain.User, error) {
	exists, err := s.users.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.NewDuplicateUser()
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, apperrors.NewDuplicateUser()
		}
		return nil, err
	}

	s.publish(ctx, events.EventUserRegistered, user.ID, events.UserRegisteredPayload{
		Username: user.Username,
		Email:    user.Email,
	})
	return user, nil
}

// Login verifies the credentials and issues an access/refresh token pair.
// Unknown username and wrong password fail with the same error so usernames
// cannot be enumerated. The user's email is the subject claim in both tokens.
func (s *AuthService) Login(ctx context.Context, username, password string) (accessToken, refreshToken string, err error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", apperrors.NewInvalidCredentials()
		}
		return "", "", err
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		return "", "", apperrors.NewInvalidCredentials()
	}

	now := time.Now()
	accessToken, err = s.codec.Encode(auth.TokenKindAccess, user.Email, now)
	if err != nil {
		return "", "", err
	}
	refreshToken, err = s.codec.Encode(auth.TokenKindRefresh, user.Email, now)
	if err != nil {
		return "", "", err
	}

	s.publish(ctx, events.EventUserLoggedIn, user.ID, events.UserLoggedInPayload{Username: user.Username})
	return accessToken, refreshToken, nil
}

// Refresh mints a new access token from a refresh token. The token's expiry
// is checked explicitly right after signature verification; an expired
// refresh token is never honored.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (accessToken, email string, err error) {
	claims, err := s.codec.Decode(auth.TokenKindRefresh, refreshToken)
	if err != nil {
		return "", "", apperrors.NewInvalidToken("invalid refresh token")
	}
	if !claims.ExpiresAt.After(time.Now()) {
		return "", "", apperrors.NewTokenExpired()
	}
	if claims.Subject == "" {
		return "", "", apperrors.NewInvalidToken("invalid refresh token")
	}

	user, err := s.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", apperrors.NewUserNotFound(http.StatusUnauthorized)
		}
		return "", "", err
	}

	accessToken, err = s.codec.Encode(auth.TokenKindAccess, user.Email, time.Now())
	if err != nil {
		return "", "", err
	}
	return accessToken, user.Email, nil
}

// CurrentUser resolves an access token to its user. Tokens encode the email
// as subject, so the lookup is by email as well.
func (s *AuthService) CurrentUser(ctx context.Context, accessToken string) (*domain.User, error) {
	claims, err := s.codec.Decode(auth.TokenKindAccess, accessToken)
	if err != nil {
		return nil, apperrors.NewForbidden("could not validate credentials")
	}
	if !claims.ExpiresAt.After(time.Now()) {
		return nil, apperrors.NewTokenExpired()
	}

	user, err := s.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUserNotFound(http.StatusNotFound)
		}
		return nil, err
	}
	return user, nil
}

// ListUsers returns all registered accounts.
func (s *AuthService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.users.List(ctx)
}

// Codec exposes the token codec, primarily for tests that need to mint
// tokens with custom lifetimes.
func (s *AuthService) Codec() *auth.Codec {
	return s.codec
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, userID string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
