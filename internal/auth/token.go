package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// TokenKind selects which signing secret and default lifetime apply.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

const (
	DefaultAccessTTL  = 30 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

var (
	// ErrInvalidSignature means the token was not signed under the kind's secret.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrMalformedPayload means the token could not be parsed or lacks required claims.
	ErrMalformedPayload = errors.New("malformed token payload")
)

// Claims is the decoded token payload. ExpiresAt is returned as-is: expiry
// enforcement is an explicit, separate step in every consuming flow.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

// Codec signs and verifies compact HS256 tokens, one secret per kind.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewCodec builds a codec. Non-positive TTLs fall back to the defaults
// (30 minutes access, 7 days refresh).
func NewCodec(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Codec {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &Codec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// TTL returns the default lifetime for the given kind.
func (c *Codec) TTL(kind TokenKind) time.Duration {
	if kind == TokenKindRefresh {
		return c.refreshTTL
	}
	return c.accessTTL
}

func (c *Codec) secret(kind TokenKind) []byte {
	if kind == TokenKindRefresh {
		return c.refreshSecret
	}
	return c.accessSecret
}

// Encode signs a token for the subject expiring after the kind's default TTL.
func (c *Codec) Encode(kind TokenKind, subject string, now time.Time) (string, error) {
	return c.EncodeWithTTL(kind, subject, now, c.TTL(kind))
}

// EncodeWithTTL signs a token with an explicit lifetime.
func (c *Codec) EncodeWithTTL(kind TokenKind, subject string, now time.Time, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret(kind))
}

// Decode verifies the signature under the kind's secret and returns the
// claims. Signature verification happens before any claim is interpreted.
// Expired tokens decode successfully: callers check Claims.ExpiresAt
// themselves, always after this call and before any store lookup.
func (c *Codec) Decode(kind TokenKind, tokenStr string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidSignature
		}
		return c.secret(kind), nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, ErrInvalidSignature) {
			return Claims{}, ErrInvalidSignature
		}
		return Claims{}, ErrMalformedPayload
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.ExpiresAt == nil {
		return Claims{}, ErrMalformedPayload
	}
	return Claims{Subject: claims.Subject, ExpiresAt: claims.ExpiresAt.Time}, nil
}
