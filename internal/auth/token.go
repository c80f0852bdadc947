package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/codephoenix86/fastchat/internal/config"
)

// Claims is the payload of both access and refresh tokens.
type Claims struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the identity a token is issued for.
type Principal struct {
	ID       string
	Username string
	Role     string
}

// TokenVerifier validates an access token and returns its claims. Failures
// are always *Error.
type TokenVerifier interface {
	Verify(token string) (*Claims, error)
}

// Tokens signs and verifies HS256 access and refresh tokens. Access and
// refresh tokens use separate secrets so one cannot stand in for the other.
type Tokens struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

var _ TokenVerifier = (*Tokens)(nil)

func NewTokens(cfg config.JWTConfig) *Tokens {
	return &Tokens{
		accessSecret:  []byte(cfg.Secret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessExpires,
		refreshTTL:    cfg.RefreshExpires,
		now:           time.Now,
	}
}

// WithClock returns a copy of t reading time from now. Used for issuing
// already-expired or not-yet-valid tokens in tests.
func (t *Tokens) WithClock(now func() time.Time) *Tokens {
	c := *t
	c.now = now
	return &c
}

func (t *Tokens) sign(p Principal, secret []byte, ttl time.Duration) (string, time.Time, error) {
	issuedAt := t.now()
	expiresAt := issuedAt.Add(ttl)
	claims := Claims{
		UserID:   p.ID,
		Username: p.Username,
		Role:     p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// IssueAccess signs a short-lived access token.
func (t *Tokens) IssueAccess(p Principal) (string, error) {
	token, _, err := t.sign(p, t.accessSecret, t.accessTTL)
	return token, err
}

// IssueRefresh signs a refresh token and reports when it expires.
func (t *Tokens) IssueRefresh(p Principal) (string, time.Time, error) {
	return t.sign(p, t.refreshSecret, t.refreshTTL)
}

// Verify validates an access token.
func (t *Tokens) Verify(token string) (*Claims, error) {
	return t.parse(token, t.accessSecret)
}

// VerifyRefresh validates a refresh token's signature and lifetime. Whether
// it has been revoked is the caller's concern.
func (t *Tokens) VerifyRefresh(token string) (*Claims, error) {
	return t.parse(token, t.refreshSecret)
}

func (t *Tokens) parse(raw string, secret []byte) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, newError(CodeMissingToken, "authentication token is required", nil)
	}

	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, newError(CodeTokenExpired, "token has expired", err)
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return nil, newError(CodeTokenNotActive, "token is not active yet", err)
	case err != nil:
		return nil, newError(CodeInvalidToken, "invalid token", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, newError(CodeInvalidToken, "invalid token claims", nil)
	}
	return claims, nil
}
