package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/codephoenix86/fastchat/internal/config"
)

func newTestTokens() *Tokens {
	return NewTokens(config.JWTConfig{
		Secret:         "access-secret",
		RefreshSecret:  "refresh-secret",
		AccessExpires:  15 * time.Minute,
		RefreshExpires: 24 * time.Hour,
	})
}

var alice = Principal{ID: "65a000000000000000000001", Username: "alice", Role: "user"}

func codeOf(t *testing.T, err error) Code {
	t.Helper()
	var authErr *Error
	require.True(t, errors.As(err, &authErr), "expected *auth.Error, got %v", err)
	return authErr.Code
}

func TestIssueAndVerifyAccess(t *testing.T) {
	tokens := newTestTokens()

	token, err := tokens.IssueAccess(alice)
	require.NoError(t, err)

	claims, err := tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, claims.UserID)
	assert.Equal(t, alice.ID, claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "user", claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestVerifyFailureCodes(t *testing.T) {
	tokens := newTestTokens()
	past := tokens.WithClock(func() time.Time { return time.Now().Add(-time.Hour) })
	future := tokens.WithClock(func() time.Time { return time.Now().Add(time.Hour) })

	expired, err := past.IssueAccess(alice)
	require.NoError(t, err)
	notActive, err := future.IssueAccess(alice)
	require.NoError(t, err)
	refresh, _, err := tokens.IssueRefresh(alice)
	require.NoError(t, err)
	good, err := tokens.IssueAccess(alice)
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: alice.ID}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  Code
	}{
		{"empty", "", CodeMissingToken},
		{"whitespace", "   ", CodeMissingToken},
		{"garbage", "not.a.jwt", CodeInvalidToken},
		{"expired", expired, CodeTokenExpired},
		{"not yet valid", notActive, CodeTokenNotActive},
		{"refresh used as access", refresh, CodeInvalidToken},
		{"tampered", good[:len(good)-2] + "xx", CodeInvalidToken},
		{"alg none", noneAlg, CodeInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tokens.Verify(tt.token)
			require.Error(t, err)
			assert.Equal(t, tt.want, codeOf(t, err))
		})
	}
}

func TestVerifyRefresh(t *testing.T) {
	tokens := newTestTokens()

	refresh, expiresAt, err := tokens.IssueRefresh(alice)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), expiresAt, time.Minute)

	claims, err := tokens.VerifyRefresh(refresh)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, claims.UserID)

	access, err := tokens.IssueAccess(alice)
	require.NoError(t, err)
	_, err = tokens.VerifyRefresh(access)
	assert.Equal(t, CodeInvalidToken, codeOf(t, err))
}

func TestRefreshTokensAreUnique(t *testing.T) {
	tokens := newTestTokens()

	a, _, err := tokens.IssueRefresh(alice)
	require.NoError(t, err)
	b, _, err := tokens.IssueRefresh(alice)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestPasswordHashing(t *testing.T) {
	HashCost = bcrypt.MinCost
	defer func() { HashCost = 12 }()

	hash, err := HashPassword("Secr3t!pass")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2a$"))

	ok, err := CheckPassword(hash, "Secr3t!pass")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPassword(hash, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = CheckPassword("not-a-hash", "whatever")
	assert.Error(t, err)
}
