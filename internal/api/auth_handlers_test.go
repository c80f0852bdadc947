package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codephoenix86/fastchat/internal/auth"
	"github.com/codephoenix86/fastchat/internal/store"
)

func signupBody(username, email string) map[string]string {
	return map[string]string{"username": username, "email": email, "password": testPassword}
}

func TestSignup(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodPost, "/auth/signup", "", signupBody("alice", "Alice@Example.com"))
	require.Equal(t, http.StatusCreated, res.Status)
	assert.True(t, res.Success)

	user := data[store.User](t, res, "user")
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, store.RoleUser, user.Role)
	assert.NotContains(t, string(res.Data), "password")
}

func TestSignupConflicts(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/auth/signup", "", signupBody("alice", "alice@example.com")).Status)

	res := f.do(t, http.MethodPost, "/auth/signup", "", signupBody("alice", "other@example.com"))
	assert.Equal(t, http.StatusConflict, res.Status)
	assert.Equal(t, "USERNAME_ALREADY_TAKEN", res.code())

	res = f.do(t, http.MethodPost, "/auth/signup", "", signupBody("alice2", "alice@example.com"))
	assert.Equal(t, http.StatusConflict, res.Status)
	assert.Equal(t, "EMAIL_ALREADY_EXISTS", res.code())
}

func TestSignupValidation(t *testing.T) {
	f := newFixture(t)
	res := f.do(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "weak",
	})
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "TOO_SHORT", res.code())
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.RequestID)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")

	tests := []struct {
		name   string
		body   map[string]string
		status int
		code   string
	}{
		{"by username", map[string]string{"username": "alice", "password": testPassword}, http.StatusOK, ""},
		{"by email", map[string]string{"email": "ALICE@example.com", "password": testPassword}, http.StatusOK, ""},
		{"wrong password", map[string]string{"username": "alice", "password": "Wrong1!pass"}, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"unknown user", map[string]string{"username": "nobody", "password": testPassword}, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"no identifier", map[string]string{"password": testPassword}, http.StatusBadRequest, "MISSING_IDENTIFIER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.do(t, http.MethodPost, "/auth/login", "", tt.body)
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.code, res.code())
			if tt.status != http.StatusOK {
				return
			}

			tokens := data[tokenPair](t, res, "")
			claims, err := f.tokens.Verify(tokens.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, alice.id, claims.UserID)
			assert.Equal(t, alice.id, data[store.User](t, res, "user").ID.Hex())
		})
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice")

	res := f.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": testPassword})
	require.Equal(t, http.StatusOK, res.Status)
	first := data[tokenPair](t, res, "")

	res = f.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": first.RefreshToken})
	require.Equal(t, http.StatusOK, res.Status, res.code())
	second := data[tokenPair](t, res, "")
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	res = f.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": first.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, res.Status)
	assert.Equal(t, "REFRESH_TOKEN_REVOKED", res.code())
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")

	res := f.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": alice.token})
	assert.Equal(t, http.StatusUnauthorized, res.Status)
	assert.Equal(t, string(auth.CodeInvalidToken), res.code())
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice")

	res := f.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": testPassword})
	require.Equal(t, http.StatusOK, res.Status)
	tokens := data[tokenPair](t, res, "")
	body := map[string]string{"refresh_token": tokens.RefreshToken}

	res = f.do(t, http.MethodPost, "/auth/logout", tokens.AccessToken, body)
	assert.Equal(t, http.StatusOK, res.Status)

	res = f.do(t, http.MethodPost, "/auth/logout", tokens.AccessToken, body)
	assert.Equal(t, "SESSION_NOT_FOUND", res.code())

	res = f.do(t, http.MethodPost, "/auth/refresh", "", body)
	assert.Equal(t, "REFRESH_TOKEN_REVOKED", res.code())
}

func TestBearerAuthentication(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	expired, err := f.tokens.WithClock(func() time.Time { return time.Now().Add(-time.Hour) }).
		IssueAccess(auth.Principal{ID: alice.id})
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		code  auth.Code
	}{
		{"missing", "", auth.CodeMissingToken},
		{"forged", "a.b.c", auth.CodeInvalidToken},
		{"expired", expired, auth.CodeTokenExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.do(t, http.MethodGet, "/users/me", tt.token, nil)
			assert.Equal(t, http.StatusUnauthorized, res.Status)
			assert.Equal(t, string(tt.code), res.code())
		})
	}

	res := f.do(t, http.MethodGet, "/users/me", alice.token, nil)
	assert.Equal(t, http.StatusOK, res.Status)
}
