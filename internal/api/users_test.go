package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codephoenix86/fastchat/internal/store"
)

func TestListUsersSearchAndPaging(t *testing.T) {
	f := newFixture(t)
	me := f.register(t, "alice")
	f.register(t, "bob")
	f.register(t, "bobby")
	f.register(t, "carol")

	res := f.do(t, http.MethodGet, "/users?search=bob&sort=username&limit=1", me.token, nil)
	require.Equal(t, http.StatusOK, res.Status)
	users := data[[]store.User](t, res, "")
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].Username)
	require.NotNil(t, res.Pagination)
	assert.Equal(t, Pagination{Page: 1, Limit: 1, Total: 2, TotalPages: 2, HasNextPage: true}, *res.Pagination)

	res = f.do(t, http.MethodGet, "/users?search=bob&sort=username&limit=1&page=2", me.token, nil)
	users = data[[]store.User](t, res, "")
	require.Len(t, users, 1)
	assert.Equal(t, "bobby", users[0].Username)
	assert.True(t, res.Pagination.HasPrevPage)
	assert.False(t, res.Pagination.HasNextPage)
}

func TestGetUser(t *testing.T) {
	f := newFixture(t)
	me := f.register(t, "alice")
	bob := f.register(t, "bob")

	res := f.do(t, http.MethodGet, "/users/"+bob.id, me.token, nil)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "bob", data[store.User](t, res, "user").Username)

	res = f.do(t, http.MethodGet, "/users/not-an-id", me.token, nil)
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "INVALID_FORMAT", res.code())

	res = f.do(t, http.MethodGet, "/users/"+"0123456789abcdef01234567", me.token, nil)
	assert.Equal(t, http.StatusNotFound, res.Status)
}

func TestUpdateMe(t *testing.T) {
	f := newFixture(t)
	me := f.register(t, "alice")
	f.register(t, "bob")

	res := f.do(t, http.MethodPatch, "/users/me", me.token, map[string]string{"newBio": "  hello  ", "newUsername": "alice.b"})
	require.Equal(t, http.StatusOK, res.Status, res.code())
	user := data[store.User](t, res, "user")
	assert.Equal(t, "hello", user.Bio)
	assert.Equal(t, "alice.b", user.Username)

	res = f.do(t, http.MethodPatch, "/users/me", me.token, map[string]string{"newUsername": "bob"})
	assert.Equal(t, "USERNAME_ALREADY_TAKEN", res.code())

	res = f.do(t, http.MethodPatch, "/users/me", me.token, map[string]string{"newEmail": "new@example.com"})
	assert.Equal(t, "REQUIRED_FIELD", res.code())

	res = f.do(t, http.MethodPatch, "/users/me", me.token, map[string]string{"newEmail": "new@example.com", "oldPassword": "Wrong1!pass"})
	assert.Equal(t, http.StatusUnauthorized, res.Status)
	assert.Equal(t, "INVALID_PASSWORD", res.code())

	res = f.do(t, http.MethodPatch, "/users/me", me.token, map[string]string{"newEmail": "new@example.com", "oldPassword": testPassword})
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "new@example.com", data[store.User](t, res, "user").Email)

	res = f.do(t, http.MethodPatch, "/users/me", me.token, map[string]string{})
	assert.Equal(t, "REQUIRED_FIELD", res.code())
}

func TestChangePasswordEndsSessions(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice")

	res := f.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": testPassword})
	require.Equal(t, http.StatusOK, res.Status)
	tokens := data[tokenPair](t, res, "")

	res = f.do(t, http.MethodPatch, "/users/me/password", tokens.AccessToken, map[string]string{
		"oldPassword": testPassword,
		"newPassword": "Changed2@pass",
	})
	require.Equal(t, http.StatusOK, res.Status, res.code())

	res = f.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": tokens.RefreshToken})
	assert.Equal(t, "REFRESH_TOKEN_REVOKED", res.code())

	res = f.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": "Changed2@pass"})
	assert.Equal(t, http.StatusOK, res.Status)
}

func TestDeleteMe(t *testing.T) {
	f := newFixture(t)
	me := f.register(t, "alice")

	res := f.do(t, http.MethodDelete, "/users/me", me.token, nil)
	require.Equal(t, http.StatusOK, res.Status)

	res = f.do(t, http.MethodGet, "/users/me", me.token, nil)
	assert.Equal(t, http.StatusNotFound, res.Status)
}
