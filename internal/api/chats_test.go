package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codephoenix86/fastchat/internal/store"
)

func TestCreatePrivateChat(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	body := map[string]any{"type": "private", "participants": []string{bob.id}}
	res := f.do(t, http.MethodPost, "/chats", alice.token, body)
	require.Equal(t, http.StatusCreated, res.Status, res.code())
	chat := data[store.Chat](t, res, "chat")
	assert.Equal(t, store.ChatPrivate, chat.Type)
	assert.Len(t, chat.Participants, 2)
	assert.Nil(t, chat.Admin)

	res = f.do(t, http.MethodPost, "/chats", bob.token, map[string]any{"type": "private", "participants": []string{alice.id}})
	assert.Equal(t, http.StatusConflict, res.Status)
	assert.Equal(t, "CHAT_ALREADY_EXISTS", res.code())
}

func TestCreateChatValidation(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	carol := f.register(t, "carol")

	tests := []struct {
		name string
		body map[string]any
		code string
	}{
		{"private with three", map[string]any{"type": "private", "participants": []string{bob.id, carol.id}}, "INVALID_COUNT"},
		{"private with self only", map[string]any{"type": "private", "participants": []string{alice.id}}, "INVALID_COUNT"},
		{"unknown user", map[string]any{"type": "private", "participants": []string{"0123456789abcdef01234567"}}, "USER_NOT_FOUND"},
		{"bad id", map[string]any{"type": "group", "groupName": "g", "participants": []string{"nope"}}, "INVALID_FORMAT"},
		{"duplicate member", map[string]any{"type": "group", "groupName": "g", "participants": []string{bob.id, bob.id}}, "DUPLICATE_VALUE"},
		{"group without name", map[string]any{"type": "group", "participants": []string{bob.id}}, "REQUIRED_FIELD"},
		{"unknown type", map[string]any{"type": "channel"}, "UNSUPPORTED_VALUE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.do(t, http.MethodPost, "/chats", alice.token, tt.body)
			assert.False(t, res.Success)
			assert.Equal(t, tt.code, res.code())
		})
	}
}

func TestGroupAdministration(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	carol := f.register(t, "carol")
	chatID := f.group(t, alice, "team", bob)

	res := f.do(t, http.MethodGet, "/chats/"+chatID, carol.token, nil)
	assert.Equal(t, http.StatusForbidden, res.Status)
	assert.Equal(t, "NOT_A_MEMBER", res.code())

	res = f.do(t, http.MethodPatch, "/chats/"+chatID, bob.token, map[string]string{"groupName": "mine"})
	assert.Equal(t, "ADMIN_REQUIRED", res.code())

	res = f.do(t, http.MethodPost, "/chats/"+chatID+"/members", bob.token, map[string]string{"userId": carol.id})
	assert.Equal(t, "ADMIN_REQUIRED", res.code())

	res = f.do(t, http.MethodPost, "/chats/"+chatID+"/members", alice.token, map[string]string{"userId": carol.id})
	require.Equal(t, http.StatusOK, res.Status, res.code())

	res = f.do(t, http.MethodPost, "/chats/"+chatID+"/members", alice.token, map[string]string{"userId": carol.id})
	assert.Equal(t, http.StatusConflict, res.Status)
	assert.Equal(t, "ALREADY_MEMBER", res.code())

	res = f.do(t, http.MethodGet, "/chats/"+chatID+"/members", carol.token, nil)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Len(t, data[[]store.User](t, res, "members"), 3)

	res = f.do(t, http.MethodPatch, "/chats/"+chatID, alice.token, map[string]string{"groupName": "renamed"})
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "renamed", data[store.Chat](t, res, "chat").GroupName)
}

func TestUpdatePrivateChatRefused(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	res := f.do(t, http.MethodPost, "/chats", alice.token, map[string]any{"type": "private", "participants": []string{bob.id}})
	require.Equal(t, http.StatusCreated, res.Status)
	chatID := data[store.Chat](t, res, "chat").ID.Hex()

	res = f.do(t, http.MethodPatch, "/chats/"+chatID, alice.token, map[string]string{"groupName": "x"})
	assert.Equal(t, "INVALID_CHAT_TYPE", res.code())
}

func TestRemoveMembers(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	carol := f.register(t, "carol")
	chatID := f.group(t, alice, "team", bob, carol)
	members := "/chats/" + chatID + "/members/"

	res := f.do(t, http.MethodDelete, members+carol.id, bob.token, nil)
	assert.Equal(t, "ADMIN_REQUIRED", res.code())

	res = f.do(t, http.MethodDelete, members+"me", alice.token, nil)
	assert.Equal(t, http.StatusConflict, res.Status)
	assert.Equal(t, "ADMIN_TRANSFER_REQUIRED", res.code())

	res = f.do(t, http.MethodDelete, members+"me", bob.token, nil)
	require.Equal(t, http.StatusOK, res.Status)

	res = f.do(t, http.MethodDelete, members+"me", bob.token, nil)
	assert.Equal(t, http.StatusForbidden, res.Status, "a removed member can no longer act")
	assert.Equal(t, "NOT_A_MEMBER", res.code())

	res = f.do(t, http.MethodDelete, members+bob.id, alice.token, nil)
	assert.Equal(t, "MEMBER_NOT_FOUND", res.code())

	res = f.do(t, http.MethodDelete, members+carol.id, alice.token, nil)
	require.Equal(t, http.StatusOK, res.Status)

	_, err := f.mem.FindChatByID(context.Background(), chatID)
	require.NoError(t, err, "the admin is still a member")
}

func TestAdminTransferThenLeave(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	chatID := f.group(t, alice, "team", bob)

	res := f.do(t, http.MethodPatch, "/chats/"+chatID, alice.token, map[string]string{"admin": "0123456789abcdef01234567"})
	assert.Equal(t, "INVALID_ADMIN_ASSIGNMENT", res.code())

	res = f.do(t, http.MethodPatch, "/chats/"+chatID, alice.token, map[string]string{"admin": bob.id})
	require.Equal(t, http.StatusOK, res.Status, res.code())
	chat := data[store.Chat](t, res, "chat")
	require.NotNil(t, chat.Admin)
	assert.Equal(t, bob.id, chat.Admin.Hex())

	res = f.do(t, http.MethodDelete, "/chats/"+chatID+"/members/me", alice.token, nil)
	require.Equal(t, http.StatusOK, res.Status, res.code())

	msg := f.do(t, http.MethodPost, "/chats/"+chatID+"/messages", bob.token, map[string]string{"content": "last one here"})
	require.Equal(t, http.StatusCreated, msg.Status)

	res = f.do(t, http.MethodDelete, "/chats/"+chatID+"/members/me", bob.token, nil)
	require.Equal(t, http.StatusOK, res.Status, res.code())

	_, err := f.mem.FindChatByID(ctx, chatID)
	assert.ErrorIs(t, err, store.ErrNotFound, "the last member leaving deletes the group")
	messages, _, err := f.mem.ListMessages(ctx, chatID, store.Page{})
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestDeleteChat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	chatID := f.group(t, alice, "team", bob)

	res := f.do(t, http.MethodDelete, "/chats/"+chatID, bob.token, nil)
	assert.Equal(t, "ADMIN_REQUIRED", res.code())

	res = f.do(t, http.MethodDelete, "/chats/"+chatID, alice.token, nil)
	require.Equal(t, http.StatusOK, res.Status)
	_, err := f.mem.FindChatByID(ctx, chatID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	res = f.do(t, http.MethodGet, "/chats/"+chatID, alice.token, nil)
	assert.Equal(t, http.StatusNotFound, res.Status)
}

func TestListChats(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	carol := f.register(t, "carol")
	f.group(t, alice, "one", bob)
	f.group(t, alice, "two")
	f.group(t, carol, "three")

	res := f.do(t, http.MethodGet, "/chats", alice.token, nil)
	require.Equal(t, http.StatusOK, res.Status)
	chats := data[[]store.Chat](t, res, "")
	assert.Len(t, chats, 2)
	assert.Equal(t, int64(2), res.Pagination.Total)
}
