package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codephoenix86/fastchat/internal/realtime"
	"github.com/codephoenix86/fastchat/internal/store"
)

func TestSendMessageEmitsToRoom(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	chatID := f.group(t, alice, "team", bob)

	res := f.do(t, http.MethodPost, "/chats/"+chatID+"/messages", bob.token, map[string]string{"content": "hi"})
	require.Equal(t, http.StatusCreated, res.Status, res.code())
	msg := data[store.Message](t, res, "message")
	assert.Equal(t, store.StatusSent, msg.Status)
	assert.Equal(t, bob.id, msg.Sender.Hex())

	events := f.emitter.all()
	require.Len(t, events, 1)
	assert.Equal(t, chatID, events[0].chatID)
	assert.Equal(t, realtime.EventMessageNew, events[0].event)
	sent, ok := events[0].payload.(*store.Message)
	require.True(t, ok)
	assert.Equal(t, msg.ID, sent.ID)
}

func TestSendMessageRules(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	carol := f.register(t, "carol")
	chatID := f.group(t, alice, "team")

	res := f.do(t, http.MethodPost, "/chats/"+chatID+"/messages", carol.token, map[string]string{"content": "let me in"})
	assert.Equal(t, "NOT_A_MEMBER", res.code())

	res = f.do(t, http.MethodPost, "/chats/"+chatID+"/messages", alice.token, map[string]string{"content": "   "})
	assert.Equal(t, "REQUIRED_FIELD", res.code())

	res = f.do(t, http.MethodPost, "/chats/"+chatID+"/messages", alice.token, map[string]string{"content": strings.Repeat("x", 5001)})
	assert.Equal(t, "TOO_LONG", res.code())

	assert.Empty(t, f.emitter.all())
}

func TestListMessagesNewestFirst(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	chatID := f.group(t, alice, "notes")
	for _, content := range []string{"one", "two", "three"} {
		res := f.do(t, http.MethodPost, "/chats/"+chatID+"/messages", alice.token, map[string]string{"content": content})
		require.Equal(t, http.StatusCreated, res.Status)
	}

	res := f.do(t, http.MethodGet, "/chats/"+chatID+"/messages", alice.token, nil)
	require.Equal(t, http.StatusOK, res.Status)
	messages := data[[]store.Message](t, res, "")
	require.Len(t, messages, 3)
	assert.Equal(t, "three", messages[0].Content)
	assert.Equal(t, "one", messages[2].Content)

	res = f.do(t, http.MethodGet, "/chats/"+chatID+"/messages?sort=createdAt&limit=2", alice.token, nil)
	messages = data[[]store.Message](t, res, "")
	require.Len(t, messages, 2)
	assert.Equal(t, "one", messages[0].Content)
	assert.True(t, res.Pagination.HasNextPage)
}

func TestUpdateAndDeleteMessage(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	chatID := f.group(t, alice, "team", bob)

	res := f.do(t, http.MethodPost, "/chats/"+chatID+"/messages", alice.token, map[string]string{"content": "draft"})
	require.Equal(t, http.StatusCreated, res.Status)
	path := "/chats/" + chatID + "/messages/" + data[store.Message](t, res, "message").ID.Hex()

	res = f.do(t, http.MethodPatch, path, bob.token, map[string]string{"content": "hijacked"})
	assert.Equal(t, http.StatusForbidden, res.Status)
	assert.Equal(t, "NOT_MESSAGE_OWNER", res.code())

	res = f.do(t, http.MethodPatch, path, alice.token, map[string]string{"content": "final"})
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "final", data[store.Message](t, res, "message").Content)

	res = f.do(t, http.MethodGet, path, bob.token, nil)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "final", data[store.Message](t, res, "message").Content)

	res = f.do(t, http.MethodDelete, path, bob.token, nil)
	assert.Equal(t, "NOT_MESSAGE_OWNER", res.code())

	res = f.do(t, http.MethodDelete, path, alice.token, nil)
	require.Equal(t, http.StatusOK, res.Status)

	res = f.do(t, http.MethodGet, path, alice.token, nil)
	assert.Equal(t, http.StatusNotFound, res.Status)

	events := f.emitter.all()
	require.Len(t, events, 3)
	assert.Equal(t, realtime.EventMessageUpdated, events[1].event)
	assert.Equal(t, realtime.EventMessageDeleted, events[2].event)
	assert.Equal(t, realtime.MessageRefPayload{MessageID: path[strings.LastIndex(path, "/")+1:]}, events[2].payload)
}

func TestMessageFromAnotherChatIsNotFound(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	first := f.group(t, alice, "first")
	second := f.group(t, alice, "second")

	res := f.do(t, http.MethodPost, "/chats/"+first+"/messages", alice.token, map[string]string{"content": "hello"})
	require.Equal(t, http.StatusCreated, res.Status)
	id := data[store.Message](t, res, "message").ID.Hex()

	res = f.do(t, http.MethodGet, "/chats/"+second+"/messages/"+id, alice.token, nil)
	assert.Equal(t, http.StatusNotFound, res.Status)
}
