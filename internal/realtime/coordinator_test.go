package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codephoenix86/fastchat/internal/logger"
	"github.com/codephoenix86/fastchat/internal/presence"
	"github.com/codephoenix86/fastchat/internal/store"
)

type presenceFixture struct {
	hub         *Hub
	registry    *presence.Registry
	mem         *store.Memory
	coordinator *Coordinator
}

func newPresenceFixture(users store.UserStore) *presenceFixture {
	log := logger.Discard()
	mem := store.NewMemory()
	if users == nil {
		users = mem
	}
	hub := NewHub(log)
	registry := presence.NewRegistry()
	metrics := NewMetrics(log)
	replayer := NewReplayer(mem, mem, hub, 50, metrics, log)
	return &presenceFixture{
		hub:         hub,
		registry:    registry,
		mem:         mem,
		coordinator: NewCoordinator(registry, hub, users, replayer, metrics, log),
	}
}

func createUser(t *testing.T, mem *store.Memory, name string) string {
	t.Helper()
	u := &store.User{Username: name, Email: name + "@example.com", Password: "x"}
	require.NoError(t, mem.CreateUser(context.Background(), u))
	return u.ID.Hex()
}

// TestPresenceMultiTab tests that a user with two connections is announced
// online once and offline once, and only when the last tab closes.
func TestPresenceMultiTab(t *testing.T) {
	ctx := context.Background()
	f := newPresenceFixture(nil)
	seenAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f.coordinator.now = func() time.Time { return seenAt }

	u1 := createUser(t, f.mem, "u1")
	observer := newTestClient(t, f.hub, "observer")

	c1 := newTestClient(t, f.hub, u1)
	f.coordinator.Connected(ctx, c1)
	env := nextEnvelope(t, observer)
	assert.Equal(t, EventUserOnline, env.Event)
	assert.Equal(t, u1, decodePayload[PresencePayload](t, env).UserID)
	assertNoFrame(t, c1)

	c2 := newTestClient(t, f.hub, u1)
	f.coordinator.Connected(ctx, c2)
	assertNoFrame(t, observer)
	assertNoFrame(t, c1)
	assert.Equal(t, 2, f.registry.ConnectionCount(u1))

	f.hub.detach(c1)
	f.coordinator.Disconnected(ctx, c1)
	assertNoFrame(t, observer)
	assert.True(t, f.registry.IsOnline(u1))

	f.hub.detach(c2)
	f.coordinator.Disconnected(ctx, c2)
	env = nextEnvelope(t, observer)
	assert.Equal(t, EventUserOffline, env.Event)
	assert.Equal(t, u1, decodePayload[PresencePayload](t, env).UserID)
	assert.False(t, f.registry.IsOnline(u1))
	assertNoFrame(t, observer)

	user, err := f.mem.FindUserByID(ctx, u1)
	require.NoError(t, err)
	assert.Equal(t, seenAt, user.LastSeen)
}

// TestDisconnectUnknownConnection tests that a disconnect for a connection
// that never registered is silent.
func TestDisconnectUnknownConnection(t *testing.T) {
	f := newPresenceFixture(nil)
	observer := newTestClient(t, f.hub, "observer")
	ghost := newTestClient(t, f.hub, "ghost")

	f.coordinator.Disconnected(context.Background(), ghost)
	assertNoFrame(t, observer)
}

type failingUsers struct {
	store.UserStore
}

func (failingUsers) TouchLastSeen(context.Context, string, time.Time) error {
	return errors.New("database unavailable")
}

func TestOfflineAnnouncedWhenLastSeenFails(t *testing.T) {
	ctx := context.Background()
	f := newPresenceFixture(failingUsers{})
	observer := newTestClient(t, f.hub, "observer")
	c := newTestClient(t, f.hub, "u1")

	f.coordinator.Connected(ctx, c)
	assert.Equal(t, EventUserOnline, nextEnvelope(t, observer).Event)

	f.hub.detach(c)
	f.coordinator.Disconnected(ctx, c)
	assert.Equal(t, EventUserOffline, nextEnvelope(t, observer).Event)
}
