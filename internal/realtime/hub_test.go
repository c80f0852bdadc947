package realtime

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEmitToRoomReachesOnlyMembers tests that a room event is queued for a
// joined connection and not for one outside the room.
func TestEmitToRoomReachesOnlyMembers(t *testing.T) {
	hub := newTestHub()
	cA := newTestClient(t, hub, "alice")
	cB := newTestClient(t, hub, "bob")

	hub.JoinRoom(cA, "chat-1")
	hub.EmitToRoom("chat-1", EventMessageNew, map[string]string{"content": "hi"})

	env := nextEnvelope(t, cA)
	assert.Equal(t, EventMessageNew, env.Event)
	assert.JSONEq(t, `{"content":"hi"}`, string(env.Payload))
	assertNoFrame(t, cB)
}

func TestRelayToRoomSkipsSender(t *testing.T) {
	hub := newTestHub()
	sender := newTestClient(t, hub, "alice")
	peer := newTestClient(t, hub, "bob")
	hub.JoinRoom(sender, "chat-1")
	hub.JoinRoom(peer, "chat-1")

	hub.RelayToRoomExceptSender(sender, "chat-1", EventStartTyping, TypingPayload{ChatID: "chat-1", UserID: "alice"})

	env := nextEnvelope(t, peer)
	assert.Equal(t, EventStartTyping, env.Event)
	assert.Equal(t, TypingPayload{ChatID: "chat-1", UserID: "alice"}, decodePayload[TypingPayload](t, env))
	assertNoFrame(t, sender)
}

func TestBroadcastExceptSelf(t *testing.T) {
	hub := newTestHub()
	self := newTestClient(t, hub, "alice")
	others := []*Client{newTestClient(t, hub, "bob"), newTestClient(t, hub, "carol")}

	hub.BroadcastExceptSelf(self, EventUserOnline, PresencePayload{UserID: "alice"})

	for _, c := range others {
		env := nextEnvelope(t, c)
		assert.Equal(t, EventUserOnline, env.Event)
		assert.Equal(t, "alice", decodePayload[PresencePayload](t, env).UserID)
	}
	assertNoFrame(t, self)
}

// TestJoinLeaveRoundTrip tests that leaving empties the room and rejoining
// restores delivery.
func TestJoinLeaveRoundTrip(t *testing.T) {
	hub := newTestHub()
	c := newTestClient(t, hub, "alice")

	hub.JoinRoom(c, "chat-1")
	hub.JoinRoom(c, "chat-1")
	assert.Equal(t, 1, hub.RoomSize("chat-1"))

	hub.LeaveRoom(c, "chat-1")
	assert.Equal(t, 0, hub.RoomSize("chat-1"))
	assert.False(t, hub.InRoom(c, "chat-1"))
	hub.EmitToRoom("chat-1", EventMessageDeleted, MessageRefPayload{MessageID: "m1"})
	assertNoFrame(t, c)

	hub.JoinRoom(c, "chat-1")
	hub.EmitToRoom("chat-1", EventMessageDeleted, MessageRefPayload{MessageID: "m1"})
	assert.Equal(t, "m1", decodePayload[MessageRefPayload](t, nextEnvelope(t, c)).MessageID)
}

func TestDetachCleansUpRooms(t *testing.T) {
	hub := newTestHub()
	c := NewClient(nil, hub, "alice", "test", ClientOptions{})
	require.True(t, hub.attach(c))
	defer hub.release()
	hub.JoinRoom(c, "chat-1")
	hub.JoinRoom(c, "chat-2")

	hub.detach(c)
	hub.detach(c)

	assert.Equal(t, 0, hub.ClientCount())
	assert.Equal(t, 0, hub.RoomSize("chat-1"))
	assert.Equal(t, 0, hub.RoomSize("chat-2"))
	_, ok := <-c.send
	assert.False(t, ok, "send channel closed on detach")

	hub.JoinRoom(c, "chat-1")
	assert.Equal(t, 0, hub.RoomSize("chat-1"), "detached clients cannot join")
}

// TestSlowClientIsDropped tests that a connection whose buffer is full is
// detached instead of blocking delivery to others.
func TestSlowClientIsDropped(t *testing.T) {
	hub := newTestHub()
	slow := NewClient(nil, hub, "slow", "test", ClientOptions{})
	require.True(t, hub.attach(slow))
	defer hub.release()
	fast := newTestClient(t, hub, "fast")

	for i := 0; i < sendBufferSize; i++ {
		slow.send <- []byte("{}")
	}

	hub.BroadcastExceptSelf(nil, EventUserOffline, PresencePayload{UserID: "x"})

	assert.Equal(t, EventUserOffline, nextEnvelope(t, fast).Event)
	assert.Equal(t, 1, hub.ClientCount())
	assert.False(t, hub.SendTo(slow, EventUserOffline, PresencePayload{UserID: "x"}))
}

func TestConcurrentRoomTraffic(t *testing.T) {
	hub := newTestHub()
	var clients []*Client
	for i := 0; i < 8; i++ {
		clients = append(clients, newTestClient(t, hub, "user"))
	}

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				hub.JoinRoom(c, "chat-1")
				hub.EmitToRoom("chat-1", EventMessageDeleted, MessageRefPayload{MessageID: "m"})
				hub.LeaveRoom(c, "chat-1")
			}
		}(c)
	}
	wg.Wait()
	assert.Equal(t, 0, hub.RoomSize("chat-1"))
}

func TestShutdownRefusesNewClients(t *testing.T) {
	hub := newTestHub()
	c := NewClient(nil, hub, "alice", "test", ClientOptions{})
	require.True(t, hub.attach(c))

	go func() {
		hub.detach(c)
		hub.release()
	}()
	require.NoError(t, hub.Shutdown(time.Second))

	select {
	case <-hub.Done():
	default:
		t.Fatal("Done not closed after shutdown")
	}
	assert.False(t, hub.attach(NewClient(nil, hub, "bob", "test", ClientOptions{})))
}

func TestShutdownTimesOutOnStuckSession(t *testing.T) {
	hub := newTestHub()
	c := NewClient(nil, hub, "alice", "test", ClientOptions{})
	require.True(t, hub.attach(c))
	defer hub.release()

	assert.Error(t, hub.Shutdown(20*time.Millisecond))
}
