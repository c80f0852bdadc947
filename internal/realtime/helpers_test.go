package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codephoenix86/fastchat/internal/logger"
)

func newTestHub() *Hub {
	return NewHub(logger.Discard())
}

// newTestClient returns an attached client with no socket. Frames queued for
// it are read straight off its send channel.
func newTestClient(t *testing.T, hub *Hub, userID string) *Client {
	t.Helper()
	c := NewClient(nil, hub, userID, "test", ClientOptions{})
	require.True(t, hub.attach(c))
	t.Cleanup(func() {
		hub.detach(c)
		hub.release()
	})
	return c
}

func nextEnvelope(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case raw, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		var env Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		return env
	case <-time.After(time.Second):
		t.Fatalf("no frame queued for %s", c.userID)
		return Envelope{}
	}
}

func assertNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw, ok := <-c.send:
		if ok {
			t.Fatalf("unexpected frame for %s: %s", c.userID, raw)
		}
	default:
	}
}

func decodePayload[T any](t *testing.T, env Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Payload, &v))
	return v
}
