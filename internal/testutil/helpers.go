// Package testutil provides helpers shared by the HTTP and WebSocket tests:
// dialing the server, performing the token handshake, and reading event
// frames with a deadline.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// TestOrigin is the Origin header sent by ConnectWebSocket.
const TestOrigin = "http://localhost:3000"

// Frame mirrors the wire envelope without depending on the server packages.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WebSocketURL turns an httptest server URL plus path into a ws:// URL.
func WebSocketURL(serverURL, path string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + path
}

// ConnectWebSocket dials url with TestOrigin set.
func ConnectWebSocket(url string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	headers.Set("Origin", TestOrigin)

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// SendHandshake writes the auth frame a client must send first.
func SendHandshake(conn *websocket.Conn, token string) error {
	return conn.WriteJSON(map[string]any{"auth": map[string]string{"token": token}})
}

// Dial connects to url and completes the handshake with token, failing the
// test unless the server answers with a connect frame.
func Dial(t *testing.T, url, token string) (*websocket.Conn, Frame) {
	t.Helper()

	conn, err := ConnectWebSocket(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, SendHandshake(conn, token))
	frame := ReadFrame(t, conn)
	require.Equal(t, "connect", frame.Event, "handshake answer: %s", frame.Payload)
	return conn, frame
}

// SendEvent writes one envelope.
func SendEvent(conn *websocket.Conn, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return conn.WriteJSON(Frame{Event: event, Payload: raw})
}

// ReadFrame reads the next envelope, failing the test after 2 seconds.
func ReadFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	frame, err := TryReadFrame(conn, 2*time.Second)
	require.NoError(t, err)
	return frame
}

// ReadUntil reads frames until one named event arrives and returns it.
func ReadUntil(t *testing.T, conn *websocket.Conn, event string) Frame {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		frame, err := TryReadFrame(conn, time.Until(deadline))
		require.NoError(t, err)
		if frame.Event == event {
			return frame
		}
	}
	t.Fatalf("no %s frame received", event)
	return Frame{}
}

// TryReadFrame reads the next envelope within timeout.
func TryReadFrame(conn *websocket.Conn, timeout time.Duration) (Frame, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return Frame{}, err
	}
	var frame Frame
	err := conn.ReadJSON(&frame)
	return frame, err
}

// AssertNoFrame fails the test if any frame arrives within wait. A timed-out
// read leaves conn unusable for further reads, so call it last.
func AssertNoFrame(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()
	frame, err := TryReadFrame(conn, wait)
	if err == nil {
		t.Fatalf("unexpected %s frame: %s", frame.Event, frame.Payload)
	}
}

// CloseWebSocket sends a normal close frame and closes the connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}

// DecodeJSON decodes a response body into T and closes it.
func DecodeJSON[T any](t *testing.T, body io.ReadCloser) T {
	t.Helper()
	defer body.Close()
	var v T
	require.NoError(t, json.NewDecoder(body).Decode(&v))
	return v
}
