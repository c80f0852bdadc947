package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/codephoenix86/fastchat/internal/auth"
)

// Gate authenticates a freshly upgraded connection. The client must send
// {"auth":{"token":"..."}} as its first frame; nothing else is read until the
// token verifies.
type Gate struct {
	verifier auth.TokenVerifier
	timeout  time.Duration
	metrics  *Metrics
	logger   *slog.Logger
}

func NewGate(verifier auth.TokenVerifier, timeout time.Duration, metrics *Metrics, logger *slog.Logger) *Gate {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Gate{
		verifier: verifier,
		timeout:  timeout,
		metrics:  metrics,
		logger:   logger.With("component", "gate"),
	}
}

// Authenticate reads the handshake frame and verifies its token. On failure
// the client has been sent a connect_error frame and a policy-violation close,
// and the returned error is an *auth.Error.
func (g *Gate) Authenticate(ctx context.Context, conn *websocket.Conn, addr string) (*auth.Claims, error) {
	token, err := g.readToken(conn)
	if err != nil {
		authErr := &auth.Error{Code: auth.CodeMissingToken, Message: "handshake did not carry a token", Err: err}
		g.reject(ctx, conn, addr, authErr)
		return nil, authErr
	}

	claims, err := g.verifier.Verify(token)
	if err != nil {
		var authErr *auth.Error
		if !errors.As(err, &authErr) {
			authErr = &auth.Error{Code: auth.CodeInvalidToken, Message: "token verification failed", Err: err}
		}
		g.reject(ctx, conn, addr, authErr)
		return nil, authErr
	}

	// Identity is bound; clear the handshake deadline for the read pump.
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		g.logger.Debug("Error clearing handshake deadline", slog.Any("error", err))
	}
	return claims, nil
}

func (g *Gate) readToken(conn *websocket.Conn) (string, error) {
	if err := conn.SetReadDeadline(time.Now().Add(g.timeout)); err != nil {
		return "", fmt.Errorf("set handshake deadline: %w", err)
	}
	msgType, raw, err := conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("read handshake: %w", err)
	}
	if msgType != websocket.TextMessage || !gjson.ValidBytes(raw) {
		return "", errors.New("handshake frame is not JSON")
	}
	token := gjson.GetBytes(raw, "auth.token")
	if token.Type != gjson.String || token.Str == "" {
		return "", errors.New("auth.token absent")
	}
	return token.Str, nil
}

func (g *Gate) reject(ctx context.Context, conn *websocket.Conn, addr string, authErr *auth.Error) {
	g.metrics.rejection(ctx, string(authErr.Code))
	g.logger.Warn("Handshake rejected",
		slog.String("addr", addr),
		slog.String("code", string(authErr.Code)),
		slog.Any("error", authErr.Err))

	deadline := time.Now().Add(writeWait)
	if err := conn.SetWriteDeadline(deadline); err != nil {
		g.logger.Debug("Error setting write deadline", slog.Any("error", err))
	}
	frame, err := Encode(EventConnectError, ErrorPayload{Code: string(authErr.Code), Message: authErr.Message})
	if err == nil {
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil && !isExpectedCloseError(err) {
			g.logger.Debug("Error writing connect_error", slog.Any("error", err))
		}
	}
	closeMsg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, string(authErr.Code))
	if err := conn.WriteControl(websocket.CloseMessage, closeMsg, deadline); err != nil && !isExpectedCloseError(err) {
		g.logger.Debug("Error writing close frame", slog.Any("error", err))
	}
	if err := conn.Close(); err != nil && !isExpectedCloseError(err) {
		g.logger.Debug("Error closing rejected connection", slog.Any("error", err))
	}
}

// accept tells the client its identity was bound. It runs before the write
// pump starts, so it is the only writer.
func (g *Gate) accept(conn *websocket.Conn, c *Client) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	frame, err := Encode(EventConnect, ConnectPayload{ConnectionID: c.id, UserID: c.userID})
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("write connect frame: %w", err)
	}
	return nil
}
