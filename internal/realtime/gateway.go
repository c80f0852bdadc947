package realtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codephoenix86/fastchat/internal/auth"
	"github.com/codephoenix86/fastchat/internal/config"
	"github.com/codephoenix86/fastchat/internal/presence"
	"github.com/codephoenix86/fastchat/internal/store"
)

// disconnectTimeout bounds last-seen persistence after a connection ends.
const disconnectTimeout = 5 * time.Second

// Deps are the collaborators a Gateway is assembled from.
type Deps struct {
	Verifier auth.TokenVerifier
	Users    store.UserStore
	Chats    store.ChatStore
	Messages store.MessageStore
	Registry *presence.Registry
	Hub      *Hub
	Metrics  *Metrics
	Logger   *slog.Logger
}

// Options tune the session behavior.
type Options struct {
	HandshakeTimeout time.Duration
	MaxMessageSize   int64
	RateLimit        config.RateLimitConfig
	ReplayLimit      int
	VerifyRoomJoin   bool
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		HandshakeTimeout: cfg.HandshakeTimeout,
		MaxMessageSize:   cfg.MaxMessageSize,
		RateLimit:        cfg.RateLimit,
		ReplayLimit:      cfg.ReplayLimit,
		VerifyRoomJoin:   cfg.VerifyRoomJoin,
	}
}

// Gateway runs authenticated WebSocket sessions: handshake, presence
// registration, event dispatch, and disconnect processing.
type Gateway struct {
	gate        *Gate
	hub         *Hub
	coordinator *Coordinator
	chats       store.ChatStore
	messages    store.MessageStore
	table       map[Event]handlerFunc
	clientOpts  ClientOptions
	verifyJoin  bool
	metrics     *Metrics
	logger      *slog.Logger
}

func NewGateway(deps Deps, opts Options) *Gateway {
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics(deps.Logger)
	}
	if deps.Registry == nil {
		deps.Registry = presence.NewRegistry()
	}
	if deps.Hub == nil {
		deps.Hub = NewHub(deps.Logger)
	}

	replayer := NewReplayer(deps.Chats, deps.Messages, deps.Hub, opts.ReplayLimit, deps.Metrics, deps.Logger)
	g := &Gateway{
		gate:        NewGate(deps.Verifier, opts.HandshakeTimeout, deps.Metrics, deps.Logger),
		hub:         deps.Hub,
		coordinator: NewCoordinator(deps.Registry, deps.Hub, deps.Users, replayer, deps.Metrics, deps.Logger),
		chats:       deps.Chats,
		messages:    deps.Messages,
		clientOpts:  ClientOptions{MaxMessageSize: opts.MaxMessageSize, RateLimit: opts.RateLimit},
		verifyJoin:  opts.VerifyRoomJoin,
		metrics:     deps.Metrics,
		logger:      deps.Logger.With("component", "gateway"),
	}
	g.table = g.handlers()
	return g
}

// Hub returns the hub sessions are attached to. HTTP handlers emit message
// events through it.
func (g *Gateway) Hub() *Hub {
	return g.hub
}

// Serve runs one session on an upgraded connection and returns when it has
// fully ended, including disconnect processing. It always closes conn.
func (g *Gateway) Serve(ctx context.Context, conn *websocket.Conn, addr string) {
	claims, err := g.gate.Authenticate(ctx, conn, addr)
	if err != nil {
		return
	}

	c := NewClient(conn, g.hub, claims.UserID, addr, g.clientOpts)
	if !g.hub.attach(c) {
		g.logger.Debug("Rejecting connection during shutdown", slog.String("addr", addr))
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		c.closeConn()
		return
	}
	defer g.hub.release()

	if err := g.gate.accept(conn, c); err != nil {
		c.logger.Warn("Failed to acknowledge handshake", slog.Any("error", err))
		g.hub.detach(c)
		c.closeConn()
		return
	}
	c.logger.Info("Client connected")

	go c.writePump()
	defer g.disconnect(ctx, c)

	g.coordinator.Connected(ctx, c)
	c.readPump(func(c *Client, env Envelope) {
		g.dispatch(ctx, c, env)
	})
}

func (g *Gateway) disconnect(ctx context.Context, c *Client) {
	g.hub.detach(c)

	// The session is over; last-seen still has to be written.
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), disconnectTimeout)
	defer cancel()
	g.coordinator.Disconnected(dctx, c)
	c.logger.Info("Client disconnected")
}

func (g *Gateway) dispatch(ctx context.Context, c *Client, env Envelope) {
	handle, ok := g.table[env.Event]
	if !ok {
		c.logger.Warn("No handler for event", slog.String("event", string(env.Event)))
		return
	}
	g.metrics.event(ctx, env.Event)
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Event handler panicked",
				slog.String("event", string(env.Event)),
				slog.Any("panic", r))
		}
	}()
	if err := handle(ctx, c, env.Payload); err != nil {
		c.logger.Error("Event handler failed",
			slog.String("event", string(env.Event)),
			slog.Any("error", err))
	}
}
