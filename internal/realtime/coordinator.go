package realtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/codephoenix86/fastchat/internal/presence"
	"github.com/codephoenix86/fastchat/internal/store"
)

// Coordinator turns connection edges into presence notifications. Only the
// first connection of an offline user and the last connection of an online
// user are visible to other clients.
type Coordinator struct {
	registry *presence.Registry
	hub      *Hub
	users    store.UserStore
	replayer *Replayer
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time
}

func NewCoordinator(registry *presence.Registry, hub *Hub, users store.UserStore, replayer *Replayer, metrics *Metrics, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		registry: registry,
		hub:      hub,
		users:    users,
		replayer: replayer,
		metrics:  metrics,
		logger:   logger.With("component", "presence"),
		now:      time.Now,
	}
}

// Connected registers c. On the user's first connection it announces the
// user online to everyone else and replays pending messages to c.
func (p *Coordinator) Connected(ctx context.Context, c *Client) {
	p.metrics.connectionOpened(ctx)
	if !p.registry.AddConnection(c.userID, c.id) {
		p.logger.Debug("Additional connection",
			slog.String("userId", c.userID),
			slog.Int("connections", p.registry.ConnectionCount(c.userID)))
		return
	}

	p.metrics.transition(ctx, "online")
	p.logger.Info("User online", slog.String("userId", c.userID))
	p.hub.BroadcastExceptSelf(c, EventUserOnline, PresencePayload{UserID: c.userID})

	if p.replayer != nil {
		p.replayer.Replay(ctx, c)
	}
}

// Disconnected deregisters c. When it was the user's last connection the
// last-seen time is persisted and the user is announced offline. A failed
// last-seen write is logged and does not suppress the announcement.
func (p *Coordinator) Disconnected(ctx context.Context, c *Client) {
	p.metrics.connectionClosed(ctx)
	if !p.registry.RemoveConnection(c.userID, c.id) {
		return
	}

	p.metrics.transition(ctx, "offline")
	if err := p.users.TouchLastSeen(ctx, c.userID, p.now().UTC()); err != nil {
		p.logger.Error("Failed to persist last seen",
			slog.String("userId", c.userID),
			slog.Any("error", err))
	}
	p.logger.Info("User offline", slog.String("userId", c.userID))
	p.hub.BroadcastExceptSelf(c, EventUserOffline, PresencePayload{UserID: c.userID})
}
