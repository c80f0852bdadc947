package realtime

import (
	"context"
	"log/slog"

	"github.com/codephoenix86/fastchat/internal/store"
)

// Replayer pushes messages still in "sent" status to a user's newly opened
// connection so it catches up on what it missed while offline.
type Replayer struct {
	chats    store.ChatStore
	messages store.MessageStore
	hub      *Hub
	limit    int64
	metrics  *Metrics
	logger   *slog.Logger
}

func NewReplayer(chats store.ChatStore, messages store.MessageStore, hub *Hub, limit int, metrics *Metrics, logger *slog.Logger) *Replayer {
	return &Replayer{
		chats:    chats,
		messages: messages,
		hub:      hub,
		limit:    int64(limit),
		metrics:  metrics,
		logger:   logger.With("component", "replay"),
	}
}

// Replay sends each pending message in the user's chats to c alone, oldest
// first, and returns how many were queued. Store errors abandon the replay;
// the messages stay reachable through the history endpoint.
func (r *Replayer) Replay(ctx context.Context, c *Client) int {
	log := r.logger.With(slog.String("connectionId", c.id), slog.String("userId", c.userID))

	chats, err := r.chats.FindChatsForParticipant(ctx, c.userID)
	if err != nil {
		log.Error("Replay abandoned: loading chats failed", slog.Any("error", err))
		return 0
	}
	if len(chats) == 0 {
		return 0
	}
	chatIDs := make([]string, 0, len(chats))
	for _, chat := range chats {
		chatIDs = append(chatIDs, chat.ID.Hex())
	}

	pending, err := r.messages.FindByStatusInChats(ctx, chatIDs, store.StatusSent, r.limit)
	if err != nil {
		log.Error("Replay abandoned: loading pending messages failed", slog.Any("error", err))
		return 0
	}

	sent := 0
	for _, msg := range pending {
		if !r.hub.SendTo(c, EventMessageNew, msg) {
			log.Warn("Replay abandoned: connection stopped accepting frames",
				slog.Int("sent", sent),
				slog.Int("pending", len(pending)))
			break
		}
		sent++
	}
	r.metrics.replay(ctx, sent)
	if sent > 0 {
		log.Debug("Replayed pending messages", slog.Int("count", sent))
	}
	return sent
}
