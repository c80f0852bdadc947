package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/codephoenix86/fastchat/internal/store"
)

// handlerFunc handles one inbound event. A returned error is logged against
// the connection; it never closes it.
type handlerFunc func(ctx context.Context, c *Client, payload json.RawMessage) error

// handlers returns the handler for every client-originated event.
func (g *Gateway) handlers() map[Event]handlerFunc {
	return map[Event]handlerFunc{
		EventChatJoin:         g.handleJoin,
		EventChatLeave:        g.handleLeave,
		EventStartTyping:      g.relayTyping(EventStartTyping),
		EventStopTyping:       g.relayTyping(EventStopTyping),
		EventMessageDelivered: g.updateStatus(store.StatusDelivered),
		EventMessageRead:      g.updateStatus(store.StatusRead),
	}
}

var errMalformedPayload = errors.New("payload is not a JSON object")

// payloadString extracts one string field. Other fields are ignored.
func payloadString(payload json.RawMessage, field string) (string, error) {
	if !gjson.ValidBytes(payload) || !gjson.ParseBytes(payload).IsObject() {
		return "", errMalformedPayload
	}
	value := gjson.GetBytes(payload, field)
	if value.Type != gjson.String || value.Str == "" {
		return "", fmt.Errorf("%s is required", field)
	}
	return value.Str, nil
}

func decodeChat(payload json.RawMessage) (string, error) {
	return payloadString(payload, "chatId")
}

func (g *Gateway) handleJoin(ctx context.Context, c *Client, payload json.RawMessage) error {
	chatID, err := decodeChat(payload)
	if err != nil {
		return err
	}
	if g.verifyJoin {
		ok, err := g.chats.IsParticipant(ctx, chatID, c.userID)
		if err != nil {
			return fmt.Errorf("check membership of %s: %w", chatID, err)
		}
		if !ok {
			c.logger.Warn("Room join refused: not a participant", slog.String("chatId", chatID))
			return nil
		}
	}
	g.hub.JoinRoom(c, chatID)
	c.logger.Info("Joined chat", slog.String("chatId", chatID))
	return nil
}

func (g *Gateway) handleLeave(_ context.Context, c *Client, payload json.RawMessage) error {
	chatID, err := decodeChat(payload)
	if err != nil {
		return err
	}
	g.hub.LeaveRoom(c, chatID)
	c.logger.Info("Left chat", slog.String("chatId", chatID))
	return nil
}

// relayTyping forwards a typing indicator to the rest of the room. The
// userId sent on is always the connection's bound identity.
func (g *Gateway) relayTyping(event Event) handlerFunc {
	return func(_ context.Context, c *Client, payload json.RawMessage) error {
		chatID, err := decodeChat(payload)
		if err != nil {
			return err
		}
		if g.verifyJoin && !g.hub.InRoom(c, chatID) {
			c.logger.Debug("Typing indicator for unjoined chat dropped", slog.String("chatId", chatID))
			return nil
		}
		g.hub.RelayToRoomExceptSender(c, chatID, event, TypingPayload{ChatID: chatID, UserID: c.userID})
		return nil
	}
}

// updateStatus moves a message forward to status on behalf of a participant
// of its chat. Nothing is sent back to the client either way.
func (g *Gateway) updateStatus(status store.MessageStatus) handlerFunc {
	return func(ctx context.Context, c *Client, payload json.RawMessage) error {
		messageID, err := payloadString(payload, "messageId")
		if err != nil {
			return err
		}

		msg, err := g.messages.FindMessageByID(ctx, messageID)
		if err != nil {
			return fmt.Errorf("load message %s: %w", messageID, err)
		}
		ok, err := g.chats.IsParticipant(ctx, msg.Chat.Hex(), c.userID)
		if err != nil {
			return fmt.Errorf("check membership of %s: %w", msg.Chat.Hex(), err)
		}
		if !ok {
			c.logger.Warn("Status update refused: not a participant",
				slog.String("messageId", messageID),
				slog.String("status", string(status)))
			return nil
		}

		if _, err := g.messages.SetStatus(ctx, messageID, status); err != nil {
			return fmt.Errorf("set status of %s to %s: %w", messageID, status, err)
		}
		c.logger.Debug("Message status updated",
			slog.String("messageId", messageID),
			slog.String("status", string(status)))
		return nil
	}
}
