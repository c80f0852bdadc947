package api

import (
	"errors"
	"log/slog"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/codephoenix86/fastchat/internal/realtime"
	"github.com/codephoenix86/fastchat/internal/store"
)

var defaultMessageSort = store.Sort{Field: "createdAt", Desc: true}

type contentRequest struct {
	Content string `json:"content"`
}

func (a *API) emit(chatID string, event realtime.Event, payload any) {
	if a.emitter != nil {
		a.emitter.EmitToRoom(chatID, event, payload)
	}
}

// chatMessage loads a message of a chat the caller belongs to. A message of
// another chat is reported as not found.
func (a *API) chatMessage(r *http.Request) (*store.Message, primitive.ObjectID, error) {
	me, err := callerID(r)
	if err != nil {
		return nil, me, err
	}
	chat, err := a.memberChat(r.Context(), r.PathValue("chatId"), me)
	if err != nil {
		return nil, me, err
	}
	msg, err := a.store.FindMessageByID(r.Context(), r.PathValue("messageId"))
	if errors.Is(err, store.ErrNotFound) || (err == nil && msg.Chat != chat.ID) {
		return nil, me, notFound("Message not found")
	}
	if err != nil {
		return nil, me, err
	}
	return msg, me, nil
}

// ownMessage is chatMessage restricted to messages the caller sent.
func (a *API) ownMessage(r *http.Request) (*store.Message, error) {
	msg, me, err := a.chatMessage(r)
	if err != nil {
		return nil, err
	}
	if msg.Sender != me {
		return nil, forbidden("NOT_MESSAGE_OWNER", "You can only modify your own messages")
	}
	return msg, nil
}

func (a *API) listMessages(w http.ResponseWriter, r *http.Request) {
	me, err := callerID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	chat, err := a.memberChat(r.Context(), r.PathValue("chatId"), me)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	page := parsePage(r, defaultMessageSort, "createdAt", "updatedAt")
	messages, total, err := a.store.ListMessages(r.Context(), chat.ID.Hex(), page.store())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondPage(w, "Messages retrieved successfully", messages, page.result(total))
}

func (a *API) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := validateContent(req.Content); err != nil {
		a.fail(w, r, err)
		return
	}
	me, err := callerID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	chat, err := a.memberChat(r.Context(), r.PathValue("chatId"), me)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	msg := &store.Message{
		Chat:    chat.ID,
		Sender:  me,
		Content: req.Content,
		Status:  store.StatusSent,
		Type:    store.MessageText,
	}
	if err := a.store.CreateMessage(r.Context(), msg); err != nil {
		a.fail(w, r, err)
		return
	}

	a.emit(chat.ID.Hex(), realtime.EventMessageNew, msg)
	a.logger.Info("Message sent",
		slog.String("messageId", msg.ID.Hex()),
		slog.String("chatId", chat.ID.Hex()),
		slog.String("senderId", me.Hex()))
	respond(w, http.StatusCreated, "Message sent successfully", map[string]any{"message": msg})
}

func (a *API) getMessage(w http.ResponseWriter, r *http.Request) {
	msg, _, err := a.chatMessage(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Message retrieved successfully", map[string]any{"message": msg})
}

func (a *API) updateMessage(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := validateContent(req.Content); err != nil {
		a.fail(w, r, err)
		return
	}
	msg, err := a.ownMessage(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	updated, err := a.store.UpdateContent(r.Context(), msg.ID.Hex(), req.Content)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.emit(updated.Chat.Hex(), realtime.EventMessageUpdated, updated)
	a.logger.Info("Message updated", slog.String("messageId", updated.ID.Hex()))
	respond(w, http.StatusOK, "Message updated successfully", map[string]any{"message": updated})
}

func (a *API) deleteMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := a.ownMessage(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.store.DeleteMessage(r.Context(), msg.ID.Hex()); err != nil {
		a.fail(w, r, err)
		return
	}
	a.emit(msg.Chat.Hex(), realtime.EventMessageDeleted, realtime.MessageRefPayload{MessageID: msg.ID.Hex()})
	a.logger.Info("Message deleted", slog.String("messageId", msg.ID.Hex()))
	respond(w, http.StatusOK, "Message deleted successfully", nil)
}
