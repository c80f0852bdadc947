package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/codephoenix86/fastchat/internal/store"
)

var (
	defaultChatSort = store.Sort{Field: "updatedAt", Desc: true}

	errPrivateChat = badRequest("INVALID_CHAT_TYPE", "This operation is only allowed on group chats")
)

// memberChat loads a chat the caller belongs to.
func (a *API) memberChat(ctx context.Context, chatID string, userID primitive.ObjectID) (*store.Chat, error) {
	chat, err := a.store.FindChatByID(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("Chat not found")
	}
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(userID) {
		return nil, errNotMember
	}
	return chat, nil
}

// callerID returns the caller's id as an ObjectID.
func callerID(r *http.Request) (primitive.ObjectID, error) {
	id, err := store.ParseID(caller(r).ID)
	if err != nil {
		return primitive.NilObjectID, unauthorized("INVALID_TOKEN", "Token subject is not a valid user id")
	}
	return id, nil
}

// existingUsers parses ids and checks each one names an account.
func (a *API) existingUsers(ctx context.Context, ids []string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(ids))
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	for _, raw := range ids {
		oid, err := store.ParseID(raw)
		if err != nil {
			return nil, badRequest("INVALID_FORMAT", "One or more participant ID formats are invalid")
		}
		if _, dup := seen[oid]; dup {
			return nil, badRequest("DUPLICATE_VALUE", "Each participant must be unique")
		}
		seen[oid] = struct{}{}

		if _, err := a.store.FindUserByID(ctx, raw); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, newError(http.StatusNotFound, "USER_NOT_FOUND", "User "+raw+" does not exist")
			}
			return nil, err
		}
		out = append(out, oid)
	}
	return out, nil
}

type createChatRequest struct {
	Type         store.ChatType `json:"type"`
	GroupName    string         `json:"groupName"`
	Participants []string       `json:"participants"`
}

func (a *API) createChat(w http.ResponseWriter, r *http.Request) {
	var req createChatRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	me, err := callerID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	var others []string
	for _, id := range req.Participants {
		if id != me.Hex() {
			others = append(others, id)
		}
	}

	chat := &store.Chat{Type: req.Type}
	switch req.Type {
	case store.ChatPrivate:
		if len(others) != 1 || len(req.Participants) > 2 {
			a.fail(w, r, badRequest("INVALID_COUNT", "Private chat must have exactly 2 unique participants"))
			return
		}
		participants, err := a.existingUsers(r.Context(), others)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		_, err = a.store.FindPrivateChat(r.Context(), me.Hex(), others[0])
		if err == nil {
			a.fail(w, r, conflict("CHAT_ALREADY_EXISTS", "A private chat with this user already exists"))
			return
		}
		if !errors.Is(err, store.ErrNotFound) {
			a.fail(w, r, err)
			return
		}
		chat.Participants = append([]primitive.ObjectID{me}, participants...)

	case store.ChatGroup:
		req.GroupName = strings.TrimSpace(req.GroupName)
		if err := validateGroupName(req.GroupName); err != nil {
			a.fail(w, r, err)
			return
		}
		participants, err := a.existingUsers(r.Context(), others)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		chat.GroupName = req.GroupName
		chat.Participants = append([]primitive.ObjectID{me}, participants...)
		admin := me
		chat.Admin = &admin

	default:
		a.fail(w, r, badRequest("UNSUPPORTED_VALUE", "Chat type must be either private or group"))
		return
	}

	if err := a.store.CreateChat(r.Context(), chat); err != nil {
		a.fail(w, r, err)
		return
	}
	a.logger.Info("Chat created",
		slog.String("chatId", chat.ID.Hex()),
		slog.String("type", string(chat.Type)),
		slog.String("creatorId", me.Hex()))
	respond(w, http.StatusCreated, "Chat created successfully", map[string]any{"chat": chat})
}

func (a *API) listChats(w http.ResponseWriter, r *http.Request) {
	page := parsePage(r, defaultChatSort, "updatedAt", "createdAt")
	chats, total, err := a.store.ListChats(r.Context(), caller(r).ID, page.store())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondPage(w, "Chats retrieved successfully", chats, page.result(total))
}

func (a *API) getChat(w http.ResponseWriter, r *http.Request) {
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
	respond(w, http.StatusOK, "Chat retrieved successfully", map[string]any{"chat": chat})
}

// adminChat loads a group chat the caller administers.
func (a *API) adminChat(r *http.Request) (*store.Chat, primitive.ObjectID, error) {
	me, err := callerID(r)
	if err != nil {
		return nil, me, err
	}
	chat, err := a.memberChat(r.Context(), r.PathValue("chatId"), me)
	if err != nil {
		return nil, me, err
	}
	if chat.Type != store.ChatGroup {
		return nil, me, errPrivateChat
	}
	if !chat.IsAdmin(me) {
		return nil, me, errAdminRequired
	}
	return chat, me, nil
}

type updateChatRequest struct {
	GroupName    *string `json:"groupName"`
	GroupPicture *string `json:"groupPicture"`
	Admin        *string `json:"admin"`
}

func (a *API) updateChat(w http.ResponseWriter, r *http.Request) {
	var req updateChatRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if req.GroupName == nil && req.GroupPicture == nil && req.Admin == nil {
		a.fail(w, r, badRequest("REQUIRED_FIELD", "At least one of groupName, groupPicture or admin is required"))
		return
	}

	chat, me, err := a.adminChat(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	update := store.ChatUpdate{GroupPicture: req.GroupPicture}
	if req.GroupName != nil {
		name := strings.TrimSpace(*req.GroupName)
		if err := validateGroupName(name); err != nil {
			a.fail(w, r, err)
			return
		}
		update.GroupName = &name
	}
	if req.Admin != nil {
		admin, err := store.ParseID(*req.Admin)
		if err != nil || !chat.HasParticipant(admin) {
			a.fail(w, r, badRequest("INVALID_ADMIN_ASSIGNMENT", "New admin must be a member of the group"))
			return
		}
		update.Admin = &admin
	}

	updated, err := a.store.UpdateChat(r.Context(), chat.ID.Hex(), update)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.logger.Info("Chat updated", slog.String("chatId", chat.ID.Hex()), slog.String("userId", me.Hex()))
	respond(w, http.StatusOK, "Chat updated successfully", map[string]any{"chat": updated})
}

// removeChat deletes a chat together with its messages.
func (a *API) removeChat(ctx context.Context, chatID string) error {
	if err := a.store.DeleteChatMessages(ctx, chatID); err != nil {
		return err
	}
	return a.store.DeleteChat(ctx, chatID)
}

func (a *API) deleteChat(w http.ResponseWriter, r *http.Request) {
	chat, me, err := a.adminChat(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.removeChat(r.Context(), chat.ID.Hex()); err != nil {
		a.fail(w, r, err)
		return
	}
	a.logger.Info("Chat deleted", slog.String("chatId", chat.ID.Hex()), slog.String("userId", me.Hex()))
	respond(w, http.StatusOK, "Chat deleted successfully", nil)
}

func (a *API) listMembers(w http.ResponseWriter, r *http.Request) {
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

	members := make([]*store.User, 0, len(chat.Participants))
	for _, id := range chat.Participants {
		user, err := a.store.FindUserByID(r.Context(), id.Hex())
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			a.fail(w, r, err)
			return
		}
		members = append(members, user)
	}
	respond(w, http.StatusOK, "Members retrieved successfully", map[string]any{"members": members})
}

type addMemberRequest struct {
	UserID string `json:"userId"`
}

func (a *API) addMember(w http.ResponseWriter, r *http.Request) {
	var req addMemberRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	chat, me, err := a.adminChat(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	ids, err := a.existingUsers(r.Context(), []string{req.UserID})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if chat.HasParticipant(ids[0]) {
		a.fail(w, r, conflict("ALREADY_MEMBER", "User is already a member of this group"))
		return
	}

	updated, err := a.store.AddParticipant(r.Context(), chat.ID.Hex(), req.UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.logger.Info("Member added",
		slog.String("chatId", chat.ID.Hex()),
		slog.String("userId", me.Hex()),
		slog.String("memberId", req.UserID))
	respond(w, http.StatusOK, "Member added successfully", map[string]any{"chat": updated})
}

// removeMember removes a member from a group. Members may remove themselves
// ("me"); the admin may remove anyone but must hand over the group before
// leaving it. The group is deleted when its last member leaves.
func (a *API) removeMember(w http.ResponseWriter, r *http.Request) {
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
	if chat.Type != store.ChatGroup {
		a.fail(w, r, errPrivateChat)
		return
	}

	target := me
	if raw := r.PathValue("userId"); raw != "me" {
		if target, err = store.ParseID(raw); err != nil {
			a.fail(w, r, err)
			return
		}
	}
	if target != me && !chat.IsAdmin(me) {
		a.fail(w, r, errAdminRequired)
		return
	}
	if !chat.HasParticipant(target) {
		a.fail(w, r, newError(http.StatusNotFound, "MEMBER_NOT_FOUND", "User is not a member of this group"))
		return
	}
	if chat.IsAdmin(target) && len(chat.Participants) > 1 {
		a.fail(w, r, conflict("ADMIN_TRANSFER_REQUIRED", "Admin must transfer ownership before leaving"))
		return
	}

	updated, err := a.store.RemoveParticipant(r.Context(), chat.ID.Hex(), target.Hex())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if len(updated.Participants) == 0 {
		if err := a.removeChat(r.Context(), chat.ID.Hex()); err != nil {
			a.fail(w, r, err)
			return
		}
		a.logger.Info("Empty group deleted", slog.String("chatId", chat.ID.Hex()))
	}

	a.logger.Info("Member removed",
		slog.String("chatId", chat.ID.Hex()),
		slog.String("userId", me.Hex()),
		slog.String("memberId", target.Hex()))
	respond(w, http.StatusOK, "Member removed successfully", nil)
}
