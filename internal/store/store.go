package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound  = errors.New("document does not exist")
	ErrDuplicate = errors.New("unique key conflicts")
	ErrInvalidID = errors.New("invalid object id")
)

// DuplicateError names the unique field that collided.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s already exists", e.Field)
}

func (e *DuplicateError) Unwrap() error {
	return ErrDuplicate
}

// ParseID converts a hex identifier into an ObjectID.
func ParseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return oid, nil
}

func parseIDs(ids []string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := ParseID(id)
		if err != nil {
			return nil, err
		}
		out = append(out, oid)
	}
	return out, nil
}

// Sort orders a listing by one field.
type Sort struct {
	Field string
	Desc  bool
}

// ParseSort reads "field" or "-field". Fields outside allowed fall back to def.
func ParseSort(raw string, def Sort, allowed ...string) Sort {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	s := Sort{Field: strings.TrimPrefix(raw, "-"), Desc: strings.HasPrefix(raw, "-")}
	for _, field := range allowed {
		if field == s.Field {
			return s
		}
	}
	return def
}

// Page is a window into a sorted listing.
type Page struct {
	Skip  int64
	Limit int64
	Sort  Sort
}

type UserUpdate struct {
	Username *string
	Email    *string
	Bio      *string
	Avatar   *string
	Password *string
}

type ChatUpdate struct {
	GroupName    *string
	GroupPicture *string
	// Admin transfers group ownership. The new admin must already be a
	// participant; callers check that.
	Admin *primitive.ObjectID
}

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	FindUserByID(ctx context.Context, id string) (*User, error)
	// FindUserByLogin matches either the username or the email.
	FindUserByLogin(ctx context.Context, login string) (*User, error)
	ListUsers(ctx context.Context, search string, page Page) ([]*User, int64, error)
	UpdateUser(ctx context.Context, id string, update UserUpdate) (*User, error)
	DeleteUser(ctx context.Context, id string) error
	TouchLastSeen(ctx context.Context, id string, at time.Time) error
}

// ChatStore persists chats and their membership.
type ChatStore interface {
	CreateChat(ctx context.Context, chat *Chat) error
	FindChatByID(ctx context.Context, id string) (*Chat, error)
	FindPrivateChat(ctx context.Context, a, b string) (*Chat, error)
	FindChatsForParticipant(ctx context.Context, userID string) ([]*Chat, error)
	ListChats(ctx context.Context, userID string, page Page) ([]*Chat, int64, error)
	UpdateChat(ctx context.Context, id string, update ChatUpdate) (*Chat, error)
	DeleteChat(ctx context.Context, id string) error
	AddParticipant(ctx context.Context, chatID, userID string) (*Chat, error)
	RemoveParticipant(ctx context.Context, chatID, userID string) (*Chat, error)
	IsParticipant(ctx context.Context, chatID, userID string) (bool, error)
}

// MessageStore persists chat messages.
type MessageStore interface {
	CreateMessage(ctx context.Context, message *Message) error
	FindMessageByID(ctx context.Context, id string) (*Message, error)
	ListMessages(ctx context.Context, chatID string, page Page) ([]*Message, int64, error)
	// FindByStatusInChats returns messages with exactly status in any of the
	// chats, oldest first. A positive limit keeps only the oldest limit matches.
	FindByStatusInChats(ctx context.Context, chatIDs []string, status MessageStatus, limit int64) ([]*Message, error)
	// SetStatus advances a message's status. A transition that would move
	// backwards leaves the message unchanged and returns it as is.
	SetStatus(ctx context.Context, id string, status MessageStatus) (*Message, error)
	UpdateContent(ctx context.Context, id, content string) (*Message, error)
	DeleteMessage(ctx context.Context, id string) error
	DeleteChatMessages(ctx context.Context, chatID string) error
}

// TokenStore persists issued refresh tokens so they can be revoked.
type TokenStore interface {
	SaveRefreshToken(ctx context.Context, token *RefreshToken) error
	FindRefreshToken(ctx context.Context, token string) (*RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, token string) error
	DeleteUserRefreshTokens(ctx context.Context, userID string) error
}

// Store is the full persistence surface of the service.
type Store interface {
	UserStore
	ChatStore
	MessageStore
	TokenStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
