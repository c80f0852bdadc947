// Package store defines the user, chat, message and refresh-token documents,
// the persistence contracts the rest of the service depends on, and two
// implementations of them: MongoDB and an in-memory store.
package store

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	UserCollectionName         = "users"
	ChatCollectionName         = "chats"
	MessageCollectionName      = "messages"
	RefreshTokenCollectionName = "refresh_tokens"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type ChatType string

const (
	ChatPrivate ChatType = "private"
	ChatGroup   ChatType = "group"
)

type MessageType string

const (
	MessageText MessageType = "text"
	MessageFile MessageType = "file"
)

// MessageStatus tracks delivery of a message. It only ever advances:
// sent, then delivered, then read.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

func (s MessageStatus) rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	default:
		return 0
	}
}

// Valid reports whether s is one of the known statuses.
func (s MessageStatus) Valid() bool {
	return s.rank() > 0
}

// Advances reports whether moving from s to next is a forward transition.
func (s MessageStatus) Advances(next MessageStatus) bool {
	return next.rank() > s.rank()
}

// before lists the statuses that s may replace.
func (s MessageStatus) before() []MessageStatus {
	var out []MessageStatus
	for _, prev := range []MessageStatus{StatusSent, StatusDelivered, StatusRead} {
		if prev.Advances(s) {
			out = append(out, prev)
		}
	}
	return out
}

type User struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	Username  string             `bson:"username" json:"username"`
	Email     string             `bson:"email" json:"email"`
	Password  string             `bson:"password" json:"-"`
	Role      Role               `bson:"role" json:"role"`
	Avatar    string             `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Bio       string             `bson:"bio,omitempty" json:"bio,omitempty"`
	LastSeen  time.Time          `bson:"last_seen" json:"lastSeen"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updatedAt"`
}

type Chat struct {
	ID           primitive.ObjectID   `bson:"_id" json:"id"`
	Type         ChatType             `bson:"type" json:"type"`
	GroupName    string               `bson:"group_name,omitempty" json:"groupName,omitempty"`
	GroupPicture string               `bson:"group_picture,omitempty" json:"groupPicture,omitempty"`
	Participants []primitive.ObjectID `bson:"participants" json:"participants"`
	Admin        *primitive.ObjectID  `bson:"admin,omitempty" json:"admin,omitempty"`
	CreatedAt    time.Time            `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time            `bson:"updated_at" json:"updatedAt"`
}

// HasParticipant reports whether userID is a member of the chat.
func (c *Chat) HasParticipant(userID primitive.ObjectID) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// IsAdmin reports whether userID administers the chat.
func (c *Chat) IsAdmin(userID primitive.ObjectID) bool {
	return c.Admin != nil && *c.Admin == userID
}

type Message struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	Chat      primitive.ObjectID `bson:"chat" json:"chatId"`
	Sender    primitive.ObjectID `bson:"sender" json:"sender"`
	Content   string             `bson:"content" json:"content"`
	Status    MessageStatus      `bson:"status" json:"status"`
	Type      MessageType        `bson:"type" json:"type"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updatedAt"`
}

type RefreshToken struct {
	ID        primitive.ObjectID `bson:"_id"`
	Token     string             `bson:"token"`
	UserID    primitive.ObjectID `bson:"user_id"`
	ExpiresAt time.Time          `bson:"expires_at"`
	CreatedAt time.Time          `bson:"created_at"`
}
