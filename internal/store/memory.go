package store

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Memory is a process-local Store. It backs tests and single-node runs
// with STORE_DRIVER=memory; nothing survives a restart.
type Memory struct {
	mu       sync.RWMutex
	users    map[primitive.ObjectID]*User
	chats    map[primitive.ObjectID]*Chat
	messages map[primitive.ObjectID]*Message
	tokens   map[string]*RefreshToken
	now      func() time.Time
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[primitive.ObjectID]*User),
		chats:    make(map[primitive.ObjectID]*Chat),
		messages: make(map[primitive.ObjectID]*Message),
		tokens:   make(map[string]*RefreshToken),
		now:      time.Now,
	}
}

func (m *Memory) Ping(context.Context) error  { return nil }
func (m *Memory) Close(context.Context) error { return nil }

func (m *Memory) stamp(created, updated *time.Time) {
	now := m.now().UTC()
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = *created
	}
}

func cloneUser(u *User) *User {
	c := *u
	return &c
}

func cloneChat(c *Chat) *Chat {
	out := *c
	out.Participants = append([]primitive.ObjectID(nil), c.Participants...)
	if c.Admin != nil {
		admin := *c.Admin
		out.Admin = &admin
	}
	return &out
}

func cloneMessage(msg *Message) *Message {
	c := *msg
	return &c
}

func window[T any](items []T, page Page) []T {
	start := page.Skip
	if start < 0 {
		start = 0
	}
	if start >= int64(len(items)) {
		return []T{}
	}
	end := int64(len(items))
	if page.Limit > 0 && start+page.Limit < end {
		end = start + page.Limit
	}
	return items[start:end]
}

// sortBy orders items by key, breaking ties by ObjectID which increases with
// insertion order.
func sortBy[T any](items []T, desc bool, key func(T) string, id func(T) primitive.ObjectID) {
	sort.SliceStable(items, func(i, j int) bool {
		ki, kj := key(items[i]), key(items[j])
		if ki == kj {
			a, b := id(items[i]), id(items[j])
			c := bytes.Compare(a[:], b[:])
			if desc {
				return c > 0
			}
			return c < 0
		}
		if desc {
			return ki > kj
		}
		return ki < kj
	})
}

// timeKey renders t at fixed width so keys compare lexically in time order.
func timeKey(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000")
}

// Users

func (m *Memory) CreateUser(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if strings.EqualFold(existing.Username, user.Username) {
			return &DuplicateError{Field: "username"}
		}
		if strings.EqualFold(existing.Email, user.Email) {
			return &DuplicateError{Field: "email"}
		}
	}

	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.Role == "" {
		user.Role = RoleUser
	}
	m.stamp(&user.CreatedAt, &user.UpdatedAt)
	m.users[user.ID] = cloneUser(user)
	return nil
}

func (m *Memory) FindUserByID(_ context.Context, id string) (*User, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[oid]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return cloneUser(user), nil
}

func (m *Memory) FindUserByLogin(_ context.Context, login string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, user := range m.users {
		if strings.EqualFold(user.Username, login) || strings.EqualFold(user.Email, login) {
			return cloneUser(user), nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", login, ErrNotFound)
}

func (m *Memory) ListUsers(_ context.Context, search string, page Page) ([]*User, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	search = strings.ToLower(search)
	var matched []*User
	for _, user := range m.users {
		if search != "" && !strings.Contains(strings.ToLower(user.Username), search) {
			continue
		}
		matched = append(matched, cloneUser(user))
	}

	key := func(u *User) string { return timeKey(u.CreatedAt) }
	switch page.Sort.Field {
	case "username":
		key = func(u *User) string { return strings.ToLower(u.Username) }
	case "email":
		key = func(u *User) string { return u.Email }
	case "lastSeen":
		key = func(u *User) string { return timeKey(u.LastSeen) }
	}
	sortBy(matched, page.Sort.Desc, key, func(u *User) primitive.ObjectID { return u.ID })

	return window(matched, page), int64(len(matched)), nil
}

func (m *Memory) UpdateUser(_ context.Context, id string, update UserUpdate) (*User, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[oid]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}

	for otherID, other := range m.users {
		if otherID == oid {
			continue
		}
		if update.Username != nil && strings.EqualFold(other.Username, *update.Username) {
			return nil, &DuplicateError{Field: "username"}
		}
		if update.Email != nil && strings.EqualFold(other.Email, *update.Email) {
			return nil, &DuplicateError{Field: "email"}
		}
	}

	if update.Username != nil {
		user.Username = *update.Username
	}
	if update.Email != nil {
		user.Email = *update.Email
	}
	if update.Bio != nil {
		user.Bio = *update.Bio
	}
	if update.Avatar != nil {
		user.Avatar = *update.Avatar
	}
	if update.Password != nil {
		user.Password = *update.Password
	}
	user.UpdatedAt = m.now().UTC()
	return cloneUser(user), nil
}

func (m *Memory) DeleteUser(_ context.Context, id string) error {
	oid, err := ParseID(id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[oid]; !ok {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	delete(m.users, oid)
	return nil
}

func (m *Memory) TouchLastSeen(_ context.Context, id string, at time.Time) error {
	oid, err := ParseID(id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[oid]
	if !ok {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	user.LastSeen = at.UTC()
	return nil
}

// Chats

func (m *Memory) CreateChat(_ context.Context, chat *Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if chat.ID.IsZero() {
		chat.ID = primitive.NewObjectID()
	}
	m.stamp(&chat.CreatedAt, &chat.UpdatedAt)
	m.chats[chat.ID] = cloneChat(chat)
	return nil
}

func (m *Memory) chat(id string) (*Chat, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	chat, ok := m.chats[oid]
	if !ok {
		return nil, fmt.Errorf("chat %s: %w", id, ErrNotFound)
	}
	return chat, nil
}

func (m *Memory) FindChatByID(_ context.Context, id string) (*Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chat, err := m.chat(id)
	if err != nil {
		return nil, err
	}
	return cloneChat(chat), nil
}

func (m *Memory) FindPrivateChat(_ context.Context, a, b string) (*Chat, error) {
	ids, err := parseIDs([]string{a, b})
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, chat := range m.chats {
		if chat.Type == ChatPrivate && len(chat.Participants) == 2 &&
			chat.HasParticipant(ids[0]) && chat.HasParticipant(ids[1]) {
			return cloneChat(chat), nil
		}
	}
	return nil, fmt.Errorf("private chat %s/%s: %w", a, b, ErrNotFound)
}

func (m *Memory) participantChats(userID primitive.ObjectID) []*Chat {
	var out []*Chat
	for _, chat := range m.chats {
		if chat.HasParticipant(userID) {
			out = append(out, cloneChat(chat))
		}
	}
	return out
}

func (m *Memory) FindChatsForParticipant(_ context.Context, userID string) ([]*Chat, error) {
	oid, err := ParseID(userID)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	chats := m.participantChats(oid)
	sortBy(chats, false, func(c *Chat) string { return timeKey(c.CreatedAt) }, func(c *Chat) primitive.ObjectID { return c.ID })
	return chats, nil
}

func (m *Memory) ListChats(_ context.Context, userID string, page Page) ([]*Chat, int64, error) {
	oid, err := ParseID(userID)
	if err != nil {
		return nil, 0, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	chats := m.participantChats(oid)
	key := func(c *Chat) string { return timeKey(c.UpdatedAt) }
	if page.Sort.Field == "createdAt" {
		key = func(c *Chat) string { return timeKey(c.CreatedAt) }
	}
	sortBy(chats, page.Sort.Desc, key, func(c *Chat) primitive.ObjectID { return c.ID })
	return window(chats, page), int64(len(chats)), nil
}

func (m *Memory) UpdateChat(_ context.Context, id string, update ChatUpdate) (*Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	chat, err := m.chat(id)
	if err != nil {
		return nil, err
	}
	if update.GroupName != nil {
		chat.GroupName = *update.GroupName
	}
	if update.GroupPicture != nil {
		chat.GroupPicture = *update.GroupPicture
	}
	if update.Admin != nil {
		admin := *update.Admin
		chat.Admin = &admin
	}
	chat.UpdatedAt = m.now().UTC()
	return cloneChat(chat), nil
}

func (m *Memory) DeleteChat(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	chat, err := m.chat(id)
	if err != nil {
		return err
	}
	delete(m.chats, chat.ID)
	return nil
}

func (m *Memory) AddParticipant(_ context.Context, chatID, userID string) (*Chat, error) {
	uid, err := ParseID(userID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	chat, err := m.chat(chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(uid) {
		chat.Participants = append(chat.Participants, uid)
		chat.UpdatedAt = m.now().UTC()
	}
	return cloneChat(chat), nil
}

func (m *Memory) RemoveParticipant(_ context.Context, chatID, userID string) (*Chat, error) {
	uid, err := ParseID(userID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	chat, err := m.chat(chatID)
	if err != nil {
		return nil, err
	}
	kept := chat.Participants[:0]
	for _, p := range chat.Participants {
		if p != uid {
			kept = append(kept, p)
		}
	}
	chat.Participants = kept
	chat.UpdatedAt = m.now().UTC()
	return cloneChat(chat), nil
}

func (m *Memory) IsParticipant(_ context.Context, chatID, userID string) (bool, error) {
	uid, err := ParseID(userID)
	if err != nil {
		return false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	chat, err := m.chat(chatID)
	if err != nil {
		return false, err
	}
	return chat.HasParticipant(uid), nil
}

// Messages

func (m *Memory) CreateMessage(_ context.Context, message *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if message.ID.IsZero() {
		message.ID = primitive.NewObjectID()
	}
	if message.Status == "" {
		message.Status = StatusSent
	}
	if message.Type == "" {
		message.Type = MessageText
	}
	m.stamp(&message.CreatedAt, &message.UpdatedAt)
	m.messages[message.ID] = cloneMessage(message)
	return nil
}

func (m *Memory) message(id string) (*Message, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	msg, ok := m.messages[oid]
	if !ok {
		return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	return msg, nil
}

func (m *Memory) FindMessageByID(_ context.Context, id string) (*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msg, err := m.message(id)
	if err != nil {
		return nil, err
	}
	return cloneMessage(msg), nil
}

func (m *Memory) ListMessages(_ context.Context, chatID string, page Page) ([]*Message, int64, error) {
	cid, err := ParseID(chatID)
	if err != nil {
		return nil, 0, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*Message
	for _, msg := range m.messages {
		if msg.Chat == cid {
			matched = append(matched, cloneMessage(msg))
		}
	}
	key := func(msg *Message) string { return timeKey(msg.CreatedAt) }
	if page.Sort.Field == "updatedAt" {
		key = func(msg *Message) string { return timeKey(msg.UpdatedAt) }
	}
	sortBy(matched, page.Sort.Desc, key, func(msg *Message) primitive.ObjectID { return msg.ID })
	return window(matched, page), int64(len(matched)), nil
}

func (m *Memory) FindByStatusInChats(_ context.Context, chatIDs []string, status MessageStatus, limit int64) ([]*Message, error) {
	ids, err := parseIDs(chatIDs)
	if err != nil {
		return nil, err
	}
	wanted := make(map[primitive.ObjectID]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Message
	for _, msg := range m.messages {
		if _, ok := wanted[msg.Chat]; ok && msg.Status == status {
			out = append(out, cloneMessage(msg))
		}
	}
	sortBy(out, false, func(msg *Message) string { return timeKey(msg.CreatedAt) }, func(msg *Message) primitive.ObjectID { return msg.ID })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) SetStatus(_ context.Context, id string, status MessageStatus) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, err := m.message(id)
	if err != nil {
		return nil, err
	}
	if msg.Status.Advances(status) {
		msg.Status = status
		msg.UpdatedAt = m.now().UTC()
	}
	return cloneMessage(msg), nil
}

func (m *Memory) UpdateContent(_ context.Context, id, content string) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, err := m.message(id)
	if err != nil {
		return nil, err
	}
	msg.Content = content
	msg.UpdatedAt = m.now().UTC()
	return cloneMessage(msg), nil
}

func (m *Memory) DeleteMessage(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, err := m.message(id)
	if err != nil {
		return err
	}
	delete(m.messages, msg.ID)
	return nil
}

func (m *Memory) DeleteChatMessages(_ context.Context, chatID string) error {
	cid, err := ParseID(chatID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, msg := range m.messages {
		if msg.Chat == cid {
			delete(m.messages, id)
		}
	}
	return nil
}

// Refresh tokens

func (m *Memory) SaveRefreshToken(_ context.Context, token *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tokens[token.Token]; exists {
		return &DuplicateError{Field: "token"}
	}
	if token.ID.IsZero() {
		token.ID = primitive.NewObjectID()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = m.now().UTC()
	}
	c := *token
	m.tokens[token.Token] = &c
	return nil
}

func (m *Memory) FindRefreshToken(_ context.Context, token string) (*RefreshToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rt, ok := m.tokens[token]
	if !ok || !rt.ExpiresAt.After(m.now()) {
		return nil, fmt.Errorf("refresh token: %w", ErrNotFound)
	}
	c := *rt
	return &c, nil
}

func (m *Memory) DeleteRefreshToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tokens[token]; !ok {
		return fmt.Errorf("refresh token: %w", ErrNotFound)
	}
	delete(m.tokens, token)
	return nil
}

func (m *Memory) DeleteUserRefreshTokens(_ context.Context, userID string) error {
	uid, err := ParseID(userID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, rt := range m.tokens {
		if rt.UserID == uid {
			delete(m.tokens, key)
		}
	}
	return nil
}
