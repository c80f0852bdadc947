package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (m *Mongo) CreateChat(ctx context.Context, chat *Chat) error {
	ctx, cancel := m.opContext(ctx)
	defer cancel()

	if chat.ID.IsZero() {
		chat.ID = primitive.NewObjectID()
	}
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = time.Now().UTC()
	}
	chat.UpdatedAt = chat.CreatedAt

	if _, err := m.chats.InsertOne(ctx, chat); err != nil {
		return wrapErr("insert chat", err)
	}
	return nil
}

func (m *Mongo) FindChatByID(ctx context.Context, id string) (*Chat, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := m.opContext(ctx)
	defer cancel()

	var chat Chat
	if err := m.chats.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&chat); err != nil {
		return nil, wrapErr("find chat "+id, err)
	}
	return &chat, nil
}

func (m *Mongo) FindPrivateChat(ctx context.Context, a, b string) (*Chat, error) {
	ids, err := parseIDs([]string{a, b})
	if err != nil {
		return nil, err
	}

	ctx, cancel := m.opContext(ctx)
	defer cancel()

	filter := bson.D{
		{Key: "type", Value: ChatPrivate},
		{Key: "participants", Value: bson.D{{Key: "$all", Value: ids}, {Key: "$size", Value: 2}}},
	}

	var chat Chat
	if err := m.chats.FindOne(ctx, filter).Decode(&chat); err != nil {
		return nil, wrapErr("find private chat", err)
	}
	return &chat, nil
}

func (m *Mongo) FindChatsForParticipant(ctx context.Context, userID string) ([]*Chat, error) {
	oid, err := ParseID(userID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := m.opContext(ctx)
	defer cancel()

	cursor, err := m.chats.Find(ctx,
		bson.D{{Key: "participants", Value: oid}},
		options.Find().SetProjection(bson.D{{Key: "_id", Value: 1}, {Key: "type", Value: 1}, {Key: "participants", Value: 1}}),
	)
	if err != nil {
		return nil, wrapErr("find chats for participant "+userID, err)
	}

	chats := make([]*Chat, 0)
	if err := cursor.All(ctx, &chats); err != nil {
		return nil, wrapErr("decode chats for participant "+userID, err)
	}
	return chats, nil
}

func (m *Mongo) ListChats(ctx context.Context, userID string, page Page) ([]*Chat, int64, error) {
	oid, err := ParseID(userID)
	if err != nil {
		return nil, 0, err
	}

	ctx, cancel := m.opContext(ctx)
	defer cancel()

	chats, total, err := list[Chat](ctx, m.chats, bson.D{{Key: "participants", Value: oid}}, findOptions(page))
	if err != nil {
		return nil, 0, wrapErr("list chats", err)
	}
	return chats, total, nil
}

func (m *Mongo) updateChat(ctx context.Context, id string, update bson.D) (*Chat, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := m.opContext(ctx)
	defer cancel()

	var chat Chat
	err = m.chats.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&chat)
	if err != nil {
		return nil, wrapErr("update chat "+id, err)
	}
	return &chat, nil
}

func (m *Mongo) UpdateChat(ctx context.Context, id string, update ChatUpdate) (*Chat, error) {
	set := bson.D{{Key: "updated_at", Value: time.Now().UTC()}}
	if update.GroupName != nil {
		set = append(set, bson.E{Key: "group_name", Value: *update.GroupName})
	}
	if update.GroupPicture != nil {
		set = append(set, bson.E{Key: "group_picture", Value: *update.GroupPicture})
	}
	if update.Admin != nil {
		set = append(set, bson.E{Key: "admin", Value: *update.Admin})
	}
	return m.updateChat(ctx, id, bson.D{{Key: "$set", Value: set}})
}

func (m *Mongo) DeleteChat(ctx context.Context, id string) error {
	oid, err := ParseID(id)
	if err != nil {
		return err
	}

	ctx, cancel := m.opContext(ctx)
	defer cancel()

	result, err := m.chats.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return wrapErr("delete chat "+id, err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("delete chat %s: %w", id, ErrNotFound)
	}
	return nil
}

func (m *Mongo) AddParticipant(ctx context.Context, chatID, userID string) (*Chat, error) {
	uid, err := ParseID(userID)
	if err != nil {
		return nil, err
	}
	return m.updateChat(ctx, chatID, bson.D{
		{Key: "$addToSet", Value: bson.D{{Key: "participants", Value: uid}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: time.Now().UTC()}}},
	})
}

func (m *Mongo) RemoveParticipant(ctx context.Context, chatID, userID string) (*Chat, error) {
	uid, err := ParseID(userID)
	if err != nil {
		return nil, err
	}
	return m.updateChat(ctx, chatID, bson.D{
		{Key: "$pull", Value: bson.D{{Key: "participants", Value: uid}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: time.Now().UTC()}}},
	})
}

func (m *Mongo) IsParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	ids, err := parseIDs([]string{chatID, userID})
	if err != nil {
		return false, err
	}

	ctx, cancel := m.opContext(ctx)
	defer cancel()

	var chat Chat
	err = m.chats.FindOne(ctx,
		bson.D{{Key: "_id", Value: ids[0]}},
		options.FindOne().SetProjection(bson.D{{Key: "participants", Value: 1}}),
	).Decode(&chat)
	if err != nil {
		return false, wrapErr("check participant", err)
	}
	return chat.HasParticipant(ids[1]), nil
}
