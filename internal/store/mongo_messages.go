package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (m *Mongo) CreateMessage(ctx context.Context, message *Message) error {
	ctx, cancel := m.opContext(ctx)
	defer cancel()

	if message.ID.IsZero() {
		message.ID = primitive.NewObjectID()
	}
	if message.Status == "" {
		message.Status = StatusSent
	}
	if message.Type == "" {
		message.Type = MessageText
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	message.UpdatedAt = message.CreatedAt

	if _, err := m.messages.InsertOne(ctx, message); err != nil {
		return wrapErr("insert message", err)
	}
	return nil
}

func (m *Mongo) FindMessageByID(ctx context.Context, id string) (*Message, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := m.opContext(ctx)
	defer cancel()

	var message Message
	if err := m.messages.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&message); err != nil {
		return nil, wrapErr("find message "+id, err)
	}
	return &message, nil
}

func (m *Mongo) ListMessages(ctx context.Context, chatID string, page Page) ([]*Message, int64, error) {
	cid, err := ParseID(chatID)
	if err != nil {
		return nil, 0, err
	}

	ctx, cancel := m.opContext(ctx)
	defer cancel()

	messages, total, err := list[Message](ctx, m.messages, bson.D{{Key: "chat", Value: cid}}, findOptions(page))
	if err != nil {
		return nil, 0, wrapErr("list messages", err)
	}
	return messages, total, nil
}

func (m *Mongo) FindByStatusInChats(ctx context.Context, chatIDs []string, status MessageStatus, limit int64) ([]*Message, error) {
	if len(chatIDs) == 0 {
		return nil, nil
	}
	ids, err := parseIDs(chatIDs)
	if err != nil {
		return nil, err
	}

	ctx, cancel := m.opContext(ctx)
	defer cancel()

	filter := bson.D{
		{Key: "chat", Value: bson.D{{Key: "$in", Value: ids}}},
		{Key: "status", Value: status},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := m.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, wrapErr("find messages by status", err)
	}
	messages := make([]*Message, 0)
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, wrapErr("decode messages by status", err)
	}
	return messages, nil
}

func (m *Mongo) SetStatus(ctx context.Context, id string, status MessageStatus) (*Message, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	filter := bson.D{
		{Key: "_id", Value: oid},
		{Key: "status", Value: bson.D{{Key: "$in", Value: status.before()}}},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: status},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}}

	var message Message
	err = m.messages.FindOneAndUpdate(opCtx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&message)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Either missing or already at or past status.
		return m.FindMessageByID(ctx, id)
	}
	if err != nil {
		return nil, wrapErr("set message status "+id, err)
	}
	return &message, nil
}

func (m *Mongo) UpdateContent(ctx context.Context, id, content string) (*Message, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := m.opContext(ctx)
	defer cancel()

	var message Message
	err = m.messages.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "content", Value: content},
			{Key: "updated_at", Value: time.Now().UTC()},
		}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&message)
	if err != nil {
		return nil, wrapErr("update message "+id, err)
	}
	return &message, nil
}

func (m *Mongo) DeleteMessage(ctx context.Context, id string) error {
	oid, err := ParseID(id)
	if err != nil {
		return err
	}

	ctx, cancel := m.opContext(ctx)
	defer cancel()

	result, err := m.messages.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return wrapErr("delete message "+id, err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("delete message %s: %w", id, ErrNotFound)
	}
	return nil
}

func (m *Mongo) DeleteChatMessages(ctx context.Context, chatID string) error {
	cid, err := ParseID(chatID)
	if err != nil {
		return err
	}

	ctx, cancel := m.opContext(ctx)
	defer cancel()

	if _, err := m.messages.DeleteMany(ctx, bson.D{{Key: "chat", Value: cid}}); err != nil {
		return wrapErr("delete chat messages "+chatID, err)
	}
	return nil
}
