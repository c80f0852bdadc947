package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (m *Mongo) SaveRefreshToken(ctx context.Context, token *RefreshToken) error {
	ctx, cancel := m.opContext(ctx)
	defer cancel()

	if token.ID.IsZero() {
		token.ID = primitive.NewObjectID()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	if _, err := m.tokens.InsertOne(ctx, token); err != nil {
		return wrapErr("insert refresh token", err)
	}
	return nil
}

// FindRefreshToken ignores tokens past their expiry even if the TTL monitor
// has not removed them yet.
func (m *Mongo) FindRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	ctx, cancel := m.opContext(ctx)
	defer cancel()

	filter := bson.D{
		{Key: "token", Value: token},
		{Key: "expires_at", Value: bson.D{{Key: "$gt", Value: time.Now().UTC()}}},
	}

	var rt RefreshToken
	if err := m.tokens.FindOne(ctx, filter).Decode(&rt); err != nil {
		return nil, wrapErr("find refresh token", err)
	}
	return &rt, nil
}

func (m *Mongo) DeleteRefreshToken(ctx context.Context, token string) error {
	ctx, cancel := m.opContext(ctx)
	defer cancel()

	result, err := m.tokens.DeleteOne(ctx, bson.D{{Key: "token", Value: token}})
	if err != nil {
		return wrapErr("delete refresh token", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("delete refresh token: %w", ErrNotFound)
	}
	return nil
}

func (m *Mongo) DeleteUserRefreshTokens(ctx context.Context, userID string) error {
	oid, err := ParseID(userID)
	if err != nil {
		return err
	}

	ctx, cancel := m.opContext(ctx)
	defer cancel()

	if _, err := m.tokens.DeleteMany(ctx, bson.D{{Key: "user_id", Value: oid}}); err != nil {
		return wrapErr("delete refresh tokens for "+userID, err)
	}
	return nil
}
