package store

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (m *Mongo) CreateUser(ctx context.Context, user *User) error {
	ctx, cancel := m.opContext(ctx)
	defer cancel()

	now := time.Now().UTC()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.Role == "" {
		user.Role = RoleUser
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = user.CreatedAt

	if _, err := m.users.InsertOne(ctx, user); err != nil {
		return wrapErr("insert user", err)
	}
	m.logger.Debug("User created", slog.String("userId", user.ID.Hex()))
	return nil
}

func (m *Mongo) FindUserByID(ctx context.Context, id string) (*User, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := m.opContext(ctx)
	defer cancel()

	var user User
	if err := m.users.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&user); err != nil {
		return nil, wrapErr("find user "+id, err)
	}
	return &user, nil
}

func (m *Mongo) FindUserByLogin(ctx context.Context, login string) (*User, error) {
	ctx, cancel := m.opContext(ctx)
	defer cancel()

	filter := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "username", Value: login}},
		bson.D{{Key: "email", Value: login}},
	}}}

	var user User
	err := m.users.FindOne(ctx, filter, options.FindOne().SetCollation(caseInsensitive)).Decode(&user)
	if err != nil {
		return nil, wrapErr("find user by login", err)
	}
	return &user, nil
}

func (m *Mongo) ListUsers(ctx context.Context, search string, page Page) ([]*User, int64, error) {
	ctx, cancel := m.opContext(ctx)
	defer cancel()

	filter := bson.D{}
	if search != "" {
		filter = bson.D{{Key: "username", Value: primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}}}
	}

	users, total, err := list[User](ctx, m.users, filter, findOptions(page))
	if err != nil {
		return nil, 0, wrapErr("list users", err)
	}
	return users, total, nil
}

func (m *Mongo) UpdateUser(ctx context.Context, id string, update UserUpdate) (*User, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := m.opContext(ctx)
	defer cancel()

	set := bson.D{{Key: "updated_at", Value: time.Now().UTC()}}
	if update.Username != nil {
		set = append(set, bson.E{Key: "username", Value: *update.Username})
	}
	if update.Email != nil {
		set = append(set, bson.E{Key: "email", Value: *update.Email})
	}
	if update.Bio != nil {
		set = append(set, bson.E{Key: "bio", Value: *update.Bio})
	}
	if update.Avatar != nil {
		set = append(set, bson.E{Key: "avatar", Value: *update.Avatar})
	}
	if update.Password != nil {
		set = append(set, bson.E{Key: "password", Value: *update.Password})
	}

	var user User
	err = m.users.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if err != nil {
		return nil, wrapErr("update user "+id, err)
	}
	return &user, nil
}

func (m *Mongo) DeleteUser(ctx context.Context, id string) error {
	oid, err := ParseID(id)
	if err != nil {
		return err
	}

	ctx, cancel := m.opContext(ctx)
	defer cancel()

	result, err := m.users.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return wrapErr("delete user "+id, err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("delete user %s: %w", id, ErrNotFound)
	}
	m.logger.Info("User deleted", slog.String("userId", id))
	return nil
}

func (m *Mongo) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	oid, err := ParseID(id)
	if err != nil {
		return err
	}

	ctx, cancel := m.opContext(ctx)
	defer cancel()

	result, err := m.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "last_seen", Value: at.UTC()}}}},
	)
	if err != nil {
		return wrapErr("touch last seen "+id, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("touch last seen %s: %w", id, ErrNotFound)
	}
	return nil
}
