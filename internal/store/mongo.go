package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/codephoenix86/fastchat/internal/config"
)

// caseInsensitive is used for usernames and emails, both for the unique
// indexes and for the lookups that must hit them.
var caseInsensitive = &options.Collation{Locale: "en", Strength: 2}

// Mongo is the MongoDB-backed Store.
type Mongo struct {
	client   *mongo.Client
	db       *mongo.Database
	users    *mongo.Collection
	chats    *mongo.Collection
	messages *mongo.Collection
	tokens   *mongo.Collection
	timeout  time.Duration
	logger   *slog.Logger
}

var _ Store = (*Mongo)(nil)

// ConnectMongo dials the database, verifies the connection with a ping and
// returns a ready Store. Indexes are not touched; see EnsureIndexes.
func ConnectMongo(ctx context.Context, cfg config.MongoConfig, logger *slog.Logger) (*Mongo, error) {
	logger = logger.With("component", "mongo")
	logger.Debug("Connecting to database", slog.String("database", cfg.Database))

	clientOptions := options.Client().ApplyURI(cfg.URI).SetAppName("fastchat")
	clientOptions.SetMinPoolSize(cfg.MinPoolSize)
	if cfg.MaxPoolSize > 0 {
		clientOptions.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	clientOptions.SetConnectTimeout(cfg.Timeout)
	clientOptions.SetPoolMonitor(&event.PoolMonitor{
		Event: func(evt *event.PoolEvent) {
			switch evt.Type {
			case event.ConnectionCreated:
				logger.Debug("Database connection created", slog.String("address", evt.Address))
			case event.ConnectionClosed:
				logger.Debug("Database connection closed", slog.String("address", evt.Address), slog.String("reason", evt.Reason))
			}
		},
	})

	connectCtx, cancel := context.WithTimeout(ctx, 3*cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err = client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db := client.Database(cfg.Database)
	logger.Info("Connected to database", slog.String("database", cfg.Database))

	return &Mongo{
		client:   client,
		db:       db,
		users:    db.Collection(UserCollectionName),
		chats:    db.Collection(ChatCollectionName),
		messages: db.Collection(MessageCollectionName),
		tokens:   db.Collection(RefreshTokenCollectionName),
		timeout:  cfg.Timeout,
		logger:   logger,
	}, nil
}

// EnsureIndexes creates the indexes every query in this package relies on.
// It is idempotent.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		m.users: {
			{
				Keys:    bson.D{{Key: "username", Value: 1}},
				Options: options.Index().SetUnique(true).SetCollation(caseInsensitive).SetName("users_username_unique"),
			},
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true).SetCollation(caseInsensitive).SetName("users_email_unique"),
			},
		},
		m.chats: {
			{
				Keys:    bson.D{{Key: "participants", Value: 1}, {Key: "updated_at", Value: -1}},
				Options: options.Index().SetName("chats_participants_updated"),
			},
		},
		m.messages: {
			{
				Keys:    bson.D{{Key: "chat", Value: 1}, {Key: "created_at", Value: -1}},
				Options: options.Index().SetName("messages_chat_created"),
			},
			{
				Keys:    bson.D{{Key: "chat", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: 1}},
				Options: options.Index().SetName("messages_chat_status_created"),
			},
		},
		m.tokens: {
			{
				Keys:    bson.D{{Key: "token", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("refresh_tokens_token_unique"),
			},
			{
				Keys:    bson.D{{Key: "expires_at", Value: 1}},
				Options: options.Index().SetExpireAfterSeconds(0).SetName("refresh_tokens_expiry_ttl"),
			},
		},
	}

	for coll, models := range indexes {
		opCtx, cancel := context.WithTimeout(ctx, 2*m.timeout)
		names, err := coll.Indexes().CreateMany(opCtx, models)
		cancel()
		if err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll.Name(), err)
		}
		m.logger.Info("Indexes ensured", slog.String("collection", coll.Name()), slog.Any("indexes", names))
	}
	return nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	ctx, cancel := m.opContext(ctx)
	defer cancel()
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) Close(ctx context.Context) error {
	m.logger.Info("Closing database connection")
	ctx, cancel := m.opContext(ctx)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *Mongo) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.timeout)
}

// wrapErr maps driver errors onto the package's sentinel errors.
func wrapErr(what string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	if mongo.IsDuplicateKeyError(err) {
		return &DuplicateError{Field: duplicateField(err)}
	}
	return fmt.Errorf("%s: database operation failed: %w", what, err)
}

func duplicateField(err error) string {
	msg := err.Error()
	for _, field := range []string{"username", "email", "token"} {
		if strings.Contains(msg, field) {
			return field
		}
	}
	return "key"
}

// sortField translates an API sort field into its document key.
func sortField(field string) string {
	switch field {
	case "createdAt":
		return "created_at"
	case "updatedAt":
		return "updated_at"
	case "lastSeen":
		return "last_seen"
	case "":
		return "created_at"
	default:
		return field
	}
}

func findOptions(page Page) *options.FindOptions {
	dir := 1
	if page.Sort.Desc {
		dir = -1
	}
	opts := options.Find().SetSort(bson.D{
		{Key: sortField(page.Sort.Field), Value: dir},
		{Key: "_id", Value: dir},
	})
	if page.Skip > 0 {
		opts.SetSkip(page.Skip)
	}
	if page.Limit > 0 {
		opts.SetLimit(page.Limit)
	}
	return opts
}

// list runs a paged find plus the matching count.
func list[T any](ctx context.Context, coll *mongo.Collection, filter any, opts *options.FindOptions) ([]*T, int64, error) {
	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*T, 0)
	if err = cursor.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
