package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/codephoenix86/fastchat/internal/api"
	"github.com/codephoenix86/fastchat/internal/auth"
	"github.com/codephoenix86/fastchat/internal/config"
	"github.com/codephoenix86/fastchat/internal/presence"
	"github.com/codephoenix86/fastchat/internal/realtime"
	"github.com/codephoenix86/fastchat/internal/store"
	"github.com/codephoenix86/fastchat/internal/telemetry"
)

// App is the assembled service: persistence, presence, the realtime
// gateway and the REST API behind one HTTP server.
type App struct {
	cfg       *config.Config
	store     store.Store
	tokens    *auth.Tokens
	registry  *presence.Registry
	gateway   *realtime.Gateway
	api       *api.API
	server    *http.Server
	telemetry telemetry.Shutdown
	logger    *slog.Logger
}

// OpenStore connects the store selected by STORE_DRIVER.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		logger.Warn("Using in-memory store; data will not survive a restart")
		return store.NewMemory(), nil
	default:
		mongo, err := store.ConnectMongo(ctx, cfg.Mongo, logger)
		if err != nil {
			return nil, err
		}
		return mongo, nil
	}
}

// New opens the configured store and telemetry and assembles the App.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	st, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("open store: %w", err), shutdownTelemetry(ctx))
	}

	app := NewWithStore(cfg, st, logger)
	app.telemetry = shutdownTelemetry
	return app, nil
}

// NewWithStore assembles the App around an already opened store.
func NewWithStore(cfg *config.Config, st store.Store, logger *slog.Logger) *App {
	tokens := auth.NewTokens(cfg.JWT)
	registry := presence.NewRegistry()
	hub := realtime.NewHub(logger)

	gateway := realtime.NewGateway(realtime.Deps{
		Verifier: tokens,
		Users:    st,
		Chats:    st,
		Messages: st,
		Registry: registry,
		Hub:      hub,
		Logger:   logger,
	}, realtime.OptionsFromConfig(cfg))

	app := &App{
		cfg:       cfg,
		store:     st,
		tokens:    tokens,
		registry:  registry,
		gateway:   gateway,
		api:       api.New(api.Deps{Store: st, Tokens: tokens, Emitter: hub, Logger: logger}),
		telemetry: func(context.Context) error { return nil },
		logger:    logger.With("component", "server"),
	}
	app.server = CreateServer(cfg.Port, app.Routes())
	return app
}

// Tokens returns the token issuer, for minting tokens outside a login.
func (a *App) Tokens() *auth.Tokens {
	return a.tokens
}

// Registry returns the presence registry.
func (a *App) Registry() *presence.Registry {
	return a.registry
}
