package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

func (a *App) upgrader() *websocket.Upgrader {
	origins := a.cfg.Origins()
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if origins.Allowed(r) {
				return true
			}
			a.logger.Warn("Rejected WebSocket origin",
				slog.String("origin", r.Header.Get("Origin")),
				slog.String("addr", r.RemoteAddr))
			return false
		},
	}
}

// WebSocketHandler upgrades the request and runs the session until it ends.
// Authentication happens on the first frame, not on the upgrade request.
func (a *App) WebSocketHandler() http.HandlerFunc {
	upgrader := a.upgrader()
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			a.logger.Debug("WebSocket upgrade failed", slog.Any("error", err))
			return
		}
		// The request context is canceled once the handler returns, which
		// for a hijacked connection is only when the session is over.
		a.gateway.Serve(r.Context(), conn, r.RemoteAddr)
	}
}

type healthResponse struct {
	Status      string    `json:"status"`
	Database    string    `json:"database"`
	Connections int       `json:"connections"`
	OnlineUsers int       `json:"onlineUsers"`
	Timestamp   time.Time `json:"timestamp"`
}

// HealthHandler reports whether the service and its database are reachable.
// A failed database ping answers 503.
func (a *App) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := healthResponse{
		Status:      "ok",
		Database:    "connected",
		Connections: a.registry.TotalConnections(),
		OnlineUsers: len(a.registry.OnlineIdentities()),
		Timestamp:   time.Now().UTC(),
	}
	status := http.StatusOK
	if err := a.store.Ping(ctx); err != nil {
		a.logger.Warn("Health check database ping failed", slog.Any("error", err))
		body.Status = "degraded"
		body.Database = "disconnected"
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
