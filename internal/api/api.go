// Package api serves the fastchat REST API: accounts and sessions, users,
// chats with their membership, and messages. Message changes are pushed to
// the chat's realtime room through an Emitter.
package api

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/codephoenix86/fastchat/internal/auth"
	"github.com/codephoenix86/fastchat/internal/realtime"
	"github.com/codephoenix86/fastchat/internal/store"
)

// Emitter pushes an event to every connection joined to a chat's room.
// *realtime.Hub satisfies it.
type Emitter interface {
	EmitToRoom(chatID string, event realtime.Event, payload any)
}

var _ Emitter = (*realtime.Hub)(nil)

type Deps struct {
	Store   store.Store
	Tokens  *auth.Tokens
	Emitter Emitter
	Logger  *slog.Logger
}

type API struct {
	store   store.Store
	tokens  *auth.Tokens
	emitter Emitter
	tracer  trace.Tracer
	logger  *slog.Logger
}

func New(deps Deps) *API {
	return &API{
		store:   deps.Store,
		tokens:  deps.Tokens,
		emitter: deps.Emitter,
		tracer:  otel.Tracer("github.com/codephoenix86/fastchat/internal/api"),
		logger:  deps.Logger.With("component", "api"),
	}
}

// Handler returns the API routes, relative to the mount point, wrapped in
// the request middleware.
func (a *API) Handler() http.Handler {
	authed := Authenticate(a.tokens, a.logger)
	mux := http.NewServeMux()

	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, authed(h))
	}

	mux.HandleFunc("POST /auth/signup", a.signup)
	mux.HandleFunc("POST /auth/login", a.login)
	mux.HandleFunc("POST /auth/refresh", a.refresh)
	handle("POST /auth/logout", a.logout)

	handle("GET /users", a.listUsers)
	handle("GET /users/me", a.getMe)
	handle("PATCH /users/me", a.updateMe)
	handle("DELETE /users/me", a.deleteMe)
	handle("PATCH /users/me/password", a.changePassword)
	handle("GET /users/{userId}", a.getUser)

	handle("GET /chats", a.listChats)
	handle("POST /chats", a.createChat)
	handle("GET /chats/{chatId}", a.getChat)
	handle("PATCH /chats/{chatId}", a.updateChat)
	handle("DELETE /chats/{chatId}", a.deleteChat)
	handle("GET /chats/{chatId}/members", a.listMembers)
	handle("POST /chats/{chatId}/members", a.addMember)
	handle("DELETE /chats/{chatId}/members/{userId}", a.removeMember)

	handle("GET /chats/{chatId}/messages", a.listMessages)
	handle("POST /chats/{chatId}/messages", a.sendMessage)
	handle("GET /chats/{chatId}/messages/{messageId}", a.getMessage)
	handle("PATCH /chats/{chatId}/messages/{messageId}", a.updateMessage)
	handle("DELETE /chats/{chatId}/messages/{messageId}", a.deleteMessage)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, a.logger, notFound("Route not found"))
	})

	return Chain(mux,
		RequestID(),
		RequestLogger(a.logger),
		Recover(a.logger),
		Trace(a.tracer),
	)
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	respondError(w, r, a.logger, err)
}

// caller returns the authenticated principal. Routes without Authenticate
// never call it.
func caller(r *http.Request) auth.Principal {
	p, _ := PrincipalFrom(r.Context())
	return p
}
