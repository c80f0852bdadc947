package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/codephoenix86/fastchat/internal/auth"
	"github.com/codephoenix86/fastchat/internal/store"
)

var errInvalidCredentials = unauthorized("INVALID_CREDENTIALS", "Invalid email/username or password")

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (req *signupRequest) validate() error {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateUsername(req.Username); err != nil {
		return err
	}
	if err := validateEmail(req.Email); err != nil {
		return err
	}
	return validatePassword(req.Password)
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type loginResponse struct {
	User *store.User `json:"user"`
	tokenPair
}

func principalOf(user *store.User) auth.Principal {
	return auth.Principal{ID: user.ID.Hex(), Username: user.Username, Role: string(user.Role)}
}

// issueTokens signs a token pair and records the refresh token so it can be
// revoked.
func (a *API) issueTokens(ctx context.Context, p auth.Principal) (tokenPair, error) {
	access, err := a.tokens.IssueAccess(p)
	if err != nil {
		return tokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, expiresAt, err := a.tokens.IssueRefresh(p)
	if err != nil {
		return tokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	userID, err := store.ParseID(p.ID)
	if err != nil {
		return tokenPair{}, err
	}
	if err := a.store.SaveRefreshToken(ctx, &store.RefreshToken{
		Token:     refresh,
		UserID:    userID,
		ExpiresAt: expiresAt,
	}); err != nil {
		return tokenPair{}, fmt.Errorf("save refresh token: %w", err)
	}
	return tokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (a *API) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		a.fail(w, r, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		a.fail(w, r, fmt.Errorf("hash password: %w", err))
		return
	}
	user := &store.User{
		Username: req.Username,
		Email:    req.Email,
		Password: hash,
		Role:     store.RoleUser,
	}
	if err := a.store.CreateUser(r.Context(), user); err != nil {
		a.fail(w, r, err)
		return
	}

	a.logger.Info("User registered",
		slog.String("userId", user.ID.Hex()),
		slog.String("username", user.Username))
	respond(w, http.StatusCreated, "User created successfully", map[string]any{"user": user})
}

// verifyCredentials looks the user up by username, or by email when no
// username is given, and checks the password.
func (a *API) verifyCredentials(ctx context.Context, req loginRequest) (*store.User, error) {
	login := strings.TrimSpace(req.Username)
	if login == "" {
		login = strings.ToLower(strings.TrimSpace(req.Email))
	}
	if login == "" {
		return nil, badRequest("MISSING_IDENTIFIER", "Username or email is required")
	}
	if req.Password == "" {
		return nil, badRequest("REQUIRED_FIELD", "Password is required")
	}

	user, err := a.store.FindUserByLogin(ctx, login)
	if errors.Is(err, store.ErrNotFound) {
		a.logger.Warn("Login attempt with unknown account", slog.String("login", login))
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := auth.CheckPassword(user.Password, req.Password)
	if err != nil {
		return nil, fmt.Errorf("check password: %w", err)
	}
	if !ok {
		a.logger.Warn("Login attempt with incorrect password", slog.String("userId", user.ID.Hex()))
		return nil, errInvalidCredentials
	}
	return user, nil
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	user, err := a.verifyCredentials(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	tokens, err := a.issueTokens(r.Context(), principalOf(user))
	if err != nil {
		a.fail(w, r, err)
		return
	}

	a.logger.Info("User logged in", slog.String("userId", user.ID.Hex()))
	respond(w, http.StatusOK, "User logged in successfully", loginResponse{User: user, tokenPair: tokens})
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if req.RefreshToken == "" {
		a.fail(w, r, badRequest("REQUIRED_FIELD", "refresh_token is required"))
		return
	}

	me := caller(r)
	errNoSession := unauthorized("SESSION_NOT_FOUND", "Session not found or already terminated")
	stored, err := a.store.FindRefreshToken(r.Context(), req.RefreshToken)
	if errors.Is(err, store.ErrNotFound) || (err == nil && stored.UserID.Hex() != me.ID) {
		a.fail(w, r, errNoSession)
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.store.DeleteRefreshToken(r.Context(), req.RefreshToken); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = errNoSession
		}
		a.fail(w, r, err)
		return
	}

	a.logger.Info("User logged out", slog.String("userId", me.ID))
	respond(w, http.StatusOK, "User logged out successfully", nil)
}

// refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued.
func (a *API) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	claims, err := a.tokens.VerifyRefresh(req.RefreshToken)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	errRevoked := unauthorized("REFRESH_TOKEN_REVOKED", "Refresh token has been revoked")
	stored, err := a.store.FindRefreshToken(r.Context(), req.RefreshToken)
	if errors.Is(err, store.ErrNotFound) || (err == nil && stored.UserID.Hex() != claims.UserID) {
		a.fail(w, r, errRevoked)
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.store.DeleteRefreshToken(r.Context(), req.RefreshToken); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = errRevoked
		}
		a.fail(w, r, err)
		return
	}

	tokens, err := a.issueTokens(r.Context(), auth.Principal{
		ID:       claims.UserID,
		Username: claims.Username,
		Role:     claims.Role,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}

	a.logger.Info("Tokens refreshed", slog.String("userId", claims.UserID))
	respond(w, http.StatusOK, "Tokens refreshed successfully", tokens)
}
