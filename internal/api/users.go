package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/codephoenix86/fastchat/internal/auth"
	"github.com/codephoenix86/fastchat/internal/store"
)

var defaultUserSort = store.Sort{Field: "createdAt", Desc: true}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	page := parsePage(r, defaultUserSort, "createdAt", "username", "email", "lastSeen")
	search := strings.TrimSpace(r.URL.Query().Get("search"))

	users, total, err := a.store.ListUsers(r.Context(), search, page.store())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondPage(w, "Users retrieved successfully", users, page.result(total))
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := a.store.FindUserByID(r.Context(), r.PathValue("userId"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "User retrieved successfully", map[string]any{"user": user})
}

func (a *API) getMe(w http.ResponseWriter, r *http.Request) {
	user, err := a.store.FindUserByID(r.Context(), caller(r).ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Profile retrieved successfully", map[string]any{"user": user})
}

type updateMeRequest struct {
	NewUsername *string `json:"newUsername"`
	NewEmail    *string `json:"newEmail"`
	NewPassword *string `json:"newPassword"`
	NewBio      *string `json:"newBio"`
	OldPassword string  `json:"oldPassword"`
}

func (req *updateMeRequest) validate() error {
	if req.NewUsername == nil && req.NewEmail == nil && req.NewPassword == nil && req.NewBio == nil {
		return badRequest("REQUIRED_FIELD", "At least one field must be provided")
	}
	if req.NewUsername != nil {
		*req.NewUsername = strings.TrimSpace(*req.NewUsername)
		if err := validateUsername(*req.NewUsername); err != nil {
			return err
		}
	}
	if req.NewEmail != nil {
		*req.NewEmail = strings.ToLower(strings.TrimSpace(*req.NewEmail))
		if err := validateEmail(*req.NewEmail); err != nil {
			return err
		}
	}
	if req.NewPassword != nil {
		if err := validatePassword(*req.NewPassword); err != nil {
			return err
		}
	}
	if req.NewBio != nil {
		*req.NewBio = strings.TrimSpace(*req.NewBio)
		if err := validateBio(*req.NewBio); err != nil {
			return err
		}
	}
	if (req.NewEmail != nil || req.NewPassword != nil) && req.OldPassword == "" {
		return badRequest("REQUIRED_FIELD", "oldPassword is required to change email or password")
	}
	return nil
}

// confirmPassword checks the caller's current password.
func (a *API) confirmPassword(ctx context.Context, userID, password string) error {
	user, err := a.store.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}
	ok, err := auth.CheckPassword(user.Password, password)
	if err != nil {
		return fmt.Errorf("check password: %w", err)
	}
	if !ok {
		return unauthorized("INVALID_PASSWORD", "The password provided is incorrect")
	}
	return nil
}

func (a *API) updateMe(w http.ResponseWriter, r *http.Request) {
	var req updateMeRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		a.fail(w, r, err)
		return
	}

	me := caller(r)
	if req.NewEmail != nil || req.NewPassword != nil {
		if err := a.confirmPassword(r.Context(), me.ID, req.OldPassword); err != nil {
			a.fail(w, r, err)
			return
		}
	}

	update := store.UserUpdate{
		Username: req.NewUsername,
		Email:    req.NewEmail,
		Bio:      req.NewBio,
	}
	if req.NewPassword != nil {
		hash, err := auth.HashPassword(*req.NewPassword)
		if err != nil {
			a.fail(w, r, fmt.Errorf("hash password: %w", err))
			return
		}
		update.Password = &hash
	}

	user, err := a.store.UpdateUser(r.Context(), me.ID, update)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.logger.Info("Profile updated", slog.String("userId", me.ID))
	respond(w, http.StatusOK, "Profile updated successfully", map[string]any{"user": user})
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// changePassword sets a new password and revokes every refresh token of the
// account, ending its other sessions.
func (a *API) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if req.OldPassword == "" {
		a.fail(w, r, badRequest("REQUIRED_FIELD", "oldPassword is required"))
		return
	}
	if err := validatePassword(req.NewPassword); err != nil {
		a.fail(w, r, err)
		return
	}

	me := caller(r)
	if err := a.confirmPassword(r.Context(), me.ID, req.OldPassword); err != nil {
		a.fail(w, r, err)
		return
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		a.fail(w, r, fmt.Errorf("hash password: %w", err))
		return
	}
	if _, err := a.store.UpdateUser(r.Context(), me.ID, store.UserUpdate{Password: &hash}); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.store.DeleteUserRefreshTokens(r.Context(), me.ID); err != nil {
		a.fail(w, r, err)
		return
	}

	a.logger.Info("Password changed", slog.String("userId", me.ID))
	respond(w, http.StatusOK, "Password changed successfully", nil)
}

func (a *API) deleteMe(w http.ResponseWriter, r *http.Request) {
	me := caller(r)
	if err := a.store.DeleteUser(r.Context(), me.ID); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.store.DeleteUserRefreshTokens(r.Context(), me.ID); err != nil {
		a.logger.Warn("Failed to revoke sessions of deleted account",
			slog.String("userId", me.ID),
			slog.Any("error", err))
	}

	a.logger.Info("Account deleted", slog.String("userId", me.ID))
	respond(w, http.StatusOK, "Account deleted successfully", nil)
}
