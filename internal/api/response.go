package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/codephoenix86/fastchat/internal/auth"
	"github.com/codephoenix86/fastchat/internal/store"
)

// Error is a failure reported to an API client.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func newError(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

func badRequest(code, message string) *Error {
	return newError(http.StatusBadRequest, code, message)
}

func unauthorized(code, message string) *Error {
	return newError(http.StatusUnauthorized, code, message)
}

func forbidden(code, message string) *Error {
	return newError(http.StatusForbidden, code, message)
}

func notFound(message string) *Error {
	return newError(http.StatusNotFound, "NOT_FOUND", message)
}

func conflict(code, message string) *Error {
	return newError(http.StatusConflict, code, message)
}

var (
	errNotMember     = forbidden("NOT_A_MEMBER", "You are not a member of this chat")
	errAdminRequired = forbidden("ADMIN_REQUIRED", "Only the admin can perform this action")
	errInternal      = newError(http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
)

// translate maps an error from any layer onto the error reported to clients.
func translate(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var authErr *auth.Error
	if errors.As(err, &authErr) {
		return unauthorized(string(authErr.Code), authErr.Message)
	}

	var dup *store.DuplicateError
	if errors.As(err, &dup) {
		switch dup.Field {
		case "email":
			return conflict("EMAIL_ALREADY_EXISTS", "This email address is already registered")
		case "username":
			return conflict("USERNAME_ALREADY_TAKEN", "That username is already taken")
		default:
			return conflict("CONFLICT", dup.Error())
		}
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		return notFound("Resource not found")
	case errors.Is(err, store.ErrInvalidID):
		return badRequest("INVALID_FORMAT", "Invalid identifier")
	default:
		return errInternal
	}
}

type envelope struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Success   bool      `json:"success"`
	Error     errorBody `json:"error"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respond(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func respondPage(w http.ResponseWriter, message string, data any, pagination Pagination) {
	writeJSON(w, http.StatusOK, envelope{
		Success:    true,
		Message:    message,
		Data:       data,
		Pagination: &pagination,
		Timestamp:  time.Now().UTC(),
	})
}

// respondError writes the error envelope. Server errors are logged with the
// underlying cause, which is never sent to the client.
func respondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	apiErr := translate(err)
	if apiErr.Status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("requestId", RequestIDFrom(r.Context())),
			slog.Any("error", err))
	}
	writeJSON(w, apiErr.Status, errorEnvelope{
		Error:     errorBody{Code: apiErr.Code, Message: apiErr.Message},
		Timestamp: time.Now().UTC(),
		RequestID: RequestIDFrom(r.Context()),
	})
}

// decodeBody reads a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return badRequest("MISSING_PAYLOAD", "Request body is required")
	}
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return newError(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body is too large")
		}
		return badRequest("BAD_REQUEST", "Request body must be valid JSON")
	}
	return nil
}

const maxBodyBytes = 1 << 20
