// Package auth issues and verifies the service's JWT access and refresh
// tokens and hashes account passwords.
package auth

import "fmt"

// Code is a machine-readable authentication failure reason. The same codes
// are reported over HTTP and in WebSocket handshake rejections.
type Code string

const (
	CodeMissingToken   Code = "MISSING_TOKEN"
	CodeInvalidToken   Code = "INVALID_TOKEN"
	CodeTokenExpired   Code = "TOKEN_EXPIRED"
	CodeTokenNotActive Code = "TOKEN_NOT_ACTIVE"
)

// Error is returned by token verification.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}
