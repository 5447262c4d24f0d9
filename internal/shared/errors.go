package shared

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionMissing occurs when a request carries no session.
	ErrSessionMissing = errors.New("session missing")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// SafeMessager is implemented by errors whose message may be shown to users as-is.
type SafeMessager interface {
	SafeMessage() string
}

// UserSafeMessage converts an error into text suitable for a flash message.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	var safe SafeMessager
	if errors.As(err, &safe) {
		if msg := safe.SafeMessage(); msg != "" {
			return msg
		}
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "The requested record no longer exists"
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password"
	case errors.Is(err, context.DeadlineExceeded):
		return "The server took too long to respond, please try again"
	}
	return "Something went wrong, please try again"
}
