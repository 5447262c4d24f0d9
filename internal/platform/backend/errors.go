package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors mapped from backend status codes.
var (
	ErrNotFound     = errors.New("backend: not found")
	ErrValidation   = errors.New("backend: validation failed")
	ErrForbidden    = errors.New("backend: forbidden")
	ErrConflict     = errors.New("backend: conflict")
	ErrUnauthorized = errors.New("backend: unauthorized")
	ErrUnavailable  = errors.New("backend: unavailable")
	// ErrSessionExpired means the refresh token could not renew the session.
	// Callers must drop the session and send the user back to the login page.
	ErrSessionExpired = errors.New("backend: session expired")
)

// APIError describes a non-success response.
type APIError struct {
	Status  int
	Message string
	Method  string
	Path    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: %s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

// Unwrap maps the status code onto a sentinel so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusNotFound:
		return ErrNotFound
	case e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity:
		return ErrValidation
	case e.Status == http.StatusForbidden:
		return ErrForbidden
	case e.Status == http.StatusConflict:
		return ErrConflict
	case e.Status == http.StatusUnauthorized:
		return ErrUnauthorized
	case e.Status >= http.StatusInternalServerError:
		return ErrUnavailable
	}
	return nil
}

// SafeMessage returns the backend message for client errors only.
func (e *APIError) SafeMessage() string {
	if e.Status >= 400 && e.Status < 500 {
		return e.Message
	}
	return ""
}
