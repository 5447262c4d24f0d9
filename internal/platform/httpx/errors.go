// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/grocerops/grocerops/internal/platform/backend"
)

// Sentinel errors for handlers that do not go through the backend.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// RespondError maps domain and backend errors to RFC7807 responses.
func RespondError(w http.ResponseWriter, err error) {
	var apiErr *backend.APIError
	switch {
	case errors.Is(err, backend.ErrSessionExpired), errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "session expired")
	case errors.Is(err, ErrNotFound), errors.Is(err, backend.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrForbidden), errors.Is(err, backend.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", "")
	case errors.As(err, &apiErr) && apiErr.SafeMessage() != "":
		Problem(w, apiErr.Status, "Backend Rejected", apiErr.SafeMessage())
	case errors.Is(err, backend.ErrUnavailable):
		Problem(w, http.StatusBadGateway, "Backend Unavailable", "")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
