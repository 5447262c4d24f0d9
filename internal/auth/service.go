package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/grocerops/grocerops/internal/platform/backend"
	"github.com/grocerops/grocerops/internal/shared"
)

// Service authenticates against the backend.
type Service struct {
	api      backend.Caller
	validate *validator.Validate
}

// NewService constructs a new Service.
func NewService(api backend.Caller) *Service {
	return &Service{api: api, validate: validator.New()}
}

// Authenticate exchanges credentials for backend tokens. Rejected credentials
// become shared.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, in LoginInput) (Login, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if err := s.validate.Struct(in); err != nil {
		return Login{}, err
	}
	var out Login
	err := s.api.Do(ctx, backend.Request{Method: http.MethodPost, Path: "/api/auth/login", Body: in, Anonymous: true}, &out)
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) || errors.Is(err, backend.ErrValidation) || errors.Is(err, backend.ErrNotFound) {
			return Login{}, shared.ErrInvalidCredentials
		}
		return Login{}, fmt.Errorf("login: %w", err)
	}
	if out.AccessToken == "" || out.User.ID == "" {
		return Login{}, errors.New("login: backend returned no session")
	}
	if !out.User.Role.Valid() {
		return Login{}, fmt.Errorf("login: unknown role %q", out.User.Role)
	}
	return out, nil
}

// Register creates a retailer or user account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Account, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if err := s.validate.Struct(in); err != nil {
		return Account{}, err
	}
	var out Account
	err := s.api.Do(ctx, backend.Request{Method: http.MethodPost, Path: "/api/auth/register", Body: in, Anonymous: true}, &out)
	if err != nil {
		return Account{}, fmt.Errorf("register: %w", err)
	}
	return out, nil
}

// Logout revokes the refresh token on the backend.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if err := backend.Send(ctx, s.api, http.MethodPost, "/api/auth/logout", map[string]string{"refreshToken": refreshToken}, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}
