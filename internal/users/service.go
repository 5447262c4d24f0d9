package users

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/grocerops/grocerops/internal/platform/backend"
	"github.com/grocerops/grocerops/internal/rbac"
)

const basePath = "/api/users"

// Service wraps the backend user endpoints.
type Service struct {
	api      backend.Caller
	validate *validator.Validate
}

// NewService builds Service instance.
func NewService(api backend.Caller) *Service {
	return &Service{api: api, validate: validator.New()}
}

// List returns users, optionally restricted to one role, sorted by name.
func (s *Service) List(ctx context.Context, role rbac.Role) ([]User, error) {
	var query url.Values
	if role != "" {
		if !role.Valid() {
			return nil, ErrInvalidRole
		}
		query = url.Values{"role": {string(role)}}
	}
	var users []User
	if err := backend.Get(ctx, s.api, basePath, query, &users); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	sort.SliceStable(users, func(i, j int) bool { return users[i].DisplayName() < users[j].DisplayName() })
	return users, nil
}

// Get fetches one user.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	var user User
	if err := backend.Get(ctx, s.api, backend.PathID(basePath, id), nil, &user); err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// Create validates and creates a user.
func (s *Service) Create(ctx context.Context, in CreateInput) (User, error) {
	if err := s.validate.Struct(in); err != nil {
		return User{}, err
	}
	if !in.Role.Valid() {
		return User{}, ErrInvalidRole
	}
	var user User
	if err := backend.Send(ctx, s.api, http.MethodPost, basePath, in, &user); err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Update changes profile fields or the role of a user.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (User, error) {
	if err := s.validate.Struct(in); err != nil {
		return User{}, err
	}
	if in.Role != "" && !in.Role.Valid() {
		return User{}, ErrInvalidRole
	}
	var user User
	if err := backend.Send(ctx, s.api, http.MethodPut, backend.PathID(basePath, id), in, &user); err != nil {
		return User{}, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// Delete removes a user.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := backend.Send(ctx, s.api, http.MethodDelete, backend.PathID(basePath, id), nil, nil); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// Count returns the number of users holding role.
func (s *Service) Count(ctx context.Context, role rbac.Role) (int, error) {
	users, err := s.List(ctx, role)
	if err != nil {
		return 0, err
	}
	return len(users), nil
}
