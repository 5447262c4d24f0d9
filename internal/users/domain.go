package users

import (
	"errors"
	"time"

	"github.com/grocerops/grocerops/internal/rbac"
)

// ErrInvalidRole is returned for roles the backend does not know.
var ErrInvalidRole = errors.New("users: invalid role")

// User is an account on the backend. Suppliers are users with role supplier.
type User struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      rbac.Role `json:"role"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	Company   string    `json:"company,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// DisplayName prefers the company name for suppliers.
func (u User) DisplayName() string {
	if u.Company != "" {
		return u.Company
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// CreateInput is the payload for POST /api/users.
type CreateInput struct {
	Name     string    `json:"name" validate:"required,max=120"`
	Email    string    `json:"email" validate:"required,email"`
	Password string    `json:"password,omitempty" validate:"required,min=8"`
	Role     rbac.Role `json:"role" validate:"required"`
	Phone    string    `json:"phone,omitempty" validate:"max=32"`
	Address  string    `json:"address,omitempty" validate:"max=255"`
	Company  string    `json:"company,omitempty" validate:"max=120"`
}

// UpdateInput is the payload for PUT /api/users/{id}. Empty fields are left unchanged.
type UpdateInput struct {
	Name    string    `json:"name,omitempty" validate:"max=120"`
	Role    rbac.Role `json:"role,omitempty"`
	Phone   string    `json:"phone,omitempty" validate:"max=32"`
	Address string    `json:"address,omitempty" validate:"max=255"`
	Company string    `json:"company,omitempty" validate:"max=120"`
}
