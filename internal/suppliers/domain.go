package suppliers

import (
	"errors"
	"time"
)

var (
	// ErrNotSupplier is returned when an id belongs to a user with another role.
	ErrNotSupplier = errors.New("suppliers: user is not a supplier")
	// ErrPasswordRequired is returned when a new supplier has no password.
	ErrPasswordRequired = errors.New("suppliers: password is required")
)

// Supplier is a backend user with role supplier.
type Supplier struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	Company   string    `json:"company,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// DisplayName prefers the company name.
func (s Supplier) DisplayName() string {
	if s.Company != "" {
		return s.Company
	}
	if s.Name != "" {
		return s.Name
	}
	return s.Email
}

// Input is the create and update form. Password is only sent on create.
type Input struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password,omitempty" validate:"omitempty,min=8"`
	Phone    string `json:"phone,omitempty" validate:"max=32"`
	Address  string `json:"address,omitempty" validate:"max=255"`
	Company  string `json:"company,omitempty" validate:"max=120"`
	Role     string `json:"role"`
}

// Listing is a supplier list and whether it came from the fallback cache.
type Listing struct {
	Suppliers []Supplier
	Stale     bool
	CachedAt  time.Time
}
