package auth

import (
	"github.com/grocerops/grocerops/internal/rbac"
	"github.com/grocerops/grocerops/internal/shared"
)

// Account is the user record returned by the login endpoint.
type Account struct {
	ID    string    `json:"_id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  rbac.Role `json:"role"`
}

// Principal converts the account into the session principal.
func (a Account) Principal() shared.Principal {
	return shared.Principal{ID: a.ID, Name: a.Name, Email: a.Email, Role: string(a.Role)}
}

// Login is the outcome of a successful sign-in.
type Login struct {
	AccessToken  string  `json:"accessToken"`
	RefreshToken string  `json:"refreshToken"`
	User         Account `json:"user"`
}

// LoginInput is the sign-in form.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterInput is the self-service sign-up form. Only buyers may register.
type RegisterInput struct {
	Name     string    `json:"name" validate:"required,max=120"`
	Email    string    `json:"email" validate:"required,email"`
	Password string    `json:"password" validate:"required,min=8"`
	Confirm  string    `json:"-" validate:"required,eqfield=Password"`
	Role     rbac.Role `json:"role" validate:"required,oneof=retailer user"`
	Phone    string    `json:"phone,omitempty" validate:"max=32"`
	Address  string    `json:"address,omitempty" validate:"max=255"`
	Company  string    `json:"company,omitempty" validate:"max=120"`
}
