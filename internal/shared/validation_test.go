package shared

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

func TestFieldErrors(t *testing.T) {
	type form struct {
		Email string `validate:"required,email"`
		Qty   int    `validate:"gte=1"`
	}
	err := validator.New().Struct(form{Email: "nope"})
	fields := FieldErrors(err)
	require.Equal(t, "Enter a valid email address", fields["email"])
	require.Equal(t, "Must be 1 or more", fields["qty"])

	require.Equal(t, map[string]string{"general": "Something went wrong, please try again"}, FieldErrors(errors.New("boom")))
	require.Empty(t, FieldErrors(nil))
}
