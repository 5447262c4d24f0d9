package shared

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldErrors flattens validator errors into a field -> message map keyed by
// the lower-cased struct field name. Other errors land under "general".
func FieldErrors(err error) map[string]string {
	out := make(map[string]string)
	if err == nil {
		return out
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["general"] = UserSafeMessage(err)
		return out
	}
	for _, fe := range verrs {
		out[strings.ToLower(fe.Field())] = describeFieldError(fe)
	}
	return out
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Enter a valid email address"
	case "min":
		return fmt.Sprintf("Must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("Must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("Must be %s or more", fe.Param())
	case "oneof":
		return "Choose one of: " + fe.Param()
	case "eqfield":
		return "Must match " + strings.ToLower(fe.Param())
	case "gtefield":
		return "Must not be before " + strings.ToLower(fe.Param())
	}
	return "Invalid value"
}
