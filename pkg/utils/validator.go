package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct runs the `validate` tags on s.
func ValidateStruct(s any) error {
	return validate.Struct(s)
}

// GetValidationErrors flattens validator errors into field -> message.
func GetValidationErrors(err error) map[string]string {
	out := make(map[string]string)

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		if err != nil {
			out["_"] = err.Error()
		}
		return out
	}

	for _, fe := range verrs {
		field := lowerFirst(fe.Field())
		switch fe.Tag() {
		case "required":
			out[field] = fmt.Sprintf("%s is required", field)
		case "oneof":
			out[field] = fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
		case "uuid":
			out[field] = fmt.Sprintf("%s must be a valid UUID", field)
		case "max":
			out[field] = fmt.Sprintf("%s must be at most %s", field, fe.Param())
		case "min":
			out[field] = fmt.Sprintf("%s must be at least %s", field, fe.Param())
		default:
			out[field] = fmt.Sprintf("%s failed on %s", field, fe.Tag())
		}
	}
	return out
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
