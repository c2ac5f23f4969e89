package httpapi

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// RequestError collects every field a request body failed on.
type RequestError struct {
	Errors []FieldError
}

func (e RequestError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s)", len(e.Errors))
}

// requestValidator adapts go-playground/validator to echo.Validator.
type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	return &requestValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

func (v *requestValidator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := RequestError{Errors: make([]FieldError, len(verrs))}
	for i, fe := range verrs {
		out.Errors[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: messageFor(fe.Tag(), fe.Param()),
		}
	}
	return out
}

func messageFor(tag, param string) string {
	switch tag {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must not exceed %s characters", param)
	default:
		return "failed rule " + tag
	}
}
