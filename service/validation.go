package service

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/keygate/keygate/storage/model"
)

// ValidationError reports malformed input. Requests failing validation never
// reach the store and are not audited.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err is a ValidationError
func IsValidationError(err error) bool {
	_, ok := err.(ValidationError)
	return ok
}

func invalid(field, format string, args ...any) ValidationError {
	return ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("keyid", isKeyID)
	_ = v.RegisterValidation("digits", isDigits)
	v.RegisterTagNameFunc(
		func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		},
	)
	return v
}

func isKeyID(fl validator.FieldLevel) bool {
	return ValidKeyID(fl.Field().String())
}

func isDigits(fl validator.FieldLevel) bool {
	return allDigits(fl.Field().String())
}

// ValidKeyID reports whether id has the format of a license key identifier
func ValidKeyID(id string) bool {
	return len(id) == model.KeyIDLength && allDigits(id)
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func (s *Service) check(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return ValidationError{Message: err.Error()}
	}
	fe := errs[0]
	return ValidationError{
		Field:   fe.Field(),
		Message: validationMessage(fe),
	}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "keyid":
		return fmt.Sprintf("must be exactly %d digits", model.KeyIDLength)
	case "digits":
		return "must contain only digits"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	}
	return "is invalid"
}

func checkKeyID(id string) error {
	if !ValidKeyID(id) {
		return invalid("key", "must be exactly %d digits", model.KeyIDLength)
	}
	return nil
}
