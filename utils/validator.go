package utils

import (
	"errors"
	"strings"

	"github.com/badoux/checkmail"
	"github.com/go-playground/validator/v10"

	"gpodo/lifecycle"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("lang", func(fl validator.FieldLevel) bool {
		return lifecycle.SupportedLanguage(lifecycle.Language(fl.Field().String()))
	})
	_ = v.RegisterValidation("phase", func(fl validator.FieldLevel) bool {
		_, err := lifecycle.ParsePhase(fl.Field().String())
		return err == nil
	})
	return v
}

func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	// Format validation errors
	var messages []string
	for _, err := range validationErrors {
		field := strings.ToLower(err.Field())
		param := err.Param()

		switch err.Tag() {
		case "required":
			messages = append(messages, field+" is required")
		case "min":
			messages = append(messages, field+" must be at least "+param)
		case "max":
			messages = append(messages, field+" must be at most "+param)
		case "email":
			messages = append(messages, field+" must be a valid email")
		case "len":
			messages = append(messages, field+" must be exactly "+param+" characters")
		case "oneof":
			messages = append(messages, field+" must be one of: "+param)
		case "gtfield":
			messages = append(messages, field+" must be greater than "+strings.ToLower(param))
		case "lang":
			messages = append(messages, field+" must be a supported language")
		case "phase":
			messages = append(messages, field+" must be a known phase")
		default:
			messages = append(messages, field+" is invalid")
		}
	}

	return errors.New(strings.Join(messages, ", "))
}

// ValidateEmailFormat runs the stricter checkmail syntax check used at
// sign-up.
func ValidateEmailFormat(email string) error {
	return checkmail.ValidateFormat(email)
}
