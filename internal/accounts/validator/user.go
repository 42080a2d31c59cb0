package validator

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/go-playground/validator/v10"

	"turfbook/pkg/model"
)

const (
	minPasswordLength = 8
	// bcrypt truncates input beyond 72 bytes, so longer passwords are rejected
	// instead of silently weakened.
	maxPasswordBytes = 72
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	return fmt.Sprintf("validation failed: %d error(s)", len(v))
}

type AccountValidator struct {
	validate *validator.Validate
}

func NewAccountValidator() *AccountValidator {
	return &AccountValidator{
		validate: validator.New(),
	}
}

// ValidateRegistration checks the assembled user record plus the plaintext
// password policy. The password never enters the struct, so it is checked here.
func (v *AccountValidator) ValidateRegistration(user *model.User, password string) error {
	var validationErrors ValidationErrors

	if err := v.validate.Struct(user); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			validationErrors = append(validationErrors, translate(validationErrs)...)
		} else {
			return err
		}
	}

	validationErrors = append(validationErrors, validatePassword(password)...)

	if len(validationErrors) > 0 {
		return validationErrors
	}
	return nil
}

func validatePassword(password string) ValidationErrors {
	var errs ValidationErrors

	if len(password) < minPasswordLength {
		errs = append(errs, ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("must be at least %d characters", minPasswordLength),
		})
		return errs
	}
	if len(password) > maxPasswordBytes {
		errs = append(errs, ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("must be at most %d bytes", maxPasswordBytes),
		})
		return errs
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		errs = append(errs, ValidationError{
			Field:   "password",
			Message: "must contain at least one letter and one digit",
		})
	}

	return errs
}

func translate(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: fmt.Sprintf("failed validation on '%s'", err.Tag()),
		})
	}

	return validationErrors
}
