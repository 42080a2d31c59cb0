package validator

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"turfbook/pkg/model"
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

type TurfValidator struct {
	validate *validator.Validate
}

func NewTurfValidator() *TurfValidator {
	return &TurfValidator{
		validate: validator.New(),
	}
}

func (v *TurfValidator) Validate(turf *model.Turf) error {
	return v.run(turf)
}

func (v *TurfValidator) ValidateUpdate(updates *model.TurfUpdate) error {
	return v.run(updates)
}

func (v *TurfValidator) run(target any) error {
	if err := v.validate.Struct(target); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translate(validationErrs)
		}
		return err
	}
	return nil
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
