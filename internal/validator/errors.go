package validator

import (
	"github.com/SAP-F-2025/randomized-assessment/internal/errors"
)

type ValidationError = errors.ValidationError
type ValidationErrors = errors.ValidationErrors

// ToValidationErrors maps tag failures to field-path errors.
func ToValidationErrors(err error) ValidationErrors {
	return errors.ToValidationErrors(err)
}
