package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError is one rejected field of a question set or session request
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule,omitempty"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	switch len(ve) {
	case 0:
		return "validation failed"
	case 1:
		return fmt.Sprintf("validation failed: %s %s", ve[0].Field, ve[0].Message)
	default:
		return fmt.Sprintf("validation failed: %d field errors", len(ve))
	}
}

// Rules lists the failed rule of every entry, in order.
func (ve ValidationErrors) Rules() []string {
	rules := make([]string, len(ve))
	for i, e := range ve {
		rules[i] = e.Rule
	}
	return rules
}

func (pe *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", pe.Field, pe.Message)
}

func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// NewValidationErrorWithRule is used by rules that struct tags cannot express
// (unique question IDs, option counts).
func NewValidationErrorWithRule(field, message, rule string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
		Rule:    rule,
	}
}

// ToValidationErrors converts validator errors into ValidationErrors. Field
// holds the path below the validated struct, e.g. "questions[1].kind", so
// tag failures and QuestionValidator failures name fields the same way.
func ToValidationErrors(err error) ValidationErrors {
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return nil
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fieldPath(fe),
			Message: getErrorMessage(fe),
			Value:   fe.Value(),
			Rule:    fe.Tag(),
		})
	}
	return out
}

// fieldPath strips the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, found := strings.Cut(ns, "."); found && rest != "" {
		return rest
	}
	return fe.Field()
}

func getErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", err.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", err.Param())
	case "url":
		return "must be a valid URL"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", err.Param())

	case "question_kind":
		return "must be a valid question kind (single_choice, multi_choice, reorder)"
	case "option_indexes":
		return "must contain distinct non-negative option indexes"

	default:
		return fmt.Sprintf("validation failed for rule '%s'", err.Tag())
	}
}
