package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/SAP-F-2025/randomized-assessment/internal/models"
)

// Validator combines struct tag validation with question set rules
type Validator struct {
	structValidator   *validator.Validate
	questionValidator *QuestionValidator
}

// New creates a new centralized validator instance
func New() *Validator {
	structValidator := validator.New()

	// Register all custom validators once
	registerCustomValidators(structValidator)

	return &Validator{
		structValidator:   structValidator,
		questionValidator: NewQuestionValidator(),
	}
}

// ValidateStruct validates struct tags only
func (v *Validator) ValidateStruct(s interface{}) error {
	if err := v.structValidator.Struct(s); err != nil {
		if errs := ToValidationErrors(err); len(errs) > 0 {
			return errs
		}
		return err
	}
	return nil
}

// ValidateQuestionSet performs complete validation of a set handed to the
// engine (struct tags first, then the rules tags cannot express).
func (v *Validator) ValidateQuestionSet(set *models.QuestionSet) error {
	if err := v.ValidateStruct(set); err != nil {
		return err
	}
	if errs := v.questionValidator.ValidateSet(set); len(errs) > 0 {
		return errs
	}
	return nil
}

// Question returns the question validator
func (v *Validator) Question() *QuestionValidator {
	return v.questionValidator
}

// registerCustomValidators registers all custom validation functions
func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("question_kind", validateQuestionKind)
	validate.RegisterValidation("option_indexes", validateOptionIndexes)

	// Custom tag name function for better error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateQuestionKind(fl validator.FieldLevel) bool {
	validKinds := []models.QuestionKind{
		models.KindSingleChoice,
		models.KindMultiChoice,
		models.KindReorder,
	}

	value := fl.Field().String()
	for _, kind := range validKinds {
		if string(kind) == value {
			return true
		}
	}
	return false
}

// validateOptionIndexes accepts []int fields holding distinct non-negative
// indexes. Range against the option list is checked by QuestionValidator.
func validateOptionIndexes(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.Slice {
		return false
	}

	seen := make(map[int64]struct{}, field.Len())
	for i := 0; i < field.Len(); i++ {
		elem := field.Index(i)
		if elem.Kind() != reflect.Int {
			return false
		}
		idx := elem.Int()
		if idx < 0 {
			return false
		}
		if _, dup := seen[idx]; dup {
			return false
		}
		seen[idx] = struct{}{}
	}
	return true
}
