package validator

import (
	"fmt"

	"github.com/SAP-F-2025/randomized-assessment/internal/errors"
	"github.com/SAP-F-2025/randomized-assessment/internal/models"
)

const minChoiceOptions = 2

// QuestionValidator handles the question set rules struct tags cannot express
type QuestionValidator struct{}

// NewQuestionValidator creates a new question validator
func NewQuestionValidator() *QuestionValidator {
	return &QuestionValidator{}
}

// ValidateSet checks every question and that IDs are unique across the set.
func (v *QuestionValidator) ValidateSet(set *models.QuestionSet) ValidationErrors {
	var errs ValidationErrors
	seen := make(map[string]int, len(set.Questions))

	for i := range set.Questions {
		q := &set.Questions[i]
		if first, dup := seen[q.ID]; dup {
			errs = append(errs, *errors.NewValidationErrorWithRule(
				fmt.Sprintf("questions[%d].id", i),
				fmt.Sprintf("duplicates questions[%d].id", first),
				"unique_id", q.ID))
			continue
		}
		seen[q.ID] = i

		for _, e := range v.ValidateQuestion(q) {
			e.Field = fmt.Sprintf("questions[%d].%s", i, e.Field)
			errs = append(errs, e)
		}
	}
	return errs
}

// ValidateQuestion validates a single question
func (v *QuestionValidator) ValidateQuestion(q *models.Question) ValidationErrors {
	var errs ValidationErrors

	if (q.Kind.IsChoice() || q.Kind == models.KindReorder) && len(q.Options) < minChoiceOptions {
		errs = append(errs, *errors.NewValidationErrorWithRule("options",
			fmt.Sprintf("must have at least %d options", minChoiceOptions), "option_count", len(q.Options)))
	}

	for _, idx := range q.Correct {
		if idx < 0 || idx >= len(q.Options) {
			errs = append(errs, *errors.NewValidationErrorWithRule("correct",
				fmt.Sprintf("index %d does not reference an option", idx), "correct_range", idx))
		}
	}

	if q.Kind == models.KindSingleChoice && len(q.Correct) > 1 {
		errs = append(errs, *errors.NewValidationErrorWithRule("correct",
			"must mark exactly one correct option", "correct_count", q.Correct))
	}

	return errs
}
