package models

type QuestionKind string

const (
	KindSingleChoice QuestionKind = "single_choice"
	KindMultiChoice  QuestionKind = "multi_choice"
	KindReorder      QuestionKind = "reorder"
)

// IsChoice reports whether answers to this kind are option selections.
func (k QuestionKind) IsChoice() bool {
	return k == KindSingleChoice || k == KindMultiChoice
}

// Question is the canonical, author-ordered form of a quiz item.
type Question struct {
	ID       string       `json:"id" validate:"required,max=64"`
	Kind     QuestionKind `json:"kind" validate:"required,question_kind"`
	Prompt   string       `json:"prompt" validate:"required"`
	ImageURL *string      `json:"image_url,omitempty" validate:"omitempty,url"`
	Options  []string     `json:"options" validate:"omitempty,max=26,dive,required"`
	Correct  []int        `json:"correct,omitempty" validate:"omitempty,option_indexes"` // canonical option indexes
}

// OptionCount returns the number of selectable options.
func (q Question) OptionCount() int {
	return len(q.Options)
}

// IsCorrectIndex reports whether the canonical option index is marked correct.
func (q Question) IsCorrectIndex(idx int) bool {
	for _, c := range q.Correct {
		if c == idx {
			return true
		}
	}
	return false
}

// DisplayQuestion is a Question as rendered to the test-taker. Options are
// in display order; ID and Correct stay canonical.
type DisplayQuestion struct {
	Question
	CanonicalIndex int `json:"canonical_index"`
	DisplayIndex   int `json:"display_index"`
}

// QuestionSet is the unit the host hands to the engine.
type QuestionSet struct {
	AssessmentID string     `json:"assessment_id" validate:"required"`
	Title        string     `json:"title"`
	Questions    []Question `json:"questions" validate:"required,min=1,dive"`
}
