package services

import (
	"time"

	"github.com/SAP-F-2025/randomized-assessment/internal/models"
	"github.com/SAP-F-2025/randomized-assessment/internal/progress"
)

type SessionMode string

const (
	ModeExam     SessionMode = "exam"
	ModePractice SessionMode = "practice"
)

// ===== REQUEST TYPES =====

type StartSessionRequest struct {
	AssessmentID string      `json:"assessment_id" validate:"required,max=64"`
	Mode         SessionMode `json:"mode" validate:"required,oneof=exam practice"`
}

func (r StartSessionRequest) IsExam() bool {
	return r.Mode == ModeExam
}

type ToggleAnswerRequest struct {
	QuestionID string `json:"question_id" validate:"required,max=64"`
	Position   *int   `json:"position" validate:"required,min=0"` // display position
	Selected   bool   `json:"selected"`
}

type FocusRequest struct {
	QuestionID string `json:"question_id" validate:"required,max=64"`
}

// ===== RESPONSE TYPES =====

// QuestionView is a question as the test-taker sees it. Correct answers are
// never included.
type QuestionView struct {
	ID           string              `json:"id"`
	Kind         models.QuestionKind `json:"kind"`
	Prompt       string              `json:"prompt"`
	ImageURL     *string             `json:"image_url,omitempty"`
	Options      []string            `json:"options"`
	DisplayIndex int                 `json:"display_index"`
}

type SessionResponse struct {
	SessionID    string                 `json:"session_id"`
	AssessmentID string                 `json:"assessment_id"`
	Title        string                 `json:"title"`
	Mode         SessionMode            `json:"mode"`
	Status       models.SessionStatus   `json:"status"`
	Resumed      bool                   `json:"resumed"`
	Questions    []QuestionView         `json:"questions"`
	Answers      models.FormattedAnswer `json:"answers"`
	Selections   map[string][]int       `json:"selections"`
	CreatedAt    time.Time              `json:"created_at"`
	ExpiresAt    time.Time              `json:"expires_at"`
}

// AnswersResponse carries canonical answers for the host and the display
// selections for re-rendering.
type AnswersResponse struct {
	SessionID  string                 `json:"session_id"`
	Changed    bool                   `json:"changed"`
	Answers    models.FormattedAnswer `json:"answers"`
	Selections map[string][]int       `json:"selections"`
	Answered   int                    `json:"answered"`
	Total      int                    `json:"total"`
}

type ProgressResponse struct {
	SessionID         string          `json:"session_id"`
	FocusedQuestionID string          `json:"focused_question_id,omitempty"`
	Ordinal           int             `json:"ordinal,omitempty"`
	Moved             bool            `json:"moved"`
	Label             string          `json:"label"`
	CompletionLabel   string          `json:"completion_label"`
	Completion        float64         `json:"completion"`
	Answered          int             `json:"answered"`
	Total             int             `json:"total"`
	Unanswered        []string        `json:"unanswered"`
	Items             []progress.Item `json:"items"`
}

type SubmitResponse struct {
	SessionID   string                 `json:"session_id"`
	Answers     models.FormattedAnswer `json:"answers"`
	Answered    int                    `json:"answered"`
	Total       int                    `json:"total"`
	Correct     int                    `json:"correct"`
	Gradable    int                    `json:"gradable"`
	SubmittedAt time.Time              `json:"submitted_at"`
}
