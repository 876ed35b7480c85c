package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionSubmitted SessionStatus = "submitted"
	SessionAbandoned SessionStatus = "abandoned"
)

// QuestionSetRecord stores a question set in canonical order.
type QuestionSetRecord struct {
	AssessmentID string                         `json:"assessment_id" gorm:"primaryKey;size:64"`
	Title        string                         `json:"title" gorm:"size:200"`
	Questions    datatypes.JSONType[[]Question] `json:"questions" gorm:"type:jsonb;not null"`
	CreatedBy    string                         `json:"created_by" gorm:"size:255;index"`
	CreatedAt    time.Time                      `json:"created_at"`
	UpdatedAt    time.Time                      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt                 `json:"-" gorm:"index"`
}

func NewQuestionSetRecord(set *QuestionSet, createdBy string) *QuestionSetRecord {
	return &QuestionSetRecord{
		AssessmentID: set.AssessmentID,
		Title:        set.Title,
		Questions:    datatypes.NewJSONType(set.Questions),
		CreatedBy:    createdBy,
	}
}

// QuestionSet converts the record back to the engine's input type.
func (r *QuestionSetRecord) QuestionSet() *QuestionSet {
	return &QuestionSet{
		AssessmentID: r.AssessmentID,
		Title:        r.Title,
		Questions:    r.Questions.Data(),
	}
}

// SessionRecord persists one assessment session. State holds the
// serialized session state including its mappings.
type SessionRecord struct {
	ID           string         `json:"id" gorm:"primaryKey;size:36"`
	AssessmentID string         `json:"assessment_id" gorm:"not null;size:64;index"`
	UserID       string         `json:"user_id" gorm:"size:255;index"`
	IsExam       bool           `json:"is_exam" gorm:"not null"`
	Status       SessionStatus  `json:"status" gorm:"default:active;size:20;index"`
	State        datatypes.JSON `json:"state" gorm:"type:jsonb;not null"`

	ExpiresAt   time.Time  `json:"expires_at" gorm:"index"`
	SubmittedAt *time.Time `json:"submitted_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (r *SessionRecord) IsActive(now time.Time) bool {
	return r.Status == SessionActive && now.Before(r.ExpiresAt)
}

// AnswerDraft is the latest canonical answers of a session.
type AnswerDraft struct {
	SessionID string                              `json:"session_id" gorm:"primaryKey;size:36"`
	Answers   datatypes.JSONType[FormattedAnswer] `json:"answers" gorm:"type:jsonb;not null"`
	Answered  int                                 `json:"answered"`
	UpdatedAt time.Time                           `json:"updated_at"`
}

func NewAnswerDraft(sessionID string, answers FormattedAnswer) *AnswerDraft {
	return &AnswerDraft{
		SessionID: sessionID,
		Answers:   datatypes.NewJSONType(answers),
		Answered:  len(answers),
	}
}
