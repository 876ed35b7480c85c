package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/randomized-assessment/internal/models"
)

var ErrNotFound = errors.New("record not found")

// QuestionSetRepository stores question sets in canonical order
type QuestionSetRepository interface {
	Upsert(ctx context.Context, tx *gorm.DB, record *models.QuestionSetRecord) error
	GetByAssessmentID(ctx context.Context, tx *gorm.DB, assessmentID string) (*models.QuestionSetRecord, error)
	Delete(ctx context.Context, tx *gorm.DB, assessmentID string) error
}

// SessionRepository stores session snapshots so a session can be resumed
// without reshuffling
type SessionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, record *models.SessionRecord) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.SessionRecord, error)
	GetActiveByUser(ctx context.Context, tx *gorm.DB, userID, assessmentID string, now time.Time) (*models.SessionRecord, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id string, status models.SessionStatus, at time.Time) error
}

// AnswerDraftRepository stores the latest canonical answers per session
type AnswerDraftRepository interface {
	Upsert(ctx context.Context, tx *gorm.DB, draft *models.AnswerDraft) error
	GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID string) (*models.AnswerDraft, error)
}

// Repository groups the repositories and runs transactions across them
type Repository interface {
	QuestionSets() QuestionSetRepository
	Sessions() SessionRepository
	Drafts() AnswerDraftRepository
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}
