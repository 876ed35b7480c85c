package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/randomized-assessment/internal/repositories"
)

type repository struct {
	db           *gorm.DB
	questionSets repositories.QuestionSetRepository
	sessions     repositories.SessionRepository
	drafts       repositories.AnswerDraftRepository
}

// NewRepository wires every PostgreSQL repository over db
func NewRepository(db *gorm.DB) repositories.Repository {
	return &repository{
		db:           db,
		questionSets: NewQuestionSetPostgreSQL(db),
		sessions:     NewSessionPostgreSQL(db),
		drafts:       NewAnswerDraftPostgreSQL(db),
	}
}

func (r *repository) QuestionSets() repositories.QuestionSetRepository { return r.questionSets }
func (r *repository) Sessions() repositories.SessionRepository         { return r.sessions }
func (r *repository) Drafts() repositories.AnswerDraftRepository       { return r.drafts }

func (r *repository) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}
