package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/randomized-assessment/internal/models"
	"github.com/SAP-F-2025/randomized-assessment/internal/repositories"
)

type AnswerDraftPostgreSQL struct {
	db *gorm.DB
}

func NewAnswerDraftPostgreSQL(db *gorm.DB) repositories.AnswerDraftRepository {
	return &AnswerDraftPostgreSQL{db: db}
}

func (a *AnswerDraftPostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, draft *models.AnswerDraft) error {
	return getDB(a.db, tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"answers", "answered", "updated_at"}),
		}).
		Create(draft).Error
}

func (a *AnswerDraftPostgreSQL) GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID string) (*models.AnswerDraft, error) {
	var draft models.AnswerDraft
	if err := getDB(a.db, tx).WithContext(ctx).First(&draft, "session_id = ?", sessionID).Error; err != nil {
		return nil, translateError(err)
	}
	return &draft, nil
}
