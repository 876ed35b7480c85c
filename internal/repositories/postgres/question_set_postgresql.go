package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/randomized-assessment/internal/models"
	"github.com/SAP-F-2025/randomized-assessment/internal/repositories"
)

type QuestionSetPostgreSQL struct {
	db *gorm.DB
}

func NewQuestionSetPostgreSQL(db *gorm.DB) repositories.QuestionSetRepository {
	return &QuestionSetPostgreSQL{db: db}
}

// Upsert replaces the stored set for the assessment, keeping its creation time
func (q *QuestionSetPostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, record *models.QuestionSetRecord) error {
	return getDB(q.db, tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "assessment_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "questions", "created_by", "updated_at", "deleted_at"}),
		}).
		Create(record).Error
}

func (q *QuestionSetPostgreSQL) GetByAssessmentID(ctx context.Context, tx *gorm.DB, assessmentID string) (*models.QuestionSetRecord, error) {
	var record models.QuestionSetRecord
	if err := getDB(q.db, tx).WithContext(ctx).
		Where("assessment_id = ?", assessmentID).
		First(&record).Error; err != nil {
		return nil, translateError(err)
	}
	return &record, nil
}

func (q *QuestionSetPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, assessmentID string) error {
	result := getDB(q.db, tx).WithContext(ctx).
		Where("assessment_id = ?", assessmentID).
		Delete(&models.QuestionSetRecord{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}
