package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/randomized-assessment/internal/models"
	"github.com/SAP-F-2025/randomized-assessment/internal/repositories"
)

type SessionPostgreSQL struct {
	db *gorm.DB
}

func NewSessionPostgreSQL(db *gorm.DB) repositories.SessionRepository {
	return &SessionPostgreSQL{db: db}
}

func (s *SessionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, record *models.SessionRecord) error {
	return getDB(s.db, tx).WithContext(ctx).Create(record).Error
}

func (s *SessionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.SessionRecord, error) {
	var record models.SessionRecord
	if err := getDB(s.db, tx).WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &record, nil
}

// GetActiveByUser returns the newest unexpired active session of the user
// for the assessment
func (s *SessionPostgreSQL) GetActiveByUser(ctx context.Context, tx *gorm.DB, userID, assessmentID string, now time.Time) (*models.SessionRecord, error) {
	var record models.SessionRecord
	if err := getDB(s.db, tx).WithContext(ctx).
		Where("user_id = ? AND assessment_id = ? AND status = ? AND expires_at > ?",
			userID, assessmentID, models.SessionActive, now).
		Order("created_at DESC").
		First(&record).Error; err != nil {
		return nil, translateError(err)
	}
	return &record, nil
}

// UpdateStatus moves an active session to status. Sessions that already
// left the active state are reported as not found.
func (s *SessionPostgreSQL) UpdateStatus(ctx context.Context, tx *gorm.DB, id string, status models.SessionStatus, at time.Time) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": at,
	}
	if status == models.SessionSubmitted {
		updates["submitted_at"] = at
	}

	result := getDB(s.db, tx).WithContext(ctx).
		Model(&models.SessionRecord{}).
		Where("id = ? AND status = ?", id, models.SessionActive).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}
