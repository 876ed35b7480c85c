package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/randomized-assessment/internal/repositories"
)

func getDB(db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}

func translateError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repositories.ErrNotFound
	}
	return err
}
