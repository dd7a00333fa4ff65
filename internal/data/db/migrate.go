package db

import (
	"gorm.io/gorm"

	"github.com/docshield/docshield-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.DocumentRecord{},
	)
}
