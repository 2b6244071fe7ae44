package database

import (
	"geolynx/internal/database/models"

	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.IPMetadata{},
	)
}
