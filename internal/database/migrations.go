package database

import (
	"gorm.io/gorm"

	"github.com/confirmaparty/confirma/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Party{},
		&models.Guest{},
		&models.FollowUpRule{},
		&models.QueueItem{},
		&models.MessageLog{},
	)
}
