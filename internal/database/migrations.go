package database

import (
	"gorm.io/gorm"

	"github.com/jobeco/fairprice/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
// Parents come before the join tables that reference them.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.UserGroup{},
		&models.Tradesman{},
		&models.UserTradesman{},
		&models.GroupTradesman{},
		&models.Job{},
		&models.GroupInvitation{},
		&models.AuditLog{},
		&models.CacheEntry{},
	)
}
