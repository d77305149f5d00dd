package db

import (
	"fmt"

	"github.com/okton/shopfloor/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&models.Machine{},
		&models.ProcessStep{},
		&models.ProductionOrder{},
		&models.JobLog{},
		&models.DowntimeEvent{},
		&models.ScheduledTask{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
