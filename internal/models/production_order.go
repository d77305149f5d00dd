package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ProductionOrder is a unit of demand: a quantity of one product to push
// through its route. Orders drive everything the scheduler does.
type ProductionOrder struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	Code        string `gorm:"size:32;uniqueIndex;not null"` // "ORD-250614-02"
	ProductName string `gorm:"size:128"`
	RouteID     string `gorm:"size:64;not null;index"`
	Quantity    int    `gorm:"not null"`
	Priority    int    `gorm:"default:0;not null"`
	ArrivalTime time.Time
	DueDate     *time.Time
	Status      string `gorm:"size:16;default:pending;not null;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Logs           []JobLog        `gorm:"foreignKey:OrderID"`
	ScheduledTasks []ScheduledTask `gorm:"foreignKey:OrderID"`
}

// BeforeSave enforces that a due date, when present, is not before arrival.
func (o *ProductionOrder) BeforeSave(tx *gorm.DB) error {
	if o.Quantity <= 0 {
		return fmt.Errorf("models: order %s: quantity must be positive", o.Code)
	}
	if o.DueDate != nil && o.DueDate.Before(o.ArrivalTime) {
		return fmt.Errorf("models: order %s: due date precedes arrival time", o.Code)
	}
	return nil
}
