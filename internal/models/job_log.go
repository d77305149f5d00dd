package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// JobLog records actual work against one (order, step, machine) triple.
// A log with ActualStart set and ActualEnd null is in-progress work; the
// scheduler treats the corresponding step as fixed and never reassigns it.
type JobLog struct {
	ID          uint `gorm:"primaryKey;autoIncrement"`
	OrderID     uint `gorm:"not null;index"`
	StepID      uint `gorm:"not null;index"`
	MachineID   uint `gorm:"not null;index"`
	ActualStart time.Time
	ActualEnd   *time.Time
	Status      string `gorm:"size:16;default:pending;not null;index"`
	Remarks     string `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Order   ProductionOrder `gorm:"foreignKey:OrderID"`
	Step    ProcessStep     `gorm:"foreignKey:StepID"`
	Machine Machine         `gorm:"foreignKey:MachineID"`
}

// BeforeSave enforces that a finished log ends after it starts.
func (l *JobLog) BeforeSave(tx *gorm.DB) error {
	if l.ActualEnd != nil && !l.ActualEnd.After(l.ActualStart) {
		return fmt.Errorf("models: job log for order %d step %d: end not after start", l.OrderID, l.StepID)
	}
	return nil
}
