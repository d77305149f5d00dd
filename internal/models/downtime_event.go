package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// DowntimeEvent is a maintenance or failure window on one machine. The
// scheduler treats it as a blackout interval on that machine's timeline.
type DowntimeEvent struct {
	ID        uint `gorm:"primaryKey;autoIncrement"`
	MachineID uint `gorm:"not null;index"`
	StartTime time.Time
	EndTime   time.Time
	Reason    string `gorm:"size:128;not null"`

	Machine Machine `gorm:"foreignKey:MachineID"`
}

// BeforeSave rejects empty or inverted windows.
func (e *DowntimeEvent) BeforeSave(tx *gorm.DB) error {
	if !e.EndTime.After(e.StartTime) {
		return fmt.Errorf("models: downtime on machine %d: end not after start", e.MachineID)
	}
	return nil
}
