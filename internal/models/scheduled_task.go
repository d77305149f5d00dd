package models

import "time"

// ScheduledTask is the scheduler's own output record: one planned (or
// currently running) occupation of a machine by one (order, step). Each
// scheduling pass archives the previous generation before writing its own,
// so the non-archived rows always form exactly one coherent plan.
type ScheduledTask struct {
	ID           uint `gorm:"primaryKey;autoIncrement"`
	OrderID      uint `gorm:"not null;index"`
	StepID       uint `gorm:"not null;index"`
	MachineID    uint `gorm:"not null;index"`
	StartTime    time.Time
	EndTime      time.Time
	DurationMins int    `gorm:"not null"`
	Status       string `gorm:"size:16;default:scheduled;not null;index"`
	Archived     bool   `gorm:"default:false;not null;index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Order   ProductionOrder `gorm:"foreignKey:OrderID"`
	Step    ProcessStep     `gorm:"foreignKey:StepID"`
	Machine Machine         `gorm:"foreignKey:MachineID"`
}
