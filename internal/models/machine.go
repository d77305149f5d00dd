package models

import "time"

// Machine is a physical machine or workstation on the shop floor.
type Machine struct {
	ID               uint   `gorm:"primaryKey;autoIncrement"`
	Code             string `gorm:"size:32;uniqueIndex;not null"` // "CNC-01", "EDM-A"
	Type             string `gorm:"size:32;not null;index"`       // "CNC", "EDM", "Grinder"
	DefaultSetupMins int    `gorm:"default:0;not null"`
	Active           bool   `gorm:"default:true;not null"`
	CreatedAt        time.Time
	UpdatedAt        time.Time

	ScheduledTasks []ScheduledTask `gorm:"foreignKey:MachineID"`
	Downtime       []DowntimeEvent `gorm:"foreignKey:MachineID"`
}
