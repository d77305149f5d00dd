package models

// ProcessStep is one ordered step of a product's route. It names the type of
// machine required, never a specific machine; machine selection happens at
// scheduling time.
type ProcessStep struct {
	ID                      uint   `gorm:"primaryKey;autoIncrement"`
	RouteID                 string `gorm:"size:64;not null;uniqueIndex:idx_route_step"`
	StepNumber              int    `gorm:"not null;uniqueIndex:idx_route_step"`
	Name                    string `gorm:"size:128;not null"`
	MachineType             string `gorm:"size:32;not null"`
	BaseDurationPerUnitMins int    `gorm:"not null"`
}
