package db

import (
	"fmt"
	"time"

	"github.com/okton/shopfloor/internal/models"
	"gorm.io/gorm"
)

// Seed wipes the database and loads a small demo data set: a two-machine
// shop, one route, a handful of orders and a maintenance window. Intended
// for local evaluation, never for production schemas.
func Seed(db *gorm.DB, now time.Time) error {
	// Delete in reverse foreign-key order.
	for _, m := range []interface{}{
		&models.ScheduledTask{}, &models.JobLog{}, &models.DowntimeEvent{},
		&models.ProductionOrder{}, &models.ProcessStep{}, &models.Machine{},
	} {
		if err := db.Where("1 = 1").Delete(m).Error; err != nil {
			return fmt.Errorf("db: clear %T: %w", m, err)
		}
	}

	machines := []models.Machine{
		{Code: "CNC-01", Type: "CNC", DefaultSetupMins: 15, Active: true},
		{Code: "CNC-02", Type: "CNC", DefaultSetupMins: 20, Active: true},
		{Code: "EDM-01", Type: "EDM", DefaultSetupMins: 30, Active: true},
		{Code: "GRD-01", Type: "Grinder", DefaultSetupMins: 10, Active: false},
	}
	if err := db.Create(&machines).Error; err != nil {
		return fmt.Errorf("db: seed machines: %w", err)
	}

	steps := []models.ProcessStep{
		{RouteID: "cap-route", StepNumber: 1, Name: "Rough mill", MachineType: "CNC", BaseDurationPerUnitMins: 10},
		{RouteID: "cap-route", StepNumber: 2, Name: "Wire cut", MachineType: "EDM", BaseDurationPerUnitMins: 30},
		{RouteID: "insert-route", StepNumber: 1, Name: "Profile", MachineType: "CNC", BaseDurationPerUnitMins: 5},
	}
	if err := db.Create(&steps).Error; err != nil {
		return fmt.Errorf("db: seed process steps: %w", err)
	}

	due1 := now.Add(48 * time.Hour)
	due2 := now.Add(96 * time.Hour)
	orders := []models.ProductionOrder{
		{Code: "ORD-0001", ProductName: "Bottle cap die", RouteID: "cap-route", Quantity: 5, Priority: 1, ArrivalTime: now, DueDate: &due1, Status: models.StatusPending},
		{Code: "ORD-0002", ProductName: "Bottle cap die", RouteID: "cap-route", Quantity: 3, Priority: 2, ArrivalTime: now, DueDate: &due2, Status: models.StatusPending},
		{Code: "ORD-0003", ProductName: "Carbide insert", RouteID: "insert-route", Quantity: 20, Priority: 0, ArrivalTime: now, Status: models.StatusPending},
	}
	if err := db.Create(&orders).Error; err != nil {
		return fmt.Errorf("db: seed orders: %w", err)
	}

	downtime := models.DowntimeEvent{
		MachineID: machines[1].ID,
		StartTime: now.Add(4 * time.Hour),
		EndTime:   now.Add(6 * time.Hour),
		Reason:    "spindle service",
	}
	if err := db.Create(&downtime).Error; err != nil {
		return fmt.Errorf("db: seed downtime: %w", err)
	}

	return nil
}
