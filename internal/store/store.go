// Package store exposes the flat query operations the scheduler depends on.
// Each function returns plain result sets keyed by id; callers build lookup
// maps once per pass instead of walking ORM relations.
package store

import (
	"fmt"
	"sort"
	"time"

	"github.com/okton/shopfloor/internal/models"
	"gorm.io/gorm"
)

// ActiveMachines returns every machine eligible for scheduling. Inactive
// machines are filtered here so later stages never see them.
func ActiveMachines(db *gorm.DB) ([]models.Machine, error) {
	var machines []models.Machine
	if err := db.Where("active = ?", true).Order("code").Find(&machines).Error; err != nil {
		return nil, fmt.Errorf("store: active machines: %w", err)
	}
	return machines, nil
}

// SchedulableOrders returns orders in the scheduler's job pool: pending,
// scheduled or in_progress.
func SchedulableOrders(db *gorm.DB) ([]models.ProductionOrder, error) {
	var orders []models.ProductionOrder
	err := db.Where("status IN ?", models.SchedulableOrderStatuses()).
		Order("priority DESC, arrival_time ASC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("store: schedulable orders: %w", err)
	}
	return orders, nil
}

// StepsByRoute returns all process steps grouped by route, each group sorted
// by step number.
func StepsByRoute(db *gorm.DB) (map[string][]models.ProcessStep, error) {
	var steps []models.ProcessStep
	if err := db.Find(&steps).Error; err != nil {
		return nil, fmt.Errorf("store: process steps: %w", err)
	}
	byRoute := make(map[string][]models.ProcessStep)
	for _, s := range steps {
		byRoute[s.RouteID] = append(byRoute[s.RouteID], s)
	}
	for route := range byRoute {
		sort.Slice(byRoute[route], func(i, j int) bool {
			return byRoute[route][i].StepNumber < byRoute[route][j].StepNumber
		})
	}
	return byRoute, nil
}

// InProgressLogs returns job logs with a start time and no end time, the
// signal for work physically underway on a machine.
func InProgressLogs(db *gorm.DB) ([]models.JobLog, error) {
	var logs []models.JobLog
	err := db.Where("actual_start IS NOT NULL AND actual_end IS NULL").
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("store: in-progress logs: %w", err)
	}
	return logs, nil
}

// LastCompletedSteps returns, per order, the highest step number with a
// completed job log. Orders with no completed work are absent (treated as 0).
func LastCompletedSteps(db *gorm.DB, orderIDs []uint) (map[uint]int, error) {
	if len(orderIDs) == 0 {
		return map[uint]int{}, nil
	}
	type row struct {
		OrderID  uint
		LastStep int
	}
	var rows []row
	err := db.Table("job_logs").
		Select("job_logs.order_id AS order_id, MAX(process_steps.step_number) AS last_step").
		Joins("JOIN process_steps ON process_steps.id = job_logs.step_id").
		Where("job_logs.status = ?", models.StatusCompleted).
		Where("job_logs.order_id IN ?", orderIDs).
		Group("job_logs.order_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: last completed steps: %w", err)
	}
	result := make(map[uint]int, len(rows))
	for _, r := range rows {
		result[r.OrderID] = r.LastStep
	}
	return result, nil
}

// DowntimeEndingAfter returns downtime events still relevant at t, with
// in-progress windows clamped forward so they start no earlier than t.
func DowntimeEndingAfter(db *gorm.DB, t time.Time) ([]models.DowntimeEvent, error) {
	var events []models.DowntimeEvent
	if err := db.Where("end_time > ?", t).Order("start_time").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("store: downtime events: %w", err)
	}
	for i := range events {
		if events[i].StartTime.Before(t) {
			events[i].StartTime = t
		}
	}
	return events, nil
}

// CurrentTasks returns the non-archived scheduled tasks: the current plan
// generation, ordered for display.
func CurrentTasks(db *gorm.DB) ([]models.ScheduledTask, error) {
	var tasks []models.ScheduledTask
	err := db.Where("archived = ?", false).
		Order("start_time ASC, machine_id ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("store: current tasks: %w", err)
	}
	return tasks, nil
}

// ArchiveCurrentTasks marks every non-archived scheduled task as archived,
// retiring the previous plan generation. Returns the number of rows retired.
func ArchiveCurrentTasks(db *gorm.DB) (int64, error) {
	result := db.Model(&models.ScheduledTask{}).
		Where("archived = ?", false).
		Update("archived", true)
	if result.Error != nil {
		return 0, fmt.Errorf("store: archive tasks: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// TasksInStatus returns scheduled tasks in the given status, archived or not.
func TasksInStatus(db *gorm.DB, status string) ([]models.ScheduledTask, error) {
	var tasks []models.ScheduledTask
	if err := db.Where("status = ?", status).Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("store: tasks in status %s: %w", status, err)
	}
	return tasks, nil
}

// PromoteOrders moves the given orders from pending to scheduled. Orders
// already scheduled or further along are left untouched. Hooks are skipped:
// the row-validation hook would run against the zero-value destination
// struct on a bulk update, not against the stored rows.
func PromoteOrders(db *gorm.DB, orderIDs []uint) error {
	if len(orderIDs) == 0 {
		return nil
	}
	err := db.Session(&gorm.Session{SkipHooks: true}).
		Model(&models.ProductionOrder{}).
		Where("id IN ? AND status = ?", orderIDs, models.StatusPending).
		Update("status", models.StatusScheduled).Error
	if err != nil {
		return fmt.Errorf("store: promote orders: %w", err)
	}
	return nil
}
