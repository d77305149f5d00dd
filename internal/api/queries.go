package api

import (
	"time"

	"github.com/okton/shopfloor/internal/models"
	"gorm.io/gorm"
)

// ScheduleRow is one planned task in the current (non-archived) schedule,
// joined with the codes a client can display directly.
type ScheduleRow struct {
	TaskID       uint      `json:"task_id"`
	OrderCode    string    `json:"order_code"`
	ProductName  string    `json:"product_name"`
	StepNumber   int       `json:"step_number"`
	StepName     string    `json:"step_name"`
	MachineCode  string    `json:"machine_code"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	DurationMins int       `json:"duration_mins"`
	Status       string    `json:"status"`
}

// CurrentSchedule returns the active plan ordered by start time.
func CurrentSchedule(db *gorm.DB) ([]ScheduleRow, error) {
	rows := []ScheduleRow{}
	err := db.Model(&models.ScheduledTask{}).
		Select(`scheduled_tasks.id as task_id,
			production_orders.code as order_code,
			production_orders.product_name,
			process_steps.step_number,
			process_steps.name as step_name,
			machines.code as machine_code,
			scheduled_tasks.start_time,
			scheduled_tasks.end_time,
			scheduled_tasks.duration_mins,
			scheduled_tasks.status`).
		Joins("JOIN production_orders ON production_orders.id = scheduled_tasks.order_id").
		Joins("JOIN process_steps ON process_steps.id = scheduled_tasks.step_id").
		Joins("JOIN machines ON machines.id = scheduled_tasks.machine_id").
		Where("scheduled_tasks.archived = ?", false).
		Order("scheduled_tasks.start_time ASC, machines.code ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// GanttLane is one machine's row on the Gantt view.
type GanttLane struct {
	MachineCode string        `json:"machine_code"`
	MachineType string        `json:"machine_type"`
	Tasks       []ScheduleRow `json:"tasks"`
}

// GanttData groups the current schedule into one lane per machine, machines
// without work included so the view shows idle capacity.
func GanttData(db *gorm.DB) ([]GanttLane, error) {
	var machines []models.Machine
	if err := db.Where("active = ?", true).Order("code ASC").Find(&machines).Error; err != nil {
		return nil, err
	}

	rows, err := CurrentSchedule(db)
	if err != nil {
		return nil, err
	}
	byMachine := make(map[string][]ScheduleRow)
	for _, r := range rows {
		byMachine[r.MachineCode] = append(byMachine[r.MachineCode], r)
	}

	lanes := make([]GanttLane, 0, len(machines))
	for _, m := range machines {
		tasks := byMachine[m.Code]
		if tasks == nil {
			tasks = []ScheduleRow{}
		}
		lanes = append(lanes, GanttLane{MachineCode: m.Code, MachineType: m.Type, Tasks: tasks})
	}
	return lanes, nil
}

// MachineRow is one machine with its upcoming downtime windows.
type MachineRow struct {
	ID               uint          `json:"id"`
	Code             string        `json:"code"`
	Type             string        `json:"type"`
	DefaultSetupMins int           `json:"default_setup_mins"`
	Active           bool          `json:"active"`
	Downtime         []DowntimeRow `json:"downtime"`
}

// DowntimeRow is one downtime window for display.
type DowntimeRow struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Reason    string    `json:"reason"`
}

// MachineList returns every machine with downtime windows that have not yet
// ended.
func MachineList(db *gorm.DB, now time.Time) ([]MachineRow, error) {
	var machines []models.Machine
	if err := db.Order("code ASC").Find(&machines).Error; err != nil {
		return nil, err
	}

	var downtime []models.DowntimeEvent
	if err := db.Where("end_time > ?", now).Order("start_time ASC").Find(&downtime).Error; err != nil {
		return nil, err
	}
	byMachine := make(map[uint][]DowntimeRow)
	for _, ev := range downtime {
		byMachine[ev.MachineID] = append(byMachine[ev.MachineID], DowntimeRow{
			StartTime: ev.StartTime, EndTime: ev.EndTime, Reason: ev.Reason,
		})
	}

	rows := make([]MachineRow, 0, len(machines))
	for _, m := range machines {
		dt := byMachine[m.ID]
		if dt == nil {
			dt = []DowntimeRow{}
		}
		rows = append(rows, MachineRow{
			ID:               m.ID,
			Code:             m.Code,
			Type:             m.Type,
			DefaultSetupMins: m.DefaultSetupMins,
			Active:           m.Active,
			Downtime:         dt,
		})
	}
	return rows, nil
}

// OrderRow is one production order for display.
type OrderRow struct {
	ID          uint       `json:"id"`
	Code        string     `json:"code"`
	ProductName string     `json:"product_name"`
	RouteID     string     `json:"route_id"`
	Quantity    int        `json:"quantity"`
	Priority    int        `json:"priority"`
	ArrivalTime time.Time  `json:"arrival_time"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Status      string     `json:"status"`
}

// OrderList returns orders, optionally filtered to one status, highest
// priority first.
func OrderList(db *gorm.DB, status string) ([]OrderRow, error) {
	q := db.Model(&models.ProductionOrder{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var orders []models.ProductionOrder
	if err := q.Order("priority DESC, arrival_time ASC").Find(&orders).Error; err != nil {
		return nil, err
	}

	rows := make([]OrderRow, len(orders))
	for i, o := range orders {
		rows[i] = OrderRow{
			ID:          o.ID,
			Code:        o.Code,
			ProductName: o.ProductName,
			RouteID:     o.RouteID,
			Quantity:    o.Quantity,
			Priority:    o.Priority,
			ArrivalTime: o.ArrivalTime,
			DueDate:     o.DueDate,
			Status:      o.Status,
		}
	}
	return rows, nil
}
