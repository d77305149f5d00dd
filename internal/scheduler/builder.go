package scheduler

import (
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/okton/shopfloor/internal/models"
	"github.com/okton/shopfloor/internal/store"
	"gorm.io/gorm"
)

// BuildResult is the solver-facing snapshot of persistent state at one
// scheduling anchor.
type BuildResult struct {
	Anchor      time.Time
	Tasks       map[TaskKey]Task
	OrderChains map[string][]TaskKey // per order, keys sorted by step number
	Machines    []models.Machine     // active machines only
	Downtime    []models.DowntimeEvent
}

// Empty reports whether there is nothing to schedule.
func (b *BuildResult) Empty() bool { return len(b.Tasks) == 0 }

// minutesBetween returns whole minutes from a to b, negative when b precedes a.
func minutesBetween(a, b time.Time) int {
	return int(b.Sub(a) / time.Minute)
}

// Build converts order, route, machine and log state into the in-memory task
// graph for one scheduling pass. All times are interpreted in UTC relative to
// the anchor. No active machines or no route steps is a normal empty outcome,
// not an error.
func Build(db *gorm.DB, anchor time.Time) (*BuildResult, error) {
	anchor = anchor.UTC()
	result := &BuildResult{
		Anchor:      anchor,
		Tasks:       make(map[TaskKey]Task),
		OrderChains: make(map[string][]TaskKey),
	}

	machines, err := store.ActiveMachines(db)
	if err != nil {
		return nil, err
	}
	if len(machines) == 0 {
		log.Printf("scheduler: no active machines, nothing to schedule")
		return result, nil
	}
	result.Machines = machines

	stepsByRoute, err := store.StepsByRoute(db)
	if err != nil {
		return nil, err
	}
	if len(stepsByRoute) == 0 {
		log.Printf("scheduler: no route steps defined, nothing to schedule")
		return result, nil
	}

	orders, err := store.SchedulableOrders(db)
	if err != nil {
		return nil, err
	}

	orderIDs := make([]uint, len(orders))
	for i, o := range orders {
		orderIDs[i] = o.ID
	}

	lastCompleted, err := store.LastCompletedSteps(db, orderIDs)
	if err != nil {
		return nil, err
	}

	// Step definitions by id, for resolving job log references.
	stepsByID := make(map[uint]models.ProcessStep)
	for _, steps := range stepsByRoute {
		for _, s := range steps {
			stepsByID[s.ID] = s
		}
	}

	// All machines by id, active or not: in-progress work may sit on a
	// machine that has since been deactivated, and that is still where it is.
	var allMachines []models.Machine
	if err := db.Find(&allMachines).Error; err != nil {
		return nil, fmt.Errorf("scheduler: load machines: %w", err)
	}
	machinesByID := make(map[uint]models.Machine, len(allMachines))
	for _, m := range allMachines {
		machinesByID[m.ID] = m
	}

	// All orders by id, pool or not: work physically running on a machine
	// occupies it even when its order has been paused or blocked since.
	var allOrders []models.ProductionOrder
	if err := db.Find(&allOrders).Error; err != nil {
		return nil, fmt.Errorf("scheduler: load orders: %w", err)
	}
	allOrdersByID := make(map[uint]models.ProductionOrder, len(allOrders))
	for _, o := range allOrders {
		allOrdersByID[o.ID] = o
	}

	// In-progress work first: it pins machines and bounds each order's next
	// schedulable step.
	inProgress, err := store.InProgressLogs(db)
	if err != nil {
		return nil, err
	}

	nextAvailable := make(map[string]time.Time) // order code -> earliest next-step start
	for _, jl := range inProgress {
		order, ok := allOrdersByID[jl.OrderID]
		if !ok {
			return nil, fmt.Errorf("scheduler: job log %d references missing production order %d", jl.ID, jl.OrderID)
		}
		step, ok := stepsByID[jl.StepID]
		if !ok {
			return nil, fmt.Errorf("scheduler: job log %d references missing process step %d", jl.ID, jl.StepID)
		}
		machine, ok := machinesByID[jl.MachineID]
		if !ok {
			return nil, fmt.Errorf("scheduler: job log %d references missing machine %d", jl.ID, jl.MachineID)
		}

		startOffset := minutesBetween(anchor, jl.ActualStart.UTC())
		if startOffset < 0 {
			startOffset = 0
		}
		duration := machine.DefaultSetupMins + step.BaseDurationPerUnitMins*order.Quantity
		if duration < 1 {
			duration = 1
		}

		key := TaskKey{OrderCode: order.Code, Step: step.StepNumber}
		task, err := NewFixedTask(FixedTask{
			Key:             key,
			OrderID:         order.ID,
			StepID:          step.ID,
			MachineID:       machine.ID,
			MachineType:     step.MachineType,
			StartOffsetMins: startOffset,
			DurationMins:    duration,
		})
		if err != nil {
			return nil, err
		}
		result.Tasks[key] = task
		result.OrderChains[order.Code] = append(result.OrderChains[order.Code], key)

		finish := jl.ActualStart.UTC().Add(time.Duration(duration) * time.Minute)
		if finish.After(nextAvailable[order.Code]) {
			nextAvailable[order.Code] = finish
		}
	}

	// Remaining route steps become schedulable tasks.
	for _, order := range orders {
		steps, ok := stepsByRoute[order.RouteID]
		if !ok {
			log.Printf("scheduler: order %s references route %s with no steps, skipping", order.Code, order.RouteID)
			continue
		}

		startFrom := lastCompleted[order.ID] + 1

		earliest := order.ArrivalTime.UTC()
		if next, ok := nextAvailable[order.Code]; ok && next.After(earliest) {
			earliest = next
		}
		earliestOffset := minutesBetween(anchor, earliest)
		if earliestOffset < 0 {
			earliestOffset = 0
		}

		var deadlineOffset *int
		if order.DueDate != nil {
			d := minutesBetween(anchor, order.DueDate.UTC())
			deadlineOffset = &d
		}

		for _, step := range steps {
			if step.StepNumber < startFrom {
				continue // already completed, never rescheduled
			}
			key := TaskKey{OrderCode: order.Code, Step: step.StepNumber}
			if _, exists := result.Tasks[key]; exists {
				continue // occupied by in-progress work
			}

			opMins := step.BaseDurationPerUnitMins * order.Quantity
			if opMins < 1 {
				opMins = 1
			}

			task, err := NewSchedulableTask(SchedulableTask{
				Key:               key,
				OrderID:           order.ID,
				StepID:            step.ID,
				MachineType:       step.MachineType,
				OperationMins:     opMins,
				EarliestStartMins: earliestOffset,
				DeadlineOffset:    deadlineOffset,
			})
			if err != nil {
				return nil, err
			}
			result.Tasks[key] = task
			result.OrderChains[order.Code] = append(result.OrderChains[order.Code], key)
		}
	}

	for code := range result.OrderChains {
		chain := result.OrderChains[code]
		sort.Slice(chain, func(i, j int) bool { return chain[i].Step < chain[j].Step })
	}

	downtime, err := store.DowntimeEndingAfter(db, anchor)
	if err != nil {
		return nil, err
	}
	result.Downtime = downtime

	log.Printf("scheduler: prepared %d tasks across %d orders", len(result.Tasks), len(result.OrderChains))
	return result, nil
}
