package scheduler

import (
	"fmt"
	"time"

	"github.com/okton/shopfloor/internal/models"
	"github.com/okton/shopfloor/internal/store"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// taskIdentity matches solver placements to surviving ScheduledTask rows.
type taskIdentity struct {
	OrderID   uint
	StepID    uint
	MachineID uint
}

// Commit reconciles solver output into persistent state as one transaction:
// the previous plan generation is archived, each placement is written as a
// new or rebound ScheduledTask, operator-facing JobLogs are pre-populated
// with the planned times, and placed orders move from pending to scheduled.
// Any failure rolls the whole generation swap back.
func Commit(db *gorm.DB, anchor time.Time, placements []Placement) error {
	anchor = anchor.UTC()

	return db.Transaction(func(tx *gorm.DB) error {
		// Row locks guard against two passes interleaving their archive and
		// upsert steps. SQLite has no FOR UPDATE but serializes writing
		// transactions at the database level, which gives the same guarantee.
		guard := tx
		if tx.Dialector.Name() != "sqlite" {
			guard = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var survivors []models.ScheduledTask
		err := guard.
			Where("status IN ?", []string{models.StatusScheduled, models.StatusInProgress}).
			Find(&survivors).Error
		if err != nil {
			return fmt.Errorf("scheduler: load surviving tasks: %w", err)
		}
		byIdentity := make(map[taskIdentity]models.ScheduledTask, len(survivors))
		for _, t := range survivors {
			byIdentity[taskIdentity{t.OrderID, t.StepID, t.MachineID}] = t
		}

		if _, err := store.ArchiveCurrentTasks(tx); err != nil {
			return err
		}

		placedOrders := make(map[uint]bool)
		for _, p := range placements {
			placedOrders[p.OrderID] = true

			start := anchor.Add(time.Duration(p.StartMins) * time.Minute)
			end := anchor.Add(time.Duration(p.EndMins) * time.Minute)
			status := models.StatusScheduled
			if p.Fixed {
				status = models.StatusInProgress
			}

			id := taskIdentity{p.OrderID, p.StepID, p.MachineID}
			if existing, ok := byIdentity[id]; ok {
				// Same (order, step, machine) as last generation: keep the
				// row's identity and pull it into the new generation.
				delete(byIdentity, id)
				updates := map[string]interface{}{
					"start_time":    start,
					"end_time":      end,
					"duration_mins": p.DurationMins,
					"status":        status,
					"archived":      false,
				}
				if err := tx.Model(&models.ScheduledTask{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
					return fmt.Errorf("scheduler: update task %d for %s: %w", existing.ID, p.Key, err)
				}
			} else {
				task := models.ScheduledTask{
					OrderID:      p.OrderID,
					StepID:       p.StepID,
					MachineID:    p.MachineID,
					StartTime:    start,
					EndTime:      end,
					DurationMins: p.DurationMins,
					Status:       status,
					Archived:     false,
				}
				if err := tx.Create(&task).Error; err != nil {
					return fmt.Errorf("scheduler: create task for %s: %w", p.Key, err)
				}
			}

			// Fixed placements already have a live in-progress JobLog; it is
			// the ground truth and stays untouched.
			if p.Fixed {
				continue
			}
			if err := upsertJobLog(tx, p, start, end); err != nil {
				return err
			}
		}

		orderIDs := make([]uint, 0, len(placedOrders))
		for id := range placedOrders {
			orderIDs = append(orderIDs, id)
		}
		if err := store.PromoteOrders(tx, orderIDs); err != nil {
			return err
		}

		return nil
	})
}

// upsertJobLog pre-populates the operator-facing log with the planned window.
// An existing pending/scheduled log for the same triple is re-stamped; fresh
// placements get a new log in scheduled status.
func upsertJobLog(tx *gorm.DB, p Placement, start, end time.Time) error {
	var existing models.JobLog
	result := tx.
		Where("order_id = ? AND step_id = ? AND machine_id = ?", p.OrderID, p.StepID, p.MachineID).
		Where("status IN ?", []string{models.StatusPending, models.StatusScheduled}).
		Limit(1).
		Find(&existing)
	if result.Error != nil {
		return fmt.Errorf("scheduler: find job log for %s: %w", p.Key, result.Error)
	}

	if result.RowsAffected > 0 {
		updates := map[string]interface{}{
			"actual_start": start,
			"actual_end":   end,
			"status":       models.StatusScheduled,
		}
		if err := tx.Model(&models.JobLog{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("scheduler: update job log %d for %s: %w", existing.ID, p.Key, err)
		}
		return nil
	}

	jl := models.JobLog{
		OrderID:     p.OrderID,
		StepID:      p.StepID,
		MachineID:   p.MachineID,
		ActualStart: start,
		ActualEnd:   &end,
		Status:      models.StatusScheduled,
		Remarks:     "created by scheduling pass",
	}
	if err := tx.Create(&jl).Error; err != nil {
		return fmt.Errorf("scheduler: create job log for %s: %w", p.Key, err)
	}
	return nil
}
