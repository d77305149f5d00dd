package models

// Order, job log and scheduled task status values. Stored lowercase.
const (
	StatusPending    = "pending"
	StatusScheduled  = "scheduled"
	StatusInProgress = "in_progress"
	StatusPaused     = "paused"
	StatusBlocked    = "blocked"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
	StatusFailed     = "failed"
)

// SchedulableOrderStatuses are the order statuses the scheduler pulls into
// its job pool. Completed, cancelled and failed orders are never rescheduled.
func SchedulableOrderStatuses() []string {
	return []string{StatusPending, StatusScheduled, StatusInProgress}
}
