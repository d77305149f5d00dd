// Package scheduler implements the scheduling engine: task preparation,
// constraint model compilation, solving and the transactional commit of the
// resulting plan.
package scheduler

import "fmt"

// TaskKey identifies one step of one order within a scheduling pass.
type TaskKey struct {
	OrderCode string
	Step      int
}

func (k TaskKey) String() string {
	return fmt.Sprintf("%s#%d", k.OrderCode, k.Step)
}

// FixedTask is work already underway on a known machine. Its timing is
// real-world fact and not subject to optimization.
type FixedTask struct {
	Key             TaskKey
	OrderID         uint
	StepID          uint
	MachineID       uint
	MachineType     string
	StartOffsetMins int // minutes after the anchor, clamped at 0
	DurationMins    int // machine setup + base duration * quantity
}

// SchedulableTask is a pending route step awaiting machine and timing
// assignment. The machine type requirement comes verbatim from the step
// template; a concrete machine is chosen by the solver.
type SchedulableTask struct {
	Key               TaskKey
	OrderID           uint
	StepID            uint
	MachineType       string
	OperationMins     int  // base duration * quantity, at least 1
	EarliestStartMins int  // offset from the anchor, floored at 0
	DeadlineOffset    *int // minutes from anchor to due date, nil when no due date
}

// Task is a tagged union of the two task variants. Exactly one side is set.
type Task struct {
	Fixed       *FixedTask
	Schedulable *SchedulableTask
}

// NewFixedTask validates and wraps a fixed task.
func NewFixedTask(ft FixedTask) (Task, error) {
	if ft.MachineID == 0 {
		return Task{}, fmt.Errorf("scheduler: fixed task %s has no machine", ft.Key)
	}
	if ft.StartOffsetMins < 0 || ft.DurationMins <= 0 {
		return Task{}, fmt.Errorf("scheduler: fixed task %s has invalid timing", ft.Key)
	}
	return Task{Fixed: &ft}, nil
}

// NewSchedulableTask validates and wraps a schedulable task.
func NewSchedulableTask(st SchedulableTask) (Task, error) {
	if st.MachineType == "" {
		return Task{}, fmt.Errorf("scheduler: task %s has no machine type", st.Key)
	}
	if st.OperationMins <= 0 || st.EarliestStartMins < 0 {
		return Task{}, fmt.Errorf("scheduler: task %s has invalid timing", st.Key)
	}
	return Task{Schedulable: &st}, nil
}

// IsFixed reports whether the task is the fixed variant.
func (t Task) IsFixed() bool { return t.Fixed != nil }

// Key returns the task's identity regardless of variant.
func (t Task) Key() TaskKey {
	if t.Fixed != nil {
		return t.Fixed.Key
	}
	return t.Schedulable.Key
}

// Diagnostic records a per-task outcome that is worth surfacing but is not
// an error, e.g. a task skipped because no active machine matches its type.
type Diagnostic struct {
	Key    TaskKey
	Reason string
}
