package scheduler

import (
	"log"
	"sort"
	"time"

	"github.com/okton/shopfloor/internal/config"
	"github.com/okton/shopfloor/internal/models"
)

// minutesPerDay is the span of a whole-day blackout interval.
const minutesPerDay = 24 * 60

// Candidate is one eligible machine for a schedulable task, with the total
// interval length that choice would occupy (operation plus that machine's
// setup time).
type Candidate struct {
	MachineID uint
	TotalMins int
}

// ModelTask is one interval in the compiled model. Fixed tasks carry a pinned
// start, duration and machine; schedulable tasks carry an earliest start and
// one candidate per eligible machine, of which the solver selects exactly one.
type ModelTask struct {
	Key            TaskKey
	OrderID        uint
	StepID         uint
	Fixed          bool
	MachineID      uint // fixed only
	StartMins      int  // fixed only
	DurationMins   int  // fixed only
	EarliestStart  int  // schedulable only
	Candidates     []Candidate
	DeadlineOffset *int
}

// Blackout is a half-open [Start, End) window during which a machine accepts
// no work: downtime events and non-working days.
type Blackout struct {
	StartMins int
	EndMins   int
}

// Model is the compiled constraint model for one pass: every materialized
// interval, the precedence chains over them, per-machine blackouts, the
// horizon and the objective weight.
type Model struct {
	HorizonMins    int
	Tasks          []ModelTask          // chain order within each order, orders sorted by code
	Chains         map[string][]TaskKey // materialized keys only, step order
	Blackouts      map[uint][]Blackout
	LatenessWeight int
	Skipped        []Diagnostic
}

// TaskCount returns the number of materialized intervals.
func (m *Model) TaskCount() int { return len(m.Tasks) }

// Compile translates the task graph into a constraint model. Tasks whose
// machine type matches no active machine are skipped with a diagnostic, never
// an error; the rest become intervals subject to precedence, no-overlap and
// blackout constraints, under a makespan-plus-lateness objective.
func Compile(build *BuildResult, cfg config.SchedulerConfig, horizonOverride int) (*Model, error) {
	nonWorking, err := cfg.NonWorkingWeekdays()
	if err != nil {
		return nil, err
	}

	machinesByType := make(map[string][]models.Machine)
	machineIDs := make([]uint, 0, len(build.Machines))
	for _, m := range build.Machines {
		machinesByType[m.Type] = append(machinesByType[m.Type], m)
		machineIDs = append(machineIDs, m.ID)
	}

	model := &Model{
		Chains:         make(map[string][]TaskKey),
		Blackouts:      make(map[uint][]Blackout),
		LatenessWeight: cfg.LatenessWeight,
	}

	// Horizon: an upper bound on any feasible makespan. Sum every task's
	// longest possible occupation, then add the configured buffer.
	horizon := 0
	codes := make([]string, 0, len(build.OrderChains))
	for code := range build.OrderChains {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		for _, key := range build.OrderChains[code] {
			task := build.Tasks[key]
			if task.IsFixed() {
				horizon += task.Fixed.StartOffsetMins + task.Fixed.DurationMins
				continue
			}
			longest := task.Schedulable.OperationMins
			for _, m := range machinesByType[task.Schedulable.MachineType] {
				if task.Schedulable.OperationMins+m.DefaultSetupMins > longest {
					longest = task.Schedulable.OperationMins + m.DefaultSetupMins
				}
			}
			horizon += longest
		}
	}
	horizon += cfg.HorizonBufferMins
	if horizonOverride > 0 {
		horizon = horizonOverride
	}
	model.HorizonMins = horizon

	// Materialize intervals in deterministic chain order.
	for _, code := range codes {
		for _, key := range build.OrderChains[code] {
			task := build.Tasks[key]

			if task.IsFixed() {
				ft := task.Fixed
				model.Tasks = append(model.Tasks, ModelTask{
					Key:          ft.Key,
					OrderID:      ft.OrderID,
					StepID:       ft.StepID,
					Fixed:        true,
					MachineID:    ft.MachineID,
					StartMins:    ft.StartOffsetMins,
					DurationMins: ft.DurationMins,
				})
				model.Chains[code] = append(model.Chains[code], key)
				continue
			}

			st := task.Schedulable
			eligible := machinesByType[st.MachineType]
			if len(eligible) == 0 {
				log.Printf("scheduler: task %s skipped: no active machine of type %q", key, st.MachineType)
				model.Skipped = append(model.Skipped, Diagnostic{
					Key:    key,
					Reason: "no active machine of type " + st.MachineType,
				})
				continue
			}

			candidates := make([]Candidate, 0, len(eligible))
			for _, m := range eligible {
				candidates = append(candidates, Candidate{
					MachineID: m.ID,
					TotalMins: st.OperationMins + m.DefaultSetupMins,
				})
			}
			// Deterministic branching order: shortest occupation first.
			sort.Slice(candidates, func(i, j int) bool {
				if candidates[i].TotalMins != candidates[j].TotalMins {
					return candidates[i].TotalMins < candidates[j].TotalMins
				}
				return candidates[i].MachineID < candidates[j].MachineID
			})

			model.Tasks = append(model.Tasks, ModelTask{
				Key:            key,
				OrderID:        st.OrderID,
				StepID:         st.StepID,
				EarliestStart:  st.EarliestStartMins,
				Candidates:     candidates,
				DeadlineOffset: st.DeadlineOffset,
			})
			model.Chains[code] = append(model.Chains[code], key)
		}
	}

	// Soft deadline targets: only each order's last materialized step, and
	// only when the due date is still ahead. Past-due orders are late whatever
	// the solver does; a constant term would only drown the objective.
	fixDeadlines(model)

	// Downtime blackouts on the affected machine.
	activeMachine := make(map[uint]bool, len(machineIDs))
	for _, id := range machineIDs {
		activeMachine[id] = true
	}
	for _, ev := range build.Downtime {
		start := minutesBetween(build.Anchor, ev.StartTime.UTC())
		if start < 0 {
			start = 0
		}
		end := minutesBetween(build.Anchor, ev.EndTime.UTC())
		if end <= start {
			continue
		}
		model.Blackouts[ev.MachineID] = append(model.Blackouts[ev.MachineID], Blackout{StartMins: start, EndMins: end})
	}

	// Whole-day blackouts on every active machine for configured non-working
	// weekdays, one 1440-minute block per matching calendar day in the horizon.
	if len(nonWorking) > 0 {
		horizonDays := horizon/minutesPerDay + 2
		dayStart := time.Date(build.Anchor.Year(), build.Anchor.Month(), build.Anchor.Day(), 0, 0, 0, 0, time.UTC)
		for day := 0; day < horizonDays; day++ {
			current := dayStart.AddDate(0, 0, day)
			if !nonWorking[current.Weekday()] {
				continue
			}
			start := minutesBetween(build.Anchor, current)
			if start < 0 {
				start = 0
			}
			end := minutesBetween(build.Anchor, current.AddDate(0, 0, 1))
			if end <= start {
				continue
			}
			for _, id := range machineIDs {
				model.Blackouts[id] = append(model.Blackouts[id], Blackout{StartMins: start, EndMins: end})
			}
		}
	}

	for id := range model.Blackouts {
		sort.Slice(model.Blackouts[id], func(i, j int) bool {
			return model.Blackouts[id][i].StartMins < model.Blackouts[id][j].StartMins
		})
	}

	return model, nil
}

// fixDeadlines keeps the deadline offset only on each order's last
// materialized schedulable task. Earlier steps finishing late is not in
// itself penalized; only the order's completion time counts.
func fixDeadlines(model *Model) {
	lastByOrder := make(map[string]TaskKey, len(model.Chains))
	for code, chain := range model.Chains {
		if len(chain) > 0 {
			lastByOrder[code] = chain[len(chain)-1]
		}
	}
	for i := range model.Tasks {
		mt := &model.Tasks[i]
		if mt.Fixed {
			continue
		}
		if lastByOrder[mt.Key.OrderCode] != mt.Key {
			mt.DeadlineOffset = nil
			continue
		}
		if mt.DeadlineOffset != nil && *mt.DeadlineOffset <= 0 {
			mt.DeadlineOffset = nil
		}
	}
}
