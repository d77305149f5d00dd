package scheduler

import (
	"fmt"
	"log"
	"time"

	"github.com/okton/shopfloor/internal/config"
	"gorm.io/gorm"
)

// Pass statuses returned to callers.
const (
	PassNoTasks    = "NO_TASKS"
	PassOptimal    = "OPTIMAL"
	PassFeasible   = "FEASIBLE"
	PassInfeasible = "INFEASIBLE"
	PassError      = "ERROR"
)

// PassResult summarizes one scheduling pass for the caller.
type PassResult struct {
	Status       string       `json:"status"`
	MakespanMins int          `json:"makespan_mins"`
	Placements   []Placement  `json:"placements"`
	Diagnostics  []Diagnostic `json:"diagnostics,omitempty"`
}

// Committed reports whether this pass replaced the persisted plan.
func (r *PassResult) Committed() bool {
	return r.Status == PassOptimal || r.Status == PassFeasible
}

// RunSchedulingPass performs one complete pass: snapshot persistent state at
// the anchor, compile the constraint model, solve within the configured
// budget, and commit the plan. Infeasible and unsolved outcomes leave the
// existing schedule untouched and are reported as statuses, not errors; only
// data-access and commit failures return an error.
func RunSchedulingPass(db *gorm.DB, cfg config.SchedulerConfig, anchor time.Time, horizonOverride int) (*PassResult, error) {
	build, err := Build(db, anchor)
	if err != nil {
		return nil, err
	}
	if build.Empty() {
		return &PassResult{Status: PassNoTasks}, nil
	}

	model, err := Compile(build, cfg, horizonOverride)
	if err != nil {
		return nil, err
	}
	if model.TaskCount() == 0 {
		// Everything the builder produced was skipped (no eligible machines).
		return &PassResult{Status: PassNoTasks, Diagnostics: model.Skipped}, nil
	}

	budget := cfg.SolverBudget(model.TaskCount())
	solution := Solve(model, budget)

	result := &PassResult{
		MakespanMins: solution.MakespanMins,
		Placements:   solution.Placements,
		Diagnostics:  model.Skipped,
	}

	switch solution.Outcome {
	case OutcomeOptimal:
		result.Status = PassOptimal
	case OutcomeFeasible:
		result.Status = PassFeasible
	case OutcomeInfeasible:
		result.Status = PassInfeasible
		log.Printf("scheduler: model infeasible, existing schedule remains in effect")
		return result, nil
	default:
		result.Status = PassError
		log.Printf("scheduler: solve ended without a solution, existing schedule remains in effect")
		return result, nil
	}

	if err := Commit(db, build.Anchor, solution.Placements); err != nil {
		return nil, fmt.Errorf("scheduler: commit: %w", err)
	}
	log.Printf("scheduler: pass %s, makespan %d min, %d placements committed",
		result.Status, result.MakespanMins, len(result.Placements))
	return result, nil
}
