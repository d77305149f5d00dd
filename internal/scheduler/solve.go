package scheduler

import (
	"log"
	"math"
	"sort"
	"time"
)

// Solve outcomes. "optimal" means the assignment search was exhausted: the
// plan is the best reachable under the search scheme below, which branches
// over machine choice only and timetables each task at the earliest gap in a
// fixed task order. Plans that would need reordering tasks on a contended
// machine are outside that scheme.
const (
	OutcomeOptimal    = "optimal"    // search space exhausted, best plan under the scheme
	OutcomeFeasible   = "feasible"   // budget ran out with an incumbent in hand
	OutcomeInfeasible = "infeasible" // proven: no assignment fits the model
	OutcomeUnknown    = "unknown"    // budget ran out before any solution
)

// Placement is one materialized task in the solved plan: a task bound to a
// machine with concrete minute offsets from the anchor.
type Placement struct {
	Key          TaskKey
	OrderID      uint
	StepID       uint
	MachineID    uint
	StartMins    int
	EndMins      int
	DurationMins int
	Fixed        bool
}

// Solution is the solver's verdict on one compiled model.
type Solution struct {
	Outcome      string
	MakespanMins int
	Placements   []Placement
}

// Solved reports whether the solution carries a usable plan.
func (s Solution) Solved() bool {
	return s.Outcome == OutcomeOptimal || s.Outcome == OutcomeFeasible
}

// choice records the solver's decision for one model task.
type choice struct {
	machineID uint
	start     int
	end       int
}

// searcher is the branch-and-bound state for one solve. Branching is over
// machine assignment only; given an assignment, each task is timetabled at
// the earliest gap on its machine that respects precedence, blackouts and
// the horizon, visiting tasks in the model's fixed order. The incumbent
// objective prunes dominated branches. Exhausting this search proves
// optimality over machine assignments, not over task sequencing.
type searcher struct {
	model     *Model
	timelines map[uint]*timeline
	ready     map[string]int // per order: end of the last placed chain step
	lastKey   map[string]TaskKey
	chosen    []choice
	maxEnd    int // running makespan over placed and fixed intervals
	lateSum   int // lateness minutes accrued by completed chains

	best    []choice
	bestObj int

	deadline time.Time
	nodes    int
	timedOut bool
}

// Solve searches the compiled model within the given wall-clock budget and
// returns the best plan found, classified by how the search ended. Infeasible
// and unknown outcomes carry no placements; the caller must leave the
// previously committed schedule untouched in that case.
func Solve(model *Model, budget time.Duration) Solution {
	if model.TaskCount() == 0 {
		return Solution{Outcome: OutcomeOptimal}
	}

	s := &searcher{
		model:     model,
		timelines: make(map[uint]*timeline),
		ready:     make(map[string]int),
		lastKey:   make(map[string]TaskKey),
		chosen:    make([]choice, len(model.Tasks)),
		bestObj:   math.MaxInt,
		deadline:  time.Now().Add(budget),
	}
	for code, chain := range model.Chains {
		s.lastKey[code] = chain[len(chain)-1]
	}

	if !s.seedFixed() {
		// In-progress work overlaps a blackout or other fixed work on the
		// same machine; the model contradicts itself.
		return Solution{Outcome: OutcomeInfeasible}
	}

	s.search(0)

	switch {
	case s.best == nil && s.timedOut:
		return Solution{Outcome: OutcomeUnknown}
	case s.best == nil:
		return Solution{Outcome: OutcomeInfeasible}
	}

	placements := s.extract()
	makespan := 0
	for _, p := range placements {
		if p.EndMins > makespan {
			makespan = p.EndMins
		}
	}

	outcome := OutcomeOptimal
	if s.timedOut {
		outcome = OutcomeFeasible
	}
	log.Printf("scheduler: solve %s after %d nodes, makespan %d min", outcome, s.nodes, makespan)
	return Solution{Outcome: outcome, MakespanMins: makespan, Placements: placements}
}

// timelineFor lazily creates the timeline for a machine, seeded with its
// blackouts.
func (s *searcher) timelineFor(machineID uint) *timeline {
	tl, ok := s.timelines[machineID]
	if !ok {
		tl = newTimeline(s.model.Blackouts[machineID])
		s.timelines[machineID] = tl
	}
	return tl
}

// seedFixed pre-places every fixed interval on its machine's timeline.
// Returns false on overlap, which makes the whole model infeasible.
func (s *searcher) seedFixed() bool {
	for _, mt := range s.model.Tasks {
		if !mt.Fixed {
			continue
		}
		tl := s.timelineFor(mt.MachineID)
		end := mt.StartMins + mt.DurationMins
		if tl.conflicts(mt.StartMins, end) {
			log.Printf("scheduler: fixed task %s conflicts with existing occupation of machine %d", mt.Key, mt.MachineID)
			return false
		}
		tl.place(mt.StartMins, end)
		if end > s.maxEnd {
			s.maxEnd = end
		}
	}
	return true
}

// search walks model task depth by depth. Fixed tasks are forced moves that
// only need a precedence check; schedulable tasks branch over candidates.
func (s *searcher) search(depth int) {
	s.nodes++
	if s.nodes%64 == 0 && time.Now().After(s.deadline) {
		s.timedOut = true
	}
	if s.timedOut {
		return
	}

	if depth == len(s.model.Tasks) {
		obj := s.maxEnd + s.model.LatenessWeight*s.lateSum
		if obj < s.bestObj {
			s.bestObj = obj
			s.best = append([]choice(nil), s.chosen...)
		}
		return
	}

	// Bound: makespan and accrued lateness only grow as depth increases.
	if s.maxEnd+s.model.LatenessWeight*s.lateSum >= s.bestObj {
		return
	}

	mt := &s.model.Tasks[depth]
	code := mt.Key.OrderCode

	if mt.Fixed {
		end := mt.StartMins + mt.DurationMins
		if mt.StartMins < s.ready[code] {
			return // real-world start contradicts an earlier step's finish
		}
		prevReady := s.ready[code]
		s.ready[code] = end
		s.chosen[depth] = choice{machineID: mt.MachineID, start: mt.StartMins, end: end}
		s.search(depth + 1)
		s.ready[code] = prevReady
		return
	}

	earliest := mt.EarliestStart
	if r := s.ready[code]; r > earliest {
		earliest = r
	}

	for _, cand := range mt.Candidates {
		tl := s.timelineFor(cand.MachineID)
		start := tl.earliestGap(earliest, cand.TotalMins, s.model.HorizonMins)
		if start < 0 {
			continue
		}
		end := start + cand.TotalMins

		idx := tl.place(start, end)
		prevReady := s.ready[code]
		prevMax := s.maxEnd
		prevLate := s.lateSum

		s.ready[code] = end
		if end > s.maxEnd {
			s.maxEnd = end
		}
		if s.lastKey[code] == mt.Key && mt.DeadlineOffset != nil && end > *mt.DeadlineOffset {
			s.lateSum += end - *mt.DeadlineOffset
		}
		s.chosen[depth] = choice{machineID: cand.MachineID, start: start, end: end}

		s.search(depth + 1)

		tl.remove(idx)
		s.ready[code] = prevReady
		s.maxEnd = prevMax
		s.lateSum = prevLate

		if s.timedOut {
			return
		}
	}
}

// extract turns the best assignment into the placement list, sorted by start
// time for deterministic downstream consumption.
func (s *searcher) extract() []Placement {
	placements := make([]Placement, 0, len(s.model.Tasks))
	for i, mt := range s.model.Tasks {
		c := s.best[i]
		placements = append(placements, Placement{
			Key:          mt.Key,
			OrderID:      mt.OrderID,
			StepID:       mt.StepID,
			MachineID:    c.machineID,
			StartMins:    c.start,
			EndMins:      c.end,
			DurationMins: c.end - c.start,
			Fixed:        mt.Fixed,
		})
	}
	sort.Slice(placements, func(i, j int) bool {
		a, b := placements[i], placements[j]
		if a.StartMins != b.StartMins {
			return a.StartMins < b.StartMins
		}
		if a.MachineID != b.MachineID {
			return a.MachineID < b.MachineID
		}
		if a.Key.OrderCode != b.Key.OrderCode {
			return a.Key.OrderCode < b.Key.OrderCode
		}
		return a.Key.Step < b.Key.Step
	})
	return placements
}
