package scheduler

import "sort"

// interval is a half-open busy window [start, end) on one machine.
type interval struct {
	start int
	end   int
}

// timeline tracks the busy intervals of one machine, kept sorted by start and
// mutually non-overlapping. Blackouts and fixed work are seeded up front;
// solver placements are added and removed as the search branches.
type timeline struct {
	busy []interval
}

func newTimeline(blackouts []Blackout) *timeline {
	t := &timeline{}
	for _, b := range blackouts {
		t.busy = append(t.busy, interval{start: b.StartMins, end: b.EndMins})
	}
	sort.Slice(t.busy, func(i, j int) bool { return t.busy[i].start < t.busy[j].start })
	return t
}

// conflicts reports whether [start, end) overlaps any busy interval.
func (t *timeline) conflicts(start, end int) bool {
	for _, iv := range t.busy {
		if iv.start >= end {
			break
		}
		if iv.end > start {
			return true
		}
	}
	return false
}

// place inserts [start, end) keeping the list sorted, and returns the index
// for a later remove. The caller guarantees no conflict.
func (t *timeline) place(start, end int) int {
	i := sort.Search(len(t.busy), func(i int) bool { return t.busy[i].start >= start })
	t.busy = append(t.busy, interval{})
	copy(t.busy[i+1:], t.busy[i:])
	t.busy[i] = interval{start: start, end: end}
	return i
}

// remove undoes a place at the given index.
func (t *timeline) remove(i int) {
	t.busy = append(t.busy[:i], t.busy[i+1:]...)
}

// earliestGap returns the smallest start >= earliest such that [start,
// start+dur) fits between busy intervals and ends by horizon, or -1 when no
// such gap exists.
func (t *timeline) earliestGap(earliest, dur, horizon int) int {
	start := earliest
	for _, iv := range t.busy {
		if iv.end <= start {
			continue
		}
		if start+dur <= iv.start {
			break
		}
		start = iv.end
	}
	if start+dur > horizon {
		return -1
	}
	return start
}
