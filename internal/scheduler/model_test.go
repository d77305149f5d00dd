package scheduler

import (
	"testing"
	"time"

	"github.com/okton/shopfloor/internal/config"
	"github.com/okton/shopfloor/internal/models"
)

func schedCfg() config.SchedulerConfig {
	return config.Default().Scheduler
}

func intPtr(v int) *int { return &v }

// referenceBuild hand-assembles the two-machine, two-step build from the
// shop seeded by seedShop, without touching the database.
func referenceBuild(t *testing.T) *BuildResult {
	t.Helper()
	build := &BuildResult{
		Anchor:      testAnchor,
		Tasks:       make(map[TaskKey]Task),
		OrderChains: make(map[string][]TaskKey),
		Machines: []models.Machine{
			{Code: "CNC-01", Type: "CNC", DefaultSetupMins: 15, Active: true},
			{Code: "EDM-01", Type: "EDM", DefaultSetupMins: 30, Active: true},
		},
	}
	build.Machines[0].ID = 1
	build.Machines[1].ID = 2

	k1 := TaskKey{OrderCode: "ORD-1", Step: 1}
	k2 := TaskKey{OrderCode: "ORD-1", Step: 2}
	t1, err := NewSchedulableTask(SchedulableTask{
		Key: k1, OrderID: 1, StepID: 1, MachineType: "CNC",
		OperationMins: 50, DeadlineOffset: intPtr(2880),
	})
	if err != nil {
		t.Fatal(err)
	}
	t2, err := NewSchedulableTask(SchedulableTask{
		Key: k2, OrderID: 1, StepID: 2, MachineType: "EDM",
		OperationMins: 150, DeadlineOffset: intPtr(2880),
	})
	if err != nil {
		t.Fatal(err)
	}
	build.Tasks[k1] = t1
	build.Tasks[k2] = t2
	build.OrderChains["ORD-1"] = []TaskKey{k1, k2}
	return build
}

func TestCompile_HorizonAndCandidates(t *testing.T) {
	build := referenceBuild(t)

	model, err := Compile(build, schedCfg(), 0)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	// Longest occupations: 50+15 on CNC, 150+30 on EDM, plus the buffer.
	want := 65 + 180 + 2880
	if model.HorizonMins != want {
		t.Errorf("horizon = %d, want %d", model.HorizonMins, want)
	}
	if model.TaskCount() != 2 {
		t.Fatalf("tasks = %d, want 2", model.TaskCount())
	}
	if model.LatenessWeight != 10 {
		t.Errorf("lateness weight = %d, want 10", model.LatenessWeight)
	}

	mt := model.Tasks[0]
	if len(mt.Candidates) != 1 || mt.Candidates[0].TotalMins != 65 {
		t.Errorf("step 1 candidates = %+v, want one of 65 min", mt.Candidates)
	}
}

func TestCompile_HorizonOverride(t *testing.T) {
	build := referenceBuild(t)
	model, err := Compile(build, schedCfg(), 120)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if model.HorizonMins != 120 {
		t.Errorf("horizon = %d, want 120", model.HorizonMins)
	}
}

func TestCompile_CandidateOrderDeterministic(t *testing.T) {
	build := referenceBuild(t)
	// A second CNC with a shorter setup should sort first.
	fast := models.Machine{Code: "CNC-02", Type: "CNC", DefaultSetupMins: 5, Active: true}
	fast.ID = 3
	build.Machines = append(build.Machines, fast)

	model, err := Compile(build, schedCfg(), 0)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	cands := model.Tasks[0].Candidates
	if len(cands) != 2 {
		t.Fatalf("candidates = %d, want 2", len(cands))
	}
	if cands[0].MachineID != 3 || cands[0].TotalMins != 55 {
		t.Errorf("first candidate = %+v, want machine 3 at 55 min", cands[0])
	}
	if cands[1].MachineID != 1 || cands[1].TotalMins != 65 {
		t.Errorf("second candidate = %+v, want machine 1 at 65 min", cands[1])
	}
}

func TestCompile_SkipsTasksWithoutEligibleMachine(t *testing.T) {
	build := referenceBuild(t)
	build.Machines = build.Machines[:1] // drop the EDM

	model, err := Compile(build, schedCfg(), 0)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if model.TaskCount() != 1 {
		t.Fatalf("tasks = %d, want 1", model.TaskCount())
	}
	if len(model.Skipped) != 1 {
		t.Fatalf("skipped = %d, want 1", len(model.Skipped))
	}
	if model.Skipped[0].Key.Step != 2 {
		t.Errorf("skipped key = %v, want step 2", model.Skipped[0].Key)
	}
	if got := model.Chains["ORD-1"]; len(got) != 1 {
		t.Errorf("chain = %v, want only the materialized step", got)
	}
}

func TestCompile_DeadlineOnlyOnLastStep(t *testing.T) {
	build := referenceBuild(t)
	model, err := Compile(build, schedCfg(), 0)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if model.Tasks[0].DeadlineOffset != nil {
		t.Error("step 1 should carry no deadline")
	}
	if model.Tasks[1].DeadlineOffset == nil || *model.Tasks[1].DeadlineOffset != 2880 {
		t.Errorf("step 2 deadline = %v, want 2880", model.Tasks[1].DeadlineOffset)
	}
}

func TestCompile_PastDueDeadlineDropped(t *testing.T) {
	build := referenceBuild(t)
	for key, task := range build.Tasks {
		task.Schedulable.DeadlineOffset = intPtr(-60)
		build.Tasks[key] = task
	}
	model, err := Compile(build, schedCfg(), 0)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	for _, mt := range model.Tasks {
		if mt.DeadlineOffset != nil {
			t.Errorf("task %v: past-due deadline should be dropped", mt.Key)
		}
	}
}

func TestCompile_DowntimeBlackouts(t *testing.T) {
	build := referenceBuild(t)
	build.Downtime = []models.DowntimeEvent{{
		MachineID: 1,
		StartTime: testAnchor.Add(2 * time.Hour),
		EndTime:   testAnchor.Add(3 * time.Hour),
	}}

	model, err := Compile(build, schedCfg(), 0)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	got := model.Blackouts[1]
	if len(got) != 1 {
		t.Fatalf("blackouts = %v, want 1", got)
	}
	if got[0].StartMins != 120 || got[0].EndMins != 180 {
		t.Errorf("blackout = %+v, want [120,180)", got[0])
	}
	if len(model.Blackouts[2]) != 0 {
		t.Errorf("machine 2 should have no blackouts, got %v", model.Blackouts[2])
	}
}

func TestCompile_NonWorkingDayBlackouts(t *testing.T) {
	build := referenceBuild(t)
	cfg := schedCfg()
	cfg.NonWorkingDays = []string{"sunday"}

	// Anchor is Monday 08:00 UTC; the first Sunday starts at day offset 6,
	// minus the 8-hour anchor offset. A wide horizon ensures the blackout
	// generator reaches past the first weekend.
	model, err := Compile(build, cfg, 14*minutesPerDay)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	wantStart := 6*minutesPerDay - 8*60
	for _, id := range []uint{1, 2} {
		bos := model.Blackouts[id]
		if len(bos) == 0 {
			t.Fatalf("machine %d: no non-working-day blackouts", id)
		}
		first := bos[0]
		if first.StartMins != wantStart || first.EndMins != wantStart+minutesPerDay {
			t.Errorf("machine %d: first blackout = %+v, want [%d,%d)", id, first, wantStart, wantStart+minutesPerDay)
		}
	}
}

func TestCompile_FixedTaskMaterialized(t *testing.T) {
	build := referenceBuild(t)
	k1 := TaskKey{OrderCode: "ORD-1", Step: 1}
	fixed, err := NewFixedTask(FixedTask{
		Key: k1, OrderID: 1, StepID: 1, MachineID: 1, MachineType: "CNC",
		StartOffsetMins: 0, DurationMins: 65,
	})
	if err != nil {
		t.Fatal(err)
	}
	build.Tasks[k1] = fixed

	model, err := Compile(build, schedCfg(), 0)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	mt := model.Tasks[0]
	if !mt.Fixed || mt.MachineID != 1 || mt.DurationMins != 65 {
		t.Errorf("fixed model task = %+v", mt)
	}
}
