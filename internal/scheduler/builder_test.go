package scheduler

import (
	"testing"
	"time"

	"github.com/okton/shopfloor/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&models.Machine{}, &models.ProcessStep{}, &models.ProductionOrder{},
		&models.JobLog{}, &models.DowntimeEvent{}, &models.ScheduledTask{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

var testAnchor = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC) // a Monday

// seedShop creates the two-machine shop from the reference scenario: CNC-01
// (setup 15) and EDM-01 (setup 30), a two-step route (CNC 10 min/unit, EDM
// 30 min/unit) and one pending order of quantity 5 due in two days.
func seedShop(t *testing.T, db *gorm.DB) (models.Machine, models.Machine, models.ProcessStep, models.ProcessStep, models.ProductionOrder) {
	t.Helper()
	cnc := models.Machine{Code: "CNC-01", Type: "CNC", DefaultSetupMins: 15, Active: true}
	edm := models.Machine{Code: "EDM-01", Type: "EDM", DefaultSetupMins: 30, Active: true}
	if err := db.Create(&cnc).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&edm).Error; err != nil {
		t.Fatal(err)
	}

	step1 := models.ProcessStep{RouteID: "die-route", StepNumber: 1, Name: "Rough mill", MachineType: "CNC", BaseDurationPerUnitMins: 10}
	step2 := models.ProcessStep{RouteID: "die-route", StepNumber: 2, Name: "Wire cut", MachineType: "EDM", BaseDurationPerUnitMins: 30}
	if err := db.Create(&step1).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&step2).Error; err != nil {
		t.Fatal(err)
	}

	due := testAnchor.Add(48 * time.Hour)
	order := models.ProductionOrder{
		Code: "ORD-1", RouteID: "die-route", Quantity: 5,
		ArrivalTime: testAnchor, DueDate: &due, Status: models.StatusPending,
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatal(err)
	}
	return cnc, edm, step1, step2, order
}

func TestBuild_SchedulableTasks(t *testing.T) {
	db := testDB(t)
	_, _, _, _, order := seedShop(t, db)

	build, err := Build(db, testAnchor)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(build.Tasks) != 2 {
		t.Fatalf("tasks = %d, want 2", len(build.Tasks))
	}

	k1 := TaskKey{OrderCode: order.Code, Step: 1}
	k2 := TaskKey{OrderCode: order.Code, Step: 2}

	t1 := build.Tasks[k1]
	if t1.IsFixed() {
		t.Fatal("step 1 should be schedulable")
	}
	if t1.Schedulable.OperationMins != 50 {
		t.Errorf("step 1 operation = %d, want 50", t1.Schedulable.OperationMins)
	}
	if t1.Schedulable.EarliestStartMins != 0 {
		t.Errorf("step 1 earliest = %d, want 0", t1.Schedulable.EarliestStartMins)
	}
	if t1.Schedulable.DeadlineOffset == nil || *t1.Schedulable.DeadlineOffset != 2880 {
		t.Errorf("step 1 deadline = %v, want 2880", t1.Schedulable.DeadlineOffset)
	}

	t2 := build.Tasks[k2]
	if t2.Schedulable.OperationMins != 150 {
		t.Errorf("step 2 operation = %d, want 150", t2.Schedulable.OperationMins)
	}

	chain := build.OrderChains[order.Code]
	if len(chain) != 2 || chain[0] != k1 || chain[1] != k2 {
		t.Errorf("chain = %v", chain)
	}
	if len(build.Machines) != 2 {
		t.Errorf("machines = %d, want 2", len(build.Machines))
	}
}

func TestBuild_NoActiveMachines(t *testing.T) {
	db := testDB(t)
	db.Create(&models.Machine{Code: "CNC-01", Type: "CNC", Active: false})
	db.Create(&models.ProcessStep{RouteID: "r", StepNumber: 1, Name: "a", MachineType: "CNC", BaseDurationPerUnitMins: 1})

	build, err := Build(db, testAnchor)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !build.Empty() {
		t.Errorf("expected empty build, got %d tasks", len(build.Tasks))
	}
}

func TestBuild_FixedTaskFromInProgressLog(t *testing.T) {
	db := testDB(t)
	cnc, _, step1, _, order := seedShop(t, db)
	order.Status = models.StatusInProgress
	db.Save(&order)

	// Work on step 1 started 30 minutes before the anchor.
	started := testAnchor.Add(-30 * time.Minute)
	db.Create(&models.JobLog{
		OrderID: order.ID, StepID: step1.ID, MachineID: cnc.ID,
		ActualStart: started, Status: models.StatusInProgress,
	})

	build, err := Build(db, testAnchor)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	k1 := TaskKey{OrderCode: order.Code, Step: 1}
	t1 := build.Tasks[k1]
	if !t1.IsFixed() {
		t.Fatal("step 1 should be fixed")
	}
	if t1.Fixed.MachineID != cnc.ID {
		t.Errorf("machine = %d, want %d", t1.Fixed.MachineID, cnc.ID)
	}
	if t1.Fixed.StartOffsetMins != 0 {
		t.Errorf("start offset = %d, want 0 (clamped)", t1.Fixed.StartOffsetMins)
	}
	if t1.Fixed.DurationMins != 65 { // 15 setup + 10*5
		t.Errorf("duration = %d, want 65", t1.Fixed.DurationMins)
	}

	// Step 2 remains schedulable, bounded by the fixed task's finish:
	// started -30 min + 65 min duration = 35 min after the anchor.
	t2 := build.Tasks[TaskKey{OrderCode: order.Code, Step: 2}]
	if t2.IsFixed() {
		t.Fatal("step 2 should be schedulable")
	}
	if t2.Schedulable.EarliestStartMins != 35 {
		t.Errorf("step 2 earliest = %d, want 35", t2.Schedulable.EarliestStartMins)
	}
}

func TestBuild_PausedOrderWorkStaysPinned(t *testing.T) {
	db := testDB(t)
	cnc, _, step1, _, _ := seedShop(t, db)

	// An order taken out of the pool while its first step is physically
	// running on the only CNC.
	paused := models.ProductionOrder{
		Code: "ORD-2", RouteID: "die-route", Quantity: 5,
		ArrivalTime: testAnchor, Status: models.StatusPaused,
	}
	if err := db.Create(&paused).Error; err != nil {
		t.Fatal(err)
	}
	db.Create(&models.JobLog{
		OrderID: paused.ID, StepID: step1.ID, MachineID: cnc.ID,
		ActualStart: testAnchor.Add(-10 * time.Minute), Status: models.StatusInProgress,
	})

	build, err := Build(db, testAnchor)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// The paused order contributes its running step as a fixed task but no
	// schedulable steps; ORD-1 still contributes its full chain.
	if len(build.Tasks) != 3 {
		t.Fatalf("tasks = %d, want 3", len(build.Tasks))
	}
	fixed := build.Tasks[TaskKey{OrderCode: paused.Code, Step: 1}]
	if !fixed.IsFixed() {
		t.Fatal("running step of a paused order should be fixed")
	}
	if fixed.Fixed.MachineID != cnc.ID {
		t.Errorf("machine = %d, want %d", fixed.Fixed.MachineID, cnc.ID)
	}
	if fixed.Fixed.DurationMins != 65 {
		t.Errorf("duration = %d, want 65", fixed.Fixed.DurationMins)
	}
	if chain := build.OrderChains[paused.Code]; len(chain) != 1 {
		t.Errorf("chain = %v, want only the fixed step", chain)
	}
}

func TestBuild_CompletedStepsNeverRescheduled(t *testing.T) {
	db := testDB(t)
	cnc, _, step1, _, order := seedShop(t, db)

	end := testAnchor.Add(-time.Hour)
	start := end.Add(-time.Hour)
	db.Create(&models.JobLog{
		OrderID: order.ID, StepID: step1.ID, MachineID: cnc.ID,
		ActualStart: start, ActualEnd: &end, Status: models.StatusCompleted,
	})

	build, err := Build(db, testAnchor)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(build.Tasks) != 1 {
		t.Fatalf("tasks = %d, want 1 (only step 2)", len(build.Tasks))
	}
	if _, ok := build.Tasks[TaskKey{OrderCode: order.Code, Step: 2}]; !ok {
		t.Error("step 2 missing from build")
	}
}

func TestBuild_MissingStepReferenceIsFatal(t *testing.T) {
	db := testDB(t)
	cnc, _, _, _, order := seedShop(t, db)
	order.Status = models.StatusInProgress
	db.Save(&order)

	db.Create(&models.JobLog{
		OrderID: order.ID, StepID: 9999, MachineID: cnc.ID,
		ActualStart: testAnchor.Add(-time.Minute), Status: models.StatusInProgress,
	})

	if _, err := Build(db, testAnchor); err == nil {
		t.Fatal("expected data-integrity error for missing step reference")
	}
}

func TestBuild_DowntimeFilteredAndClamped(t *testing.T) {
	db := testDB(t)
	cnc, _, _, _, _ := seedShop(t, db)

	db.Create(&models.DowntimeEvent{MachineID: cnc.ID, StartTime: testAnchor.Add(-3 * time.Hour), EndTime: testAnchor.Add(-2 * time.Hour), Reason: "past"})
	db.Create(&models.DowntimeEvent{MachineID: cnc.ID, StartTime: testAnchor.Add(-time.Hour), EndTime: testAnchor.Add(time.Hour), Reason: "running"})

	build, err := Build(db, testAnchor)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(build.Downtime) != 1 {
		t.Fatalf("downtime = %d, want 1", len(build.Downtime))
	}
	if build.Downtime[0].StartTime.Before(testAnchor) {
		t.Errorf("downtime start %v not clamped", build.Downtime[0].StartTime)
	}
}

func TestTaskConstructors_RejectInvalid(t *testing.T) {
	if _, err := NewFixedTask(FixedTask{Key: TaskKey{"O", 1}, DurationMins: 10}); err == nil {
		t.Error("fixed task without machine should fail")
	}
	if _, err := NewSchedulableTask(SchedulableTask{Key: TaskKey{"O", 1}, MachineType: "CNC", OperationMins: 0}); err == nil {
		t.Error("schedulable task without duration should fail")
	}
	if _, err := NewSchedulableTask(SchedulableTask{Key: TaskKey{"O", 1}, OperationMins: 5}); err == nil {
		t.Error("schedulable task without machine type should fail")
	}
}
