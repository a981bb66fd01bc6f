package store

import (
	"testing"
	"time"
)

// Scenario 5 from spec.md §8: create -> queued; start -> running, started_at
// set; setProgress(45, "halfway") -> progress=45, running; complete("done",
// {"files":42}) -> success, progress=100, result_data preserved.
func TestOperationLifecycle(t *testing.T) {
	clock := NewFixedClock(time.Unix(1000, 0))
	ops := NewOperationRegistry(clock)

	op := ops.Create(OpPackApply, "alice", "queued for apply")
	if op.Status != OpQueued {
		t.Fatalf("Status = %s, want queued", op.Status)
	}

	clock.Advance(time.Second)
	started, err := ops.Start(op.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if started.Status != OpRunning {
		t.Fatalf("Status = %s, want running", started.Status)
	}
	if started.StartedAt.IsZero() {
		t.Fatalf("expected started_at to be set")
	}

	progressed, err := ops.SetProgress(op.ID, 45, "halfway")
	if err != nil {
		t.Fatalf("SetProgress: %v", err)
	}
	if progressed.Progress != 45 || progressed.Status != OpRunning {
		t.Fatalf("got progress=%d status=%s, want 45/running", progressed.Progress, progressed.Status)
	}

	done, err := ops.Complete(op.ID, "done", `{"files":42}`)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != OpSuccess || done.Progress != 100 {
		t.Fatalf("got status=%s progress=%d, want success/100", done.Status, done.Progress)
	}
	if done.ResultData != `{"files":42}` {
		t.Fatalf("ResultData = %q, not preserved", done.ResultData)
	}
}

// Progress clamping invariant (spec.md §8).
func TestSetProgress_Clamps(t *testing.T) {
	ops := NewOperationRegistry(NewFixedClock(time.Unix(0, 0)))
	op := ops.Create(OpRepoSync, "bob", "")
	ops.Start(op.ID)

	over, err := ops.SetProgress(op.ID, 250, "too high")
	if err != nil {
		t.Fatalf("SetProgress: %v", err)
	}
	if over.Progress != 100 {
		t.Fatalf("Progress = %d, want clamped to 100", over.Progress)
	}

	under, err := ops.SetProgress(op.ID, -30, "too low")
	if err != nil {
		t.Fatalf("SetProgress: %v", err)
	}
	if under.Progress != 0 {
		t.Fatalf("Progress = %d, want clamped to 0", under.Progress)
	}
}

// Operation monotonicity invariant: success/failed are terminal, no further
// transitions are accepted.
func TestOperationMonotonicity_TerminalIsFinal(t *testing.T) {
	ops := NewOperationRegistry(NewFixedClock(time.Unix(0, 0)))
	op := ops.Create(OpRepoAdd, "carol", "")
	ops.Start(op.ID)
	if _, err := ops.Complete(op.ID, "done", ""); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, err := ops.SetProgress(op.ID, 50, "too late"); err == nil {
		t.Fatalf("expected error setting progress on a terminal operation")
	}
	if _, err := ops.Fail(op.ID, "also too late", ""); err == nil {
		t.Fatalf("expected error failing an already-succeeded operation")
	}
}

func TestOperationRegistry_ListOrdersByUpdatedAtDescending(t *testing.T) {
	clock := NewFixedClock(time.Unix(1000, 0))
	ops := NewOperationRegistry(clock)

	first := ops.Create(OpRepoAdd, "a", "")
	clock.Advance(time.Minute)
	second := ops.Create(OpRepoSync, "b", "")
	clock.Advance(time.Minute)
	third := ops.Create(OpPackApply, "c", "")

	list := ops.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 operations, got %d", len(list))
	}
	if list[0].ID != third.ID || list[1].ID != second.ID || list[2].ID != first.ID {
		t.Fatalf("operations not ordered by updated_at descending: %v", list)
	}
}

func TestOperationRegistry_SweepRespectsOnlyCompleted(t *testing.T) {
	clock := NewFixedClock(time.Unix(1000, 0))
	ops := NewOperationRegistry(clock)

	stale := ops.Create(OpRepoAdd, "a", "")
	ops.Start(stale.ID)
	ops.Complete(stale.ID, "done", "")

	stillRunning := ops.Create(OpRepoSync, "b", "")
	ops.Start(stillRunning.ID)

	clock.Advance(48 * time.Hour)
	cutoff := clock.Now().Add(-24 * time.Hour)

	n := ops.Sweep(cutoff, true)
	if n != 1 {
		t.Fatalf("Sweep deleted %d rows, want 1 (only the completed one)", n)
	}
	if ops.Get(stillRunning.ID) == nil {
		t.Fatalf("still-running operation should survive sweep with onlyCompleted=true")
	}
	if ops.Get(stale.ID) != nil {
		t.Fatalf("completed operation should have been swept")
	}
}
