package progress

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"converthub/models"
)

func newTestTracker(t *testing.T) *Tracker {
	return NewTracker(zaptest.NewLogger(t), time.Hour, 5*time.Minute)
}

func TestTracker_CreateTask(t *testing.T) {
	tracker := newTestTracker(t)

	task, err := tracker.CreateTask("t1", "image_convert", "photo.png", 100, map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if task.Status != models.TaskQueued {
		t.Errorf("Expected status queued, got %s", task.Status)
	}
	if task.Progress != 0 {
		t.Errorf("Expected progress 0, got %d", task.Progress)
	}
	if task.StartedAt != nil {
		t.Error("Expected StartedAt to be unset")
	}

	if _, err := tracker.CreateTask("t1", "image_convert", "photo.png", 100, nil); !errors.Is(err, ErrTaskExists) {
		t.Errorf("Expected ErrTaskExists for duplicate id, got %v", err)
	}
}

func TestTracker_UpdateProgress(t *testing.T) {
	tracker := newTestTracker(t)
	tracker.CreateTask("t1", "image_convert", "photo.png", 100, nil)

	if !tracker.UpdateProgress("t1", 25, "Converting", nil) {
		t.Fatal("UpdateProgress returned false for known task")
	}

	task := tracker.GetTaskStatus("t1")
	if task.Status != models.TaskProcessing {
		t.Errorf("Expected status processing after first update, got %s", task.Status)
	}
	if task.StartedAt == nil {
		t.Error("Expected StartedAt to be set on first update")
	}
	if task.Progress != 25 {
		t.Errorf("Expected progress 25, got %d", task.Progress)
	}
	if task.Message != "Converting" {
		t.Errorf("Expected message to be updated, got %q", task.Message)
	}
}

func TestTracker_UpdateProgress_ClampsSteps(t *testing.T) {
	tracker := newTestTracker(t)
	tracker.CreateTask("t1", "image_convert", "photo.png", 100, nil)

	if !tracker.UpdateProgress("t1", 150, "", nil) {
		t.Fatal("UpdateProgress returned false")
	}

	task := tracker.GetTaskStatus("t1")
	if task.CurrentStep != 100 {
		t.Errorf("Expected current step clamped to 100, got %d", task.CurrentStep)
	}
	if task.Progress != 100 {
		t.Errorf("Expected progress clamped to 100, got %d", task.Progress)
	}

	tracker.UpdateProgress("t1", -5, "", nil)
	task = tracker.GetTaskStatus("t1")
	if task.CurrentStep != 0 {
		t.Errorf("Expected negative step clamped to 0, got %d", task.CurrentStep)
	}
}

func TestTracker_UpdateProgress_UnknownTask(t *testing.T) {
	tracker := newTestTracker(t)

	if tracker.UpdateProgress("missing", 10, "", nil) {
		t.Error("Expected false for unknown task")
	}
	if tracker.GetTaskStatus("missing") != nil {
		t.Error("Expected no side effects for unknown task")
	}
}

func TestTracker_UpdateProgress_TerminalTask(t *testing.T) {
	tracker := newTestTracker(t)
	tracker.CreateTask("t1", "image_convert", "photo.png", 100, nil)
	tracker.CompleteTask("t1", "http://example.com/out.png", nil)

	if tracker.UpdateProgress("t1", 50, "", nil) {
		t.Error("Expected false for terminal task")
	}
	task := tracker.GetTaskStatus("t1")
	if task.Progress != 100 {
		t.Errorf("Expected progress to stay 100, got %d", task.Progress)
	}
}

func TestTracker_CompleteTask(t *testing.T) {
	tracker := newTestTracker(t)
	tracker.CreateTask("t1", "image_convert", "photo.png", 100, nil)

	if !tracker.CompleteTask("t1", "http://example.com/out.png", map[string]string{"output_format": "png"}) {
		t.Fatal("CompleteTask returned false")
	}

	task := tracker.GetTaskStatus("t1")
	if task.Status != models.TaskCompleted {
		t.Errorf("Expected status completed, got %s", task.Status)
	}
	if task.Progress != 100 {
		t.Errorf("Expected progress 100, got %d", task.Progress)
	}
	if task.CompletedAt == nil {
		t.Error("Expected CompletedAt to be set")
	}
	if task.ResultURL != "http://example.com/out.png" {
		t.Errorf("Unexpected result url %q", task.ResultURL)
	}

	if tracker.CompleteTask("missing", "", nil) {
		t.Error("Expected false for unknown task")
	}
}

func TestTracker_FailTask(t *testing.T) {
	tracker := newTestTracker(t)
	tracker.CreateTask("t1", "image_convert", "photo.png", 100, nil)

	if !tracker.FailTask("t1", "decode error", nil) {
		t.Fatal("FailTask returned false")
	}

	task := tracker.GetTaskStatus("t1")
	if task.Status != models.TaskFailed {
		t.Errorf("Expected status failed, got %s", task.Status)
	}
	if task.ErrorMessage != "decode error" {
		t.Errorf("Expected error message recorded, got %q", task.ErrorMessage)
	}
	if task.CompletedAt == nil {
		t.Error("Expected CompletedAt to be set")
	}
}

func TestTracker_CancelTask(t *testing.T) {
	tracker := newTestTracker(t)
	tracker.CreateTask("t1", "image_convert", "photo.png", 100, nil)

	if !tracker.CancelTask("t1") {
		t.Fatal("CancelTask returned false for active task")
	}
	if status := tracker.GetTaskStatus("t1").Status; status != models.TaskCancelled {
		t.Errorf("Expected status cancelled, got %s", status)
	}
	if !tracker.Cancelled("t1") {
		t.Error("Expected Cancelled to report true")
	}
}

func TestTracker_CancelTask_AfterTerminal(t *testing.T) {
	tracker := newTestTracker(t)

	tracker.CreateTask("done", "image_convert", "a.png", 100, nil)
	tracker.CompleteTask("done", "", nil)
	if tracker.CancelTask("done") {
		t.Error("Expected cancel to be refused after completion")
	}

	tracker.CreateTask("failed", "image_convert", "b.png", 100, nil)
	tracker.FailTask("failed", "boom", nil)
	if tracker.CancelTask("failed") {
		t.Error("Expected cancel to be refused after failure")
	}

	if tracker.CancelTask("missing") {
		t.Error("Expected cancel to be refused for unknown task")
	}
}

func TestTracker_SnapshotIsolation(t *testing.T) {
	tracker := newTestTracker(t)
	tracker.CreateTask("t1", "image_convert", "photo.png", 100, map[string]string{"k": "v"})

	snap := tracker.GetTaskStatus("t1")
	snap.Metadata["k"] = "mutated"
	snap.Status = models.TaskFailed

	fresh := tracker.GetTaskStatus("t1")
	if fresh.Metadata["k"] != "v" {
		t.Error("Snapshot mutation leaked into tracker state")
	}
	if fresh.Status != models.TaskQueued {
		t.Errorf("Snapshot status mutation leaked, got %s", fresh.Status)
	}
}

func TestTracker_GetAllTasks_OrderAndLimit(t *testing.T) {
	tracker := newTestTracker(t)
	tracker.CreateTask("t1", "image_convert", "a.png", 100, nil)
	tracker.CreateTask("t2", "image_convert", "b.png", 100, nil)
	tracker.CreateTask("t3", "image_convert", "c.png", 100, nil)

	// t1 becomes the most recently updated.
	time.Sleep(5 * time.Millisecond)
	tracker.UpdateProgress("t1", 10, "", nil)

	all := tracker.GetAllTasks(2)
	if len(all) != 2 {
		t.Fatalf("Expected 2 tasks, got %d", len(all))
	}
	if all[0].ID != "t1" {
		t.Errorf("Expected most recently updated task first, got %s", all[0].ID)
	}
}

func TestTracker_ActiveTasksAndCounts(t *testing.T) {
	tracker := newTestTracker(t)
	tracker.CreateTask("queued", "op", "a.png", 100, nil)
	tracker.CreateTask("processing", "op", "b.png", 100, nil)
	tracker.UpdateProgress("processing", 1, "", nil)
	tracker.CreateTask("done", "op", "c.png", 100, nil)
	tracker.CompleteTask("done", "", nil)
	tracker.CreateTask("gone", "op", "d.png", 100, nil)
	tracker.CancelTask("gone")

	active := tracker.GetActiveTasks()
	if len(active) != 2 {
		t.Errorf("Expected 2 active tasks, got %d", len(active))
	}

	counts := tracker.TaskCountByStatus()
	if counts[models.TaskQueued] != 1 || counts[models.TaskProcessing] != 1 ||
		counts[models.TaskCompleted] != 1 || counts[models.TaskCancelled] != 1 {
		t.Errorf("Unexpected counts: %v", counts)
	}
	if counts[models.TaskFailed] != 0 {
		t.Errorf("Expected zero failed tasks, got %d", counts[models.TaskFailed])
	}
}

func TestTracker_SweepEvictsStaleTerminalTasks(t *testing.T) {
	tracker := newTestTracker(t)
	tracker.CreateTask("old-done", "op", "a.png", 100, nil)
	tracker.CompleteTask("old-done", "", nil)
	tracker.CreateTask("old-active", "op", "b.png", 100, nil)
	tracker.UpdateProgress("old-active", 1, "", nil)
	tracker.CreateTask("fresh-done", "op", "c.png", 100, nil)
	tracker.CompleteTask("fresh-done", "", nil)

	evicted := tracker.sweep(time.Now().Add(2 * time.Hour))
	if evicted != 2 {
		t.Errorf("Expected 2 evictions, got %d", evicted)
	}
	if tracker.GetTaskStatus("old-done") != nil {
		t.Error("Expected stale terminal task to be evicted")
	}
	if tracker.GetTaskStatus("old-active") == nil {
		t.Error("Expected non-terminal task to survive the sweep")
	}

	if evicted := tracker.sweep(time.Now()); evicted != 0 {
		t.Errorf("Expected no evictions inside retention window, got %d", evicted)
	}
}

func TestTracker_ConcurrentUpdates(t *testing.T) {
	tracker := newTestTracker(t)
	tracker.CreateTask("t1", "op", "a.png", 1000, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(step int) {
			defer wg.Done()
			tracker.UpdateProgress("t1", step, "", nil)
			tracker.GetTaskStatus("t1")
		}(i)
	}
	wg.Wait()

	task := tracker.GetTaskStatus("t1")
	if task.Status != models.TaskProcessing {
		t.Errorf("Expected status processing, got %s", task.Status)
	}
}
