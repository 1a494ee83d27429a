// Package progress keeps an in-memory registry of long-running
// conversion tasks and their completion state.
package progress

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"converthub/models"
)

var ErrTaskExists = errors.New("task already exists")

const (
	defaultRetention     = time.Hour
	defaultSweepInterval = 5 * time.Minute
	sweepRetryBackoff    = time.Minute
)

// Tracker is a process-wide registry mapping task id -> task. All
// mutations go through the tracker so concurrent workers never race on
// status transitions. Instantiate one per service; there is no global.
type Tracker struct {
	logger *zap.Logger

	retention     time.Duration
	sweepInterval time.Duration

	mu    sync.Mutex
	tasks map[string]*models.Task
}

func NewTracker(logger *zap.Logger, retention, sweepInterval time.Duration) *Tracker {
	if retention <= 0 {
		retention = defaultRetention
	}
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	t := &Tracker{
		logger:        logger,
		retention:     retention,
		sweepInterval: sweepInterval,
		tasks:         make(map[string]*models.Task),
	}
	return t
}

// CreateTask registers a new task in status queued with progress 0.
// Duplicate ids are rejected with ErrTaskExists; existing tasks are
// never overwritten.
func (t *Tracker) CreateTask(taskID, taskType, filename string, totalSteps int, metadata map[string]string) (*models.Task, error) {
	if totalSteps <= 0 {
		totalSteps = 100
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.tasks[taskID]; ok {
		return nil, ErrTaskExists
	}

	now := time.Now()
	task := &models.Task{
		ID:         taskID,
		Type:       taskType,
		Filename:   filename,
		Status:     models.TaskQueued,
		Progress:   0,
		TotalSteps: totalSteps,
		Message:    "Task queued",
		Metadata:   cloneMeta(metadata),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	t.tasks[taskID] = task

	t.logger.Info("Created progress task",
		zap.String("task_id", taskID),
		zap.String("type", taskType),
	)
	return task.Clone(), nil
}

// UpdateProgress advances a task. The first update moves the task from
// queued to processing and stamps StartedAt. Steps are clamped to
// [0, TotalSteps]. Returns false for unknown or terminal tasks.
func (t *Tracker) UpdateProgress(taskID string, currentStep int, message string, metadata map[string]string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[taskID]
	if !ok {
		t.logger.Warn("Task not found for progress update", zap.String("task_id", taskID))
		return false
	}
	if task.Status.Terminal() {
		return false
	}

	now := time.Now()
	if task.Status == models.TaskQueued {
		task.Status = models.TaskProcessing
		task.StartedAt = &now
	}

	if currentStep < 0 {
		currentStep = 0
	}
	if currentStep > task.TotalSteps {
		currentStep = task.TotalSteps
	}
	task.CurrentStep = currentStep
	task.Progress = currentStep * 100 / task.TotalSteps
	task.UpdatedAt = now

	if message != "" {
		task.Message = message
	}
	mergeMeta(task, metadata)

	return true
}

// CompleteTask marks a task completed with progress 100.
func (t *Tracker) CompleteTask(taskID string, resultURL string, metadata map[string]string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[taskID]
	if !ok {
		t.logger.Warn("Task not found for completion", zap.String("task_id", taskID))
		return false
	}

	now := time.Now()
	task.Status = models.TaskCompleted
	task.Progress = 100
	task.CurrentStep = task.TotalSteps
	task.Message = "Task completed successfully"
	task.CompletedAt = &now
	task.UpdatedAt = now
	if resultURL != "" {
		task.ResultURL = resultURL
	}
	mergeMeta(task, metadata)

	t.logger.Info("Completed task", zap.String("task_id", taskID))
	return true
}

// FailTask marks a task failed and records the error.
func (t *Tracker) FailTask(taskID string, errorMessage string, metadata map[string]string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[taskID]
	if !ok {
		t.logger.Warn("Task not found for failure", zap.String("task_id", taskID))
		return false
	}

	now := time.Now()
	task.Status = models.TaskFailed
	task.Message = "Task failed"
	task.ErrorMessage = errorMessage
	task.CompletedAt = &now
	task.UpdatedAt = now
	mergeMeta(task, metadata)

	t.logger.Error("Failed task",
		zap.String("task_id", taskID),
		zap.String("error", errorMessage),
	)
	return true
}

// CancelTask cancels a task unless it already completed or failed.
func (t *Tracker) CancelTask(taskID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[taskID]
	if !ok {
		t.logger.Warn("Task not found for cancellation", zap.String("task_id", taskID))
		return false
	}
	if task.Status == models.TaskCompleted || task.Status == models.TaskFailed {
		return false
	}
	if task.Status == models.TaskCancelled {
		return true
	}

	now := time.Now()
	task.Status = models.TaskCancelled
	task.Message = "Task cancelled"
	task.CompletedAt = &now
	task.UpdatedAt = now

	t.logger.Info("Cancelled task", zap.String("task_id", taskID))
	return true
}

// Cancelled reports whether a task has been cancelled. Workers poll
// this between processing stages to stop early.
func (t *Tracker) Cancelled(taskID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[taskID]
	return ok && task.Status == models.TaskCancelled
}

// GetTaskStatus returns a snapshot of the task, or nil if unknown.
func (t *Tracker) GetTaskStatus(taskID string) *models.Task {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[taskID]
	if !ok {
		return nil
	}
	return task.Clone()
}

// GetAllTasks returns up to limit task snapshots, most recently
// updated first.
func (t *Tracker) GetAllTasks(limit int) []*models.Task {
	t.mu.Lock()
	defer t.mu.Unlock()

	all := make([]*models.Task, 0, len(t.tasks))
	for _, task := range t.tasks {
		all = append(all, task.Clone())
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].UpdatedAt.After(all[j].UpdatedAt)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

// GetActiveTasks returns snapshots of all queued or processing tasks.
func (t *Tracker) GetActiveTasks() []*models.Task {
	t.mu.Lock()
	defer t.mu.Unlock()

	active := make([]*models.Task, 0)
	for _, task := range t.tasks {
		if task.Status == models.TaskQueued || task.Status == models.TaskProcessing {
			active = append(active, task.Clone())
		}
	}
	return active
}

// TaskCountByStatus returns the number of tasks in each status.
func (t *Tracker) TaskCountByStatus() map[models.TaskStatus]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	counts := map[models.TaskStatus]int{
		models.TaskQueued:     0,
		models.TaskProcessing: 0,
		models.TaskCompleted:  0,
		models.TaskFailed:     0,
		models.TaskCancelled:  0,
	}
	for _, task := range t.tasks {
		counts[task.Status]++
	}
	return counts
}

// Run drives the background eviction sweep until ctx is cancelled.
// Terminal tasks idle longer than the retention window are removed. A
// sweep that panics is logged and retried after a backoff instead of
// killing the loop.
func (t *Tracker) Run(ctx context.Context) {
	t.logger.Info("Starting task eviction loop",
		zap.Duration("interval", t.sweepInterval),
		zap.Duration("retention", t.retention),
	)

	interval := t.sweepInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("Task eviction loop stopped")
			return
		case <-timer.C:
			if err := t.safeSweep(time.Now()); err != nil {
				t.logger.Error("Eviction sweep failed", zap.Error(err))
				interval = sweepRetryBackoff
			} else {
				interval = t.sweepInterval
			}
			timer.Reset(interval)
		}
	}
}

func (t *Tracker) safeSweep(now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("panic during eviction sweep")
		}
	}()
	evicted := t.sweep(now)
	if evicted > 0 {
		t.logger.Info("Evicted stale tasks", zap.Int("count", evicted))
	}
	return nil
}

func (t *Tracker) sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	evicted := 0
	for id, task := range t.tasks {
		if task.Status.Terminal() && now.Sub(task.UpdatedAt) > t.retention {
			delete(t.tasks, id)
			evicted++
		}
	}
	return evicted
}

func cloneMeta(metadata map[string]string) map[string]string {
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	return meta
}

func mergeMeta(task *models.Task, metadata map[string]string) {
	if len(metadata) == 0 {
		return
	}
	if task.Metadata == nil {
		task.Metadata = make(map[string]string, len(metadata))
	}
	for k, v := range metadata {
		task.Metadata[k] = v
	}
}
