// Package service runs single-file conversions in the background and
// reports their progress through the task tracker.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"converthub/cache"
	"converthub/converter"
	"converthub/events"
	"converthub/models"
	"converthub/pool"
	"converthub/progress"
	"converthub/repository"
	"converthub/storage"
)

var ErrUnsupportedOperation = errors.New("unsupported operation")

const totalSteps = 4

type ConversionService struct {
	logger   *zap.Logger
	tracker  *progress.Tracker
	workers  *pool.WorkerPool
	registry *converter.Registry
	store    storage.Storage
	results  *cache.ResultCache
	repo     repository.Repository
	producer events.Producer
	timeout  time.Duration
}

func NewConversionService(
	logger *zap.Logger,
	tracker *progress.Tracker,
	workers *pool.WorkerPool,
	registry *converter.Registry,
	store storage.Storage,
	results *cache.ResultCache,
	repo repository.Repository,
	producer events.Producer,
	timeout time.Duration,
) *ConversionService {
	if producer == nil {
		producer = events.NopProducer{}
	}
	return &ConversionService{
		logger:   logger,
		tracker:  tracker,
		workers:  workers,
		registry: registry,
		store:    store,
		results:  results,
		repo:     repo,
		producer: producer,
		timeout:  timeout,
	}
}

// StartConversion registers a task for the upload and schedules the
// conversion on the worker pool. It returns as soon as the task is
// queued; callers follow progress through the tracker APIs. A cache
// hit for the same content and options completes the task immediately.
func (s *ConversionService) StartConversion(ctx context.Context, filename, contentType string, data []byte, operation string, options map[string]string) (string, error) {
	conv, err := s.registry.Lookup(operation)
	if err != nil {
		return "", ErrUnsupportedOperation
	}

	sum := sha256.Sum256(data)
	fileHash := hex.EncodeToString(sum[:])
	taskID := uuid.New().String()

	if _, err := s.tracker.CreateTask(taskID, operation, filename, totalSteps, map[string]string{
		"input_filename": filename,
		"content_type":   contentType,
	}); err != nil {
		return "", err
	}

	s.recordCreate(ctx, taskID, operation, filename, fileHash)

	cacheKey := ""
	if s.results != nil {
		cacheKey = cache.Key(fileHash, operation, options)
		if cached, err := s.results.Get(ctx, cacheKey); err != nil {
			s.logger.Warn("Result cache lookup failed", zap.String("task_id", taskID), zap.Error(err))
		} else if cached != nil && cached.Status == models.ConversionSuccess {
			s.tracker.CompleteTask(taskID, cached.ResultURL, map[string]string{"cache": "hit"})
			s.recordUpdate(ctx, taskID, models.TaskCompleted, cached.ResultURL, "")
			return taskID, nil
		}
	}

	opts := converter.OptionsFromMap(options)
	jobCtx := context.WithoutCancel(ctx)
	s.workers.Submit(jobCtx, func(ctx context.Context) {
		s.runConversion(ctx, taskID, filename, data, operation, opts, conv, cacheKey)
	})

	return taskID, nil
}

func (s *ConversionService) runConversion(ctx context.Context, taskID, filename string, data []byte, operation string, opts converter.Options, conv converter.Converter, cacheKey string) {
	if !s.tracker.UpdateProgress(taskID, 1, "Preparing file", nil) {
		// Cancelled (or evicted) before the worker picked it up.
		return
	}

	if s.cancelled(ctx, taskID, operation) {
		return
	}

	s.tracker.UpdateProgress(taskID, 2, "Converting", nil)

	convCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		convCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result, err := conv.Convert(convCtx, data, opts)
	if err != nil {
		s.fail(ctx, taskID, operation, err)
		return
	}

	if s.cancelled(ctx, taskID, operation) {
		return
	}

	s.tracker.UpdateProgress(taskID, 3, "Uploading result", nil)

	url, err := s.store.Upload(ctx, result.Data, filename, result.ContentType)
	if err != nil {
		s.fail(ctx, taskID, operation, err)
		return
	}

	if s.results != nil && cacheKey != "" {
		cached := &models.ConversionResult{
			Status:    models.ConversionSuccess,
			TaskID:    taskID,
			ResultURL: url,
			Metadata:  result.Metadata,
		}
		if err := s.results.Set(ctx, cacheKey, cached); err != nil {
			s.logger.Warn("Result cache store failed", zap.String("task_id", taskID), zap.Error(err))
		}
	}

	s.tracker.CompleteTask(taskID, url, result.Metadata)
	s.recordUpdate(ctx, taskID, models.TaskCompleted, url, "")
	s.publish(ctx, &events.Event{
		Type:      events.TypeTaskCompleted,
		ID:        taskID,
		Operation: operation,
		ResultURL: url,
	})
}

// cancelled checks the cooperative cancellation flag between stages.
// In-flight converter calls are not interrupted; the worker stops at
// the next stage boundary.
func (s *ConversionService) cancelled(ctx context.Context, taskID, operation string) bool {
	if !s.tracker.Cancelled(taskID) {
		return false
	}
	s.recordUpdate(ctx, taskID, models.TaskCancelled, "", "")
	s.publish(ctx, &events.Event{
		Type:      events.TypeTaskCancelled,
		ID:        taskID,
		Operation: operation,
	})
	return true
}

func (s *ConversionService) fail(ctx context.Context, taskID, operation string, err error) {
	s.tracker.FailTask(taskID, err.Error(), nil)
	s.recordUpdate(ctx, taskID, models.TaskFailed, "", err.Error())
	s.publish(ctx, &events.Event{
		Type:      events.TypeTaskFailed,
		ID:        taskID,
		Operation: operation,
		Error:     err.Error(),
	})
}

func (s *ConversionService) recordCreate(ctx context.Context, taskID, operation, filename, fileHash string) {
	if s.repo == nil {
		return
	}
	rec := &repository.ConversionRecord{
		TaskID:    taskID,
		Operation: operation,
		Filename:  filename,
		FileHash:  fileHash,
		Status:    models.TaskQueued,
	}
	if err := s.repo.CreateConversion(ctx, rec); err != nil {
		s.logger.Warn("Failed to persist conversion record", zap.String("task_id", taskID), zap.Error(err))
	}
}

func (s *ConversionService) recordUpdate(ctx context.Context, taskID string, status models.TaskStatus, resultURL, errorMessage string) {
	if s.repo == nil {
		return
	}
	if err := s.repo.UpdateConversionStatus(ctx, taskID, status, resultURL, errorMessage); err != nil {
		s.logger.Warn("Failed to update conversion record", zap.String("task_id", taskID), zap.Error(err))
	}
}

func (s *ConversionService) publish(ctx context.Context, event *events.Event) {
	if err := s.producer.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish event", zap.String("id", event.ID), zap.Error(err))
	}
}
