// Package batch orchestrates concurrent conversion of file groups
// submitted together, bounded by a per-batch concurrency cap, and
// packages the surviving results into one downloadable archive.
package batch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"converthub/converter"
	"converthub/events"
	"converthub/models"
	"converthub/repository"
	"converthub/storage"
)

var (
	ErrTooManyFiles  = errors.New("too many files in batch")
	ErrBatchTooLarge = errors.New("total batch size exceeds limit")
	ErrBatchNotFound = errors.New("batch not found")
)

const (
	defaultMaxFiles    = 50
	defaultMaxBytes    = 500 * 1024 * 1024
	defaultConcurrency = 3
	defaultMaxAge      = 24 * time.Hour
)

// File is one uploaded file handed to the coordinator, fully read into
// memory by the HTTP layer.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Coordinator owns all batch records and runs their per-file
// conversions. A single file failing never fails its batch; failures
// are folded into that file's result entry.
type Coordinator struct {
	logger   *zap.Logger
	store    storage.Storage
	producer events.Producer
	archiver *Archiver
	repo     repository.Repository

	maxFiles    int
	maxBytes    int64
	concurrency int
	fileTimeout time.Duration

	mu      sync.Mutex
	batches map[string]*models.Batch
}

type Config struct {
	MaxFiles    int
	MaxBytes    int64
	Concurrency int
	FileTimeout time.Duration
}

func NewCoordinator(logger *zap.Logger, store storage.Storage, producer events.Producer, cfg Config) *Coordinator {
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = defaultMaxFiles
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if producer == nil {
		producer = events.NopProducer{}
	}
	return &Coordinator{
		logger:      logger,
		store:       store,
		producer:    producer,
		archiver:    NewArchiver(logger, store),
		maxFiles:    cfg.MaxFiles,
		maxBytes:    cfg.MaxBytes,
		concurrency: cfg.Concurrency,
		fileTimeout: cfg.FileTimeout,
		batches:     make(map[string]*models.Batch),
	}
}

// SetRepository enables batch history persistence. Optional; the
// coordinator works without it.
func (c *Coordinator) SetRepository(repo repository.Repository) {
	c.repo = repo
}

// CreateBatch validates the submission, captures per-file metadata and
// content hashes, and registers a queued batch record.
func (c *Coordinator) CreateBatch(ctx context.Context, files []File, operation string, options map[string]string) (string, error) {
	if len(files) > c.maxFiles {
		return "", fmt.Errorf("%w: %d files, maximum %d", ErrTooManyFiles, len(files), c.maxFiles)
	}

	var totalSize int64
	metas := make([]models.FileMeta, 0, len(files))
	for _, f := range files {
		size := int64(len(f.Data))
		totalSize += size

		sum := sha256.Sum256(f.Data)
		metas = append(metas, models.FileMeta{
			Filename:    f.Name,
			Size:        size,
			ContentType: f.ContentType,
			Hash:        hex.EncodeToString(sum[:]),
		})
	}

	if totalSize > c.maxBytes {
		return "", fmt.Errorf("%w: %d bytes, maximum %d", ErrBatchTooLarge, totalSize, c.maxBytes)
	}

	batchID := uuid.New().String()
	batch := &models.Batch{
		ID:         batchID,
		Operation:  operation,
		Options:    options,
		Files:      metas,
		TotalFiles: len(files),
		Results:    make([]models.ConversionResult, len(files)),
		Status:     models.BatchQueued,
		TotalSize:  totalSize,
		CreatedAt:  time.Now(),
	}

	c.mu.Lock()
	c.batches[batchID] = batch
	c.mu.Unlock()

	c.logger.Info("Created batch",
		zap.String("batch_id", batchID),
		zap.String("operation", operation),
		zap.Int("files", len(files)),
		zap.Int64("total_size", totalSize),
	)
	return batchID, nil
}

// ProcessBatch converts every file in the batch, at most the
// configured number concurrently, and blocks until all of them settle.
// Results are recorded by input index, not completion order. If at
// least one file succeeded, the archive builder produces a combined
// ZIP and its URL is attached to the returned result.
func (c *Coordinator) ProcessBatch(ctx context.Context, batchID string, files []File, conv converter.Converter) (*models.BatchResult, error) {
	c.mu.Lock()
	batch, ok := c.batches[batchID]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}
	batch.Status = models.BatchProcessing
	opts := converter.OptionsFromMap(batch.Options)
	c.mu.Unlock()

	g := new(errgroup.Group)
	g.SetLimit(c.concurrency)

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			result := c.processFile(ctx, batchID, i, f, opts, conv)

			c.mu.Lock()
			batch.Results[i] = result
			if result.Status == models.ConversionSuccess {
				batch.Completed++
			} else {
				batch.Failed++
			}
			c.mu.Unlock()
			return nil
		})
	}

	// Barrier: every unit settles before the batch is declared done.
	g.Wait()

	c.mu.Lock()
	batch.Status = models.BatchCompleted
	result := &models.BatchResult{
		BatchID:    batchID,
		TotalFiles: batch.TotalFiles,
		Completed:  batch.Completed,
		Failed:     batch.Failed,
		Results:    append([]models.ConversionResult(nil), batch.Results...),
	}
	c.mu.Unlock()

	if result.Completed > 0 {
		zipURL, err := c.archiver.Build(ctx, batchID, result.Results)
		if err != nil {
			c.logger.Error("Archive creation failed",
				zap.String("batch_id", batchID),
				zap.Error(err),
			)
		} else {
			result.ZipURL = zipURL
		}
	}

	if c.repo != nil {
		rec := &repository.BatchRecord{
			BatchID:    batchID,
			Operation:  batch.Operation,
			TotalFiles: result.TotalFiles,
			Completed:  result.Completed,
			Failed:     result.Failed,
			ZipURL:     result.ZipURL,
			CreatedAt:  batch.CreatedAt,
		}
		if err := c.repo.SaveBatch(ctx, rec); err != nil {
			c.logger.Warn("Failed to persist batch record",
				zap.String("batch_id", batchID),
				zap.Error(err),
			)
		}
	}

	if err := c.producer.Publish(ctx, &events.Event{
		Type:      events.TypeBatchCompleted,
		ID:        batchID,
		Operation: batch.Operation,
		ResultURL: result.ZipURL,
		Completed: result.Completed,
		Failed:    result.Failed,
	}); err != nil {
		c.logger.Warn("Failed to publish batch event",
			zap.String("batch_id", batchID),
			zap.Error(err),
		)
	}

	c.logger.Info("Batch completed",
		zap.String("batch_id", batchID),
		zap.Int("completed", result.Completed),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// processFile runs one unit of work. Any failure is folded into an
// error result carrying the original filename; nothing propagates.
func (c *Coordinator) processFile(ctx context.Context, batchID string, index int, f File, opts converter.Options, conv converter.Converter) models.ConversionResult {
	taskID := fmt.Sprintf("%s_%d", batchID, index)

	if c.fileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.fileTimeout)
		defer cancel()
	}

	converted, err := conv.Convert(ctx, f.Data, opts)
	if err != nil {
		c.logger.Warn("File conversion failed",
			zap.String("batch_id", batchID),
			zap.Int("index", index),
			zap.String("filename", f.Name),
			zap.Error(err),
		)
		return errorResult(taskID, f.Name, err)
	}

	url, err := c.store.Upload(ctx, converted.Data, f.Name, converted.ContentType)
	if err != nil {
		c.logger.Warn("Result upload failed",
			zap.String("batch_id", batchID),
			zap.Int("index", index),
			zap.String("filename", f.Name),
			zap.Error(err),
		)
		return errorResult(taskID, f.Name, err)
	}

	metadata := map[string]string{"input_filename": f.Name}
	for k, v := range converted.Metadata {
		metadata[k] = v
	}

	return models.ConversionResult{
		Status:    models.ConversionSuccess,
		TaskID:    taskID,
		ResultURL: url,
		Metadata:  metadata,
	}
}

func errorResult(taskID, filename string, err error) models.ConversionResult {
	return models.ConversionResult{
		Status:       models.ConversionError,
		TaskID:       taskID,
		ErrorMessage: err.Error(),
		Metadata:     map[string]string{"input_filename": filename},
	}
}

// GetBatchStatus returns a snapshot of the batch without blocking on
// in-flight work, or nil if unknown.
func (c *Coordinator) GetBatchStatus(batchID string) *models.Batch {
	c.mu.Lock()
	defer c.mu.Unlock()

	batch, ok := c.batches[batchID]
	if !ok {
		return nil
	}
	return batch.Clone()
}

// CleanupOldBatches purges batch records created before the cutoff,
// regardless of status. Purging a batch that never reached a terminal
// state is logged as a warning; this is a resource-safety valve.
func (c *Coordinator) CleanupOldBatches(maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}
	cutoff := time.Now().Add(-maxAge)

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id, batch := range c.batches {
		if batch.CreatedAt.Before(cutoff) {
			if batch.Status != models.BatchCompleted {
				c.logger.Warn("Purging non-terminal batch",
					zap.String("batch_id", id),
					zap.String("status", string(batch.Status)),
				)
			}
			delete(c.batches, id)
			removed++
		}
	}
	return removed
}

// Run drives the periodic batch cleanup until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.logger.Info("Starting batch cleanup loop", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Batch cleanup loop stopped")
			return
		case <-ticker.C:
			if removed := c.CleanupOldBatches(maxAge); removed > 0 {
				c.logger.Info("Cleaned up old batches", zap.Int("count", removed))
			}
		}
	}
}
