// Package repository persists conversion history for auditing and user
// dashboards. The in-memory registries remain the source of truth for
// live status; history writes are best-effort from the caller's side.
package repository

import (
	"context"
	"errors"
	"time"

	"converthub/models"
)

var ErrRecordNotFound = errors.New("record not found")

// ConversionRecord is one finished or in-flight single-file conversion.
type ConversionRecord struct {
	TaskID       string
	Operation    string
	Filename     string
	FileHash     string
	Status       models.TaskStatus
	ResultURL    string
	ErrorMessage string
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

// BatchRecord summarizes a settled batch.
type BatchRecord struct {
	BatchID    string
	Operation  string
	TotalFiles int
	Completed  int
	Failed     int
	ZipURL     string
	CreatedAt  time.Time
}

type Repository interface {
	CreateConversion(ctx context.Context, rec *ConversionRecord) error
	UpdateConversionStatus(ctx context.Context, taskID string, status models.TaskStatus, resultURL, errorMessage string) error
	GetConversion(ctx context.Context, taskID string) (*ConversionRecord, error)
	SaveBatch(ctx context.Context, rec *BatchRecord) error
}
