package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"converthub/batch"
	"converthub/converter"
	"converthub/dto"
	"converthub/middleware"
	"converthub/models"
	"converthub/validation"
)

// BatchProcessor is the coordinator surface the batch handler uses.
type BatchProcessor interface {
	CreateBatch(ctx context.Context, files []batch.File, operation string, options map[string]string) (string, error)
	ProcessBatch(ctx context.Context, batchID string, files []batch.File, conv converter.Converter) (*models.BatchResult, error)
	GetBatchStatus(batchID string) *models.Batch
}

type BatchHandler struct {
	coordinator BatchProcessor
	registry    *converter.Registry
	logger      *zap.Logger
	maxBytes    int64
}

func NewBatchHandler(coordinator BatchProcessor, registry *converter.Registry, logger *zap.Logger, maxBytes int64) *BatchHandler {
	return &BatchHandler{
		coordinator: coordinator,
		registry:    registry,
		logger:      logger,
		maxBytes:    maxBytes,
	}
}

// Convert accepts a multipart upload of many files under the "files"
// field, runs them all through one converter, and responds with the
// settled BatchResult including the archive URL when at least one file
// succeeded.
func (h *BatchHandler) Convert(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		respondError(w, h.logger, r, "Failed to parse form", err, http.StatusBadRequest)
		return
	}

	operation := r.FormValue("operation")
	if operation == "" {
		respondError(w, h.logger, r, "Operation is required", nil, http.StatusBadRequest)
		return
	}

	conv, err := h.registry.Lookup(operation)
	if err != nil {
		respondError(w, h.logger, r, "Unsupported operation", err, http.StatusBadRequest)
		return
	}

	if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		respondError(w, h.logger, r, "No files uploaded", nil, http.StatusBadRequest)
		return
	}

	headers := r.MultipartForm.File["files"]
	files := make([]batch.File, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			respondError(w, h.logger, r, "Failed to open file", err, http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			respondError(w, h.logger, r, "Failed to read file", err, http.StatusInternalServerError)
			return
		}
		files = append(files, batch.File{
			Name:        validation.SanitizeFilename(header.Filename),
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	batchID, err := h.coordinator.CreateBatch(r.Context(), files, operation, collectOptions(r))
	if err != nil {
		if errors.Is(err, batch.ErrTooManyFiles) || errors.Is(err, batch.ErrBatchTooLarge) {
			respondError(w, h.logger, r, "Batch rejected", err, http.StatusBadRequest)
			return
		}
		respondError(w, h.logger, r, "Failed to create batch", err, http.StatusInternalServerError)
		return
	}

	h.logger.Info("Processing batch",
		zap.String("trace_id", middleware.GetTraceID(r.Context())),
		zap.String("batch_id", batchID),
		zap.String("operation", operation),
		zap.Int("files", len(files)),
	)

	result, err := h.coordinator.ProcessBatch(r.Context(), batchID, files, conv)
	if err != nil {
		respondError(w, h.logger, r, "Failed to process batch", err, http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Status serves the read-only batch progress view.
func (h *BatchHandler) Status(w http.ResponseWriter, r *http.Request) {
	batchID := strings.TrimPrefix(r.URL.Path, "/api/batch/status/")
	if batchID == "" {
		respondError(w, h.logger, r, "Batch ID is required", nil, http.StatusBadRequest)
		return
	}

	snapshot := h.coordinator.GetBatchStatus(batchID)
	if snapshot == nil {
		respondError(w, h.logger, r, "Batch not found", batch.ErrBatchNotFound, http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, dto.FromBatch(snapshot))
}
