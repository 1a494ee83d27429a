package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"converthub/dto"
	"converthub/middleware"
	"converthub/models"
	"converthub/service"
	"converthub/validation"
)

// ConversionStarter is the slice of the conversion service the upload
// handler depends on.
type ConversionStarter interface {
	StartConversion(ctx context.Context, filename, contentType string, data []byte, operation string, options map[string]string) (string, error)
}

type ConvertHandler struct {
	service     ConversionStarter
	logger      *zap.Logger
	maxFileSize int64
}

func NewConvertHandler(service ConversionStarter, logger *zap.Logger, maxFileSize int64) *ConvertHandler {
	return &ConvertHandler{
		service:     service,
		logger:      logger,
		maxFileSize: maxFileSize,
	}
}

// Convert accepts one uploaded file plus an operation name and queues
// the conversion, returning the task id to poll.
func (h *ConvertHandler) Convert(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, h.logger, r, "Failed to parse form", err, http.StatusBadRequest)
		return
	}

	operation := r.FormValue("operation")
	if operation == "" {
		respondError(w, h.logger, r, "Operation is required", nil, http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, h.logger, r, "Failed to get file", err, http.StatusBadRequest)
		return
	}
	defer file.Close()

	if err := validation.CheckSize(header.Size, h.maxFileSize); err != nil {
		respondError(w, h.logger, r, "Invalid file", err, http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, h.logger, r, "Failed to read file", err, http.StatusInternalServerError)
		return
	}

	fileType, err := validation.DetectFileType(data)
	if err != nil {
		respondError(w, h.logger, r, "Invalid file", err, http.StatusBadRequest)
		return
	}
	if operation == "image_convert" && !validation.IsAllowedImageType(fileType) {
		respondError(w, h.logger, r, "File is not a supported image", validation.ErrUnsupportedFormat, http.StatusBadRequest)
		return
	}

	filename := validation.SanitizeFilename(header.Filename)
	contentType := header.Header.Get("Content-Type")

	taskID, err := h.service.StartConversion(r.Context(), filename, contentType, data, operation, collectOptions(r))
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedOperation) {
			respondError(w, h.logger, r, "Unsupported operation", err, http.StatusBadRequest)
			return
		}
		respondError(w, h.logger, r, "Failed to start conversion", err, http.StatusInternalServerError)
		return
	}

	h.logger.Info("Conversion queued",
		zap.String("trace_id", middleware.GetTraceID(r.Context())),
		zap.String("task_id", taskID),
		zap.String("operation", operation),
		zap.String("filename", filename),
	)

	respondJSON(w, http.StatusAccepted, dto.ConvertAcceptedResponse{
		TaskID: taskID,
		Status: string(models.TaskQueued),
	})
}
