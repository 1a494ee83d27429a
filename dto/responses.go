package dto

import (
	"converthub/models"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

type ConvertAcceptedResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

type TaskStatusResponse struct {
	TaskID       string            `json:"task_id"`
	Status       string            `json:"status"`
	Progress     int               `json:"progress"`
	Message      string            `json:"message"`
	CreatedAt    string            `json:"created_at"`
	UpdatedAt    string            `json:"updated_at"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	ResultURL    string            `json:"result_url,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
}

type TaskListResponse struct {
	Tasks  []TaskStatusResponse `json:"tasks"`
	Counts map[string]int       `json:"counts"`
}

type BatchStatusResponse struct {
	BatchID            string `json:"batch_id"`
	Status             string `json:"status"`
	TotalFiles         int    `json:"total_files"`
	Completed          int    `json:"completed"`
	Failed             int    `json:"failed"`
	ProgressPercentage int    `json:"progress_percentage"`
}

const timeLayout = "2006-01-02T15:04:05Z"

// FromTask converts a tracker snapshot into its API representation.
func FromTask(task *models.Task) TaskStatusResponse {
	return TaskStatusResponse{
		TaskID:       task.ID,
		Status:       string(task.Status),
		Progress:     task.Progress,
		Message:      task.Message,
		CreatedAt:    task.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:    task.UpdatedAt.UTC().Format(timeLayout),
		Metadata:     task.Metadata,
		ResultURL:    task.ResultURL,
		ErrorMessage: task.ErrorMessage,
	}
}

// FromBatch converts a coordinator snapshot into the read API shape.
func FromBatch(batch *models.Batch) BatchStatusResponse {
	pct := 0
	if batch.TotalFiles > 0 {
		pct = (batch.Completed + batch.Failed) * 100 / batch.TotalFiles
	}
	return BatchStatusResponse{
		BatchID:            batch.ID,
		Status:             string(batch.Status),
		TotalFiles:         batch.TotalFiles,
		Completed:          batch.Completed,
		Failed:             batch.Failed,
		ProgressPercentage: pct,
	}
}
