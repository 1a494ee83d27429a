package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"converthub/dto"
	"converthub/progress"
)

type ProgressHandler struct {
	tracker *progress.Tracker
	logger  *zap.Logger
}

func NewProgressHandler(tracker *progress.Tracker, logger *zap.Logger) *ProgressHandler {
	return &ProgressHandler{
		tracker: tracker,
		logger:  logger,
	}
}

// Task serves GET (status) and DELETE (cancel) for one task id.
func (h *ProgressHandler) Task(w http.ResponseWriter, r *http.Request) {
	taskID := strings.TrimPrefix(r.URL.Path, "/api/progress/")
	if taskID == "" {
		respondError(w, h.logger, r, "Task ID is required", nil, http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		task := h.tracker.GetTaskStatus(taskID)
		if task == nil {
			respondError(w, h.logger, r, "Task not found", nil, http.StatusNotFound)
			return
		}
		respondJSON(w, http.StatusOK, dto.FromTask(task))

	case http.MethodDelete:
		if !h.tracker.CancelTask(taskID) {
			respondError(w, h.logger, r, "Task not found or already finished", nil, http.StatusNotFound)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{
			"task_id": taskID,
			"status":  "cancelled",
		})

	default:
		respondError(w, h.logger, r, "Method not allowed", nil, http.StatusMethodNotAllowed)
	}
}

// List serves the monitoring view: recent tasks plus counts by status.
func (h *ProgressHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	tasks := h.tracker.GetAllTasks(limit)
	resp := dto.TaskListResponse{
		Tasks:  make([]dto.TaskStatusResponse, 0, len(tasks)),
		Counts: make(map[string]int),
	}
	for _, task := range tasks {
		resp.Tasks = append(resp.Tasks, dto.FromTask(task))
	}
	for status, count := range h.tracker.TaskCountByStatus() {
		resp.Counts[string(status)] = count
	}

	respondJSON(w, http.StatusOK, resp)
}
