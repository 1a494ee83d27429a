package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"converthub/dto"
	"converthub/middleware"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, logger *zap.Logger, r *http.Request, message string, err error, status int) {
	traceID := middleware.GetTraceID(r.Context())
	logger.Error(message,
		zap.String("trace_id", traceID),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)

	respondJSON(w, status, dto.ErrorResponse{
		Error:   message,
		TraceID: traceID,
	})
}

// optionFields are the form fields forwarded to converters as the
// options snapshot.
var optionFields = []string{"output_format", "width", "height", "crop", "quality", "charset", "text_case"}

func collectOptions(r *http.Request) map[string]string {
	options := make(map[string]string)
	for _, field := range optionFields {
		if v := r.FormValue(field); v != "" {
			options[field] = v
		}
	}
	return options
}
