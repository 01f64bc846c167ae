package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/idaholab/Deep-Lynx-sub010/pkg/apperrors"
)

// ApiResponse is the standard JSON envelope for successful responses.
type ApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// WriteServiceError maps a service error onto an HTTP error response. Sentinel
// errors from apperrors carry their natural status; everything else is a 500.
func WriteServiceError(w http.ResponseWriter, errorCode string, err error, logger *zap.Logger) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperrors.ErrValidation),
		errors.Is(err, apperrors.ErrNoActiveGraph),
		errors.Is(err, apperrors.ErrUnknownEventType),
		errors.Is(err, apperrors.ErrUnknownAdapter):
		status = http.StatusBadRequest
	case errors.Is(err, apperrors.ErrConflict),
		errors.Is(err, apperrors.ErrExportNotRunnable),
		errors.Is(err, apperrors.ErrLockNotAvailable):
		status = http.StatusConflict
	}

	if werr := ErrorResponse(w, status, errorCode, err.Error()); werr != nil {
		logger.Error("Failed to write error response", zap.Error(werr))
	}
}
