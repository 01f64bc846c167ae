package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/idaholab/Deep-Lynx-sub010/pkg/models"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// CreateImportRequest for POST /datasources/{dsid}/imports
type CreateImportRequest struct {
	Reference string            `json:"reference"`
	Records   []json.RawMessage `json:"records"`
}

// SetImportStatusRequest for PUT /imports/{iid}
type SetImportStatusRequest struct {
	Status  string  `json:"status"`
	Message *string `json:"message,omitempty"`
}

// ImportListResponse for GET /datasources/{dsid}/imports
type ImportListResponse struct {
	Imports []*models.Import `json:"imports"`
	Total   int              `json:"total"`
}

// ImportProgressResponse for GET /imports/{iid}/progress
type ImportProgressResponse struct {
	Total     int64 `json:"total"`
	Remaining int64 `json:"remaining"`
}

// ============================================================================
// Handler
// ============================================================================

// ImportHandler handles import lifecycle HTTP requests.
type ImportHandler struct {
	importService services.ImportService
	logger        *zap.Logger
}

// NewImportHandler creates a new import handler.
func NewImportHandler(importService services.ImportService, logger *zap.Logger) *ImportHandler {
	return &ImportHandler{
		importService: importService,
		logger:        logger,
	}
}

// RegisterRoutes registers the import handler's routes on the given mux.
func (h *ImportHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /datasources/{dsid}/imports", h.Create)
	mux.HandleFunc("GET /datasources/{dsid}/imports", h.List)
	mux.HandleFunc("GET /imports/{iid}", h.Get)
	mux.HandleFunc("PUT /imports/{iid}", h.SetStatus)
	mux.HandleFunc("GET /imports/{iid}/progress", h.Progress)
}

// Create handles POST /datasources/{dsid}/imports.
// Records the batch and stages every raw record in one transaction.
func (h *ImportHandler) Create(w http.ResponseWriter, r *http.Request) {
	dataSourceID, ok := ParseDataSourceID(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	imp, err := h.importService.CreateImport(r.Context(), dataSourceID, req.Reference, req.Records)
	if err != nil {
		h.logger.Error("Failed to create import",
			zap.String("data_source_id", dataSourceID.String()),
			zap.Int("records", len(req.Records)),
			zap.Error(err))
		WriteServiceError(w, "create_import_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: imp}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /datasources/{dsid}/imports
func (h *ImportHandler) List(w http.ResponseWriter, r *http.Request) {
	dataSourceID, ok := ParseDataSourceID(w, r, h.logger)
	if !ok {
		return
	}

	imports, err := h.importService.List(r.Context(), dataSourceID, parseListOptions(r))
	if err != nil {
		h.logger.Error("Failed to list imports",
			zap.String("data_source_id", dataSourceID.String()),
			zap.Error(err))
		WriteServiceError(w, "list_imports_failed", err, h.logger)
		return
	}

	response := ImportListResponse{Imports: imports, Total: len(imports)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /imports/{iid}
func (h *ImportHandler) Get(w http.ResponseWriter, r *http.Request) {
	importID, ok := ParseImportID(w, r, h.logger)
	if !ok {
		return
	}

	imp, err := h.importService.Retrieve(r.Context(), importID)
	if err != nil {
		WriteServiceError(w, "get_import_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: imp}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// SetStatus handles PUT /imports/{iid}.
// Transitions the import under its row lock; terminal statuses notify
// listeners.
func (h *ImportHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	importID, ok := ParseImportID(w, r, h.logger)
	if !ok {
		return
	}

	var req SetImportStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	status := models.ImportStatus(req.Status)
	switch status {
	case models.ImportReady, models.ImportProcessing, models.ImportError,
		models.ImportStopped, models.ImportCompleted:
	default:
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_status", "Unrecognized import status"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := h.importService.SetStatus(r.Context(), importID, status, req.Message); err != nil {
		h.logger.Error("Failed to set import status",
			zap.String("import_id", importID.String()),
			zap.String("status", req.Status),
			zap.Error(err))
		WriteServiceError(w, "set_import_status_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "import updated"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Progress handles GET /imports/{iid}/progress
func (h *ImportHandler) Progress(w http.ResponseWriter, r *http.Request) {
	importID, ok := ParseImportID(w, r, h.logger)
	if !ok {
		return
	}

	total, remaining, err := h.importService.Progress(r.Context(), importID)
	if err != nil {
		WriteServiceError(w, "get_import_progress_failed", err, h.logger)
		return
	}

	response := ImportProgressResponse{Total: total, Remaining: remaining}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
