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

// CreateExportRequest for POST /containers/{cid}/data/export
type CreateExportRequest struct {
	Adapter string          `json:"adapter"`
	Config  json.RawMessage `json:"config"`
}

// ExportListResponse for GET /containers/{cid}/data/export
type ExportListResponse struct {
	Exports []*models.Export `json:"exports"`
	Total   int              `json:"total"`
}

// ============================================================================
// Handler
// ============================================================================

// ExportHandler handles export lifecycle HTTP requests.
type ExportHandler struct {
	exportService services.ExportService
	logger        *zap.Logger
}

// NewExportHandler creates a new export handler.
func NewExportHandler(exportService services.ExportService, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{
		exportService: exportService,
		logger:        logger,
	}
}

// RegisterRoutes registers the export handler's routes on the given mux.
func (h *ExportHandler) RegisterRoutes(mux *http.ServeMux) {
	base := "/containers/{cid}/data/export"

	mux.HandleFunc("POST "+base, h.Create)
	mux.HandleFunc("GET "+base, h.List)
	mux.HandleFunc("GET "+base+"/{exid}", h.Get)
	mux.HandleFunc("POST "+base+"/{exid}", h.Start)
	mux.HandleFunc("PUT "+base+"/{exid}", h.Stop)
	mux.HandleFunc("POST "+base+"/{exid}/reset", h.Reset)
	mux.HandleFunc("DELETE "+base+"/{exid}", h.Delete)
}

// Create handles POST /containers/{cid}/data/export
func (h *ExportHandler) Create(w http.ResponseWriter, r *http.Request) {
	containerID, ok := ParseContainerID(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	export, err := h.exportService.CreateExport(r.Context(), containerID, req.Adapter, req.Config)
	if err != nil {
		h.logger.Error("Failed to create export",
			zap.String("container_id", containerID.String()),
			zap.String("adapter", req.Adapter),
			zap.Error(err))
		WriteServiceError(w, "create_export_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: export}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /containers/{cid}/data/export
func (h *ExportHandler) List(w http.ResponseWriter, r *http.Request) {
	containerID, ok := ParseContainerID(w, r, h.logger)
	if !ok {
		return
	}

	exports, err := h.exportService.List(r.Context(), containerID)
	if err != nil {
		h.logger.Error("Failed to list exports",
			zap.String("container_id", containerID.String()),
			zap.Error(err))
		WriteServiceError(w, "list_exports_failed", err, h.logger)
		return
	}

	response := ExportListResponse{Exports: exports, Total: len(exports)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /containers/{cid}/data/export/{exid}
func (h *ExportHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseContainerID(w, r, h.logger); !ok {
		return
	}
	exportID, ok := ParseExportID(w, r, h.logger)
	if !ok {
		return
	}

	export, err := h.exportService.Retrieve(r.Context(), exportID)
	if err != nil {
		WriteServiceError(w, "get_export_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: export}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Start handles POST /containers/{cid}/data/export/{exid}.
// Starts a created export or resumes a paused or failed one.
func (h *ExportHandler) Start(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseContainerID(w, r, h.logger); !ok {
		return
	}
	exportID, ok := ParseExportID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.exportService.StartExport(r.Context(), exportID); err != nil {
		h.logger.Error("Failed to start export",
			zap.String("export_id", exportID.String()),
			zap.Error(err))
		WriteServiceError(w, "start_export_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "export started"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Stop handles PUT /containers/{cid}/data/export/{exid}.
// Pauses a processing export; already-written rows stay associated so a later
// start resumes where the run left off.
func (h *ExportHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseContainerID(w, r, h.logger); !ok {
		return
	}
	exportID, ok := ParseExportID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.exportService.StopExport(r.Context(), exportID); err != nil {
		h.logger.Error("Failed to stop export",
			zap.String("export_id", exportID.String()),
			zap.Error(err))
		WriteServiceError(w, "stop_export_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "export stopped"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Reset handles POST /containers/{cid}/data/export/{exid}/reset.
// Discards the export's progress and starts it over from a fresh snapshot.
func (h *ExportHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseContainerID(w, r, h.logger); !ok {
		return
	}
	exportID, ok := ParseExportID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.exportService.ResetExport(r.Context(), exportID); err != nil {
		h.logger.Error("Failed to reset export",
			zap.String("export_id", exportID.String()),
			zap.Error(err))
		WriteServiceError(w, "reset_export_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "export reset"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /containers/{cid}/data/export/{exid}
func (h *ExportHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseContainerID(w, r, h.logger); !ok {
		return
	}
	exportID, ok := ParseExportID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.exportService.DeleteExport(r.Context(), exportID); err != nil {
		h.logger.Error("Failed to delete export",
			zap.String("export_id", exportID.String()),
			zap.Error(err))
		WriteServiceError(w, "delete_export_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "export deleted"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
