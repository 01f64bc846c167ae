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

// CreateDataTargetRequest for POST /containers/{cid}/data/targets
type CreateDataTargetRequest struct {
	Name   string          `json:"name"`
	Config json.RawMessage `json:"config"`
}

// SetDataTargetActiveRequest for PUT /containers/{cid}/data/targets/{tid}/active
type SetDataTargetActiveRequest struct {
	Active bool `json:"active"`
}

// DataTargetListResponse for GET /containers/{cid}/data/targets
type DataTargetListResponse struct {
	Targets []*models.DataTarget `json:"targets"`
	Total   int                  `json:"total"`
}

// ============================================================================
// Handler
// ============================================================================

// DataTargetHandler handles data target HTTP requests.
type DataTargetHandler struct {
	targetService services.DataTargetService
	logger        *zap.Logger
}

// NewDataTargetHandler creates a new data target handler.
func NewDataTargetHandler(targetService services.DataTargetService, logger *zap.Logger) *DataTargetHandler {
	return &DataTargetHandler{
		targetService: targetService,
		logger:        logger,
	}
}

// RegisterRoutes registers the data target handler's routes on the given mux.
func (h *DataTargetHandler) RegisterRoutes(mux *http.ServeMux) {
	base := "/containers/{cid}/data/targets"

	mux.HandleFunc("POST "+base, h.Create)
	mux.HandleFunc("GET "+base, h.List)
	mux.HandleFunc("GET "+base+"/{tid}", h.Get)
	mux.HandleFunc("PUT "+base+"/{tid}/active", h.SetActive)
	mux.HandleFunc("DELETE "+base+"/{tid}", h.Delete)
}

// Create handles POST /containers/{cid}/data/targets.
// Targets are created inactive; activate them through the active endpoint.
func (h *DataTargetHandler) Create(w http.ResponseWriter, r *http.Request) {
	containerID, ok := ParseContainerID(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateDataTargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	target := &models.DataTarget{
		ContainerID: containerID,
		Name:        req.Name,
		Config:      req.Config,
	}

	created, err := h.targetService.Create(r.Context(), target)
	if err != nil {
		h.logger.Error("Failed to create data target",
			zap.String("container_id", containerID.String()),
			zap.String("name", req.Name),
			zap.Error(err))
		WriteServiceError(w, "create_data_target_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: created}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /containers/{cid}/data/targets
func (h *DataTargetHandler) List(w http.ResponseWriter, r *http.Request) {
	containerID, ok := ParseContainerID(w, r, h.logger)
	if !ok {
		return
	}

	targets, err := h.targetService.List(r.Context(), containerID)
	if err != nil {
		h.logger.Error("Failed to list data targets",
			zap.String("container_id", containerID.String()),
			zap.Error(err))
		WriteServiceError(w, "list_data_targets_failed", err, h.logger)
		return
	}

	response := DataTargetListResponse{Targets: targets, Total: len(targets)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /containers/{cid}/data/targets/{tid}
func (h *DataTargetHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseContainerID(w, r, h.logger); !ok {
		return
	}
	targetID, ok := ParseTargetID(w, r, h.logger)
	if !ok {
		return
	}

	target, err := h.targetService.Retrieve(r.Context(), targetID)
	if err != nil {
		WriteServiceError(w, "get_data_target_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: target}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// SetActive handles PUT /containers/{cid}/data/targets/{tid}/active
func (h *DataTargetHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseContainerID(w, r, h.logger); !ok {
		return
	}
	targetID, ok := ParseTargetID(w, r, h.logger)
	if !ok {
		return
	}

	var req SetDataTargetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := h.targetService.SetActive(r.Context(), targetID, req.Active); err != nil {
		h.logger.Error("Failed to set data target active",
			zap.String("target_id", targetID.String()),
			zap.Bool("active", req.Active),
			zap.Error(err))
		WriteServiceError(w, "set_data_target_active_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "data target updated"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /containers/{cid}/data/targets/{tid}
func (h *DataTargetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseContainerID(w, r, h.logger); !ok {
		return
	}
	targetID, ok := ParseTargetID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.targetService.Delete(r.Context(), targetID); err != nil {
		h.logger.Error("Failed to delete data target",
			zap.String("target_id", targetID.String()),
			zap.Error(err))
		WriteServiceError(w, "delete_data_target_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "data target deleted"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
