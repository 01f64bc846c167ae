package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/idaholab/Deep-Lynx-sub010/pkg/models"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// CreateRegistrationRequest for POST /events
type CreateRegistrationRequest struct {
	AppName      string     `json:"app_name"`
	AppURL       string     `json:"app_url"`
	EventType    string     `json:"event_type"`
	DataSourceID *uuid.UUID `json:"data_source_id,omitempty"`
	ContainerID  *uuid.UUID `json:"container_id,omitempty"`
}

// SetRegistrationActiveRequest for PUT /events/{rid}
type SetRegistrationActiveRequest struct {
	Active bool `json:"active"`
}

// RegistrationListResponse for GET /events
type RegistrationListResponse struct {
	Registrations []*models.EventRegistration `json:"registrations"`
	Total         int                         `json:"total"`
}

// ============================================================================
// Handler
// ============================================================================

// EventHandler handles webhook registration HTTP requests.
type EventHandler struct {
	registrationService services.RegistrationService
	logger              *zap.Logger
}

// NewEventHandler creates a new event handler.
func NewEventHandler(registrationService services.RegistrationService, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		registrationService: registrationService,
		logger:              logger,
	}
}

// RegisterRoutes registers the event handler's routes on the given mux.
func (h *EventHandler) RegisterRoutes(mux *http.ServeMux) {
	base := "/events"

	mux.HandleFunc("POST "+base, h.Create)
	mux.HandleFunc("GET "+base, h.List)
	mux.HandleFunc("GET "+base+"/{rid}", h.Get)
	mux.HandleFunc("PUT "+base+"/{rid}", h.SetActive)
	mux.HandleFunc("DELETE "+base+"/{rid}", h.Delete)
}

// Create handles POST /events
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	registration := &models.EventRegistration{
		AppName:      req.AppName,
		AppURL:       req.AppURL,
		EventType:    models.EventType(req.EventType),
		DataSourceID: req.DataSourceID,
		ContainerID:  req.ContainerID,
	}

	created, err := h.registrationService.Create(r.Context(), registration)
	if err != nil {
		h.logger.Error("Failed to create event registration",
			zap.String("app_name", req.AppName),
			zap.String("event_type", req.EventType),
			zap.Error(err))
		WriteServiceError(w, "create_registration_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: created}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /events
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	registrations, err := h.registrationService.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list event registrations", zap.Error(err))
		WriteServiceError(w, "list_registrations_failed", err, h.logger)
		return
	}

	response := RegistrationListResponse{Registrations: registrations, Total: len(registrations)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /events/{rid}
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	registrationID, ok := ParseRegistrationID(w, r, h.logger)
	if !ok {
		return
	}

	registration, err := h.registrationService.Retrieve(r.Context(), registrationID)
	if err != nil {
		WriteServiceError(w, "get_registration_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: registration}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// SetActive handles PUT /events/{rid}
func (h *EventHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	registrationID, ok := ParseRegistrationID(w, r, h.logger)
	if !ok {
		return
	}

	var req SetRegistrationActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := h.registrationService.SetActive(r.Context(), registrationID, req.Active); err != nil {
		h.logger.Error("Failed to update event registration",
			zap.String("registration_id", registrationID.String()),
			zap.Bool("active", req.Active),
			zap.Error(err))
		WriteServiceError(w, "set_registration_active_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "registration updated"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /events/{rid}
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	registrationID, ok := ParseRegistrationID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.registrationService.Delete(r.Context(), registrationID); err != nil {
		h.logger.Error("Failed to delete event registration",
			zap.String("registration_id", registrationID.String()),
			zap.Error(err))
		WriteServiceError(w, "delete_registration_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "registration deleted"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
