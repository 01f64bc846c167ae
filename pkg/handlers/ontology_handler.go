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

// CreateContainerRequest for POST /containers
type CreateContainerRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CreateGraphRequest for POST /containers/{cid}/graphs
type CreateGraphRequest struct {
	CreatedBy string `json:"created_by,omitempty"`
}

// SetActiveGraphRequest for PUT /containers/{cid}/graphs/active
type SetActiveGraphRequest struct {
	GraphID uuid.UUID `json:"graph_id"`
}

// CreateMetatypeRequest for POST /containers/{cid}/metatypes
type CreateMetatypeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CreateMetatypeKeyRequest for POST /containers/{cid}/metatypes/{mid}/keys
type CreateMetatypeKeyRequest struct {
	Name         string                `json:"name"`
	PropertyName string                `json:"property_name"`
	Description  string                `json:"description,omitempty"`
	Required     bool                  `json:"required"`
	DataType     string                `json:"data_type"`
	Options      []string              `json:"options,omitempty"`
	DefaultValue *string               `json:"default_value,omitempty"`
	Validation   *models.KeyValidation `json:"validation,omitempty"`
}

// CreateRelationshipPairRequest for POST /containers/{cid}/relationship-pairs
type CreateRelationshipPairRequest struct {
	Name                  string    `json:"name"`
	OriginMetatypeID      uuid.UUID `json:"origin_metatype_id"`
	DestinationMetatypeID uuid.UUID `json:"destination_metatype_id"`
	RelationshipType      string    `json:"relationship_type,omitempty"`
}

// ContainerListResponse for GET /containers
type ContainerListResponse struct {
	Containers []*models.Container `json:"containers"`
	Total      int                 `json:"total"`
}

// MetatypeListResponse for GET /containers/{cid}/metatypes
type MetatypeListResponse struct {
	Metatypes []*models.Metatype `json:"metatypes"`
	Total     int                `json:"total"`
}

// ============================================================================
// Handler
// ============================================================================

// OntologyHandler handles container, graph, metatype, and relationship pair
// HTTP requests.
type OntologyHandler struct {
	ontologyService services.OntologyService
	logger          *zap.Logger
}

// NewOntologyHandler creates a new ontology handler.
func NewOntologyHandler(ontologyService services.OntologyService, logger *zap.Logger) *OntologyHandler {
	return &OntologyHandler{
		ontologyService: ontologyService,
		logger:          logger,
	}
}

// RegisterRoutes registers the ontology handler's routes on the given mux.
func (h *OntologyHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /containers", h.CreateContainer)
	mux.HandleFunc("GET /containers", h.ListContainers)
	mux.HandleFunc("GET /containers/{cid}", h.GetContainer)
	mux.HandleFunc("DELETE /containers/{cid}", h.ArchiveContainer)

	mux.HandleFunc("POST /containers/{cid}/graphs", h.CreateGraph)
	mux.HandleFunc("GET /containers/{cid}/graphs", h.ListGraphs)
	mux.HandleFunc("PUT /containers/{cid}/graphs/active", h.SetActiveGraph)

	metatypes := "/containers/{cid}/metatypes"
	mux.HandleFunc("POST "+metatypes, h.CreateMetatype)
	mux.HandleFunc("GET "+metatypes, h.ListMetatypes)
	mux.HandleFunc("GET "+metatypes+"/{mid}", h.GetMetatype)
	mux.HandleFunc("DELETE "+metatypes+"/{mid}", h.ArchiveMetatype)

	mux.HandleFunc("POST "+metatypes+"/{mid}/keys", h.CreateMetatypeKey)
	mux.HandleFunc("GET "+metatypes+"/{mid}/keys", h.ListMetatypeKeys)
	mux.HandleFunc("DELETE "+metatypes+"/{mid}/keys/{kid}", h.ArchiveMetatypeKey)

	pairs := "/containers/{cid}/relationship-pairs"
	mux.HandleFunc("POST "+pairs, h.CreateRelationshipPair)
	mux.HandleFunc("GET "+pairs, h.ListRelationshipPairs)
	mux.HandleFunc("DELETE "+pairs+"/{pid}", h.ArchiveRelationshipPair)
}

// CreateContainer handles POST /containers.
// A new container comes with a bootstrapped active graph.
func (h *OntologyHandler) CreateContainer(w http.ResponseWriter, r *http.Request) {
	var req CreateContainerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	container := &models.Container{Name: req.Name, Description: req.Description}
	created, err := h.ontologyService.CreateContainer(r.Context(), container)
	if err != nil {
		h.logger.Error("Failed to create container",
			zap.String("name", req.Name),
			zap.Error(err))
		WriteServiceError(w, "create_container_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: created}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListContainers handles GET /containers
func (h *OntologyHandler) ListContainers(w http.ResponseWriter, r *http.Request) {
	containers, err := h.ontologyService.ListContainers(r.Context())
	if err != nil {
		h.logger.Error("Failed to list containers", zap.Error(err))
		WriteServiceError(w, "list_containers_failed", err, h.logger)
		return
	}

	response := ContainerListResponse{Containers: containers, Total: len(containers)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetContainer handles GET /containers/{cid}
func (h *OntologyHandler) GetContainer(w http.ResponseWriter, r *http.Request) {
	containerID, ok := ParseContainerID(w, r, h.logger)
	if !ok {
		return
	}

	container, err := h.ontologyService.RetrieveContainer(r.Context(), containerID)
	if err != nil {
		WriteServiceError(w, "get_container_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: container}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ArchiveContainer handles DELETE /containers/{cid}
func (h *OntologyHandler) ArchiveContainer(w http.ResponseWriter, r *http.Request) {
	containerID, ok := ParseContainerID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.ontologyService.ArchiveContainer(r.Context(), containerID); err != nil {
		WriteServiceError(w, "archive_container_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "container archived"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// CreateGraph handles POST /containers/{cid}/graphs
func (h *OntologyHandler) CreateGraph(w http.ResponseWriter, r *http.Request) {
	containerID, ok := ParseContainerID(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateGraphRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if req.CreatedBy == "" {
		req.CreatedBy = "api"
	}

	graph, err := h.ontologyService.CreateGraph(r.Context(), containerID, req.CreatedBy)
	if err != nil {
		h.logger.Error("Failed to create graph",
			zap.String("container_id", containerID.String()),
			zap.Error(err))
		WriteServiceError(w, "create_graph_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: graph}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListGraphs handles GET /containers/{cid}/graphs
func (h *OntologyHandler) ListGraphs(w http.ResponseWriter, r *http.Request) {
	containerID, ok := ParseContainerID(w, r, h.logger)
	if !ok {
		return
	}

	graphs, err := h.ontologyService.ListGraphs(r.Context(), containerID)
	if err != nil {
		WriteServiceError(w, "list_graphs_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: graphs}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// SetActiveGraph handles PUT /containers/{cid}/graphs/active.
// Node and edge writes land in the active graph from the next batch on.
func (h *OntologyHandler) SetActiveGraph(w http.ResponseWriter, r *http.Request) {
	containerID, ok := ParseContainerID(w, r, h.logger)
	if !ok {
		return
	}

	var req SetActiveGraphRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := h.ontologyService.SetActiveGraph(r.Context(), containerID, req.GraphID); err != nil {
		h.logger.Error("Failed to set active graph",
			zap.String("container_id", containerID.String()),
			zap.String("graph_id", req.GraphID.String()),
			zap.Error(err))
		WriteServiceError(w, "set_active_graph_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "active graph updated"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// CreateMetatype handles POST /containers/{cid}/metatypes
func (h *OntologyHandler) CreateMetatype(w http.ResponseWriter, r *http.Request) {
	containerID, ok := ParseContainerID(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateMetatypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	metatype := &models.Metatype{
		ContainerID: containerID,
		Name:        req.Name,
		Description: req.Description,
	}

	created, err := h.ontologyService.CreateMetatype(r.Context(), metatype)
	if err != nil {
		h.logger.Error("Failed to create metatype",
			zap.String("container_id", containerID.String()),
			zap.String("name", req.Name),
			zap.Error(err))
		WriteServiceError(w, "create_metatype_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: created}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListMetatypes handles GET /containers/{cid}/metatypes
func (h *OntologyHandler) ListMetatypes(w http.ResponseWriter, r *http.Request) {
	containerID, ok := ParseContainerID(w, r, h.logger)
	if !ok {
		return
	}

	metatypes, err := h.ontologyService.ListMetatypes(r.Context(), containerID)
	if err != nil {
		WriteServiceError(w, "list_metatypes_failed", err, h.logger)
		return
	}

	response := MetatypeListResponse{Metatypes: metatypes, Total: len(metatypes)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetMetatype handles GET /containers/{cid}/metatypes/{mid}
func (h *OntologyHandler) GetMetatype(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseContainerID(w, r, h.logger); !ok {
		return
	}
	metatypeID, ok := ParseMetatypeID(w, r, h.logger)
	if !ok {
		return
	}

	metatype, err := h.ontologyService.RetrieveMetatype(r.Context(), metatypeID)
	if err != nil {
		WriteServiceError(w, "get_metatype_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: metatype}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ArchiveMetatype handles DELETE /containers/{cid}/metatypes/{mid}
func (h *OntologyHandler) ArchiveMetatype(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseContainerID(w, r, h.logger); !ok {
		return
	}
	metatypeID, ok := ParseMetatypeID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.ontologyService.ArchiveMetatype(r.Context(), metatypeID); err != nil {
		WriteServiceError(w, "archive_metatype_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "metatype archived"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// CreateMetatypeKey handles POST /containers/{cid}/metatypes/{mid}/keys
func (h *OntologyHandler) CreateMetatypeKey(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseContainerID(w, r, h.logger); !ok {
		return
	}
	metatypeID, ok := ParseMetatypeID(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateMetatypeKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	key := &models.MetatypeKey{
		MetatypeID:   metatypeID,
		Name:         req.Name,
		PropertyName: req.PropertyName,
		Description:  req.Description,
		Required:     req.Required,
		DataType:     req.DataType,
		Options:      req.Options,
		DefaultValue: req.DefaultValue,
		Validation:   req.Validation,
	}

	created, err := h.ontologyService.CreateMetatypeKey(r.Context(), key)
	if err != nil {
		h.logger.Error("Failed to create metatype key",
			zap.String("metatype_id", metatypeID.String()),
			zap.String("property_name", req.PropertyName),
			zap.Error(err))
		WriteServiceError(w, "create_metatype_key_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: created}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListMetatypeKeys handles GET /containers/{cid}/metatypes/{mid}/keys
func (h *OntologyHandler) ListMetatypeKeys(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseContainerID(w, r, h.logger); !ok {
		return
	}
	metatypeID, ok := ParseMetatypeID(w, r, h.logger)
	if !ok {
		return
	}

	keys, err := h.ontologyService.ListMetatypeKeys(r.Context(), metatypeID)
	if err != nil {
		WriteServiceError(w, "list_metatype_keys_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: keys}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ArchiveMetatypeKey handles DELETE /containers/{cid}/metatypes/{mid}/keys/{kid}
func (h *OntologyHandler) ArchiveMetatypeKey(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseContainerID(w, r, h.logger); !ok {
		return
	}
	if _, ok := ParseMetatypeID(w, r, h.logger); !ok {
		return
	}
	keyID, ok := ParseKeyID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.ontologyService.ArchiveMetatypeKey(r.Context(), keyID); err != nil {
		WriteServiceError(w, "archive_metatype_key_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "metatype key archived"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// CreateRelationshipPair handles POST /containers/{cid}/relationship-pairs
func (h *OntologyHandler) CreateRelationshipPair(w http.ResponseWriter, r *http.Request) {
	containerID, ok := ParseContainerID(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateRelationshipPairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	pair := &models.MetatypeRelationshipPair{
		ContainerID:           containerID,
		Name:                  req.Name,
		OriginMetatypeID:      req.OriginMetatypeID,
		DestinationMetatypeID: req.DestinationMetatypeID,
		RelationshipType:      req.RelationshipType,
	}

	created, err := h.ontologyService.CreateRelationshipPair(r.Context(), pair)
	if err != nil {
		h.logger.Error("Failed to create relationship pair",
			zap.String("container_id", containerID.String()),
			zap.String("name", req.Name),
			zap.Error(err))
		WriteServiceError(w, "create_relationship_pair_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: created}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListRelationshipPairs handles GET /containers/{cid}/relationship-pairs
func (h *OntologyHandler) ListRelationshipPairs(w http.ResponseWriter, r *http.Request) {
	containerID, ok := ParseContainerID(w, r, h.logger)
	if !ok {
		return
	}

	pairs, err := h.ontologyService.ListRelationshipPairs(r.Context(), containerID)
	if err != nil {
		WriteServiceError(w, "list_relationship_pairs_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: pairs}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ArchiveRelationshipPair handles DELETE /containers/{cid}/relationship-pairs/{pid}
func (h *OntologyHandler) ArchiveRelationshipPair(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseContainerID(w, r, h.logger); !ok {
		return
	}
	pairID, ok := ParsePairID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.ontologyService.ArchiveRelationshipPair(r.Context(), pairID); err != nil {
		WriteServiceError(w, "archive_relationship_pair_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "relationship pair archived"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
