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

// NodeListResponse for GET /containers/{cid}/graphs/nodes
type NodeListResponse struct {
	Nodes []*models.Node `json:"nodes"`
	Total int            `json:"total"`
}

// EdgeListResponse for GET /containers/{cid}/graphs/edges
type EdgeListResponse struct {
	Edges []*models.Edge `json:"edges"`
	Total int            `json:"total"`
}

// ============================================================================
// Handler
// ============================================================================

// GraphHandler handles node and edge HTTP requests.
type GraphHandler struct {
	nodeService services.NodeService
	edgeService services.EdgeService
	logger      *zap.Logger
}

// NewGraphHandler creates a new graph handler.
func NewGraphHandler(
	nodeService services.NodeService,
	edgeService services.EdgeService,
	logger *zap.Logger,
) *GraphHandler {
	return &GraphHandler{
		nodeService: nodeService,
		edgeService: edgeService,
		logger:      logger,
	}
}

// RegisterRoutes registers the graph handler's routes on the given mux.
func (h *GraphHandler) RegisterRoutes(mux *http.ServeMux) {
	nodes := "/containers/{cid}/graphs/nodes"
	edges := "/containers/{cid}/graphs/edges"

	mux.HandleFunc("POST "+nodes, h.CreateNodes)
	mux.HandleFunc("GET "+nodes, h.ListNodes)
	mux.HandleFunc("GET "+nodes+"/{nid}", h.GetNode)
	mux.HandleFunc("DELETE "+nodes+"/{nid}", h.ArchiveNode)
	mux.HandleFunc("GET "+nodes+"/{nid}/edges", h.ListNodeEdges)

	mux.HandleFunc("POST "+edges, h.CreateEdges)
	mux.HandleFunc("GET "+edges, h.ListEdges)
	mux.HandleFunc("GET "+edges+"/{eid}", h.GetEdge)
	mux.HandleFunc("DELETE "+edges+"/{eid}", h.ArchiveEdge)
}

// CreateNodes handles POST /containers/{cid}/graphs/nodes.
// The body is a JSON array of nodes; the whole batch validates and writes as
// one transaction.
func (h *GraphHandler) CreateNodes(w http.ResponseWriter, r *http.Request) {
	containerID, ok := ParseContainerID(w, r, h.logger)
	if !ok {
		return
	}

	var nodes []*models.Node
	if err := json.NewDecoder(r.Body).Decode(&nodes); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := h.nodeService.CreateOrUpdate(r.Context(), containerID, nodes); err != nil {
		h.logger.Error("Failed to create nodes",
			zap.String("container_id", containerID.String()),
			zap.Int("count", len(nodes)),
			zap.Error(err))
		WriteServiceError(w, "create_nodes_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: nodes}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListNodes handles GET /containers/{cid}/graphs/nodes
func (h *GraphHandler) ListNodes(w http.ResponseWriter, r *http.Request) {
	containerID, ok := ParseContainerID(w, r, h.logger)
	if !ok {
		return
	}

	nodes, err := h.nodeService.List(r.Context(), containerID, parseListOptions(r))
	if err != nil {
		h.logger.Error("Failed to list nodes",
			zap.String("container_id", containerID.String()),
			zap.Error(err))
		WriteServiceError(w, "list_nodes_failed", err, h.logger)
		return
	}

	response := NodeListResponse{Nodes: nodes, Total: len(nodes)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetNode handles GET /containers/{cid}/graphs/nodes/{nid}
func (h *GraphHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	containerID, ok := ParseContainerID(w, r, h.logger)
	if !ok {
		return
	}
	nodeID, ok := ParseNodeID(w, r, h.logger)
	if !ok {
		return
	}

	node, err := h.nodeService.Retrieve(r.Context(), containerID, nodeID)
	if err != nil {
		WriteServiceError(w, "get_node_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: node}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ArchiveNode handles DELETE /containers/{cid}/graphs/nodes/{nid}
func (h *GraphHandler) ArchiveNode(w http.ResponseWriter, r *http.Request) {
	containerID, ok := ParseContainerID(w, r, h.logger)
	if !ok {
		return
	}
	nodeID, ok := ParseNodeID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.nodeService.Archive(r.Context(), containerID, nodeID); err != nil {
		WriteServiceError(w, "archive_node_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "node archived"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListNodeEdges handles GET /containers/{cid}/graphs/nodes/{nid}/edges
func (h *GraphHandler) ListNodeEdges(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseContainerID(w, r, h.logger); !ok {
		return
	}
	nodeID, ok := ParseNodeID(w, r, h.logger)
	if !ok {
		return
	}

	edges, err := h.edgeService.ListByNode(r.Context(), nodeID, parseListOptions(r))
	if err != nil {
		h.logger.Error("Failed to list node edges",
			zap.String("node_id", nodeID.String()),
			zap.Error(err))
		WriteServiceError(w, "list_node_edges_failed", err, h.logger)
		return
	}

	response := EdgeListResponse{Edges: edges, Total: len(edges)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// CreateEdges handles POST /containers/{cid}/graphs/edges.
// The body is a JSON array of edges; endpoints may be node ids or original
// data ids.
func (h *GraphHandler) CreateEdges(w http.ResponseWriter, r *http.Request) {
	containerID, ok := ParseContainerID(w, r, h.logger)
	if !ok {
		return
	}

	var edges []*models.Edge
	if err := json.NewDecoder(r.Body).Decode(&edges); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := h.edgeService.CreateOrUpdate(r.Context(), containerID, edges); err != nil {
		h.logger.Error("Failed to create edges",
			zap.String("container_id", containerID.String()),
			zap.Int("count", len(edges)),
			zap.Error(err))
		WriteServiceError(w, "create_edges_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: edges}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListEdges handles GET /containers/{cid}/graphs/edges
func (h *GraphHandler) ListEdges(w http.ResponseWriter, r *http.Request) {
	containerID, ok := ParseContainerID(w, r, h.logger)
	if !ok {
		return
	}

	edges, err := h.edgeService.List(r.Context(), containerID, parseListOptions(r))
	if err != nil {
		h.logger.Error("Failed to list edges",
			zap.String("container_id", containerID.String()),
			zap.Error(err))
		WriteServiceError(w, "list_edges_failed", err, h.logger)
		return
	}

	response := EdgeListResponse{Edges: edges, Total: len(edges)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetEdge handles GET /containers/{cid}/graphs/edges/{eid}
func (h *GraphHandler) GetEdge(w http.ResponseWriter, r *http.Request) {
	containerID, ok := ParseContainerID(w, r, h.logger)
	if !ok {
		return
	}
	edgeID, ok := ParseEdgeID(w, r, h.logger)
	if !ok {
		return
	}

	edge, err := h.edgeService.Retrieve(r.Context(), containerID, edgeID)
	if err != nil {
		WriteServiceError(w, "get_edge_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: edge}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ArchiveEdge handles DELETE /containers/{cid}/graphs/edges/{eid}
func (h *GraphHandler) ArchiveEdge(w http.ResponseWriter, r *http.Request) {
	containerID, ok := ParseContainerID(w, r, h.logger)
	if !ok {
		return
	}
	edgeID, ok := ParseEdgeID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.edgeService.Archive(r.Context(), containerID, edgeID); err != nil {
		WriteServiceError(w, "archive_edge_failed", err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "edge archived"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
