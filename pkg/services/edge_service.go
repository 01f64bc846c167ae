package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/idaholab/Deep-Lynx-sub010/pkg/apperrors"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/database"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/models"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/repositories"
)

// EdgeService validates and persists edges. Endpoints referenced by original
// id are resolved to node ids before anything is written; like node writes,
// an edge batch is all-or-nothing.
type EdgeService interface {
	// CreateOrUpdate resolves and validates a batch of edges, then writes them
	// to the container's active graph in a single transaction.
	CreateOrUpdate(ctx context.Context, containerID uuid.UUID, edges []*models.Edge) error

	// Retrieve fetches an unarchived edge scoped to a container.
	Retrieve(ctx context.Context, containerID, id uuid.UUID) (*models.Edge, error)

	// List retrieves unarchived edges for a container.
	List(ctx context.Context, containerID uuid.UUID, opts repositories.ListOptions) ([]*models.Edge, error)

	// ListByNode retrieves unarchived edges touching a node.
	ListByNode(ctx context.Context, nodeID uuid.UUID, opts repositories.ListOptions) ([]*models.Edge, error)

	// Archive soft-deletes an edge.
	Archive(ctx context.Context, containerID, id uuid.UUID) error
}

type edgeService struct {
	db        database.TxBeginner
	edges     repositories.EdgeRepository
	nodes     repositories.NodeRepository
	graphs    repositories.GraphRepository
	metatypes repositories.MetatypeRepository
	emitter   EventEmitter
	logger    *zap.Logger
}

// NewEdgeService creates an edge service.
func NewEdgeService(
	db database.TxBeginner,
	edges repositories.EdgeRepository,
	nodes repositories.NodeRepository,
	graphs repositories.GraphRepository,
	metatypes repositories.MetatypeRepository,
	emitter EventEmitter,
	logger *zap.Logger,
) EdgeService {
	return &edgeService{
		db:        db,
		edges:     edges,
		nodes:     nodes,
		graphs:    graphs,
		metatypes: metatypes,
		emitter:   emitter,
		logger:    logger.Named("edge-service"),
	}
}

var _ EdgeService = (*edgeService)(nil)

func (s *edgeService) CreateOrUpdate(ctx context.Context, containerID uuid.UUID, edges []*models.Edge) error {
	if len(edges) == 0 {
		return nil
	}

	graphID, err := s.graphs.ActiveGraphID(ctx, containerID)
	if err != nil {
		return fmt.Errorf("failed to resolve active graph: %w", err)
	}

	pairs := map[uuid.UUID]*models.MetatypeRelationshipPair{}
	for _, edge := range edges {
		if edge.ContainerID == uuid.Nil {
			edge.ContainerID = containerID
		}
		if edge.ContainerID != containerID {
			return fmt.Errorf("%w: edge does not belong to container %s", apperrors.ErrValidation, containerID)
		}
		edge.GraphID = graphID

		pair, ok := pairs[edge.RelationshipPairID]
		if !ok {
			pair, err = s.metatypes.RetrievePair(ctx, edge.RelationshipPairID)
			if err != nil {
				return fmt.Errorf("failed to load relationship pair %s: %w", edge.RelationshipPairID, err)
			}
			pairs[edge.RelationshipPairID] = pair
		}
		if pair.Archived {
			return fmt.Errorf("%w: relationship pair %s is archived", apperrors.ErrValidation, pair.Name)
		}
		if pair.ContainerID != containerID {
			return fmt.Errorf("%w: relationship pair %s belongs to another container", apperrors.ErrValidation, pair.Name)
		}

		if err := s.resolveEndpoints(ctx, containerID, edge); err != nil {
			return err
		}

		// The composite id must be set before the cardinality check so that
		// re-ingesting an existing edge is matched as an update, not a conflict.
		if edge.OriginalDataID != nil && edge.DataSourceID != nil && edge.CompositeOriginalID == nil {
			composite := compositeOriginalID(containerID, *edge.DataSourceID, *edge.OriginalDataID)
			edge.CompositeOriginalID = &composite
		}

		if err := s.checkCardinality(ctx, pair, edge); err != nil {
			return err
		}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	for _, edge := range edges {
		if err := s.edges.CreateOrUpdate(ctx, tx, edge); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("Persisted edges",
		zap.String("container_id", containerID.String()),
		zap.Int("count", len(edges)))

	return nil
}

// resolveEndpoints turns original-id endpoint references into node ids and
// verifies both endpoints exist in the container.
func (s *edgeService) resolveEndpoints(ctx context.Context, containerID uuid.UUID, edge *models.Edge) error {
	if edge.OriginNodeID == nil {
		if edge.OriginNodeOriginalID == nil || edge.DataSourceID == nil {
			return fmt.Errorf("%w: edge needs an origin node id or an original id with a data source", apperrors.ErrValidation)
		}
		composite := compositeOriginalID(containerID, *edge.DataSourceID, *edge.OriginNodeOriginalID)
		node, err := s.nodes.RetrieveByCompositeOriginalID(ctx, *edge.DataSourceID, composite)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return fmt.Errorf("%w: origin node with original id %q not found", apperrors.ErrValidation, *edge.OriginNodeOriginalID)
			}
			return err
		}
		edge.OriginNodeID = &node.ID
	} else if _, err := s.nodes.DomainRetrieve(ctx, containerID, *edge.OriginNodeID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("%w: origin node %s not found", apperrors.ErrValidation, *edge.OriginNodeID)
		}
		return err
	}

	if edge.DestinationNodeID == nil {
		if edge.DestinationNodeOriginalID == nil || edge.DataSourceID == nil {
			return fmt.Errorf("%w: edge needs a destination node id or an original id with a data source", apperrors.ErrValidation)
		}
		composite := compositeOriginalID(containerID, *edge.DataSourceID, *edge.DestinationNodeOriginalID)
		node, err := s.nodes.RetrieveByCompositeOriginalID(ctx, *edge.DataSourceID, composite)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return fmt.Errorf("%w: destination node with original id %q not found", apperrors.ErrValidation, *edge.DestinationNodeOriginalID)
			}
			return err
		}
		edge.DestinationNodeID = &node.ID
	} else if _, err := s.nodes.DomainRetrieve(ctx, containerID, *edge.DestinationNodeID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("%w: destination node %s not found", apperrors.ErrValidation, *edge.DestinationNodeID)
		}
		return err
	}

	return nil
}

// checkCardinality enforces the pair's relationship type against edges
// already in the graph. Updates of an existing edge (matched by composite id)
// are naturally exempt: the conflicting edge is the row being updated.
func (s *edgeService) checkCardinality(ctx context.Context, pair *models.MetatypeRelationshipPair, edge *models.Edge) error {
	existing, err := s.edges.ListByNodeID(ctx, *edge.OriginNodeID, repositories.ListOptions{})
	if err != nil {
		return err
	}
	destination, err := s.edges.ListByNodeID(ctx, *edge.DestinationNodeID, repositories.ListOptions{})
	if err != nil {
		return err
	}

	sameEdge := func(e *models.Edge) bool {
		return edge.CompositeOriginalID != nil && e.CompositeOriginalID != nil &&
			*edge.CompositeOriginalID == *e.CompositeOriginalID
	}

	switch pair.RelationshipType {
	case "one:one":
		for _, e := range append(existing, destination...) {
			if e.RelationshipPairID == pair.ID && !sameEdge(e) {
				return fmt.Errorf("%w: relationship %s is one:one and already connected", apperrors.ErrValidation, pair.Name)
			}
		}
	case "many:one":
		for _, e := range existing {
			if e.RelationshipPairID == pair.ID && e.OriginNodeID != nil &&
				*e.OriginNodeID == *edge.OriginNodeID && !sameEdge(e) {
				return fmt.Errorf("%w: relationship %s allows one destination per origin", apperrors.ErrValidation, pair.Name)
			}
		}
	case "one:many":
		for _, e := range destination {
			if e.RelationshipPairID == pair.ID && e.DestinationNodeID != nil &&
				*e.DestinationNodeID == *edge.DestinationNodeID && !sameEdge(e) {
				return fmt.Errorf("%w: relationship %s allows one origin per destination", apperrors.ErrValidation, pair.Name)
			}
		}
	}

	return nil
}

func (s *edgeService) Retrieve(ctx context.Context, containerID, id uuid.UUID) (*models.Edge, error) {
	return s.edges.DomainRetrieve(ctx, containerID, id)
}

func (s *edgeService) List(ctx context.Context, containerID uuid.UUID, opts repositories.ListOptions) ([]*models.Edge, error) {
	return s.edges.List(ctx, containerID, opts)
}

func (s *edgeService) ListByNode(ctx context.Context, nodeID uuid.UUID, opts repositories.ListOptions) ([]*models.Edge, error) {
	return s.edges.ListByNodeID(ctx, nodeID, opts)
}

func (s *edgeService) Archive(ctx context.Context, containerID, id uuid.UUID) error {
	if _, err := s.edges.DomainRetrieve(ctx, containerID, id); err != nil {
		return err
	}
	return s.edges.Archive(ctx, id)
}
