package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/idaholab/Deep-Lynx-sub010/pkg/apperrors"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/database"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/models"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/repositories"
)

// NodeService validates and persists nodes. Writes are all-or-nothing: every
// node in a batch must validate against its metatype before anything is
// persisted, and the batch shares one transaction.
type NodeService interface {
	// CreateOrUpdate validates a batch of nodes against their metatypes and
	// writes them to the container's active graph in a single transaction.
	CreateOrUpdate(ctx context.Context, containerID uuid.UUID, nodes []*models.Node) error

	// Retrieve fetches an unarchived node scoped to a container.
	Retrieve(ctx context.Context, containerID, id uuid.UUID) (*models.Node, error)

	// List retrieves unarchived nodes for a container.
	List(ctx context.Context, containerID uuid.UUID, opts repositories.ListOptions) ([]*models.Node, error)

	// Archive soft-deletes a node.
	Archive(ctx context.Context, containerID, id uuid.UUID) error
}

type nodeService struct {
	db        database.TxBeginner
	nodes     repositories.NodeRepository
	graphs    repositories.GraphRepository
	metatypes repositories.MetatypeRepository
	emitter   EventEmitter
	logger    *zap.Logger
}

// NewNodeService creates a node service.
func NewNodeService(
	db database.TxBeginner,
	nodes repositories.NodeRepository,
	graphs repositories.GraphRepository,
	metatypes repositories.MetatypeRepository,
	emitter EventEmitter,
	logger *zap.Logger,
) NodeService {
	return &nodeService{
		db:        db,
		nodes:     nodes,
		graphs:    graphs,
		metatypes: metatypes,
		emitter:   emitter,
		logger:    logger.Named("node-service"),
	}
}

var _ NodeService = (*nodeService)(nil)

func (s *nodeService) CreateOrUpdate(ctx context.Context, containerID uuid.UUID, nodes []*models.Node) error {
	if len(nodes) == 0 {
		return nil
	}

	graphID, err := s.graphs.ActiveGraphID(ctx, containerID)
	if err != nil {
		return fmt.Errorf("failed to resolve active graph: %w", err)
	}

	// Validate everything before touching the database so a bad record cannot
	// leave a partial batch behind.
	metatypeKeys := map[uuid.UUID][]*models.MetatypeKey{}
	for _, node := range nodes {
		if node.ContainerID == uuid.Nil {
			node.ContainerID = containerID
		}
		if node.ContainerID != containerID {
			return fmt.Errorf("%w: node does not belong to container %s", apperrors.ErrValidation, containerID)
		}
		node.GraphID = graphID

		metatype, err := s.metatypes.Retrieve(ctx, node.MetatypeID)
		if err != nil {
			return fmt.Errorf("failed to load metatype %s: %w", node.MetatypeID, err)
		}
		if metatype.Archived {
			return fmt.Errorf("%w: metatype %s is archived", apperrors.ErrValidation, metatype.Name)
		}
		if metatype.ContainerID != containerID {
			return fmt.Errorf("%w: metatype %s belongs to another container", apperrors.ErrValidation, metatype.Name)
		}
		node.MetatypeName = metatype.Name

		keys, ok := metatypeKeys[node.MetatypeID]
		if !ok {
			keys, err = s.metatypes.ListKeys(ctx, node.MetatypeID)
			if err != nil {
				return fmt.Errorf("failed to load metatype keys: %w", err)
			}
			metatypeKeys[node.MetatypeID] = keys
		}

		validated, err := validateProperties(keys, node.Properties)
		if err != nil {
			return err
		}
		node.Properties = validated

		if node.OriginalDataID != nil && node.DataSourceID != nil && node.CompositeOriginalID == nil {
			composite := compositeOriginalID(containerID, *node.DataSourceID, *node.OriginalDataID)
			node.CompositeOriginalID = &composite
		}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	for _, node := range nodes {
		if err := s.nodes.CreateOrUpdate(ctx, tx, node); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("Persisted nodes",
		zap.String("container_id", containerID.String()),
		zap.Int("count", len(nodes)))

	s.emitIngested(ctx, containerID, nodes)

	return nil
}

func (s *nodeService) Retrieve(ctx context.Context, containerID, id uuid.UUID) (*models.Node, error) {
	return s.nodes.DomainRetrieve(ctx, containerID, id)
}

func (s *nodeService) List(ctx context.Context, containerID uuid.UUID, opts repositories.ListOptions) ([]*models.Node, error) {
	return s.nodes.List(ctx, containerID, opts)
}

func (s *nodeService) Archive(ctx context.Context, containerID, id uuid.UUID) error {
	if _, err := s.nodes.DomainRetrieve(ctx, containerID, id); err != nil {
		return err
	}
	return s.nodes.Archive(ctx, id)
}

// emitIngested notifies listeners of ingested data. Delivery is queued and
// must not fail the write that triggered it.
func (s *nodeService) emitIngested(ctx context.Context, containerID uuid.UUID, nodes []*models.Node) {
	if s.emitter == nil {
		return
	}

	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID.String()
	}

	err := s.emitter.Emit(ctx, models.Event{
		Type:       models.EventDataIngested,
		SourceID:   containerID,
		SourceType: models.SourceContainer,
		Data:       mustJSON(map[string]any{"node_ids": ids}),
	})
	if err != nil {
		s.logger.Warn("Failed to queue data_ingested event",
			zap.String("container_id", containerID.String()),
			zap.Error(err))
	}
}
