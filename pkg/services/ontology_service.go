package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/idaholab/Deep-Lynx-sub010/pkg/apperrors"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/models"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/repositories"
)

// OntologyService manages containers and their schema: metatypes, metatype
// keys, and relationship pairs. Creating a container bootstraps a graph and
// marks it active so node and edge writes have a target immediately.
type OntologyService interface {
	CreateContainer(ctx context.Context, container *models.Container) (*models.Container, error)
	RetrieveContainer(ctx context.Context, id uuid.UUID) (*models.Container, error)
	ListContainers(ctx context.Context) ([]*models.Container, error)
	ArchiveContainer(ctx context.Context, id uuid.UUID) error

	CreateGraph(ctx context.Context, containerID uuid.UUID, createdBy string) (*models.Graph, error)
	ListGraphs(ctx context.Context, containerID uuid.UUID) ([]*models.Graph, error)
	SetActiveGraph(ctx context.Context, containerID, graphID uuid.UUID) error

	CreateMetatype(ctx context.Context, metatype *models.Metatype) (*models.Metatype, error)
	RetrieveMetatype(ctx context.Context, id uuid.UUID) (*models.Metatype, error)
	ListMetatypes(ctx context.Context, containerID uuid.UUID) ([]*models.Metatype, error)
	ArchiveMetatype(ctx context.Context, id uuid.UUID) error

	CreateMetatypeKey(ctx context.Context, key *models.MetatypeKey) (*models.MetatypeKey, error)
	ListMetatypeKeys(ctx context.Context, metatypeID uuid.UUID) ([]*models.MetatypeKey, error)
	ArchiveMetatypeKey(ctx context.Context, id uuid.UUID) error

	CreateRelationshipPair(ctx context.Context, pair *models.MetatypeRelationshipPair) (*models.MetatypeRelationshipPair, error)
	ListRelationshipPairs(ctx context.Context, containerID uuid.UUID) ([]*models.MetatypeRelationshipPair, error)
	ArchiveRelationshipPair(ctx context.Context, id uuid.UUID) error
}

type ontologyService struct {
	containers repositories.ContainerRepository
	graphs     repositories.GraphRepository
	metatypes  repositories.MetatypeRepository
	logger     *zap.Logger
}

// NewOntologyService creates an ontology service.
func NewOntologyService(
	containers repositories.ContainerRepository,
	graphs repositories.GraphRepository,
	metatypes repositories.MetatypeRepository,
	logger *zap.Logger,
) OntologyService {
	return &ontologyService{
		containers: containers,
		graphs:     graphs,
		metatypes:  metatypes,
		logger:     logger.Named("ontology-service"),
	}
}

var _ OntologyService = (*ontologyService)(nil)

func (s *ontologyService) CreateContainer(ctx context.Context, container *models.Container) (*models.Container, error) {
	if container.Name == "" {
		return nil, fmt.Errorf("%w: container name is required", apperrors.ErrValidation)
	}

	if err := s.containers.Create(ctx, container); err != nil {
		return nil, err
	}

	graph := &models.Graph{ContainerID: container.ID, CreatedBy: "system"}
	if err := s.graphs.Create(ctx, graph); err != nil {
		return nil, fmt.Errorf("failed to bootstrap container graph: %w", err)
	}
	if err := s.graphs.SetActive(ctx, container.ID, graph.ID); err != nil {
		return nil, fmt.Errorf("failed to activate container graph: %w", err)
	}

	s.logger.Info("Created container",
		zap.String("container_id", container.ID.String()),
		zap.String("name", container.Name))

	return container, nil
}

func (s *ontologyService) RetrieveContainer(ctx context.Context, id uuid.UUID) (*models.Container, error) {
	return s.containers.Retrieve(ctx, id)
}

func (s *ontologyService) ListContainers(ctx context.Context) ([]*models.Container, error) {
	return s.containers.List(ctx)
}

func (s *ontologyService) ArchiveContainer(ctx context.Context, id uuid.UUID) error {
	return s.containers.Archive(ctx, id)
}

func (s *ontologyService) CreateGraph(ctx context.Context, containerID uuid.UUID, createdBy string) (*models.Graph, error) {
	if _, err := s.containers.Retrieve(ctx, containerID); err != nil {
		return nil, err
	}

	graph := &models.Graph{ContainerID: containerID, CreatedBy: createdBy}
	if err := s.graphs.Create(ctx, graph); err != nil {
		return nil, err
	}
	return graph, nil
}

func (s *ontologyService) ListGraphs(ctx context.Context, containerID uuid.UUID) ([]*models.Graph, error) {
	return s.graphs.List(ctx, containerID)
}

func (s *ontologyService) SetActiveGraph(ctx context.Context, containerID, graphID uuid.UUID) error {
	graph, err := s.graphs.Retrieve(ctx, graphID)
	if err != nil {
		return err
	}
	if graph.ContainerID != containerID {
		return fmt.Errorf("%w: graph belongs to another container", apperrors.ErrValidation)
	}
	if graph.Archived {
		return fmt.Errorf("%w: graph is archived", apperrors.ErrValidation)
	}

	return s.graphs.SetActive(ctx, containerID, graphID)
}

func (s *ontologyService) CreateMetatype(ctx context.Context, metatype *models.Metatype) (*models.Metatype, error) {
	if metatype.Name == "" {
		return nil, fmt.Errorf("%w: metatype name is required", apperrors.ErrValidation)
	}
	if _, err := s.containers.Retrieve(ctx, metatype.ContainerID); err != nil {
		return nil, err
	}

	if err := s.metatypes.Create(ctx, metatype); err != nil {
		return nil, err
	}
	return metatype, nil
}

func (s *ontologyService) RetrieveMetatype(ctx context.Context, id uuid.UUID) (*models.Metatype, error) {
	return s.metatypes.Retrieve(ctx, id)
}

func (s *ontologyService) ListMetatypes(ctx context.Context, containerID uuid.UUID) ([]*models.Metatype, error) {
	return s.metatypes.List(ctx, containerID)
}

func (s *ontologyService) ArchiveMetatype(ctx context.Context, id uuid.UUID) error {
	return s.metatypes.Archive(ctx, id)
}

func (s *ontologyService) CreateMetatypeKey(ctx context.Context, key *models.MetatypeKey) (*models.MetatypeKey, error) {
	if key.PropertyName == "" {
		return nil, fmt.Errorf("%w: property_name is required", apperrors.ErrValidation)
	}
	metatype, err := s.metatypes.Retrieve(ctx, key.MetatypeID)
	if err != nil {
		return nil, err
	}
	if metatype.Archived {
		return nil, fmt.Errorf("%w: metatype %s is archived", apperrors.ErrValidation, metatype.Name)
	}

	// Reject schemas that could never validate.
	if key.DataType == models.DataTypeEnumeration && len(key.Options) == 0 {
		return nil, fmt.Errorf("%w: enumeration key needs options", apperrors.ErrValidation)
	}
	if key.DefaultValue != nil {
		if _, err := coerceValue(key, *key.DefaultValue); err != nil {
			return nil, fmt.Errorf("%w: default value: %v", apperrors.ErrValidation, err)
		}
	}

	if err := s.metatypes.CreateKey(ctx, key); err != nil {
		return nil, err
	}
	return key, nil
}

func (s *ontologyService) ListMetatypeKeys(ctx context.Context, metatypeID uuid.UUID) ([]*models.MetatypeKey, error) {
	return s.metatypes.ListKeys(ctx, metatypeID)
}

func (s *ontologyService) ArchiveMetatypeKey(ctx context.Context, id uuid.UUID) error {
	return s.metatypes.ArchiveKey(ctx, id)
}

func (s *ontologyService) CreateRelationshipPair(ctx context.Context, pair *models.MetatypeRelationshipPair) (*models.MetatypeRelationshipPair, error) {
	if pair.Name == "" {
		return nil, fmt.Errorf("%w: relationship pair name is required", apperrors.ErrValidation)
	}

	switch pair.RelationshipType {
	case "", "many:many":
		pair.RelationshipType = "many:many"
	case "one:one", "one:many", "many:one":
	default:
		return nil, fmt.Errorf("%w: unknown relationship type %q", apperrors.ErrValidation, pair.RelationshipType)
	}

	for _, metatypeID := range []uuid.UUID{pair.OriginMetatypeID, pair.DestinationMetatypeID} {
		metatype, err := s.metatypes.Retrieve(ctx, metatypeID)
		if err != nil {
			return nil, fmt.Errorf("failed to load pair metatype %s: %w", metatypeID, err)
		}
		if metatype.ContainerID != pair.ContainerID {
			return nil, fmt.Errorf("%w: metatype %s belongs to another container", apperrors.ErrValidation, metatype.Name)
		}
	}

	if err := s.metatypes.CreatePair(ctx, pair); err != nil {
		return nil, err
	}
	return pair, nil
}

func (s *ontologyService) ListRelationshipPairs(ctx context.Context, containerID uuid.UUID) ([]*models.MetatypeRelationshipPair, error) {
	return s.metatypes.ListPairs(ctx, containerID)
}

func (s *ontologyService) ArchiveRelationshipPair(ctx context.Context, id uuid.UUID) error {
	return s.metatypes.ArchivePair(ctx, id)
}
