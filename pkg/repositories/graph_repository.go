package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/idaholab/Deep-Lynx-sub010/pkg/apperrors"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/database"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/models"
)

// GraphRepository defines data access for graphs and the per-container active
// graph pointer.
type GraphRepository interface {
	// Create inserts a new graph for a container.
	Create(ctx context.Context, graph *models.Graph) error

	// Retrieve fetches a graph by id.
	Retrieve(ctx context.Context, id uuid.UUID) (*models.Graph, error)

	// List retrieves unarchived graphs for a container.
	List(ctx context.Context, containerID uuid.UUID) ([]*models.Graph, error)

	// Archive soft-deletes a graph.
	Archive(ctx context.Context, id uuid.UUID) error

	// SetActive points the container's writes at the given graph, replacing any
	// previous active graph.
	SetActive(ctx context.Context, containerID, graphID uuid.UUID) error

	// ActiveGraphID returns the container's active graph, or
	// apperrors.ErrNoActiveGraph when none is set.
	ActiveGraphID(ctx context.Context, containerID uuid.UUID) (uuid.UUID, error)
}

type graphRepository struct {
	db *database.DB
}

// NewGraphRepository creates a graph repository backed by the given pool.
func NewGraphRepository(db *database.DB) GraphRepository {
	return &graphRepository{db: db}
}

func (r *graphRepository) Create(ctx context.Context, graph *models.Graph) error {
	if graph.ID == uuid.Nil {
		graph.ID = uuid.New()
	}

	query := `
		INSERT INTO graphs (id, container_id, created_by, modified_by, archived, created_at)
		VALUES ($1, $2, $3, $4, false, NOW())
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query, graph.ID, graph.ContainerID, graph.CreatedBy, graph.ModifiedBy).
		Scan(&graph.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create graph: %w", err)
	}

	return nil
}

func (r *graphRepository) Retrieve(ctx context.Context, id uuid.UUID) (*models.Graph, error) {
	query := `
		SELECT id, container_id, created_by, modified_by, archived, created_at
		FROM graphs
		WHERE id = $1`

	var g models.Graph
	err := r.db.QueryRow(ctx, query, id).Scan(
		&g.ID,
		&g.ContainerID,
		&g.CreatedBy,
		&g.ModifiedBy,
		&g.Archived,
		&g.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get graph: %w", err)
	}

	return &g, nil
}

func (r *graphRepository) List(ctx context.Context, containerID uuid.UUID) ([]*models.Graph, error) {
	query := `
		SELECT id, container_id, created_by, modified_by, archived, created_at
		FROM graphs
		WHERE container_id = $1 AND NOT archived
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, containerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list graphs: %w", err)
	}
	defer rows.Close()

	var graphs []*models.Graph
	for rows.Next() {
		var g models.Graph
		err := rows.Scan(&g.ID, &g.ContainerID, &g.CreatedBy, &g.ModifiedBy, &g.Archived, &g.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan graph: %w", err)
		}
		graphs = append(graphs, &g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating graphs: %w", err)
	}

	return graphs, nil
}

func (r *graphRepository) Archive(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `UPDATE graphs SET archived = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to archive graph: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *graphRepository) SetActive(ctx context.Context, containerID, graphID uuid.UUID) error {
	// One active graph per container; setting a new one displaces the old.
	query := `
		INSERT INTO active_graphs (container_id, graph_id)
		VALUES ($1, $2)
		ON CONFLICT (container_id) DO UPDATE SET graph_id = EXCLUDED.graph_id`

	if _, err := r.db.Exec(ctx, query, containerID, graphID); err != nil {
		return fmt.Errorf("failed to set active graph: %w", err)
	}

	return nil
}

func (r *graphRepository) ActiveGraphID(ctx context.Context, containerID uuid.UUID) (uuid.UUID, error) {
	var graphID uuid.UUID
	err := r.db.QueryRow(ctx, `SELECT graph_id FROM active_graphs WHERE container_id = $1`, containerID).
		Scan(&graphID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return uuid.Nil, apperrors.ErrNoActiveGraph
		}
		return uuid.Nil, fmt.Errorf("failed to get active graph: %w", err)
	}

	return graphID, nil
}

// Ensure graphRepository implements GraphRepository at compile time.
var _ GraphRepository = (*graphRepository)(nil)
