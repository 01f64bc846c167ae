package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/idaholab/Deep-Lynx-sub010/pkg/apperrors"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/database"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/models"
)

// edgeColumns is qualified so the same list works with and without the
// relationship pair join; scanEdge depends on this order.
const edgeColumns = `edges.id, edges.container_id, edges.relationship_pair_id, edges.graph_id,
	edges.origin_node_id, edges.destination_node_id,
	edges.origin_node_original_id, edges.destination_node_original_id,
	edges.properties, edges.original_data_id, edges.data_source_id,
	edges.import_data_id, edges.data_staging_id, edges.composite_original_id,
	edges.archived, edges.created_at, edges.modified_at`

// EdgeRepository defines data access for graph edges. Origin and destination
// node resolution (including composite original id lookup) happens in the
// graph service before CreateOrUpdate is called.
type EdgeRepository interface {
	// CreateOrUpdate inserts an edge, or updates the existing row in place when
	// (composite_original_id, data_source_id) already exists. The row keeps its
	// original id across updates; edge.ID is overwritten with the persisted id.
	CreateOrUpdate(ctx context.Context, q database.Querier, edge *models.Edge) error

	// Update modifies an existing edge by id.
	Update(ctx context.Context, q database.Querier, edge *models.Edge) error

	// Retrieve fetches an edge by id regardless of archive state.
	Retrieve(ctx context.Context, id uuid.UUID) (*models.Edge, error)

	// DomainRetrieve fetches an unarchived edge scoped to a container.
	DomainRetrieve(ctx context.Context, containerID, id uuid.UUID) (*models.Edge, error)

	// List retrieves unarchived edges for a container.
	List(ctx context.Context, containerID uuid.UUID, opts ListOptions) ([]*models.Edge, error)

	// ListByNodeID retrieves unarchived edges touching a node as origin or
	// destination.
	ListByNodeID(ctx context.Context, nodeID uuid.UUID, opts ListOptions) ([]*models.Edge, error)

	// Archive soft-deletes an edge.
	Archive(ctx context.Context, id uuid.UUID) error

	// PermanentlyDelete removes an edge row entirely.
	PermanentlyDelete(ctx context.Context, id uuid.UUID) error
}

type edgeRepository struct {
	db *database.DB
}

// NewEdgeRepository creates an edge repository backed by the given pool.
func NewEdgeRepository(db *database.DB) EdgeRepository {
	return &edgeRepository{db: db}
}

func (r *edgeRepository) CreateOrUpdate(ctx context.Context, q database.Querier, edge *models.Edge) error {
	if edge.ID == uuid.Nil {
		edge.ID = uuid.New()
	}

	query := `
		INSERT INTO edges (id, container_id, relationship_pair_id, graph_id,
			origin_node_id, destination_node_id,
			origin_node_original_id, destination_node_original_id,
			properties, original_data_id, data_source_id, import_data_id,
			data_staging_id, composite_original_id, archived, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, false, NOW())
		ON CONFLICT (composite_original_id, data_source_id)
		DO UPDATE SET
			relationship_pair_id = EXCLUDED.relationship_pair_id,
			graph_id = EXCLUDED.graph_id,
			origin_node_id = EXCLUDED.origin_node_id,
			destination_node_id = EXCLUDED.destination_node_id,
			origin_node_original_id = EXCLUDED.origin_node_original_id,
			destination_node_original_id = EXCLUDED.destination_node_original_id,
			properties = EXCLUDED.properties,
			original_data_id = EXCLUDED.original_data_id,
			import_data_id = EXCLUDED.import_data_id,
			data_staging_id = EXCLUDED.data_staging_id,
			archived = false,
			modified_at = NOW()
		RETURNING id, created_at, modified_at`

	err := q.QueryRow(ctx, query,
		edge.ID,
		edge.ContainerID,
		edge.RelationshipPairID,
		edge.GraphID,
		edge.OriginNodeID,
		edge.DestinationNodeID,
		edge.OriginNodeOriginalID,
		edge.DestinationNodeOriginalID,
		edge.Properties,
		edge.OriginalDataID,
		edge.DataSourceID,
		edge.ImportDataID,
		edge.DataStagingID,
		edge.CompositeOriginalID,
	).Scan(&edge.ID, &edge.CreatedAt, &edge.ModifiedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create edge: %w", err)
	}

	return nil
}

func (r *edgeRepository) Update(ctx context.Context, q database.Querier, edge *models.Edge) error {
	query := `
		UPDATE edges
		SET relationship_pair_id = $2, graph_id = $3, origin_node_id = $4,
			destination_node_id = $5, properties = $6, modified_at = NOW()
		WHERE id = $1
		RETURNING modified_at`

	err := q.QueryRow(ctx, query,
		edge.ID,
		edge.RelationshipPairID,
		edge.GraphID,
		edge.OriginNodeID,
		edge.DestinationNodeID,
		edge.Properties,
	).Scan(&edge.ModifiedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to update edge: %w", err)
	}

	return nil
}

func (r *edgeRepository) Retrieve(ctx context.Context, id uuid.UUID) (*models.Edge, error) {
	query := fmt.Sprintf(`SELECT %s FROM edges WHERE id = $1`, edgeColumns)

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get edge: %w", err)
	}

	edge, err := pgx.CollectOneRow(rows, scanEdge)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get edge: %w", err)
	}

	return edge, nil
}

func (r *edgeRepository) DomainRetrieve(ctx context.Context, containerID, id uuid.UUID) (*models.Edge, error) {
	query := fmt.Sprintf(`SELECT %s FROM edges WHERE id = $1 AND container_id = $2 AND NOT archived`, edgeColumns)

	rows, err := r.db.Query(ctx, query, id, containerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get edge: %w", err)
	}

	edge, err := pgx.CollectOneRow(rows, scanEdge)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get edge: %w", err)
	}

	return edge, nil
}

func (r *edgeRepository) List(ctx context.Context, containerID uuid.UUID, opts ListOptions) ([]*models.Edge, error) {
	f := NewEdgeFilter(r.db)
	return f.Where().ContainerID("eq", containerID).And().Archived("eq", false).All(ctx, opts)
}

func (r *edgeRepository) ListByNodeID(ctx context.Context, nodeID uuid.UUID, opts ListOptions) ([]*models.Edge, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM edges
		WHERE (origin_node_id = $1 OR destination_node_id = $1) AND NOT archived
		ORDER BY created_at`, edgeColumns)
	args := []any{nodeID}

	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list edges by node: %w", err)
	}

	edges, err := pgx.CollectRows(rows, scanEdge)
	if err != nil {
		return nil, fmt.Errorf("failed to list edges by node: %w", err)
	}

	return edges, nil
}

func (r *edgeRepository) Archive(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `UPDATE edges SET archived = true, modified_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to archive edge: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *edgeRepository) PermanentlyDelete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM edges WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete edge: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// scanEdge reads a row in edgeColumns order.
func scanEdge(row pgx.CollectableRow) (*models.Edge, error) {
	var e models.Edge
	err := row.Scan(
		&e.ID,
		&e.ContainerID,
		&e.RelationshipPairID,
		&e.GraphID,
		&e.OriginNodeID,
		&e.DestinationNodeID,
		&e.OriginNodeOriginalID,
		&e.DestinationNodeOriginalID,
		&e.Properties,
		&e.OriginalDataID,
		&e.DataSourceID,
		&e.ImportDataID,
		&e.DataStagingID,
		&e.CompositeOriginalID,
		&e.Archived,
		&e.CreatedAt,
		&e.ModifiedAt,
	)
	return &e, err
}

// Ensure edgeRepository implements EdgeRepository at compile time.
var _ EdgeRepository = (*edgeRepository)(nil)
