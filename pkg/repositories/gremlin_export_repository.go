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

// GremlinExportRepository manages the shadow tables an export run works
// through. Rows are snapshotted from the live graph at initiation; a null
// gremlin id marks a row not yet written to the target store, which is the
// whole of the export's resume state.
type GremlinExportRepository interface {
	// Snapshot copies the container's active-graph nodes and edges into the
	// shadow tables for the given export. Edges whose endpoints were never
	// resolved to node ids are skipped. Returns the number of node and edge
	// rows captured.
	Snapshot(ctx context.Context, q database.Querier, exportID, containerID, graphID uuid.UUID) (int64, int64, error)

	// ListUnassociatedNodesAndLock fetches up to limit unwritten node rows and
	// locks them for the duration of the surrounding transaction. With noWait,
	// rows locked by another worker fail fast with
	// apperrors.ErrLockNotAvailable instead of blocking.
	ListUnassociatedNodesAndLock(ctx context.Context, q database.Querier, exportID uuid.UUID, limit int, noWait bool) ([]*models.GremlinNode, error)

	// ListUnassociatedEdgesAndLock is the edge counterpart.
	ListUnassociatedEdgesAndLock(ctx context.Context, q database.Querier, exportID uuid.UUID, limit int, noWait bool) ([]*models.GremlinEdge, error)

	// SetGremlinNodeID marks a node row written by recording the id the target
	// store assigned to its vertex.
	SetGremlinNodeID(ctx context.Context, q database.Querier, exportID, nodeID uuid.UUID, gremlinNodeID string) error

	// SetGremlinEdgeID is the edge counterpart.
	SetGremlinEdgeID(ctx context.Context, q database.Querier, exportID, edgeID uuid.UUID, gremlinEdgeID string) error

	// RetrieveNode fetches one shadow node row, typically to resolve an edge
	// endpoint's gremlin vertex id.
	RetrieveNode(ctx context.Context, exportID, nodeID uuid.UUID) (*models.GremlinNode, error)

	// CountRemaining reports unwritten node and edge rows for an export.
	CountRemaining(ctx context.Context, exportID uuid.UUID) (int64, int64, error)

	// DeleteForExport removes all shadow rows for an export.
	DeleteForExport(ctx context.Context, exportID uuid.UUID) error
}

type gremlinExportRepository struct {
	db *database.DB
}

// NewGremlinExportRepository creates a gremlin export repository backed by the
// given pool.
func NewGremlinExportRepository(db *database.DB) GremlinExportRepository {
	return &gremlinExportRepository{db: db}
}

func (r *gremlinExportRepository) Snapshot(ctx context.Context, q database.Querier, exportID, containerID, graphID uuid.UUID) (int64, int64, error) {
	nodeQuery := `
		INSERT INTO gremlin_export_nodes (id, export_id, container_id, metatype_id, metatype_name, properties)
		SELECT n.id, $1, n.container_id, n.metatype_id, n.metatype_name, n.properties
		FROM nodes n
		WHERE n.container_id = $2 AND n.graph_id = $3 AND NOT n.archived`

	nodeTag, err := q.Exec(ctx, nodeQuery, exportID, containerID, graphID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to snapshot nodes: %w", err)
	}

	edgeQuery := `
		INSERT INTO gremlin_export_edges (id, export_id, container_id, relationship_pair_id,
			relationship_name, origin_node_id, destination_node_id, properties)
		SELECT e.id, $1, e.container_id, e.relationship_pair_id, p.name,
			e.origin_node_id, e.destination_node_id, e.properties
		FROM edges e
		JOIN metatype_relationship_pairs p ON p.id = e.relationship_pair_id
		WHERE e.container_id = $2 AND e.graph_id = $3 AND NOT e.archived
			AND e.origin_node_id IS NOT NULL AND e.destination_node_id IS NOT NULL`

	edgeTag, err := q.Exec(ctx, edgeQuery, exportID, containerID, graphID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to snapshot edges: %w", err)
	}

	return nodeTag.RowsAffected(), edgeTag.RowsAffected(), nil
}

func (r *gremlinExportRepository) ListUnassociatedNodesAndLock(ctx context.Context, q database.Querier, exportID uuid.UUID, limit int, noWait bool) ([]*models.GremlinNode, error) {
	query := `
		SELECT id, export_id, container_id, metatype_id, metatype_name, properties, gremlin_node_id
		FROM gremlin_export_nodes
		WHERE export_id = $1 AND gremlin_node_id IS NULL
		LIMIT $2
		FOR UPDATE`
	if noWait {
		query += " NOWAIT"
	}

	rows, err := q.Query(ctx, query, exportID, limit)
	if err != nil {
		return nil, lockErr("failed to lock export nodes", err)
	}

	nodes, err := pgx.CollectRows(rows, scanGremlinNode)
	if err != nil {
		return nil, lockErr("failed to lock export nodes", err)
	}

	return nodes, nil
}

func (r *gremlinExportRepository) ListUnassociatedEdgesAndLock(ctx context.Context, q database.Querier, exportID uuid.UUID, limit int, noWait bool) ([]*models.GremlinEdge, error) {
	query := `
		SELECT id, export_id, container_id, relationship_pair_id, relationship_name,
			origin_node_id, destination_node_id, properties, gremlin_edge_id
		FROM gremlin_export_edges
		WHERE export_id = $1 AND gremlin_edge_id IS NULL
		LIMIT $2
		FOR UPDATE`
	if noWait {
		query += " NOWAIT"
	}

	rows, err := q.Query(ctx, query, exportID, limit)
	if err != nil {
		return nil, lockErr("failed to lock export edges", err)
	}

	edges, err := pgx.CollectRows(rows, scanGremlinEdge)
	if err != nil {
		return nil, lockErr("failed to lock export edges", err)
	}

	return edges, nil
}

func (r *gremlinExportRepository) SetGremlinNodeID(ctx context.Context, q database.Querier, exportID, nodeID uuid.UUID, gremlinNodeID string) error {
	query := `
		UPDATE gremlin_export_nodes
		SET gremlin_node_id = $3
		WHERE export_id = $1 AND id = $2`

	result, err := q.Exec(ctx, query, exportID, nodeID, gremlinNodeID)
	if err != nil {
		return fmt.Errorf("failed to mark export node written: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *gremlinExportRepository) SetGremlinEdgeID(ctx context.Context, q database.Querier, exportID, edgeID uuid.UUID, gremlinEdgeID string) error {
	query := `
		UPDATE gremlin_export_edges
		SET gremlin_edge_id = $3
		WHERE export_id = $1 AND id = $2`

	result, err := q.Exec(ctx, query, exportID, edgeID, gremlinEdgeID)
	if err != nil {
		return fmt.Errorf("failed to mark export edge written: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *gremlinExportRepository) RetrieveNode(ctx context.Context, exportID, nodeID uuid.UUID) (*models.GremlinNode, error) {
	query := `
		SELECT id, export_id, container_id, metatype_id, metatype_name, properties, gremlin_node_id
		FROM gremlin_export_nodes
		WHERE export_id = $1 AND id = $2`

	rows, err := r.db.Query(ctx, query, exportID, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get export node: %w", err)
	}

	node, err := pgx.CollectOneRow(rows, scanGremlinNode)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get export node: %w", err)
	}

	return node, nil
}

func (r *gremlinExportRepository) CountRemaining(ctx context.Context, exportID uuid.UUID) (int64, int64, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM gremlin_export_nodes WHERE export_id = $1 AND gremlin_node_id IS NULL),
			(SELECT COUNT(*) FROM gremlin_export_edges WHERE export_id = $1 AND gremlin_edge_id IS NULL)`

	var nodes, edges int64
	if err := r.db.QueryRow(ctx, query, exportID).Scan(&nodes, &edges); err != nil {
		return 0, 0, fmt.Errorf("failed to count remaining export rows: %w", err)
	}

	return nodes, edges, nil
}

func (r *gremlinExportRepository) DeleteForExport(ctx context.Context, exportID uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM gremlin_export_edges WHERE export_id = $1`, exportID); err != nil {
		return fmt.Errorf("failed to delete export edges: %w", err)
	}

	if _, err := r.db.Exec(ctx, `DELETE FROM gremlin_export_nodes WHERE export_id = $1`, exportID); err != nil {
		return fmt.Errorf("failed to delete export nodes: %w", err)
	}

	return nil
}

func scanGremlinNode(row pgx.CollectableRow) (*models.GremlinNode, error) {
	var n models.GremlinNode
	err := row.Scan(
		&n.ID,
		&n.ExportID,
		&n.ContainerID,
		&n.MetatypeID,
		&n.MetatypeName,
		&n.Properties,
		&n.GremlinNodeID,
	)
	return &n, err
}

func scanGremlinEdge(row pgx.CollectableRow) (*models.GremlinEdge, error) {
	var e models.GremlinEdge
	err := row.Scan(
		&e.ID,
		&e.ExportID,
		&e.ContainerID,
		&e.RelationshipPairID,
		&e.RelationshipName,
		&e.OriginNodeID,
		&e.DestinationNodeID,
		&e.Properties,
		&e.GremlinEdgeID,
	)
	return &e, err
}

// lockErr translates lock_not_available (55P03) into the sentinel so callers
// can distinguish contention from real failures.
func lockErr(msg string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "55P03" {
		return apperrors.ErrLockNotAvailable
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Ensure gremlinExportRepository implements GremlinExportRepository at compile time.
var _ GremlinExportRepository = (*gremlinExportRepository)(nil)
