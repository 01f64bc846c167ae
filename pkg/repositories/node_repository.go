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

// nodeColumns is the canonical column list for node queries; scanNode depends
// on this order.
const nodeColumns = `id, container_id, metatype_id, metatype_name, graph_id, properties,
	original_data_id, data_source_id, import_data_id, data_staging_id,
	composite_original_id, archived, created_at, modified_at`

// NodeRepository defines data access for graph nodes. Property validation
// against the metatype key schema happens in the graph service; the repository
// persists whatever it is given.
type NodeRepository interface {
	// CreateOrUpdate inserts a node, or updates the existing row in place when
	// (composite_original_id, data_source_id) already exists. The row keeps its
	// original id across updates; node.ID is overwritten with the persisted id.
	// Runs on the provided querier so callers can batch writes in one
	// transaction.
	CreateOrUpdate(ctx context.Context, q database.Querier, node *models.Node) error

	// Update modifies an existing node by id.
	Update(ctx context.Context, q database.Querier, node *models.Node) error

	// Retrieve fetches a node by id regardless of archive state.
	Retrieve(ctx context.Context, id uuid.UUID) (*models.Node, error)

	// DomainRetrieve fetches an unarchived node scoped to a container.
	DomainRetrieve(ctx context.Context, containerID, id uuid.UUID) (*models.Node, error)

	// RetrieveByCompositeOriginalID fetches the unarchived node matching the
	// ingestion idempotency key.
	RetrieveByCompositeOriginalID(ctx context.Context, dataSourceID uuid.UUID, compositeOriginalID string) (*models.Node, error)

	// List retrieves unarchived nodes for a container.
	List(ctx context.Context, containerID uuid.UUID, opts ListOptions) ([]*models.Node, error)

	// ListByMetatypeID retrieves unarchived nodes of a given metatype.
	ListByMetatypeID(ctx context.Context, metatypeID uuid.UUID, opts ListOptions) ([]*models.Node, error)

	// Archive soft-deletes a node.
	Archive(ctx context.Context, id uuid.UUID) error

	// PermanentlyDelete removes a node row entirely.
	PermanentlyDelete(ctx context.Context, id uuid.UUID) error
}

type nodeRepository struct {
	db *database.DB
}

// NewNodeRepository creates a node repository backed by the given pool.
func NewNodeRepository(db *database.DB) NodeRepository {
	return &nodeRepository{db: db}
}

func (r *nodeRepository) CreateOrUpdate(ctx context.Context, q database.Querier, node *models.Node) error {
	if node.ID == uuid.Nil {
		node.ID = uuid.New()
	}

	// Rows without a composite key never hit the conflict target (NULLs are
	// distinct in the unique index), so this one statement covers both plain
	// inserts and ingestion upserts.
	query := `
		INSERT INTO nodes (id, container_id, metatype_id, metatype_name, graph_id, properties,
			original_data_id, data_source_id, import_data_id, data_staging_id,
			composite_original_id, archived, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, false, NOW())
		ON CONFLICT (composite_original_id, data_source_id)
		DO UPDATE SET
			metatype_id = EXCLUDED.metatype_id,
			metatype_name = EXCLUDED.metatype_name,
			graph_id = EXCLUDED.graph_id,
			properties = EXCLUDED.properties,
			original_data_id = EXCLUDED.original_data_id,
			import_data_id = EXCLUDED.import_data_id,
			data_staging_id = EXCLUDED.data_staging_id,
			archived = false,
			modified_at = NOW()
		RETURNING id, created_at, modified_at`

	err := q.QueryRow(ctx, query,
		node.ID,
		node.ContainerID,
		node.MetatypeID,
		node.MetatypeName,
		node.GraphID,
		node.Properties,
		node.OriginalDataID,
		node.DataSourceID,
		node.ImportDataID,
		node.DataStagingID,
		node.CompositeOriginalID,
	).Scan(&node.ID, &node.CreatedAt, &node.ModifiedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create node: %w", err)
	}

	return nil
}

func (r *nodeRepository) Update(ctx context.Context, q database.Querier, node *models.Node) error {
	query := `
		UPDATE nodes
		SET metatype_id = $2, metatype_name = $3, graph_id = $4, properties = $5, modified_at = NOW()
		WHERE id = $1
		RETURNING modified_at`

	err := q.QueryRow(ctx, query,
		node.ID,
		node.MetatypeID,
		node.MetatypeName,
		node.GraphID,
		node.Properties,
	).Scan(&node.ModifiedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to update node: %w", err)
	}

	return nil
}

func (r *nodeRepository) Retrieve(ctx context.Context, id uuid.UUID) (*models.Node, error) {
	query := fmt.Sprintf(`SELECT %s FROM nodes WHERE id = $1`, nodeColumns)

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get node: %w", err)
	}

	node, err := pgx.CollectOneRow(rows, scanNode)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get node: %w", err)
	}

	return node, nil
}

func (r *nodeRepository) DomainRetrieve(ctx context.Context, containerID, id uuid.UUID) (*models.Node, error) {
	query := fmt.Sprintf(`SELECT %s FROM nodes WHERE id = $1 AND container_id = $2 AND NOT archived`, nodeColumns)

	rows, err := r.db.Query(ctx, query, id, containerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get node: %w", err)
	}

	node, err := pgx.CollectOneRow(rows, scanNode)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get node: %w", err)
	}

	return node, nil
}

func (r *nodeRepository) RetrieveByCompositeOriginalID(ctx context.Context, dataSourceID uuid.UUID, compositeOriginalID string) (*models.Node, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM nodes
		WHERE composite_original_id = $1 AND data_source_id = $2 AND NOT archived`, nodeColumns)

	rows, err := r.db.Query(ctx, query, compositeOriginalID, dataSourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get node by original id: %w", err)
	}

	node, err := pgx.CollectOneRow(rows, scanNode)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get node by original id: %w", err)
	}

	return node, nil
}

func (r *nodeRepository) List(ctx context.Context, containerID uuid.UUID, opts ListOptions) ([]*models.Node, error) {
	f := NewNodeFilter(r.db)
	return f.Where().ContainerID("eq", containerID).And().Archived("eq", false).All(ctx, opts)
}

func (r *nodeRepository) ListByMetatypeID(ctx context.Context, metatypeID uuid.UUID, opts ListOptions) ([]*models.Node, error) {
	f := NewNodeFilter(r.db)
	return f.Where().MetatypeID("eq", metatypeID).And().Archived("eq", false).All(ctx, opts)
}

func (r *nodeRepository) Archive(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `UPDATE nodes SET archived = true, modified_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to archive node: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *nodeRepository) PermanentlyDelete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM nodes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete node: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// scanNode reads a row in nodeColumns order.
func scanNode(row pgx.CollectableRow) (*models.Node, error) {
	var n models.Node
	err := row.Scan(
		&n.ID,
		&n.ContainerID,
		&n.MetatypeID,
		&n.MetatypeName,
		&n.GraphID,
		&n.Properties,
		&n.OriginalDataID,
		&n.DataSourceID,
		&n.ImportDataID,
		&n.DataStagingID,
		&n.CompositeOriginalID,
		&n.Archived,
		&n.CreatedAt,
		&n.ModifiedAt,
	)
	return &n, err
}

// Ensure nodeRepository implements NodeRepository at compile time.
var _ NodeRepository = (*nodeRepository)(nil)
