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

const exportColumns = `id, container_id, adapter, status, status_message, config,
	destination_type, created_at, modified_at`

// ExportRepository defines data access for export runs. The status column is
// both a record and a control channel: drivers re-read it between batches and
// stand down when someone else has moved it off processing.
type ExportRepository interface {
	// Create inserts a new export in status created. Config must already have
	// its secret fields encrypted.
	Create(ctx context.Context, export *models.Export) error

	// Retrieve fetches an export by id.
	Retrieve(ctx context.Context, id uuid.UUID) (*models.Export, error)

	// List retrieves exports for a container, newest first.
	List(ctx context.Context, containerID uuid.UUID) ([]*models.Export, error)

	// ListByStatus retrieves all exports in the given status across containers.
	ListByStatus(ctx context.Context, status models.ExportStatus) ([]*models.Export, error)

	// SetStatus updates an export's status and optional message.
	SetStatus(ctx context.Context, id uuid.UUID, status models.ExportStatus, message *string) error

	// Delete removes an export row entirely. Shadow rows are removed separately
	// by the gremlin export repository.
	Delete(ctx context.Context, id uuid.UUID) error
}

type exportRepository struct {
	db *database.DB
}

// NewExportRepository creates an export repository backed by the given pool.
func NewExportRepository(db *database.DB) ExportRepository {
	return &exportRepository{db: db}
}

func (r *exportRepository) Create(ctx context.Context, export *models.Export) error {
	if export.ID == uuid.Nil {
		export.ID = uuid.New()
	}
	if export.Status == "" {
		export.Status = models.ExportCreated
	}

	query := `
		INSERT INTO exports (id, container_id, adapter, status, status_message, config, destination_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		export.ID,
		export.ContainerID,
		export.Adapter,
		export.Status,
		export.StatusMessage,
		export.Config,
		export.DestinationType,
	).Scan(&export.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create export: %w", err)
	}

	return nil
}

func (r *exportRepository) Retrieve(ctx context.Context, id uuid.UUID) (*models.Export, error) {
	query := fmt.Sprintf(`SELECT %s FROM exports WHERE id = $1`, exportColumns)

	var e models.Export
	err := r.db.QueryRow(ctx, query, id).Scan(
		&e.ID,
		&e.ContainerID,
		&e.Adapter,
		&e.Status,
		&e.StatusMessage,
		&e.Config,
		&e.DestinationType,
		&e.CreatedAt,
		&e.ModifiedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get export: %w", err)
	}

	return &e, nil
}

func (r *exportRepository) List(ctx context.Context, containerID uuid.UUID) ([]*models.Export, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM exports
		WHERE container_id = $1
		ORDER BY created_at DESC`, exportColumns)

	rows, err := r.db.Query(ctx, query, containerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}

	exports, err := pgx.CollectRows(rows, scanExport)
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}

	return exports, nil
}

func (r *exportRepository) ListByStatus(ctx context.Context, status models.ExportStatus) ([]*models.Export, error) {
	query := fmt.Sprintf(`SELECT %s FROM exports WHERE status = $1 ORDER BY created_at`, exportColumns)

	rows, err := r.db.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list exports by status: %w", err)
	}

	exports, err := pgx.CollectRows(rows, scanExport)
	if err != nil {
		return nil, fmt.Errorf("failed to list exports by status: %w", err)
	}

	return exports, nil
}

func (r *exportRepository) SetStatus(ctx context.Context, id uuid.UUID, status models.ExportStatus, message *string) error {
	query := `
		UPDATE exports
		SET status = $2, status_message = $3, modified_at = NOW()
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, status, message)
	if err != nil {
		return fmt.Errorf("failed to set export status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *exportRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM exports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete export: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func scanExport(row pgx.CollectableRow) (*models.Export, error) {
	var e models.Export
	err := row.Scan(
		&e.ID,
		&e.ContainerID,
		&e.Adapter,
		&e.Status,
		&e.StatusMessage,
		&e.Config,
		&e.DestinationType,
		&e.CreatedAt,
		&e.ModifiedAt,
	)
	return &e, err
}

// Ensure exportRepository implements ExportRepository at compile time.
var _ ExportRepository = (*exportRepository)(nil)
