package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/idaholab/Deep-Lynx-sub010/pkg/apperrors"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/database"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/models"
)

const dataTargetColumns = `id, container_id, name, adapter_type, active, status, config,
	last_run_at, created_at, modified_at`

// DataTargetRepository defines data access for data targets. Config is stored
// with its secret fields already encrypted; the data target service owns
// encryption and decryption.
type DataTargetRepository interface {
	// Create inserts a new data target.
	Create(ctx context.Context, target *models.DataTarget) error

	// Retrieve fetches a data target by id.
	Retrieve(ctx context.Context, id uuid.UUID) (*models.DataTarget, error)

	// List retrieves data targets for a container.
	List(ctx context.Context, containerID uuid.UUID) ([]*models.DataTarget, error)

	// ListActive retrieves all active data targets across containers.
	ListActive(ctx context.Context) ([]*models.DataTarget, error)

	// UpdateConfig replaces a data target's config.
	UpdateConfig(ctx context.Context, id uuid.UUID, config json.RawMessage) error

	// SetActive starts or stops a data target's participation in polling.
	SetActive(ctx context.Context, id uuid.UUID, active bool) error

	// SetStatus records the outcome of a poll cycle.
	SetStatus(ctx context.Context, id uuid.UUID, status models.DataTargetStatus) error

	// SetLastRunAt stamps the time of the latest completed poll.
	SetLastRunAt(ctx context.Context, id uuid.UUID) error

	// Delete removes a data target.
	Delete(ctx context.Context, id uuid.UUID) error
}

type dataTargetRepository struct {
	db *database.DB
}

// NewDataTargetRepository creates a data target repository backed by the given pool.
func NewDataTargetRepository(db *database.DB) DataTargetRepository {
	return &dataTargetRepository{db: db}
}

func (r *dataTargetRepository) Create(ctx context.Context, target *models.DataTarget) error {
	if target.ID == uuid.Nil {
		target.ID = uuid.New()
	}
	if target.Status == "" {
		target.Status = models.DataTargetReady
	}

	query := `
		INSERT INTO data_targets (id, container_id, name, adapter_type, active, status, config, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		target.ID,
		target.ContainerID,
		target.Name,
		target.AdapterType,
		target.Active,
		target.Status,
		target.Config,
	).Scan(&target.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create data target: %w", err)
	}

	return nil
}

func (r *dataTargetRepository) Retrieve(ctx context.Context, id uuid.UUID) (*models.DataTarget, error) {
	query := fmt.Sprintf(`SELECT %s FROM data_targets WHERE id = $1`, dataTargetColumns)

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get data target: %w", err)
	}

	target, err := pgx.CollectOneRow(rows, scanDataTarget)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get data target: %w", err)
	}

	return target, nil
}

func (r *dataTargetRepository) List(ctx context.Context, containerID uuid.UUID) ([]*models.DataTarget, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM data_targets
		WHERE container_id = $1
		ORDER BY created_at DESC`, dataTargetColumns)

	rows, err := r.db.Query(ctx, query, containerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list data targets: %w", err)
	}

	targets, err := pgx.CollectRows(rows, scanDataTarget)
	if err != nil {
		return nil, fmt.Errorf("failed to list data targets: %w", err)
	}

	return targets, nil
}

func (r *dataTargetRepository) ListActive(ctx context.Context) ([]*models.DataTarget, error) {
	query := fmt.Sprintf(`SELECT %s FROM data_targets WHERE active ORDER BY created_at`, dataTargetColumns)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active data targets: %w", err)
	}

	targets, err := pgx.CollectRows(rows, scanDataTarget)
	if err != nil {
		return nil, fmt.Errorf("failed to list active data targets: %w", err)
	}

	return targets, nil
}

func (r *dataTargetRepository) UpdateConfig(ctx context.Context, id uuid.UUID, config json.RawMessage) error {
	result, err := r.db.Exec(ctx,
		`UPDATE data_targets SET config = $2, modified_at = NOW() WHERE id = $1`, id, config)
	if err != nil {
		return fmt.Errorf("failed to update data target config: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *dataTargetRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result, err := r.db.Exec(ctx,
		`UPDATE data_targets SET active = $2, modified_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("failed to update data target: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *dataTargetRepository) SetStatus(ctx context.Context, id uuid.UUID, status models.DataTargetStatus) error {
	result, err := r.db.Exec(ctx,
		`UPDATE data_targets SET status = $2, modified_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to set data target status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *dataTargetRepository) SetLastRunAt(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx,
		`UPDATE data_targets SET last_run_at = NOW(), modified_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to stamp data target run: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *dataTargetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM data_targets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete data target: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func scanDataTarget(row pgx.CollectableRow) (*models.DataTarget, error) {
	var t models.DataTarget
	err := row.Scan(
		&t.ID,
		&t.ContainerID,
		&t.Name,
		&t.AdapterType,
		&t.Active,
		&t.Status,
		&t.Config,
		&t.LastRunAt,
		&t.CreatedAt,
		&t.ModifiedAt,
	)
	return &t, err
}

// Ensure dataTargetRepository implements DataTargetRepository at compile time.
var _ DataTargetRepository = (*dataTargetRepository)(nil)
