package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/idaholab/Deep-Lynx-sub010/pkg/apperrors"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/database"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/models"
)

const dataStagingColumns = `id, data_source_id, import_id, mapping_id, data, errors, inserted_at, created_at`

// DataStagingRepository defines data access for staged raw records. A null
// inserted_at marks a record not yet transformed into graph data.
type DataStagingRepository interface {
	// Create stages one raw record under an import.
	Create(ctx context.Context, q database.Querier, record *models.DataStaging) error

	// Retrieve fetches a staged record by id.
	Retrieve(ctx context.Context, id int64) (*models.DataStaging, error)

	// ListUninserted retrieves an import's records still awaiting
	// transformation.
	ListUninserted(ctx context.Context, q database.Querier, importID uuid.UUID, limit int) ([]*models.DataStaging, error)

	// SetInserted stamps a record as transformed.
	SetInserted(ctx context.Context, q database.Querier, id int64) error

	// SetMappingID attaches the type mapping that will drive a record's
	// transformation.
	SetMappingID(ctx context.Context, id int64, mappingID uuid.UUID) error

	// AddError appends a processing error to a record.
	AddError(ctx context.Context, id int64, message string) error

	// Counts reports total and remaining (uninserted) records for an import.
	Counts(ctx context.Context, importID uuid.UUID) (int64, int64, error)
}

type dataStagingRepository struct {
	db *database.DB
}

// NewDataStagingRepository creates a data staging repository backed by the given pool.
func NewDataStagingRepository(db *database.DB) DataStagingRepository {
	return &dataStagingRepository{db: db}
}

func (r *dataStagingRepository) Create(ctx context.Context, q database.Querier, record *models.DataStaging) error {
	if record.Data == nil {
		record.Data = json.RawMessage("{}")
	}

	query := `
		INSERT INTO data_staging (data_source_id, import_id, mapping_id, data, errors, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at`

	err := q.QueryRow(ctx, query,
		record.DataSourceID,
		record.ImportID,
		record.MappingID,
		record.Data,
		record.Errors,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to stage record: %w", err)
	}

	return nil
}

func (r *dataStagingRepository) Retrieve(ctx context.Context, id int64) (*models.DataStaging, error) {
	query := fmt.Sprintf(`SELECT %s FROM data_staging WHERE id = $1`, dataStagingColumns)

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get staged record: %w", err)
	}

	record, err := pgx.CollectOneRow(rows, scanDataStaging)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get staged record: %w", err)
	}

	return record, nil
}

func (r *dataStagingRepository) ListUninserted(ctx context.Context, q database.Querier, importID uuid.UUID, limit int) ([]*models.DataStaging, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM data_staging
		WHERE import_id = $1 AND inserted_at IS NULL
		ORDER BY id
		LIMIT $2`, dataStagingColumns)

	rows, err := q.Query(ctx, query, importID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list staged records: %w", err)
	}

	records, err := pgx.CollectRows(rows, scanDataStaging)
	if err != nil {
		return nil, fmt.Errorf("failed to list staged records: %w", err)
	}

	return records, nil
}

func (r *dataStagingRepository) SetInserted(ctx context.Context, q database.Querier, id int64) error {
	result, err := q.Exec(ctx, `UPDATE data_staging SET inserted_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark staged record inserted: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *dataStagingRepository) SetMappingID(ctx context.Context, id int64, mappingID uuid.UUID) error {
	result, err := r.db.Exec(ctx, `UPDATE data_staging SET mapping_id = $2 WHERE id = $1`, id, mappingID)
	if err != nil {
		return fmt.Errorf("failed to set staged record mapping: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *dataStagingRepository) AddError(ctx context.Context, id int64, message string) error {
	result, err := r.db.Exec(ctx,
		`UPDATE data_staging SET errors = array_append(errors, $2) WHERE id = $1`, id, message)
	if err != nil {
		return fmt.Errorf("failed to record staging error: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *dataStagingRepository) Counts(ctx context.Context, importID uuid.UUID) (int64, int64, error) {
	query := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE inserted_at IS NULL)
		FROM data_staging
		WHERE import_id = $1`

	var total, remaining int64
	if err := r.db.QueryRow(ctx, query, importID).Scan(&total, &remaining); err != nil {
		return 0, 0, fmt.Errorf("failed to count staged records: %w", err)
	}

	return total, remaining, nil
}

func scanDataStaging(row pgx.CollectableRow) (*models.DataStaging, error) {
	var d models.DataStaging
	err := row.Scan(
		&d.ID,
		&d.DataSourceID,
		&d.ImportID,
		&d.MappingID,
		&d.Data,
		&d.Errors,
		&d.InsertedAt,
		&d.CreatedAt,
	)
	return &d, err
}

// Ensure dataStagingRepository implements DataStagingRepository at compile time.
var _ DataStagingRepository = (*dataStagingRepository)(nil)
