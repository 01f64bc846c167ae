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

const importColumns = `id, data_source_id, status, status_message, reference, created_at, modified_at`

// ImportRepository defines data access for import batches.
type ImportRepository interface {
	// Create inserts a new import in status ready.
	Create(ctx context.Context, q database.Querier, imp *models.Import) error

	// Retrieve fetches an import by id.
	Retrieve(ctx context.Context, id uuid.UUID) (*models.Import, error)

	// RetrieveAndLock fetches an import and takes a row-exclusive lock inside
	// the caller's transaction. With noWait, a held lock fails fast with
	// apperrors.ErrLockNotAvailable.
	RetrieveAndLock(ctx context.Context, q database.Querier, id uuid.UUID, noWait bool) (*models.Import, error)

	// ListByDataSource retrieves imports for a data source, newest first.
	ListByDataSource(ctx context.Context, dataSourceID uuid.UUID, opts ListOptions) ([]*models.Import, error)

	// ListIncomplete retrieves imports not yet in a terminal status.
	ListIncomplete(ctx context.Context, dataSourceID uuid.UUID) ([]*models.Import, error)

	// SetStatus updates an import's status and optional message.
	SetStatus(ctx context.Context, q database.Querier, id uuid.UUID, status models.ImportStatus, message *string) error

	// Delete removes an import and, by cascade, its staged records.
	Delete(ctx context.Context, id uuid.UUID) error
}

type importRepository struct {
	db *database.DB
}

// NewImportRepository creates an import repository backed by the given pool.
func NewImportRepository(db *database.DB) ImportRepository {
	return &importRepository{db: db}
}

func (r *importRepository) Create(ctx context.Context, q database.Querier, imp *models.Import) error {
	if imp.ID == uuid.Nil {
		imp.ID = uuid.New()
	}
	if imp.Status == "" {
		imp.Status = models.ImportReady
	}

	query := `
		INSERT INTO imports (id, data_source_id, status, status_message, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at`

	err := q.QueryRow(ctx, query,
		imp.ID,
		imp.DataSourceID,
		imp.Status,
		imp.StatusMessage,
		imp.Reference,
	).Scan(&imp.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create import: %w", err)
	}

	return nil
}

func (r *importRepository) Retrieve(ctx context.Context, id uuid.UUID) (*models.Import, error) {
	query := fmt.Sprintf(`SELECT %s FROM imports WHERE id = $1`, importColumns)

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get import: %w", err)
	}

	imp, err := pgx.CollectOneRow(rows, scanImport)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get import: %w", err)
	}

	return imp, nil
}

func (r *importRepository) RetrieveAndLock(ctx context.Context, q database.Querier, id uuid.UUID, noWait bool) (*models.Import, error) {
	query := fmt.Sprintf(`SELECT %s FROM imports WHERE id = $1 FOR UPDATE`, importColumns)
	if noWait {
		query += " NOWAIT"
	}

	rows, err := q.Query(ctx, query, id)
	if err != nil {
		return nil, lockErr("failed to lock import", err)
	}

	imp, err := pgx.CollectOneRow(rows, scanImport)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, lockErr("failed to lock import", err)
	}

	return imp, nil
}

func (r *importRepository) ListByDataSource(ctx context.Context, dataSourceID uuid.UUID, opts ListOptions) ([]*models.Import, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM imports
		WHERE data_source_id = $1
		ORDER BY created_at DESC`, importColumns)
	args := []any{dataSourceID}

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
		return nil, fmt.Errorf("failed to list imports: %w", err)
	}

	imports, err := pgx.CollectRows(rows, scanImport)
	if err != nil {
		return nil, fmt.Errorf("failed to list imports: %w", err)
	}

	return imports, nil
}

func (r *importRepository) ListIncomplete(ctx context.Context, dataSourceID uuid.UUID) ([]*models.Import, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM imports
		WHERE data_source_id = $1 AND status IN ('ready', 'processing')
		ORDER BY created_at`, importColumns)

	rows, err := r.db.Query(ctx, query, dataSourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list incomplete imports: %w", err)
	}

	imports, err := pgx.CollectRows(rows, scanImport)
	if err != nil {
		return nil, fmt.Errorf("failed to list incomplete imports: %w", err)
	}

	return imports, nil
}

func (r *importRepository) SetStatus(ctx context.Context, q database.Querier, id uuid.UUID, status models.ImportStatus, message *string) error {
	query := `
		UPDATE imports
		SET status = $2, status_message = $3, modified_at = NOW()
		WHERE id = $1`

	result, err := q.Exec(ctx, query, id, status, message)
	if err != nil {
		return fmt.Errorf("failed to set import status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *importRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM imports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete import: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func scanImport(row pgx.CollectableRow) (*models.Import, error) {
	var imp models.Import
	err := row.Scan(
		&imp.ID,
		&imp.DataSourceID,
		&imp.Status,
		&imp.StatusMessage,
		&imp.Reference,
		&imp.CreatedAt,
		&imp.ModifiedAt,
	)
	return &imp, err
}

// Ensure importRepository implements ImportRepository at compile time.
var _ ImportRepository = (*importRepository)(nil)
