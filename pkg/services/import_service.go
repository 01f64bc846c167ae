package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/idaholab/Deep-Lynx-sub010/pkg/database"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/models"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/repositories"
)

// ImportService manages import batches and their staged records. Status
// transitions happen under a row-exclusive lock so concurrent workers cannot
// process the same import; terminal transitions emit a data_imported event.
type ImportService interface {
	// CreateImport records a new batch and stages its raw records in one
	// transaction.
	CreateImport(ctx context.Context, dataSourceID uuid.UUID, reference string, records []json.RawMessage) (*models.Import, error)

	// Retrieve fetches an import by id.
	Retrieve(ctx context.Context, id uuid.UUID) (*models.Import, error)

	// List retrieves a data source's imports.
	List(ctx context.Context, dataSourceID uuid.UUID, opts repositories.ListOptions) ([]*models.Import, error)

	// SetStatus transitions an import under its row lock.
	SetStatus(ctx context.Context, id uuid.UUID, status models.ImportStatus, message *string) error

	// Progress reports total and still-pending staged records.
	Progress(ctx context.Context, id uuid.UUID) (total int64, remaining int64, err error)
}

type importService struct {
	db      database.TxBeginner
	imports repositories.ImportRepository
	staging repositories.DataStagingRepository
	emitter EventEmitter
	logger  *zap.Logger
}

// NewImportService creates an import service.
func NewImportService(
	db database.TxBeginner,
	imports repositories.ImportRepository,
	staging repositories.DataStagingRepository,
	emitter EventEmitter,
	logger *zap.Logger,
) ImportService {
	return &importService{
		db:      db,
		imports: imports,
		staging: staging,
		emitter: emitter,
		logger:  logger.Named("import-service"),
	}
}

var _ ImportService = (*importService)(nil)

func (s *importService) CreateImport(ctx context.Context, dataSourceID uuid.UUID, reference string, records []json.RawMessage) (*models.Import, error) {
	imp := &models.Import{
		DataSourceID: dataSourceID,
		Status:       models.ImportReady,
		Reference:    reference,
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	if err := s.imports.Create(ctx, tx, imp); err != nil {
		return nil, err
	}

	for _, record := range records {
		staged := &models.DataStaging{
			DataSourceID: dataSourceID,
			ImportID:     imp.ID,
			Data:         record,
		}
		if err := s.staging.Create(ctx, tx, staged); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("Created import",
		zap.String("import_id", imp.ID.String()),
		zap.String("data_source_id", dataSourceID.String()),
		zap.Int("records", len(records)))

	return imp, nil
}

func (s *importService) Retrieve(ctx context.Context, id uuid.UUID) (*models.Import, error) {
	return s.imports.Retrieve(ctx, id)
}

func (s *importService) List(ctx context.Context, dataSourceID uuid.UUID, opts repositories.ListOptions) ([]*models.Import, error) {
	return s.imports.ListByDataSource(ctx, dataSourceID, opts)
}

func (s *importService) SetStatus(ctx context.Context, id uuid.UUID, status models.ImportStatus, message *string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	imp, err := s.imports.RetrieveAndLock(ctx, tx, id, true)
	if err != nil {
		return err
	}

	if err := s.imports.SetStatus(ctx, tx, id, status, message); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if status.Terminal() && s.emitter != nil {
		err := s.emitter.Emit(ctx, models.Event{
			Type:       models.EventDataImported,
			SourceID:   imp.DataSourceID,
			SourceType: models.SourceDataSource,
			Data:       mustJSON(map[string]any{"import_id": id.String(), "status": status}),
		})
		if err != nil {
			s.logger.Warn("Failed to queue data_imported event",
				zap.String("import_id", id.String()),
				zap.Error(err))
		}
	}

	return nil
}

func (s *importService) Progress(ctx context.Context, id uuid.UUID) (int64, int64, error) {
	return s.staging.Counts(ctx, id)
}
