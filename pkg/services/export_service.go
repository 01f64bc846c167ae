package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/idaholab/Deep-Lynx-sub010/pkg/apperrors"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/crypto"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/database"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/gremlin"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/models"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/repositories"
)

// GraphWriter is the boundary to the external graph store. The gremlin client
// implements it; tests substitute a recorder.
type GraphWriter interface {
	AddVertex(ctx context.Context, label string, properties map[string]any) (string, error)
	AddEdge(ctx context.Context, originID, destinationID, label string, properties map[string]any) (string, error)
	Close() error
}

// WriterFactory opens a connection to the export target described by a
// decrypted gremlin config.
type WriterFactory func(ctx context.Context, cfg *models.GremlinConfig) (GraphWriter, error)

// ExportService manages export runs: creation, the start/stop lifecycle, and
// crash recovery at boot. Exactly one driver goroutine runs per processing
// export in this instance; cancellation is explicit through StopExport and
// doubles as a status flip other instances observe.
type ExportService interface {
	// CreateExport validates an adapter config, encrypts its secrets, records
	// the export in status created, and takes the point-in-time graph
	// snapshot the run will work from.
	CreateExport(ctx context.Context, containerID uuid.UUID, adapter string, config json.RawMessage) (*models.Export, error)

	// StartExport begins or resumes an export run. Only created, paused, and
	// failed exports are runnable.
	StartExport(ctx context.Context, id uuid.UUID) error

	// StopExport pauses a running export. The driver notices through both
	// context cancellation and the status flip.
	StopExport(ctx context.Context, id uuid.UUID) error

	// ResetExport discards an export's progress and starts it over from a
	// fresh snapshot.
	ResetExport(ctx context.Context, id uuid.UUID) error

	// DeleteExport stops a running export and removes it with its shadow rows.
	DeleteExport(ctx context.Context, id uuid.UUID) error

	// Retrieve fetches an export by id.
	Retrieve(ctx context.Context, id uuid.UUID) (*models.Export, error)

	// List retrieves a container's exports.
	List(ctx context.Context, containerID uuid.UUID) ([]*models.Export, error)

	// RestartExports resumes every export left in status processing by a
	// previous run. Called once at boot.
	RestartExports(ctx context.Context) error
}

type exportService struct {
	db        database.TxBeginner
	exports   repositories.ExportRepository
	shadow    repositories.GremlinExportRepository
	graphs    repositories.GraphRepository
	emitter   EventEmitter
	encryptor *crypto.CredentialEncryptor
	validate  *validator.Validate
	newWriter WriterFactory
	batchSize int
	logger    *zap.Logger

	mu      sync.Mutex
	running map[uuid.UUID]context.CancelFunc
}

// NewExportService creates an export service. Pass nil writerFactory to use
// the gremlin websocket client.
func NewExportService(
	db database.TxBeginner,
	exports repositories.ExportRepository,
	shadow repositories.GremlinExportRepository,
	graphs repositories.GraphRepository,
	emitter EventEmitter,
	encryptor *crypto.CredentialEncryptor,
	writerFactory WriterFactory,
	defaultBatchSize int,
	logger *zap.Logger,
) ExportService {
	if writerFactory == nil {
		writerFactory = gremlinWriterFactory
	}
	if defaultBatchSize <= 0 {
		defaultBatchSize = 100
	}

	return &exportService{
		db:        db,
		exports:   exports,
		shadow:    shadow,
		graphs:    graphs,
		emitter:   emitter,
		encryptor: encryptor,
		validate:  validator.New(),
		newWriter: writerFactory,
		batchSize: defaultBatchSize,
		logger:    logger.Named("export-service"),
		running:   make(map[uuid.UUID]context.CancelFunc),
	}
}

var _ ExportService = (*exportService)(nil)

func gremlinWriterFactory(ctx context.Context, cfg *models.GremlinConfig) (GraphWriter, error) {
	return gremlin.NewClient(ctx, gremlin.Config{
		TraversalSource: cfg.TraversalSource,
		Endpoint:        cfg.Endpoint,
		Port:            cfg.Port,
		Path:            cfg.Path,
		User:            cfg.User,
		Key:             cfg.Key,
		MimeType:        cfg.MimeType,
		GraphSONV1:      cfg.GraphSONV1,
	})
}

func (s *exportService) CreateExport(ctx context.Context, containerID uuid.UUID, adapter string, config json.RawMessage) (*models.Export, error) {
	if adapter != models.AdapterGremlin {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownAdapter, adapter)
	}

	var cfg models.GremlinConfig
	if err := json.Unmarshal(config, &cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to decode gremlin config: %v", apperrors.ErrValidation, err)
	}
	if err := s.validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = s.batchSize
	}

	// Credentials never reach the table in plaintext.
	var err error
	if cfg.User != "" {
		if cfg.User, err = s.encryptor.Encrypt(cfg.User); err != nil {
			return nil, fmt.Errorf("failed to encrypt export credentials: %w", err)
		}
	}
	if cfg.Key != "" {
		if cfg.Key, err = s.encryptor.Encrypt(cfg.Key); err != nil {
			return nil, fmt.Errorf("failed to encrypt export credentials: %w", err)
		}
	}

	encodedConfig, err := json.Marshal(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode export config: %w", err)
	}

	export := &models.Export{
		ContainerID: containerID,
		Adapter:     adapter,
		Status:      models.ExportCreated,
		Config:      encodedConfig,
	}
	if err := s.exports.Create(ctx, export); err != nil {
		return nil, err
	}

	// The point-in-time copy is taken here, not at start, so graph changes
	// between create and start never leak into the run.
	if err := s.snapshot(ctx, export); err != nil {
		if delErr := s.exports.Delete(ctx, export.ID); delErr != nil {
			s.logger.Error("Failed to remove export after snapshot failure",
				zap.String("export_id", export.ID.String()),
				zap.Error(delErr))
		}
		return nil, err
	}

	s.logger.Info("Created export",
		zap.String("export_id", export.ID.String()),
		zap.String("container_id", containerID.String()))

	return export, nil
}

// snapshot copies the container's active graph into the export's shadow
// tables inside one transaction.
func (s *exportService) snapshot(ctx context.Context, export *models.Export) error {
	graphID, err := s.graphs.ActiveGraphID(ctx, export.ContainerID)
	if err != nil {
		return fmt.Errorf("failed to resolve active graph: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	nodes, edges, err := s.shadow.Snapshot(ctx, tx, export.ID, export.ContainerID, graphID)
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("Snapshotted graph for export",
		zap.String("export_id", export.ID.String()),
		zap.Int64("nodes", nodes),
		zap.Int64("edges", edges))

	return nil
}

func (s *exportService) StartExport(ctx context.Context, id uuid.UUID) error {
	export, err := s.exports.Retrieve(ctx, id)
	if err != nil {
		return err
	}

	switch export.Status {
	case models.ExportCreated, models.ExportPaused, models.ExportFailed:
	default:
		return fmt.Errorf("%w: export is %s", apperrors.ErrExportNotRunnable, export.Status)
	}

	if err := s.exports.SetStatus(ctx, id, models.ExportProcessing, nil); err != nil {
		return err
	}
	export.Status = models.ExportProcessing

	s.launch(export)
	return nil
}

// launch spawns the driver goroutine. The driver owns its context; StopExport
// and DeleteExport cancel it.
func (s *exportService) launch(export *models.Export) {
	runCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if _, alreadyRunning := s.running[export.ID]; alreadyRunning {
		s.mu.Unlock()
		cancel()
		return
	}
	s.running[export.ID] = cancel
	s.mu.Unlock()

	driver := newGremlinExportDriver(s, export)

	go func() {
		defer func() {
			cancel()
			s.mu.Lock()
			delete(s.running, export.ID)
			s.mu.Unlock()
		}()

		driver.run(runCtx)
	}()
}

func (s *exportService) StopExport(ctx context.Context, id uuid.UUID) error {
	export, err := s.exports.Retrieve(ctx, id)
	if err != nil {
		return err
	}

	if export.Status != models.ExportProcessing {
		return fmt.Errorf("%w: export is %s", apperrors.ErrExportNotRunnable, export.Status)
	}

	// Status first so a driver on another instance pauses at its next batch
	// boundary even though it never sees our cancel.
	if err := s.exports.SetStatus(ctx, id, models.ExportPaused, nil); err != nil {
		return err
	}

	s.cancelRun(id)
	return nil
}

func (s *exportService) ResetExport(ctx context.Context, id uuid.UUID) error {
	export, err := s.exports.Retrieve(ctx, id)
	if err != nil {
		return err
	}

	s.cancelRun(id)

	if err := s.shadow.DeleteForExport(ctx, id); err != nil {
		return err
	}
	if err := s.exports.SetStatus(ctx, id, models.ExportCreated, nil); err != nil {
		return err
	}
	if err := s.snapshot(ctx, export); err != nil {
		return err
	}

	s.logger.Info("Reset export", zap.String("export_id", id.String()))

	return s.StartExport(ctx, id)
}

func (s *exportService) DeleteExport(ctx context.Context, id uuid.UUID) error {
	if _, err := s.exports.Retrieve(ctx, id); err != nil {
		return err
	}

	s.cancelRun(id)

	if err := s.shadow.DeleteForExport(ctx, id); err != nil {
		return err
	}
	return s.exports.Delete(ctx, id)
}

func (s *exportService) cancelRun(id uuid.UUID) {
	s.mu.Lock()
	cancel, ok := s.running[id]
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

func (s *exportService) Retrieve(ctx context.Context, id uuid.UUID) (*models.Export, error) {
	return s.exports.Retrieve(ctx, id)
}

func (s *exportService) List(ctx context.Context, containerID uuid.UUID) ([]*models.Export, error) {
	return s.exports.List(ctx, containerID)
}

func (s *exportService) RestartExports(ctx context.Context) error {
	stranded, err := s.exports.ListByStatus(ctx, models.ExportProcessing)
	if err != nil {
		return err
	}

	for _, export := range stranded {
		s.logger.Info("Resuming export from previous run",
			zap.String("export_id", export.ID.String()))
		s.launch(export)
	}

	return nil
}

// decryptConfig parses an export's stored config and restores plaintext
// credentials for the duration of a run.
func (s *exportService) decryptConfig(export *models.Export) (*models.GremlinConfig, error) {
	var cfg models.GremlinConfig
	if err := json.Unmarshal(export.Config, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode export config: %w", err)
	}

	var err error
	if cfg.User != "" {
		if cfg.User, err = s.encryptor.Decrypt(cfg.User); err != nil {
			return nil, fmt.Errorf("failed to decrypt export credentials: %w", err)
		}
	}
	if cfg.Key != "" {
		if cfg.Key, err = s.encryptor.Decrypt(cfg.Key); err != nil {
			return nil, fmt.Errorf("failed to decrypt export credentials: %w", err)
		}
	}

	if cfg.BatchSize == 0 {
		cfg.BatchSize = s.batchSize
	}

	return &cfg, nil
}
