package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/idaholab/Deep-Lynx-sub010/pkg/apperrors"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/crypto"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/logging"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/models"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/repositories"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/retry"
)

// QueryRunner produces the payload a data target pushes out. The default
// runner snapshots the container's graph; richer query surfaces can slot in
// behind this boundary without touching the poller.
type QueryRunner interface {
	Run(ctx context.Context, containerID uuid.UUID, query string) (json.RawMessage, error)
}

// DataTargetService manages data targets and runs the periodic push cycle.
type DataTargetService interface {
	// Create validates a data target's config, encrypts its secrets, and
	// persists it inactive.
	Create(ctx context.Context, target *models.DataTarget) (*models.DataTarget, error)

	// Retrieve fetches a data target by id.
	Retrieve(ctx context.Context, id uuid.UUID) (*models.DataTarget, error)

	// List retrieves a container's data targets.
	List(ctx context.Context, containerID uuid.UUID) ([]*models.DataTarget, error)

	// SetActive starts or stops a target's participation in polling.
	SetActive(ctx context.Context, id uuid.UUID, active bool) error

	// Delete removes a data target.
	Delete(ctx context.Context, id uuid.UUID) error

	// Run scans for due targets until ctx is cancelled.
	Run(ctx context.Context)

	// PollOnce runs one scan cycle.
	PollOnce(ctx context.Context)
}

type dataTargetService struct {
	targets      repositories.DataTargetRepository
	runner       QueryRunner
	encryptor    *crypto.CredentialEncryptor
	validate     *validator.Validate
	redis        *redis.Client
	client       *http.Client
	scanInterval time.Duration
	lockTTL      time.Duration
	logger       *zap.Logger
}

// NewDataTargetService creates a data target service. redisClient may be nil,
// in which case poll cycles skip cross-instance locking.
func NewDataTargetService(
	targets repositories.DataTargetRepository,
	runner QueryRunner,
	encryptor *crypto.CredentialEncryptor,
	redisClient *redis.Client,
	scanInterval time.Duration,
	lockTTL time.Duration,
	logger *zap.Logger,
) DataTargetService {
	if scanInterval <= 0 {
		scanInterval = 10 * time.Second
	}
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}

	return &dataTargetService{
		targets:      targets,
		runner:       runner,
		encryptor:    encryptor,
		validate:     validator.New(),
		redis:        redisClient,
		client:       &http.Client{Timeout: 30 * time.Second},
		scanInterval: scanInterval,
		lockTTL:      lockTTL,
		logger:       logger.Named("data-target-service"),
	}
}

var _ DataTargetService = (*dataTargetService)(nil)

func (s *dataTargetService) Create(ctx context.Context, target *models.DataTarget) (*models.DataTarget, error) {
	cfg, err := models.ParseDataTargetConfig(target.Config)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	if err := s.validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	if _, err := time.ParseDuration(cfg.PollInterval); err != nil {
		return nil, fmt.Errorf("%w: invalid poll_interval %q", apperrors.ErrValidation, cfg.PollInterval)
	}

	switch cfg.AuthMethod {
	case models.AuthMethodToken:
		if cfg.Token == "" {
			return nil, fmt.Errorf("%w: token auth requires a token", apperrors.ErrValidation)
		}
	case models.AuthMethodBasic:
		if cfg.Username == "" || cfg.Password == "" {
			return nil, fmt.Errorf("%w: basic auth requires a username and password", apperrors.ErrValidation)
		}
	}

	if cfg.Token != "" {
		if cfg.Token, err = s.encryptor.Encrypt(cfg.Token); err != nil {
			return nil, fmt.Errorf("failed to encrypt data target credentials: %w", err)
		}
	}
	if cfg.Password != "" {
		if cfg.Password, err = s.encryptor.Encrypt(cfg.Password); err != nil {
			return nil, fmt.Errorf("failed to encrypt data target credentials: %w", err)
		}
	}

	if target.Config, err = json.Marshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode data target config: %w", err)
	}
	target.AdapterType = cfg.Kind
	target.Status = models.DataTargetReady

	if err := s.targets.Create(ctx, target); err != nil {
		return nil, err
	}

	s.logger.Info("Created data target",
		zap.String("data_target_id", target.ID.String()),
		zap.String("container_id", target.ContainerID.String()))

	return target, nil
}

func (s *dataTargetService) Retrieve(ctx context.Context, id uuid.UUID) (*models.DataTarget, error) {
	return s.targets.Retrieve(ctx, id)
}

func (s *dataTargetService) List(ctx context.Context, containerID uuid.UUID) ([]*models.DataTarget, error) {
	return s.targets.List(ctx, containerID)
}

func (s *dataTargetService) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return s.targets.SetActive(ctx, id, active)
}

func (s *dataTargetService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.targets.Delete(ctx, id)
}

func (s *dataTargetService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.scanInterval)
	defer ticker.Stop()

	s.logger.Info("Data target poller started", zap.Duration("scan_interval", s.scanInterval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Data target poller stopped")
			return
		case <-ticker.C:
			s.PollOnce(ctx)
		}
	}
}

func (s *dataTargetService) PollOnce(ctx context.Context) {
	targets, err := s.targets.ListActive(ctx)
	if err != nil {
		s.logger.Error("Failed to list active data targets", zap.Error(err))
		return
	}

	for _, target := range targets {
		cfg, err := models.ParseDataTargetConfig(target.Config)
		if err != nil {
			s.logger.Error("Skipping data target with bad config",
				zap.String("data_target_id", target.ID.String()),
				zap.Error(err))
			continue
		}

		if !s.due(target, cfg) {
			continue
		}

		if !s.acquireLock(ctx, target.ID) {
			continue
		}

		s.poll(ctx, target.ID)
	}
}

func (s *dataTargetService) due(target *models.DataTarget, cfg *models.HTTPDataTargetConfig) bool {
	if target.LastRunAt == nil {
		return true
	}

	interval, err := time.ParseDuration(cfg.PollInterval)
	if err != nil {
		return false
	}

	return time.Since(*target.LastRunAt) >= interval
}

// acquireLock takes the short-lived cross-instance lock for a target. The
// lock expires on its own; a crashed poller never wedges the target.
func (s *dataTargetService) acquireLock(ctx context.Context, id uuid.UUID) bool {
	if s.redis == nil {
		return true
	}

	acquired, err := s.redis.SetNX(ctx, lockKey(id), "1", s.lockTTL).Result()
	if err != nil {
		s.logger.Warn("Failed to acquire data target lock",
			zap.String("data_target_id", id.String()),
			zap.Error(err))
		return false
	}

	return acquired
}

func (s *dataTargetService) releaseLock(ctx context.Context, id uuid.UUID) {
	if s.redis == nil {
		return
	}

	if err := s.redis.Del(ctx, lockKey(id)).Err(); err != nil {
		s.logger.Warn("Failed to release data target lock",
			zap.String("data_target_id", id.String()),
			zap.Error(err))
	}
}

func lockKey(id uuid.UUID) string {
	return fmt.Sprintf("data_target_lock:%s", id)
}

// poll runs one push cycle for a locked target. The scan's listing may be
// stale by the time the lock is held, so the record is re-read first.
func (s *dataTargetService) poll(ctx context.Context, id uuid.UUID) {
	defer s.releaseLock(ctx, id)

	target, err := s.targets.Retrieve(ctx, id)
	if err != nil {
		s.logger.Error("Failed to reload data target",
			zap.String("data_target_id", id.String()),
			zap.Error(err))
		return
	}
	if !target.Active {
		if err := s.targets.SetStatus(ctx, target.ID, models.DataTargetReady); err != nil {
			s.logger.Error("Failed to mark data target ready", zap.Error(err))
		}
		return
	}

	cfg, err := models.ParseDataTargetConfig(target.Config)
	if err != nil {
		s.logger.Error("Skipping data target with bad config",
			zap.String("data_target_id", target.ID.String()),
			zap.Error(err))
		return
	}

	if err := s.targets.SetStatus(ctx, target.ID, models.DataTargetPolling); err != nil {
		s.logger.Error("Failed to mark data target polling",
			zap.String("data_target_id", target.ID.String()),
			zap.Error(err))
		return
	}

	if err := s.push(ctx, target, cfg); err != nil {
		// A failed push is stamped like a successful one so the retry waits
		// for the next poll interval instead of firing on every scan tick.
		s.logger.Error("Data target push failed",
			zap.String("data_target_id", target.ID.String()),
			zap.String("error", logging.SanitizeError(err)))
	}

	if err := s.targets.SetLastRunAt(ctx, target.ID); err != nil {
		s.logger.Error("Failed to stamp data target run", zap.Error(err))
	}
	if err := s.targets.SetStatus(ctx, target.ID, models.DataTargetReady); err != nil {
		s.logger.Error("Failed to mark data target ready", zap.Error(err))
	}
}

func (s *dataTargetService) push(ctx context.Context, target *models.DataTarget, cfg *models.HTTPDataTargetConfig) error {
	payload, err := s.runner.Run(ctx, target.ContainerID, cfg.Query)
	if err != nil {
		return fmt.Errorf("failed to build data target payload: %w", err)
	}

	var token, password string
	switch cfg.AuthMethod {
	case models.AuthMethodToken:
		if token, err = s.encryptor.Decrypt(cfg.Token); err != nil {
			return fmt.Errorf("failed to decrypt data target credentials: %w", err)
		}
	case models.AuthMethodBasic:
		if password, err = s.encryptor.Decrypt(cfg.Password); err != nil {
			return fmt.Errorf("failed to decrypt data target credentials: %w", err)
		}
	}

	return retry.DoIfTransient(ctx, nil, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to build data target request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		switch cfg.AuthMethod {
		case models.AuthMethodToken:
			req.Header.Set("Authorization", "Bearer "+token)
		case models.AuthMethodBasic:
			req.SetBasicAuth(cfg.Username, password)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to post to data target: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return fmt.Errorf("data target returned status %d", resp.StatusCode)
		}

		return nil
	})
}

// graphSnapshotRunner is the default query runner: the container's current
// unarchived nodes and edges as one JSON document.
type graphSnapshotRunner struct {
	nodes repositories.NodeRepository
	edges repositories.EdgeRepository
}

// NewGraphSnapshotRunner creates the default QueryRunner.
func NewGraphSnapshotRunner(nodes repositories.NodeRepository, edges repositories.EdgeRepository) QueryRunner {
	return &graphSnapshotRunner{nodes: nodes, edges: edges}
}

func (r *graphSnapshotRunner) Run(ctx context.Context, containerID uuid.UUID, _ string) (json.RawMessage, error) {
	nodes, err := r.nodes.List(ctx, containerID, repositories.ListOptions{})
	if err != nil {
		return nil, err
	}

	edges, err := r.edges.List(ctx, containerID, repositories.ListOptions{})
	if err != nil {
		return nil, err
	}

	return json.Marshal(map[string]any{
		"container_id": containerID,
		"nodes":        nodes,
		"edges":        edges,
	})
}
