package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/idaholab/Deep-Lynx-sub010/pkg/apperrors"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/crypto"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/models"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/repositories"
)

// mockDataTargetRepo implements repositories.DataTargetRepository in memory.
type mockDataTargetRepo struct {
	targets map[uuid.UUID]*models.DataTarget
}

func newMockDataTargetRepo() *mockDataTargetRepo {
	return &mockDataTargetRepo{targets: map[uuid.UUID]*models.DataTarget{}}
}

func (m *mockDataTargetRepo) Create(_ context.Context, target *models.DataTarget) error {
	if target.ID == uuid.Nil {
		target.ID = uuid.New()
	}
	clone := *target
	m.targets[target.ID] = &clone
	return nil
}

func (m *mockDataTargetRepo) Retrieve(_ context.Context, id uuid.UUID) (*models.DataTarget, error) {
	target, ok := m.targets[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return target, nil
}

func (m *mockDataTargetRepo) List(_ context.Context, containerID uuid.UUID) ([]*models.DataTarget, error) {
	var out []*models.DataTarget
	for _, t := range m.targets {
		if t.ContainerID == containerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockDataTargetRepo) ListActive(context.Context) ([]*models.DataTarget, error) {
	var out []*models.DataTarget
	for _, t := range m.targets {
		if t.Active {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockDataTargetRepo) UpdateConfig(_ context.Context, id uuid.UUID, config json.RawMessage) error {
	target, ok := m.targets[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	target.Config = config
	return nil
}

func (m *mockDataTargetRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	target, ok := m.targets[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	target.Active = active
	return nil
}

func (m *mockDataTargetRepo) SetStatus(_ context.Context, id uuid.UUID, status models.DataTargetStatus) error {
	target, ok := m.targets[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	target.Status = status
	return nil
}

func (m *mockDataTargetRepo) SetLastRunAt(_ context.Context, id uuid.UUID) error {
	target, ok := m.targets[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	now := time.Now()
	target.LastRunAt = &now
	return nil
}

func (m *mockDataTargetRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.targets[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.targets, id)
	return nil
}

var _ repositories.DataTargetRepository = (*mockDataTargetRepo)(nil)

// staticRunner returns a fixed payload.
type staticRunner struct {
	payload json.RawMessage
	runErr  error
	calls   int
}

func (r *staticRunner) Run(context.Context, uuid.UUID, string) (json.RawMessage, error) {
	r.calls++
	if r.runErr != nil {
		return nil, r.runErr
	}
	return r.payload, nil
}

func newTargetService(t *testing.T, repo *mockDataTargetRepo, runner QueryRunner) DataTargetService {
	t.Helper()
	encryptor, err := crypto.NewCredentialEncryptor("test-encryption-key")
	require.NoError(t, err)
	return NewDataTargetService(repo, runner, encryptor, nil, time.Second, time.Second, zap.NewNop())
}

func httpTargetConfig(t *testing.T, endpoint string, overrides map[string]any) json.RawMessage {
	t.Helper()
	cfg := map[string]any{
		"kind":          "http",
		"endpoint":      endpoint,
		"auth_method":   "none",
		"poll_interval": "1s",
	}
	for k, v := range overrides {
		cfg[k] = v
	}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	return data
}

func TestDataTargetService_Create_EncryptsToken(t *testing.T) {
	repo := newMockDataTargetRepo()
	svc := newTargetService(t, repo, &staticRunner{})

	target, err := svc.Create(context.Background(), &models.DataTarget{
		ContainerID: uuid.New(),
		Name:        "sink",
		Config: httpTargetConfig(t, "https://sink.example.com/ingest", map[string]any{
			"auth_method": "token",
			"token":       "plain-token",
		}),
	})
	require.NoError(t, err)
	assert.Equal(t, models.DataTargetKindHTTP, target.AdapterType)
	assert.Equal(t, models.DataTargetReady, target.Status)

	cfg, err := models.ParseDataTargetConfig(target.Config)
	require.NoError(t, err)
	assert.NotEqual(t, "plain-token", cfg.Token)
	assert.NotEmpty(t, cfg.Token)
}

func TestDataTargetService_Create_RejectsUnknownKind(t *testing.T) {
	repo := newMockDataTargetRepo()
	svc := newTargetService(t, repo, &staticRunner{})

	_, err := svc.Create(context.Background(), &models.DataTarget{
		ContainerID: uuid.New(),
		Name:        "sink",
		Config:      json.RawMessage(`{"kind":"kafka","endpoint":"x"}`),
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestDataTargetService_Create_RejectsBadInterval(t *testing.T) {
	repo := newMockDataTargetRepo()
	svc := newTargetService(t, repo, &staticRunner{})

	_, err := svc.Create(context.Background(), &models.DataTarget{
		ContainerID: uuid.New(),
		Name:        "sink",
		Config: httpTargetConfig(t, "https://sink.example.com/ingest", map[string]any{
			"poll_interval": "whenever",
		}),
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestDataTargetService_Create_AuthFieldRequirements(t *testing.T) {
	repo := newMockDataTargetRepo()
	svc := newTargetService(t, repo, &staticRunner{})

	_, err := svc.Create(context.Background(), &models.DataTarget{
		ContainerID: uuid.New(),
		Name:        "sink",
		Config: httpTargetConfig(t, "https://sink.example.com/ingest", map[string]any{
			"auth_method": "token",
		}),
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.Create(context.Background(), &models.DataTarget{
		ContainerID: uuid.New(),
		Name:        "sink",
		Config: httpTargetConfig(t, "https://sink.example.com/ingest", map[string]any{
			"auth_method": "basic",
			"username":    "u",
		}),
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestDataTargetService_PollOnce_PushesDueTarget(t *testing.T) {
	var received atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	repo := newMockDataTargetRepo()
	runner := &staticRunner{payload: json.RawMessage(`{"nodes":[]}`)}
	svc := newTargetService(t, repo, runner)

	target, err := svc.Create(context.Background(), &models.DataTarget{
		ContainerID: uuid.New(),
		Name:        "sink",
		Config: httpTargetConfig(t, server.URL, map[string]any{
			"auth_method": "token",
			"token":       "push-token",
		}),
	})
	require.NoError(t, err)
	require.NoError(t, svc.SetActive(context.Background(), target.ID, true))

	svc.PollOnce(context.Background())

	assert.Equal(t, 1, runner.calls)
	assert.Equal(t, "Bearer push-token", received.Load())

	stored, err := svc.Retrieve(context.Background(), target.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DataTargetReady, stored.Status)
	assert.NotNil(t, stored.LastRunAt)
}

func TestDataTargetService_PollOnce_SkipsNotDue(t *testing.T) {
	repo := newMockDataTargetRepo()
	runner := &staticRunner{payload: json.RawMessage(`{}`)}
	svc := newTargetService(t, repo, runner)

	target, err := svc.Create(context.Background(), &models.DataTarget{
		ContainerID: uuid.New(),
		Name:        "sink",
		Config: httpTargetConfig(t, "https://sink.example.com/ingest", map[string]any{
			"poll_interval": "1h",
		}),
	})
	require.NoError(t, err)
	require.NoError(t, svc.SetActive(context.Background(), target.ID, true))

	now := time.Now()
	repo.targets[target.ID].LastRunAt = &now

	svc.PollOnce(context.Background())
	assert.Zero(t, runner.calls)
}

func TestDataTargetService_PollOnce_SkipsInactive(t *testing.T) {
	repo := newMockDataTargetRepo()
	runner := &staticRunner{payload: json.RawMessage(`{}`)}
	svc := newTargetService(t, repo, runner)

	_, err := svc.Create(context.Background(), &models.DataTarget{
		ContainerID: uuid.New(),
		Name:        "sink",
		Config:      httpTargetConfig(t, "https://sink.example.com/ingest", nil),
	})
	require.NoError(t, err)

	svc.PollOnce(context.Background())
	assert.Zero(t, runner.calls)
}

func TestDataTargetService_PollOnce_FailedPushWaitsForNextInterval(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	repo := newMockDataTargetRepo()
	runner := &staticRunner{payload: json.RawMessage(`{}`)}
	svc := newTargetService(t, repo, runner)

	target, err := svc.Create(context.Background(), &models.DataTarget{
		ContainerID: uuid.New(),
		Name:        "sink",
		Config:      httpTargetConfig(t, server.URL, nil),
	})
	require.NoError(t, err)
	require.NoError(t, svc.SetActive(context.Background(), target.ID, true))

	svc.PollOnce(context.Background())

	// the failure counts as a run: status back to ready, run stamped
	stored, err := svc.Retrieve(context.Background(), target.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DataTargetReady, stored.Status)
	require.NotNil(t, stored.LastRunAt)
	assert.Equal(t, 1, runner.calls)

	// not due again until the poll interval passes
	svc.PollOnce(context.Background())
	assert.Equal(t, 1, runner.calls)
}

func TestDataTargetService_Poll_RechecksActiveUnderLock(t *testing.T) {
	repo := newMockDataTargetRepo()
	runner := &staticRunner{payload: json.RawMessage(`{}`)}
	svc := newTargetService(t, repo, runner)

	target, err := svc.Create(context.Background(), &models.DataTarget{
		ContainerID: uuid.New(),
		Name:        "sink",
		Config:      httpTargetConfig(t, "https://sink.example.com/ingest", nil),
	})
	require.NoError(t, err)

	// the target was deactivated after the scan listed it, mid-cycle
	repo.targets[target.ID].Status = models.DataTargetPolling
	svc.(*dataTargetService).poll(context.Background(), target.ID)

	assert.Zero(t, runner.calls)
	stored, err := svc.Retrieve(context.Background(), target.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DataTargetReady, stored.Status)
}

func TestGraphSnapshotRunner_BuildsPayload(t *testing.T) {
	containerID := uuid.New()
	nodes := &mockNodeRepo{nodes: []*models.Node{
		{ID: uuid.New(), ContainerID: containerID, Properties: map[string]any{}},
		{ID: uuid.New(), ContainerID: uuid.New(), Properties: map[string]any{}},
	}}
	edges := &mockEdgeRepo{}

	runner := NewGraphSnapshotRunner(nodes, edges)
	payload, err := runner.Run(context.Background(), containerID, "")
	require.NoError(t, err)

	var decoded struct {
		ContainerID uuid.UUID     `json:"container_id"`
		Nodes       []models.Node `json:"nodes"`
		Edges       []models.Edge `json:"edges"`
	}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, containerID, decoded.ContainerID)
	assert.Len(t, decoded.Nodes, 1)
	assert.Empty(t, decoded.Edges)
}
