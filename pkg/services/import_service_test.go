package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/idaholab/Deep-Lynx-sub010/pkg/apperrors"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/database"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/models"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/repositories"
)

// mockImportRepo implements repositories.ImportRepository in memory.
type mockImportRepo struct {
	imports map[uuid.UUID]*models.Import
	lockErr error
}

func newMockImportRepo() *mockImportRepo {
	return &mockImportRepo{imports: map[uuid.UUID]*models.Import{}}
}

func (m *mockImportRepo) Create(_ context.Context, _ database.Querier, imp *models.Import) error {
	if imp.ID == uuid.Nil {
		imp.ID = uuid.New()
	}
	if imp.Status == "" {
		imp.Status = models.ImportReady
	}
	imp.CreatedAt = time.Now()
	clone := *imp
	m.imports[imp.ID] = &clone
	return nil
}

func (m *mockImportRepo) Retrieve(_ context.Context, id uuid.UUID) (*models.Import, error) {
	imp, ok := m.imports[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return imp, nil
}

func (m *mockImportRepo) RetrieveAndLock(ctx context.Context, _ database.Querier, id uuid.UUID, _ bool) (*models.Import, error) {
	if m.lockErr != nil {
		return nil, m.lockErr
	}
	return m.Retrieve(ctx, id)
}

func (m *mockImportRepo) ListByDataSource(_ context.Context, dataSourceID uuid.UUID, _ repositories.ListOptions) ([]*models.Import, error) {
	var out []*models.Import
	for _, imp := range m.imports {
		if imp.DataSourceID == dataSourceID {
			out = append(out, imp)
		}
	}
	return out, nil
}

func (m *mockImportRepo) ListIncomplete(_ context.Context, dataSourceID uuid.UUID) ([]*models.Import, error) {
	var out []*models.Import
	for _, imp := range m.imports {
		if imp.DataSourceID == dataSourceID && !imp.Status.Terminal() {
			out = append(out, imp)
		}
	}
	return out, nil
}

func (m *mockImportRepo) SetStatus(_ context.Context, _ database.Querier, id uuid.UUID, status models.ImportStatus, message *string) error {
	imp, ok := m.imports[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	imp.Status = status
	imp.StatusMessage = message
	return nil
}

func (m *mockImportRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.imports[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.imports, id)
	return nil
}

var _ repositories.ImportRepository = (*mockImportRepo)(nil)

// mockStagingRepo implements repositories.DataStagingRepository in memory.
type mockStagingRepo struct {
	records []*models.DataStaging
	nextID  int64
}

func (m *mockStagingRepo) Create(_ context.Context, _ database.Querier, record *models.DataStaging) error {
	m.nextID++
	record.ID = m.nextID
	record.CreatedAt = time.Now()
	clone := *record
	m.records = append(m.records, &clone)
	return nil
}

func (m *mockStagingRepo) Retrieve(_ context.Context, id int64) (*models.DataStaging, error) {
	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockStagingRepo) ListUninserted(_ context.Context, _ database.Querier, importID uuid.UUID, limit int) ([]*models.DataStaging, error) {
	var out []*models.DataStaging
	for _, r := range m.records {
		if r.ImportID == importID && r.InsertedAt == nil {
			out = append(out, r)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *mockStagingRepo) SetInserted(_ context.Context, _ database.Querier, id int64) error {
	for _, r := range m.records {
		if r.ID == id {
			now := time.Now()
			r.InsertedAt = &now
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockStagingRepo) SetMappingID(_ context.Context, id int64, mappingID uuid.UUID) error {
	for _, r := range m.records {
		if r.ID == id {
			r.MappingID = &mappingID
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockStagingRepo) AddError(_ context.Context, id int64, message string) error {
	for _, r := range m.records {
		if r.ID == id {
			r.Errors = append(r.Errors, message)
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockStagingRepo) Counts(_ context.Context, importID uuid.UUID) (int64, int64, error) {
	var total, remaining int64
	for _, r := range m.records {
		if r.ImportID != importID {
			continue
		}
		total++
		if r.InsertedAt == nil {
			remaining++
		}
	}
	return total, remaining, nil
}

var _ repositories.DataStagingRepository = (*mockStagingRepo)(nil)

func newImportFixture(t *testing.T) (*fakeDB, *mockImportRepo, *mockStagingRepo, *mockEmitter, ImportService) {
	t.Helper()
	db := &fakeDB{}
	imports := newMockImportRepo()
	staging := &mockStagingRepo{}
	emitter := &mockEmitter{}
	svc := NewImportService(db, imports, staging, emitter, zap.NewNop())
	return db, imports, staging, emitter, svc
}

func TestImportService_CreateImport_StagesRecords(t *testing.T) {
	db, imports, staging, _, svc := newImportFixture(t)
	dataSourceID := uuid.New()

	records := []json.RawMessage{
		json.RawMessage(`{"id":"pump-1"}`),
		json.RawMessage(`{"id":"pump-2"}`),
	}

	imp, err := svc.CreateImport(context.Background(), dataSourceID, "batch-42", records)
	require.NoError(t, err)
	assert.Equal(t, models.ImportReady, imp.Status)
	assert.Equal(t, "batch-42", imp.Reference)
	assert.True(t, db.lastTx().committed)

	require.Len(t, staging.records, 2)
	for _, r := range staging.records {
		assert.Equal(t, imp.ID, r.ImportID)
		assert.Equal(t, dataSourceID, r.DataSourceID)
		assert.Nil(t, r.InsertedAt)
	}
	assert.Len(t, imports.imports, 1)
}

func TestImportService_SetStatus_TerminalEmitsEvent(t *testing.T) {
	_, _, _, emitter, svc := newImportFixture(t)
	dataSourceID := uuid.New()

	imp, err := svc.CreateImport(context.Background(), dataSourceID, "batch", nil)
	require.NoError(t, err)

	require.NoError(t, svc.SetStatus(context.Background(), imp.ID, models.ImportProcessing, nil))
	assert.Empty(t, emitter.events)

	require.NoError(t, svc.SetStatus(context.Background(), imp.ID, models.ImportCompleted, nil))
	require.Len(t, emitter.events, 1)
	assert.Equal(t, models.EventDataImported, emitter.events[0].Type)
	assert.Equal(t, dataSourceID, emitter.events[0].SourceID)
	assert.Equal(t, models.SourceDataSource, emitter.events[0].SourceType)
}

func TestImportService_SetStatus_LockedImport(t *testing.T) {
	_, imports, _, _, svc := newImportFixture(t)

	imp, err := svc.CreateImport(context.Background(), uuid.New(), "batch", nil)
	require.NoError(t, err)

	imports.lockErr = apperrors.ErrLockNotAvailable
	err = svc.SetStatus(context.Background(), imp.ID, models.ImportProcessing, nil)
	assert.ErrorIs(t, err, apperrors.ErrLockNotAvailable)
}

func TestImportService_Progress(t *testing.T) {
	_, _, staging, _, svc := newImportFixture(t)
	dataSourceID := uuid.New()

	imp, err := svc.CreateImport(context.Background(), dataSourceID, "batch", []json.RawMessage{
		json.RawMessage(`{"a":1}`),
		json.RawMessage(`{"a":2}`),
		json.RawMessage(`{"a":3}`),
	})
	require.NoError(t, err)

	require.NoError(t, staging.SetInserted(context.Background(), nil, staging.records[0].ID))

	total, remaining, err := svc.Progress(context.Background(), imp.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, int64(2), remaining)
}
