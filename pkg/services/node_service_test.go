package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/idaholab/Deep-Lynx-sub010/pkg/apperrors"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/models"
)

func newNodeFixture(t *testing.T) (*fakeDB, *mockNodeRepo, *mockGraphRepo, *mockMetatypeRepo, *mockEmitter, NodeService, uuid.UUID, uuid.UUID) {
	t.Helper()

	containerID := uuid.New()
	graphID := uuid.New()
	db := &fakeDB{}
	nodes := &mockNodeRepo{}
	graphs := &mockGraphRepo{activeGraphs: map[uuid.UUID]uuid.UUID{containerID: graphID}}
	metatypes := &mockMetatypeRepo{}
	emitter := &mockEmitter{}

	svc := NewNodeService(db, nodes, graphs, metatypes, emitter, zap.NewNop())
	return db, nodes, graphs, metatypes, emitter, svc, containerID, graphID
}

func TestNodeService_CreateOrUpdate_Valid(t *testing.T) {
	db, nodes, _, metatypes, emitter, svc, containerID, graphID := newNodeFixture(t)

	metatypeID := seedMetatype(metatypes, containerID, "Pump",
		&models.MetatypeKey{PropertyName: "name", DataType: models.DataTypeString, Required: true})

	node := &models.Node{
		MetatypeID: metatypeID,
		Properties: map[string]any{"name": "pump-1"},
	}

	err := svc.CreateOrUpdate(context.Background(), containerID, []*models.Node{node})
	require.NoError(t, err)

	assert.Len(t, nodes.nodes, 1)
	assert.Equal(t, graphID, node.GraphID)
	assert.Equal(t, "Pump", node.MetatypeName)
	assert.NotEqual(t, uuid.Nil, node.ID)
	assert.True(t, db.lastTx().committed)

	require.Len(t, emitter.events, 1)
	assert.Equal(t, models.EventDataIngested, emitter.events[0].Type)
	assert.Equal(t, containerID, emitter.events[0].SourceID)
	assert.Equal(t, models.SourceContainer, emitter.events[0].SourceType)
}

func TestNodeService_CreateOrUpdate_NoActiveGraph(t *testing.T) {
	_, _, graphs, metatypes, _, svc, containerID, _ := newNodeFixture(t)
	graphs.activeGraphs = nil

	metatypeID := seedMetatype(metatypes, containerID, "Pump")

	err := svc.CreateOrUpdate(context.Background(), containerID, []*models.Node{
		{MetatypeID: metatypeID, Properties: map[string]any{}},
	})
	assert.ErrorIs(t, err, apperrors.ErrNoActiveGraph)
}

func TestNodeService_CreateOrUpdate_ValidationFailsBeforeWrite(t *testing.T) {
	db, nodes, _, metatypes, emitter, svc, containerID, _ := newNodeFixture(t)

	metatypeID := seedMetatype(metatypes, containerID, "Pump",
		&models.MetatypeKey{PropertyName: "name", DataType: models.DataTypeString, Required: true})

	good := &models.Node{MetatypeID: metatypeID, Properties: map[string]any{"name": "pump-1"}}
	bad := &models.Node{MetatypeID: metatypeID, Properties: map[string]any{}}

	err := svc.CreateOrUpdate(context.Background(), containerID, []*models.Node{good, bad})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	// nothing was persisted and no transaction was opened
	assert.Empty(t, nodes.nodes)
	assert.Empty(t, db.txs)
	assert.Empty(t, emitter.events)
}

func TestNodeService_CreateOrUpdate_ArchivedMetatype(t *testing.T) {
	_, _, _, metatypes, _, svc, containerID, _ := newNodeFixture(t)

	metatypeID := seedMetatype(metatypes, containerID, "Pump")
	metatypes.metatypes[metatypeID].Archived = true

	err := svc.CreateOrUpdate(context.Background(), containerID, []*models.Node{
		{MetatypeID: metatypeID, Properties: map[string]any{}},
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestNodeService_CreateOrUpdate_ForeignContainerMetatype(t *testing.T) {
	_, _, _, metatypes, _, svc, containerID, _ := newNodeFixture(t)

	metatypeID := seedMetatype(metatypes, uuid.New(), "Pump")

	err := svc.CreateOrUpdate(context.Background(), containerID, []*models.Node{
		{MetatypeID: metatypeID, Properties: map[string]any{}},
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestNodeService_CreateOrUpdate_FillsCompositeOriginalID(t *testing.T) {
	_, _, _, metatypes, _, svc, containerID, _ := newNodeFixture(t)

	metatypeID := seedMetatype(metatypes, containerID, "Pump")
	dataSourceID := uuid.New()
	originalID := "pump-7"

	node := &models.Node{
		MetatypeID:     metatypeID,
		Properties:     map[string]any{},
		OriginalDataID: &originalID,
		DataSourceID:   &dataSourceID,
	}

	err := svc.CreateOrUpdate(context.Background(), containerID, []*models.Node{node})
	require.NoError(t, err)

	require.NotNil(t, node.CompositeOriginalID)
	assert.Equal(t, compositeOriginalID(containerID, dataSourceID, originalID), *node.CompositeOriginalID)
}

func TestNodeService_CreateOrUpdate_UpsertKeepsID(t *testing.T) {
	_, nodes, _, metatypes, _, svc, containerID, _ := newNodeFixture(t)

	metatypeID := seedMetatype(metatypes, containerID, "Pump")
	dataSourceID := uuid.New()
	originalID := "pump-7"

	first := &models.Node{
		MetatypeID:     metatypeID,
		Properties:     map[string]any{},
		OriginalDataID: &originalID,
		DataSourceID:   &dataSourceID,
	}
	require.NoError(t, svc.CreateOrUpdate(context.Background(), containerID, []*models.Node{first}))

	second := &models.Node{
		MetatypeID:     metatypeID,
		Properties:     map[string]any{},
		OriginalDataID: &originalID,
		DataSourceID:   &dataSourceID,
	}
	require.NoError(t, svc.CreateOrUpdate(context.Background(), containerID, []*models.Node{second}))

	assert.Len(t, nodes.nodes, 1)
	assert.Equal(t, first.ID, second.ID)
}

func TestNodeService_CreateOrUpdate_CachesMetatypeKeys(t *testing.T) {
	_, _, _, metatypes, _, svc, containerID, _ := newNodeFixture(t)

	metatypeID := seedMetatype(metatypes, containerID, "Pump")

	batch := []*models.Node{
		{MetatypeID: metatypeID, Properties: map[string]any{}},
		{MetatypeID: metatypeID, Properties: map[string]any{}},
		{MetatypeID: metatypeID, Properties: map[string]any{}},
	}
	require.NoError(t, svc.CreateOrUpdate(context.Background(), containerID, batch))

	assert.Equal(t, 1, metatypes.listKeysCalls)
}

func TestNodeService_CreateOrUpdate_EmitFailureDoesNotFailWrite(t *testing.T) {
	_, nodes, _, metatypes, emitter, svc, containerID, _ := newNodeFixture(t)
	emitter.emitErr = errBoom

	metatypeID := seedMetatype(metatypes, containerID, "Pump")

	err := svc.CreateOrUpdate(context.Background(), containerID, []*models.Node{
		{MetatypeID: metatypeID, Properties: map[string]any{}},
	})
	require.NoError(t, err)
	assert.Len(t, nodes.nodes, 1)
}

func TestNodeService_CreateOrUpdate_EmptyBatch(t *testing.T) {
	db, _, _, _, _, svc, containerID, _ := newNodeFixture(t)

	require.NoError(t, svc.CreateOrUpdate(context.Background(), containerID, nil))
	assert.Empty(t, db.txs)
}

func TestNodeService_Archive_ScopedToContainer(t *testing.T) {
	_, nodes, _, metatypes, _, svc, containerID, _ := newNodeFixture(t)

	metatypeID := seedMetatype(metatypes, containerID, "Pump")
	node := &models.Node{MetatypeID: metatypeID, Properties: map[string]any{}}
	require.NoError(t, svc.CreateOrUpdate(context.Background(), containerID, []*models.Node{node}))

	err := svc.Archive(context.Background(), uuid.New(), node.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, svc.Archive(context.Background(), containerID, node.ID))
	assert.True(t, nodes.nodes[0].Archived)
}
