//go:build integration

package repositories

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idaholab/Deep-Lynx-sub010/pkg/apperrors"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/models"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/testhelpers"
)

// seedExportFixture extends the graph fixture with persisted nodes, one edge,
// and an export row ready to snapshot.
func seedExportFixture(t *testing.T, db *testhelpers.TestDB, nodeCount int) (*graphFixture, []*models.Node, *models.Export) {
	t.Helper()
	ctx := context.Background()

	f := seedGraphFixture(t, db)
	nodes := NewNodeRepository(db.DB)
	edges := NewEdgeRepository(db.DB)

	persisted := make([]*models.Node, 0, nodeCount)
	for i := 0; i < nodeCount; i++ {
		n := fixtureNode(f, uuid.New(), uuid.NewString(), map[string]any{"index": float64(i)})
		require.NoError(t, nodes.CreateOrUpdate(ctx, db.DB, n))
		persisted = append(persisted, n)
	}

	if nodeCount >= 2 {
		edge := &models.Edge{
			ContainerID:        f.containerID,
			RelationshipPairID: f.pairID,
			GraphID:            f.graphID,
			OriginNodeID:       &persisted[0].ID,
			DestinationNodeID:  &persisted[1].ID,
			Properties:         map[string]any{},
		}
		require.NoError(t, edges.CreateOrUpdate(ctx, db.DB, edge))
	}

	export := &models.Export{
		ContainerID: f.containerID,
		Adapter:     models.AdapterGremlin,
		Config:      json.RawMessage(`{}`),
	}
	require.NoError(t, NewExportRepository(db.DB).Create(ctx, export))

	return f, persisted, export
}

func TestGremlinExportRepository_SnapshotAndResumeState(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	ctx := context.Background()

	f, persisted, export := seedExportFixture(t, db, 3)
	shadow := NewGremlinExportRepository(db.DB)

	nodeCount, edgeCount, err := shadow.Snapshot(ctx, db.DB, export.ID, f.containerID, f.graphID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), nodeCount)
	assert.Equal(t, int64(1), edgeCount)

	remaining, remainingEdges, err := shadow.CountRemaining(ctx, export.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), remaining)
	assert.Equal(t, int64(1), remainingEdges)

	// Marking a node written shrinks the resume set.
	require.NoError(t, shadow.SetGremlinNodeID(ctx, db.DB, export.ID, persisted[0].ID, "g-100"))

	remaining, _, err = shadow.CountRemaining(ctx, export.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), remaining)

	written, err := shadow.RetrieveNode(ctx, export.ID, persisted[0].ID)
	require.NoError(t, err)
	require.NotNil(t, written.GremlinNodeID)
	assert.Equal(t, "g-100", *written.GremlinNodeID)

	unwritten, err := shadow.ListUnassociatedNodesAndLock(ctx, db.DB, export.ID, 10, false)
	require.NoError(t, err)
	assert.Len(t, unwritten, 2)

	require.NoError(t, shadow.DeleteForExport(ctx, export.ID))

	remaining, remainingEdges, err = shadow.CountRemaining(ctx, export.ID)
	require.NoError(t, err)
	assert.Zero(t, remaining)
	assert.Zero(t, remainingEdges)
}

func TestGremlinExportRepository_SnapshotSkipsArchivedAndUnresolvedEdges(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	ctx := context.Background()

	f, persisted, export := seedExportFixture(t, db, 3)
	nodes := NewNodeRepository(db.DB)
	edges := NewEdgeRepository(db.DB)
	shadow := NewGremlinExportRepository(db.DB)

	require.NoError(t, nodes.Archive(ctx, persisted[2].ID))

	// An edge that never resolved its destination endpoint.
	dangling := &models.Edge{
		ContainerID:        f.containerID,
		RelationshipPairID: f.pairID,
		GraphID:            f.graphID,
		OriginNodeID:       &persisted[0].ID,
		Properties:         map[string]any{},
	}
	require.NoError(t, edges.CreateOrUpdate(ctx, db.DB, dangling))

	nodeCount, edgeCount, err := shadow.Snapshot(ctx, db.DB, export.ID, f.containerID, f.graphID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), nodeCount, "archived node stays out of the snapshot")
	assert.Equal(t, int64(1), edgeCount, "edge with a missing endpoint is skipped")
}

func TestGremlinExportRepository_LockContention(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	ctx := context.Background()

	f, _, export := seedExportFixture(t, db, 2)
	shadow := NewGremlinExportRepository(db.DB)

	_, _, err := shadow.Snapshot(ctx, db.DB, export.ID, f.containerID, f.graphID)
	require.NoError(t, err)

	holder, err := db.DB.Begin(ctx)
	require.NoError(t, err)
	defer holder.Rollback(ctx)

	locked, err := shadow.ListUnassociatedNodesAndLock(ctx, holder, export.ID, 10, false)
	require.NoError(t, err)
	require.Len(t, locked, 2)

	// A second worker must fail fast instead of queueing behind the holder.
	contender, err := db.DB.Begin(ctx)
	require.NoError(t, err)
	defer contender.Rollback(ctx)

	_, err = shadow.ListUnassociatedNodesAndLock(ctx, contender, export.ID, 10, true)
	assert.ErrorIs(t, err, apperrors.ErrLockNotAvailable)

	// Releasing the holder frees the rows. The contender's transaction aborted
	// on the lock failure, so the retry needs a fresh one.
	require.NoError(t, holder.Rollback(ctx))
	require.NoError(t, contender.Rollback(ctx))

	retry, err := db.DB.Begin(ctx)
	require.NoError(t, err)
	defer retry.Rollback(ctx)

	relocked, err := shadow.ListUnassociatedNodesAndLock(ctx, retry, export.ID, 10, true)
	require.NoError(t, err)
	assert.Len(t, relocked, 2)
}

func TestQueueRepository_PriorityThenInsertionOrder(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	ctx := context.Background()

	queue := NewQueueRepository(db.DB)
	sourceID := uuid.New()
	event := func() []models.Event {
		return []models.Event{{
			Type:       models.EventDataIngested,
			SourceID:   sourceID,
			SourceType: models.SourceDataSource,
		}}
	}

	first, err := queue.Push(ctx, event(), 0)
	require.NoError(t, err)
	second, err := queue.Push(ctx, event(), 0)
	require.NoError(t, err)
	urgent, err := queue.Push(ctx, event(), 5)
	require.NoError(t, err)

	tasks, err := queue.List(ctx, 100)
	require.NoError(t, err)

	// Other tests share the queue table, so only order among our tasks counts.
	mine := make([]int64, 0, 3)
	for _, task := range tasks {
		switch task.ID {
		case first.ID, second.ID, urgent.ID:
			mine = append(mine, task.ID)
		}
	}
	require.Equal(t, []int64{urgent.ID, first.ID, second.ID}, mine)

	events, err := tasks[0].Events()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventDataIngested, events[0].Type)

	// A task survives any number of Lists until explicitly deleted.
	again, err := queue.List(ctx, 100)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(again), 3)

	for _, id := range mine {
		require.NoError(t, queue.Delete(ctx, id))
	}
	assert.ErrorIs(t, queue.Delete(ctx, first.ID), apperrors.ErrNotFound)
}

func TestGraphRepository_SetActiveReplaces(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	ctx := context.Background()

	f := seedGraphFixture(t, db)
	graphs := NewGraphRepository(db.DB)

	second := &models.Graph{ContainerID: f.containerID, CreatedBy: "test"}
	require.NoError(t, graphs.Create(ctx, second))

	active, err := graphs.ActiveGraphID(ctx, f.containerID)
	require.NoError(t, err)
	assert.Equal(t, f.graphID, active)

	require.NoError(t, graphs.SetActive(ctx, f.containerID, second.ID))

	active, err = graphs.ActiveGraphID(ctx, f.containerID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active)
}
