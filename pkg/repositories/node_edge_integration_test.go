//go:build integration

package repositories

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idaholab/Deep-Lynx-sub010/pkg/apperrors"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/models"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/testhelpers"
)

// graphFixture holds a seeded container with an active graph and one metatype.
type graphFixture struct {
	containerID uuid.UUID
	graphID     uuid.UUID
	metatypeID  uuid.UUID
	pairID      uuid.UUID
}

// seedGraphFixture creates the container, active graph, metatype, and
// relationship pair the node and edge tests write against.
func seedGraphFixture(t *testing.T, db *testhelpers.TestDB) *graphFixture {
	t.Helper()
	ctx := context.Background()

	containers := NewContainerRepository(db.DB)
	graphs := NewGraphRepository(db.DB)
	metatypes := NewMetatypeRepository(db.DB)

	container := &models.Container{Name: fmt.Sprintf("fixture-%s", uuid.New())}
	require.NoError(t, containers.Create(ctx, container))

	graph := &models.Graph{ContainerID: container.ID, CreatedBy: "test"}
	require.NoError(t, graphs.Create(ctx, graph))
	require.NoError(t, graphs.SetActive(ctx, container.ID, graph.ID))

	metatype := &models.Metatype{ContainerID: container.ID, Name: "Equipment"}
	require.NoError(t, metatypes.Create(ctx, metatype))

	pair := &models.MetatypeRelationshipPair{
		ContainerID:           container.ID,
		Name:                  "connected_to",
		OriginMetatypeID:      metatype.ID,
		DestinationMetatypeID: metatype.ID,
		RelationshipType:      "many:many",
	}
	require.NoError(t, metatypes.CreatePair(ctx, pair))

	return &graphFixture{
		containerID: container.ID,
		graphID:     graph.ID,
		metatypeID:  metatype.ID,
		pairID:      pair.ID,
	}
}

func fixtureNode(f *graphFixture, dataSourceID uuid.UUID, originalID string, properties map[string]any) *models.Node {
	composite := fmt.Sprintf("%s+%s+%s", f.containerID, dataSourceID, originalID)
	return &models.Node{
		ContainerID:         f.containerID,
		MetatypeID:          f.metatypeID,
		MetatypeName:        "Equipment",
		GraphID:             f.graphID,
		Properties:          properties,
		OriginalDataID:      &originalID,
		DataSourceID:        &dataSourceID,
		CompositeOriginalID: &composite,
	}
}

func TestNodeRepository_CreateOrUpdate_IdempotentOnCompositeKey(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	f := seedGraphFixture(t, db)
	ctx := context.Background()

	nodes := NewNodeRepository(db.DB)
	dataSourceID := uuid.New()

	first := fixtureNode(f, dataSourceID, "pump-001", map[string]any{"status": "new"})
	require.NoError(t, nodes.CreateOrUpdate(ctx, db.DB, first))
	originalID := first.ID

	// Same composite key again: the row updates in place.
	second := fixtureNode(f, dataSourceID, "pump-001", map[string]any{"status": "running"})
	require.NoError(t, nodes.CreateOrUpdate(ctx, db.DB, second))

	assert.Equal(t, originalID, second.ID, "row keeps its id across re-ingest")

	persisted, err := nodes.Retrieve(ctx, originalID)
	require.NoError(t, err)
	assert.Equal(t, "running", persisted.Properties["status"])
	assert.NotNil(t, persisted.ModifiedAt)

	listed, err := nodes.List(ctx, f.containerID, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, listed, 1, "re-ingest must not create a second row")
}

func TestNodeRepository_CreateOrUpdate_NullCompositeNeverConflicts(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	f := seedGraphFixture(t, db)
	ctx := context.Background()

	nodes := NewNodeRepository(db.DB)

	a := &models.Node{ContainerID: f.containerID, MetatypeID: f.metatypeID, MetatypeName: "Equipment", GraphID: f.graphID, Properties: map[string]any{}}
	b := &models.Node{ContainerID: f.containerID, MetatypeID: f.metatypeID, MetatypeName: "Equipment", GraphID: f.graphID, Properties: map[string]any{}}
	require.NoError(t, nodes.CreateOrUpdate(ctx, db.DB, a))
	require.NoError(t, nodes.CreateOrUpdate(ctx, db.DB, b))

	assert.NotEqual(t, a.ID, b.ID)

	listed, err := nodes.List(ctx, f.containerID, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestNodeRepository_DomainRetrieve_HidesArchived(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	f := seedGraphFixture(t, db)
	ctx := context.Background()

	nodes := NewNodeRepository(db.DB)
	node := fixtureNode(f, uuid.New(), "valve-001", map[string]any{})
	require.NoError(t, nodes.CreateOrUpdate(ctx, db.DB, node))

	require.NoError(t, nodes.Archive(ctx, node.ID))

	_, err := nodes.DomainRetrieve(ctx, f.containerID, node.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// Plain Retrieve still sees the row.
	archived, err := nodes.Retrieve(ctx, node.ID)
	require.NoError(t, err)
	assert.True(t, archived.Archived)
}

func TestEdgeRepository_CreateOrUpdate_IdempotentOnCompositeKey(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	f := seedGraphFixture(t, db)
	ctx := context.Background()

	nodes := NewNodeRepository(db.DB)
	edges := NewEdgeRepository(db.DB)
	dataSourceID := uuid.New()

	origin := fixtureNode(f, dataSourceID, "pump-001", map[string]any{})
	dest := fixtureNode(f, dataSourceID, "valve-001", map[string]any{})
	require.NoError(t, nodes.CreateOrUpdate(ctx, db.DB, origin))
	require.NoError(t, nodes.CreateOrUpdate(ctx, db.DB, dest))

	composite := fmt.Sprintf("%s+%s+edge-001", f.containerID, dataSourceID)
	edge := &models.Edge{
		ContainerID:         f.containerID,
		RelationshipPairID:  f.pairID,
		GraphID:             f.graphID,
		OriginNodeID:        &origin.ID,
		DestinationNodeID:   &dest.ID,
		Properties:          map[string]any{"length": float64(3)},
		DataSourceID:        &dataSourceID,
		CompositeOriginalID: &composite,
	}
	require.NoError(t, edges.CreateOrUpdate(ctx, db.DB, edge))
	firstID := edge.ID

	update := &models.Edge{
		ContainerID:         f.containerID,
		RelationshipPairID:  f.pairID,
		GraphID:             f.graphID,
		OriginNodeID:        &origin.ID,
		DestinationNodeID:   &dest.ID,
		Properties:          map[string]any{"length": float64(7)},
		DataSourceID:        &dataSourceID,
		CompositeOriginalID: &composite,
	}
	require.NoError(t, edges.CreateOrUpdate(ctx, db.DB, update))

	assert.Equal(t, firstID, update.ID)

	listed, err := edges.List(ctx, f.containerID, ListOptions{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, float64(7), listed[0].Properties["length"])
}

func TestEdgeRepository_ListByNodeID_BothDirections(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	f := seedGraphFixture(t, db)
	ctx := context.Background()

	nodes := NewNodeRepository(db.DB)
	edges := NewEdgeRepository(db.DB)

	center := fixtureNode(f, uuid.New(), "hub", map[string]any{})
	left := fixtureNode(f, uuid.New(), "left", map[string]any{})
	right := fixtureNode(f, uuid.New(), "right", map[string]any{})
	for _, n := range []*models.Node{center, left, right} {
		require.NoError(t, nodes.CreateOrUpdate(ctx, db.DB, n))
	}

	outbound := &models.Edge{ContainerID: f.containerID, RelationshipPairID: f.pairID, GraphID: f.graphID, OriginNodeID: &center.ID, DestinationNodeID: &right.ID, Properties: map[string]any{}}
	inbound := &models.Edge{ContainerID: f.containerID, RelationshipPairID: f.pairID, GraphID: f.graphID, OriginNodeID: &left.ID, DestinationNodeID: &center.ID, Properties: map[string]any{}}
	unrelated := &models.Edge{ContainerID: f.containerID, RelationshipPairID: f.pairID, GraphID: f.graphID, OriginNodeID: &left.ID, DestinationNodeID: &right.ID, Properties: map[string]any{}}
	for _, e := range []*models.Edge{outbound, inbound, unrelated} {
		require.NoError(t, edges.CreateOrUpdate(ctx, db.DB, e))
	}

	touching, err := edges.ListByNodeID(ctx, center.ID, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, touching, 2)
}

func TestNodeFilter_PropertyQueryAndCount(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	f := seedGraphFixture(t, db)
	ctx := context.Background()

	nodes := NewNodeRepository(db.DB)
	for i, status := range []string{"active", "active", "retired"} {
		n := fixtureNode(f, uuid.New(), fmt.Sprintf("asset-%d", i), map[string]any{"status": status})
		require.NoError(t, nodes.CreateOrUpdate(ctx, db.DB, n))
	}

	matches, err := NewNodeFilter(db.DB).Where().
		ContainerID("eq", f.containerID).And().
		Property("status", "eq", "active").
		All(ctx, ListOptions{SortBy: "created_at"})
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	count, err := NewNodeFilter(db.DB).Where().
		ContainerID("eq", f.containerID).And().
		Property("status", "eq", "active").
		Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestNodeFilter_RejectsUnknownSortColumn(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	f := seedGraphFixture(t, db)
	ctx := context.Background()

	_, err := NewNodeFilter(db.DB).Where().
		ContainerID("eq", f.containerID).
		All(ctx, ListOptions{SortBy: "properties->>'secret'"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
