package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/idaholab/Deep-Lynx-sub010/pkg/apperrors"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/database"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/models"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/repositories"
)

// fakeTx is the minimal pgx.Tx services actually touch: Commit and Rollback.
// The embedded interface panics on anything else, which is what we want in a
// unit test.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (t *fakeTx) Commit(context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.rolledBack = true
	return nil
}

// fakeDB satisfies database.TxBeginner and hands out fakeTx instances.
type fakeDB struct {
	txs      []*fakeTx
	beginErr error
}

func (d *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	if d.beginErr != nil {
		return nil, d.beginErr
	}
	tx := &fakeTx{}
	d.txs = append(d.txs, tx)
	return tx, nil
}

func (d *fakeDB) lastTx() *fakeTx {
	if len(d.txs) == 0 {
		return nil
	}
	return d.txs[len(d.txs)-1]
}

var _ database.TxBeginner = (*fakeDB)(nil)

// mockGraphRepo implements repositories.GraphRepository for testing.
type mockGraphRepo struct {
	graphs       map[uuid.UUID]*models.Graph
	activeGraphs map[uuid.UUID]uuid.UUID // container id -> graph id
}

func (m *mockGraphRepo) Create(_ context.Context, graph *models.Graph) error {
	if graph.ID == uuid.Nil {
		graph.ID = uuid.New()
	}
	if m.graphs == nil {
		m.graphs = map[uuid.UUID]*models.Graph{}
	}
	m.graphs[graph.ID] = graph
	return nil
}

func (m *mockGraphRepo) Retrieve(_ context.Context, id uuid.UUID) (*models.Graph, error) {
	graph, ok := m.graphs[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return graph, nil
}

func (m *mockGraphRepo) List(context.Context, uuid.UUID) ([]*models.Graph, error) {
	return nil, nil
}

func (m *mockGraphRepo) Archive(context.Context, uuid.UUID) error { return nil }

func (m *mockGraphRepo) SetActive(_ context.Context, containerID, graphID uuid.UUID) error {
	if m.activeGraphs == nil {
		m.activeGraphs = map[uuid.UUID]uuid.UUID{}
	}
	m.activeGraphs[containerID] = graphID
	return nil
}

func (m *mockGraphRepo) ActiveGraphID(_ context.Context, containerID uuid.UUID) (uuid.UUID, error) {
	id, ok := m.activeGraphs[containerID]
	if !ok {
		return uuid.Nil, apperrors.ErrNoActiveGraph
	}
	return id, nil
}

var _ repositories.GraphRepository = (*mockGraphRepo)(nil)

// mockMetatypeRepo implements repositories.MetatypeRepository for testing.
type mockMetatypeRepo struct {
	metatypes map[uuid.UUID]*models.Metatype
	keys      map[uuid.UUID][]*models.MetatypeKey
	pairs     map[uuid.UUID]*models.MetatypeRelationshipPair

	listKeysCalls int
}

func (m *mockMetatypeRepo) Create(_ context.Context, metatype *models.Metatype) error {
	if metatype.ID == uuid.Nil {
		metatype.ID = uuid.New()
	}
	if m.metatypes == nil {
		m.metatypes = map[uuid.UUID]*models.Metatype{}
	}
	m.metatypes[metatype.ID] = metatype
	return nil
}

func (m *mockMetatypeRepo) Retrieve(_ context.Context, id uuid.UUID) (*models.Metatype, error) {
	mt, ok := m.metatypes[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return mt, nil
}

func (m *mockMetatypeRepo) List(context.Context, uuid.UUID) ([]*models.Metatype, error) {
	return nil, nil
}

func (m *mockMetatypeRepo) Archive(context.Context, uuid.UUID) error { return nil }

func (m *mockMetatypeRepo) CreateKey(_ context.Context, key *models.MetatypeKey) error {
	if key.ID == uuid.Nil {
		key.ID = uuid.New()
	}
	if m.keys == nil {
		m.keys = map[uuid.UUID][]*models.MetatypeKey{}
	}
	m.keys[key.MetatypeID] = append(m.keys[key.MetatypeID], key)
	return nil
}

func (m *mockMetatypeRepo) ListKeys(_ context.Context, metatypeID uuid.UUID) ([]*models.MetatypeKey, error) {
	m.listKeysCalls++
	return m.keys[metatypeID], nil
}

func (m *mockMetatypeRepo) ArchiveKey(context.Context, uuid.UUID) error { return nil }

func (m *mockMetatypeRepo) CreatePair(_ context.Context, pair *models.MetatypeRelationshipPair) error {
	if pair.ID == uuid.Nil {
		pair.ID = uuid.New()
	}
	if m.pairs == nil {
		m.pairs = map[uuid.UUID]*models.MetatypeRelationshipPair{}
	}
	m.pairs[pair.ID] = pair
	return nil
}

func (m *mockMetatypeRepo) RetrievePair(_ context.Context, id uuid.UUID) (*models.MetatypeRelationshipPair, error) {
	pair, ok := m.pairs[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return pair, nil
}

func (m *mockMetatypeRepo) ListPairs(context.Context, uuid.UUID) ([]*models.MetatypeRelationshipPair, error) {
	return nil, nil
}

func (m *mockMetatypeRepo) ArchivePair(context.Context, uuid.UUID) error { return nil }

var _ repositories.MetatypeRepository = (*mockMetatypeRepo)(nil)

// mockNodeRepo implements repositories.NodeRepository for testing. Upserts key
// on (composite_original_id, data_source_id) like the real table.
type mockNodeRepo struct {
	nodes     []*models.Node
	createErr error
}

func (m *mockNodeRepo) CreateOrUpdate(_ context.Context, _ database.Querier, node *models.Node) error {
	if m.createErr != nil {
		return m.createErr
	}
	if node.CompositeOriginalID != nil && node.DataSourceID != nil {
		for _, existing := range m.nodes {
			if existing.CompositeOriginalID != nil && *existing.CompositeOriginalID == *node.CompositeOriginalID &&
				existing.DataSourceID != nil && *existing.DataSourceID == *node.DataSourceID {
				node.ID = existing.ID
				*existing = *node
				return nil
			}
		}
	}
	if node.ID == uuid.Nil {
		node.ID = uuid.New()
	}
	clone := *node
	m.nodes = append(m.nodes, &clone)
	return nil
}

func (m *mockNodeRepo) Update(_ context.Context, _ database.Querier, node *models.Node) error {
	for _, existing := range m.nodes {
		if existing.ID == node.ID {
			*existing = *node
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockNodeRepo) Retrieve(_ context.Context, id uuid.UUID) (*models.Node, error) {
	for _, n := range m.nodes {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockNodeRepo) DomainRetrieve(_ context.Context, containerID, id uuid.UUID) (*models.Node, error) {
	for _, n := range m.nodes {
		if n.ID == id && n.ContainerID == containerID && !n.Archived {
			return n, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockNodeRepo) RetrieveByCompositeOriginalID(_ context.Context, dataSourceID uuid.UUID, compositeOriginalID string) (*models.Node, error) {
	for _, n := range m.nodes {
		if n.CompositeOriginalID != nil && *n.CompositeOriginalID == compositeOriginalID &&
			n.DataSourceID != nil && *n.DataSourceID == dataSourceID && !n.Archived {
			return n, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockNodeRepo) List(_ context.Context, containerID uuid.UUID, _ repositories.ListOptions) ([]*models.Node, error) {
	var out []*models.Node
	for _, n := range m.nodes {
		if n.ContainerID == containerID && !n.Archived {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockNodeRepo) ListByMetatypeID(context.Context, uuid.UUID, repositories.ListOptions) ([]*models.Node, error) {
	return nil, nil
}

func (m *mockNodeRepo) Archive(_ context.Context, id uuid.UUID) error {
	for _, n := range m.nodes {
		if n.ID == id {
			n.Archived = true
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockNodeRepo) PermanentlyDelete(context.Context, uuid.UUID) error { return nil }

var _ repositories.NodeRepository = (*mockNodeRepo)(nil)

// mockEdgeRepo implements repositories.EdgeRepository for testing.
type mockEdgeRepo struct {
	edges     []*models.Edge
	createErr error
}

func (m *mockEdgeRepo) CreateOrUpdate(_ context.Context, _ database.Querier, edge *models.Edge) error {
	if m.createErr != nil {
		return m.createErr
	}
	if edge.CompositeOriginalID != nil && edge.DataSourceID != nil {
		for _, existing := range m.edges {
			if existing.CompositeOriginalID != nil && *existing.CompositeOriginalID == *edge.CompositeOriginalID &&
				existing.DataSourceID != nil && *existing.DataSourceID == *edge.DataSourceID {
				edge.ID = existing.ID
				*existing = *edge
				return nil
			}
		}
	}
	if edge.ID == uuid.Nil {
		edge.ID = uuid.New()
	}
	clone := *edge
	m.edges = append(m.edges, &clone)
	return nil
}

func (m *mockEdgeRepo) Update(_ context.Context, _ database.Querier, edge *models.Edge) error {
	for _, existing := range m.edges {
		if existing.ID == edge.ID {
			*existing = *edge
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockEdgeRepo) Retrieve(_ context.Context, id uuid.UUID) (*models.Edge, error) {
	for _, e := range m.edges {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockEdgeRepo) DomainRetrieve(_ context.Context, containerID, id uuid.UUID) (*models.Edge, error) {
	for _, e := range m.edges {
		if e.ID == id && e.ContainerID == containerID && !e.Archived {
			return e, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockEdgeRepo) List(_ context.Context, containerID uuid.UUID, _ repositories.ListOptions) ([]*models.Edge, error) {
	var out []*models.Edge
	for _, e := range m.edges {
		if e.ContainerID == containerID && !e.Archived {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockEdgeRepo) ListByNodeID(_ context.Context, nodeID uuid.UUID, _ repositories.ListOptions) ([]*models.Edge, error) {
	var out []*models.Edge
	for _, e := range m.edges {
		if e.Archived {
			continue
		}
		if (e.OriginNodeID != nil && *e.OriginNodeID == nodeID) ||
			(e.DestinationNodeID != nil && *e.DestinationNodeID == nodeID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockEdgeRepo) Archive(_ context.Context, id uuid.UUID) error {
	for _, e := range m.edges {
		if e.ID == id {
			e.Archived = true
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockEdgeRepo) PermanentlyDelete(context.Context, uuid.UUID) error { return nil }

var _ repositories.EdgeRepository = (*mockEdgeRepo)(nil)

// mockEmitter records emitted events.
type mockEmitter struct {
	events  []models.Event
	emitErr error
}

func (m *mockEmitter) Emit(_ context.Context, events ...models.Event) error {
	if m.emitErr != nil {
		return m.emitErr
	}
	m.events = append(m.events, events...)
	return nil
}

var _ EventEmitter = (*mockEmitter)(nil)

// seedMetatype registers a metatype with keys and returns its id.
func seedMetatype(repo *mockMetatypeRepo, containerID uuid.UUID, name string, keys ...*models.MetatypeKey) uuid.UUID {
	mt := &models.Metatype{ID: uuid.New(), ContainerID: containerID, Name: name}
	if repo.metatypes == nil {
		repo.metatypes = map[uuid.UUID]*models.Metatype{}
	}
	repo.metatypes[mt.ID] = mt
	for _, k := range keys {
		k.MetatypeID = mt.ID
		if repo.keys == nil {
			repo.keys = map[uuid.UUID][]*models.MetatypeKey{}
		}
		repo.keys[mt.ID] = append(repo.keys[mt.ID], k)
	}
	return mt.ID
}

var errBoom = fmt.Errorf("boom")
