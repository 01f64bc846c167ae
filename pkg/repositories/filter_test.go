package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterQueryEq(t *testing.T) {
	f := NewFilter(nil, "nodes")
	f.Where().Query("container_id", "eq", "abc")

	query, values, err := f.buildList(ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM nodes WHERE container_id = $1", query)
	assert.Equal(t, []any{"abc"}, values)
}

func TestFilterQueryIn(t *testing.T) {
	f := NewFilter(nil, "nodes")
	f.Where().Query("metatype_id", "in", []string{"a", "b", "c"})

	query, values, err := f.buildList(ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM nodes WHERE metatype_id IN ($1,$2,$3)", query)
	assert.Equal(t, []any{"a", "b", "c"}, values)
}

func TestFilterQueryInCommaString(t *testing.T) {
	f := NewFilter(nil, "nodes")
	f.Where().Query("metatype_id", "in", "a, b")

	query, values, err := f.buildList(ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM nodes WHERE metatype_id IN ($1,$2)", query)
	assert.Equal(t, []any{"a", "b"}, values)
}

func TestFilterQueryInEmpty(t *testing.T) {
	f := NewFilter(nil, "nodes")
	f.Where().Query("metatype_id", "in", []string{})

	_, _, err := f.buildList(ListOptions{})
	assert.Error(t, err)
}

func TestFilterQueryUnknownOperator(t *testing.T) {
	f := NewFilter(nil, "nodes")
	f.Where().Query("id", "between", 1)

	_, _, err := f.buildList(ListOptions{})
	assert.Error(t, err)
}

func TestFilterConnectives(t *testing.T) {
	f := NewFilter(nil, "edges")
	f.Where().
		Query("container_id", "eq", "abc").
		And().
		Query("archived", "eq", false).
		Or().
		Query("relationship_pair_id", "neq", "xyz")

	query, values, err := f.buildList(ListOptions{})
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM edges WHERE container_id = $1 AND archived = $2 OR relationship_pair_id <> $3",
		query)
	assert.Len(t, values, 3)
}

func TestFilterQueryJSONBPath(t *testing.T) {
	f := NewFilter(nil, "nodes")
	f.Where().QueryJSONB("flight.status", "properties", "eq", "active")

	query, values, err := f.buildList(ListOptions{})
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM nodes WHERE properties -> 'flight' ->> 'status' = $1",
		query)
	assert.Equal(t, []any{"active"}, values)
}

func TestFilterQueryJSONBSingleKey(t *testing.T) {
	f := NewFilter(nil, "nodes")
	f.Where().QueryJSONB("name", "properties", "in", []string{"a", "b"})

	query, _, err := f.buildList(ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM nodes WHERE properties ->> 'name' IN ($1,$2)", query)
}

func TestFilterQueryJSONBRejectsQuotedSegments(t *testing.T) {
	f := NewFilter(nil, "nodes")
	f.Where().QueryJSONB("a'; DROP TABLE nodes; --", "properties", "eq", "x")

	_, _, err := f.buildList(ListOptions{})
	assert.Error(t, err)
}

func TestFilterSortAllowList(t *testing.T) {
	f := NewFilter(nil, "nodes")
	f.AllowSort("created_at")

	f.Where().Query("container_id", "eq", "abc")
	query, _, err := f.buildList(ListOptions{SortBy: "created_at", SortDesc: true, Limit: 10, Offset: 20})
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT * FROM nodes WHERE container_id = $1 ORDER BY "created_at" DESC OFFSET $2 LIMIT $3`,
		query)

	f.Where().Query("container_id", "eq", "abc")
	_, _, err = f.buildList(ListOptions{SortBy: "properties; DROP TABLE nodes"})
	assert.Error(t, err)
}

func TestFilterResetsAfterBuild(t *testing.T) {
	f := NewFilter(nil, "nodes")
	f.Where().Query("container_id", "eq", "abc")

	_, _, err := f.buildList(ListOptions{})
	require.NoError(t, err)

	query, values, err := f.buildList(ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM nodes", query)
	assert.Empty(t, values)
}

func TestFilterCustomFromSurvivesReset(t *testing.T) {
	f := NewFilter(nil, "edges")
	f.SetColumns("edges.*")
	f.SetFrom("edges JOIN metatype_relationship_pairs p ON p.id = edges.relationship_pair_id")

	f.Where().Query("edges.container_id", "eq", "abc")
	_, _, err := f.buildList(ListOptions{})
	require.NoError(t, err)

	query, _, err := f.buildList(ListOptions{})
	require.NoError(t, err)
	assert.Contains(t, query, "JOIN metatype_relationship_pairs")
}
