package repositories

import (
	"context"

	"github.com/idaholab/Deep-Lynx-sub010/pkg/database"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/models"
)

// EdgeFilter builds ad hoc edge queries. The underlying select joins
// metatype_relationship_pairs so edges can be filtered by relationship name;
// all column predicates are table-qualified for that reason.
type EdgeFilter struct {
	*Filter
}

// NewEdgeFilter creates a filter over the edges table.
func NewEdgeFilter(db *database.DB) *EdgeFilter {
	f := NewFilter(db, "edges")
	f.SetColumns(edgeColumns)
	f.SetFrom("edges JOIN metatype_relationship_pairs ON metatype_relationship_pairs.id = edges.relationship_pair_id")
	f.AllowSort("edges.id", "edges.created_at", "edges.modified_at")
	return &EdgeFilter{Filter: f}
}

func (f *EdgeFilter) Where() *EdgeFilter {
	f.Filter.Where()
	return f
}

func (f *EdgeFilter) And() *EdgeFilter {
	f.Filter.And()
	return f
}

func (f *EdgeFilter) Or() *EdgeFilter {
	f.Filter.Or()
	return f
}

func (f *EdgeFilter) ContainerID(operator string, value any) *EdgeFilter {
	f.Query("edges.container_id", operator, value)
	return f
}

func (f *EdgeFilter) RelationshipPairID(operator string, value any) *EdgeFilter {
	f.Query("edges.relationship_pair_id", operator, value)
	return f
}

// RelationshipName filters on the joined relationship pair's name.
func (f *EdgeFilter) RelationshipName(operator string, value any) *EdgeFilter {
	f.Query("metatype_relationship_pairs.name", operator, value)
	return f
}

func (f *EdgeFilter) GraphID(operator string, value any) *EdgeFilter {
	f.Query("edges.graph_id", operator, value)
	return f
}

func (f *EdgeFilter) OriginNodeID(operator string, value any) *EdgeFilter {
	f.Query("edges.origin_node_id", operator, value)
	return f
}

func (f *EdgeFilter) DestinationNodeID(operator string, value any) *EdgeFilter {
	f.Query("edges.destination_node_id", operator, value)
	return f
}

func (f *EdgeFilter) DataSourceID(operator string, value any) *EdgeFilter {
	f.Query("edges.data_source_id", operator, value)
	return f
}

func (f *EdgeFilter) ImportDataID(operator string, value any) *EdgeFilter {
	f.Query("edges.import_data_id", operator, value)
	return f
}

func (f *EdgeFilter) Archived(operator string, value any) *EdgeFilter {
	f.Query("edges.archived", operator, value)
	return f
}

// Property filters on a key inside the edge's properties object.
func (f *EdgeFilter) Property(key, operator string, value any) *EdgeFilter {
	f.QueryJSONB(key, "edges.properties", operator, value)
	return f
}

// All executes the accumulated predicates and resets the filter.
func (f *EdgeFilter) All(ctx context.Context, opts ListOptions) ([]*models.Edge, error) {
	return FilterAll(ctx, f.Filter, opts, scanEdge)
}
