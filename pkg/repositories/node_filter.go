package repositories

import (
	"context"

	"github.com/idaholab/Deep-Lynx-sub010/pkg/database"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/models"
)

// NodeFilter builds ad hoc node queries with named predicates. Methods return
// the filter itself so predicates chain:
//
//	nodes, err := NewNodeFilter(db).Where().
//		ContainerID("eq", containerID).And().
//		Property("flight.status", "eq", "active").
//		All(ctx, ListOptions{Limit: 100})
type NodeFilter struct {
	*Filter
}

// NewNodeFilter creates a filter over the nodes table.
func NewNodeFilter(db *database.DB) *NodeFilter {
	f := NewFilter(db, "nodes")
	f.SetColumns(nodeColumns)
	f.AllowSort("id", "metatype_name", "created_at", "modified_at")
	return &NodeFilter{Filter: f}
}

func (f *NodeFilter) Where() *NodeFilter {
	f.Filter.Where()
	return f
}

func (f *NodeFilter) And() *NodeFilter {
	f.Filter.And()
	return f
}

func (f *NodeFilter) Or() *NodeFilter {
	f.Filter.Or()
	return f
}

func (f *NodeFilter) ContainerID(operator string, value any) *NodeFilter {
	f.Query("container_id", operator, value)
	return f
}

func (f *NodeFilter) MetatypeID(operator string, value any) *NodeFilter {
	f.Query("metatype_id", operator, value)
	return f
}

func (f *NodeFilter) MetatypeName(operator string, value any) *NodeFilter {
	f.Query("metatype_name", operator, value)
	return f
}

func (f *NodeFilter) GraphID(operator string, value any) *NodeFilter {
	f.Query("graph_id", operator, value)
	return f
}

func (f *NodeFilter) DataSourceID(operator string, value any) *NodeFilter {
	f.Query("data_source_id", operator, value)
	return f
}

func (f *NodeFilter) ImportDataID(operator string, value any) *NodeFilter {
	f.Query("import_data_id", operator, value)
	return f
}

func (f *NodeFilter) OriginalDataID(operator string, value any) *NodeFilter {
	f.Query("original_data_id", operator, value)
	return f
}

func (f *NodeFilter) Archived(operator string, value any) *NodeFilter {
	f.Query("archived", operator, value)
	return f
}

// Property filters on a key inside the node's properties object. key may be a
// dot-separated path into nested objects.
func (f *NodeFilter) Property(key, operator string, value any) *NodeFilter {
	f.QueryJSONB(key, "properties", operator, value)
	return f
}

// All executes the accumulated predicates and resets the filter.
func (f *NodeFilter) All(ctx context.Context, opts ListOptions) ([]*models.Node, error) {
	return FilterAll(ctx, f.Filter, opts, scanNode)
}
