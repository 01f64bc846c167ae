package models

import (
	"time"

	"github.com/google/uuid"
)

// Edge connects two nodes in the same container under a metatype relationship
// pair. Origin and destination may be supplied either by node id or by the
// (original id, data source id) composite lookup; the graph service resolves
// composite references to node ids before persisting.
//
// Whether the relationship pair's origin/destination metatypes actually match
// the connected nodes' metatypes is the caller's responsibility, not checked
// here.
type Edge struct {
	ID                        uuid.UUID      `json:"id"`
	ContainerID               uuid.UUID      `json:"container_id"`
	RelationshipPairID        uuid.UUID      `json:"relationship_pair_id"`
	GraphID                   uuid.UUID      `json:"graph_id"`
	OriginNodeID              *uuid.UUID     `json:"origin_node_id,omitempty"`
	DestinationNodeID         *uuid.UUID     `json:"destination_node_id,omitempty"`
	OriginNodeOriginalID      *string        `json:"origin_node_original_id,omitempty"`
	DestinationNodeOriginalID *string        `json:"destination_node_original_id,omitempty"`
	Properties                map[string]any `json:"properties"`
	OriginalDataID            *string        `json:"original_data_id,omitempty"`
	DataSourceID              *uuid.UUID     `json:"data_source_id,omitempty"`
	ImportDataID              *uuid.UUID     `json:"import_data_id,omitempty"`
	DataStagingID             *int64         `json:"data_staging_id,omitempty"`
	CompositeOriginalID       *string        `json:"composite_original_id,omitempty"`
	Archived                  bool           `json:"archived"`
	CreatedAt                 time.Time      `json:"created_at"`
	ModifiedAt                *time.Time     `json:"modified_at,omitempty"`
}
