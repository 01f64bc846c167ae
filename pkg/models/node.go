package models

import (
	"time"

	"github.com/google/uuid"
)

// Node is a single typed record in a container's graph. Properties must
// conform to the key schema of the referenced metatype; validation happens in
// the graph service before any write.
//
// (CompositeOriginalID, DataSourceID) is the idempotency key for ingested
// records: writes with a matching pair update the existing row in place, and
// the row keeps its original id across updates.
type Node struct {
	ID                  uuid.UUID      `json:"id"`
	ContainerID         uuid.UUID      `json:"container_id"`
	MetatypeID          uuid.UUID      `json:"metatype_id"`
	MetatypeName        string         `json:"metatype_name"`
	GraphID             uuid.UUID      `json:"graph_id"`
	Properties          map[string]any `json:"properties"`
	OriginalDataID      *string        `json:"original_data_id,omitempty"`
	DataSourceID        *uuid.UUID     `json:"data_source_id,omitempty"`
	ImportDataID        *uuid.UUID     `json:"import_data_id,omitempty"`
	DataStagingID       *int64         `json:"data_staging_id,omitempty"`
	CompositeOriginalID *string        `json:"composite_original_id,omitempty"`
	Archived            bool           `json:"archived"`
	CreatedAt           time.Time      `json:"created_at"`
	ModifiedAt          *time.Time     `json:"modified_at,omitempty"`
}
