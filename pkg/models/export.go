package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExportStatus is the lifecycle state of an export run.
type ExportStatus string

const (
	ExportCreated    ExportStatus = "created"
	ExportProcessing ExportStatus = "processing"
	ExportPaused     ExportStatus = "paused"
	ExportCompleted  ExportStatus = "completed"
	ExportFailed     ExportStatus = "failed"
)

// AdapterGremlin is currently the only supported export adapter.
const AdapterGremlin = "gremlin"

// Export is one long-lived export run of a container's graph to an external
// store. Config is adapter-specific JSON; secret fields inside it are stored
// encrypted and only decrypted in memory by the driver.
type Export struct {
	ID              uuid.UUID       `json:"id"`
	ContainerID     uuid.UUID       `json:"container_id"`
	Adapter         string          `json:"adapter"`
	Status          ExportStatus    `json:"status"`
	StatusMessage   *string         `json:"status_message,omitempty"`
	Config          json.RawMessage `json:"config"`
	DestinationType *string         `json:"destination_type,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	ModifiedAt      *time.Time      `json:"modified_at,omitempty"`
}

// GremlinConfig is the gremlin adapter's export configuration. User and Key
// arrive in plaintext on create requests and are encrypted before the Export
// row is persisted.
//
// WritesPerSecond bounds the rate of external writes; BatchSize is the number
// of shadow rows locked per iteration and falls back to the server-wide
// export default when unset.
type GremlinConfig struct {
	TraversalSource string `json:"traversal_source" validate:"required"`
	User            string `json:"user"`
	Key             string `json:"key"`
	Endpoint        string `json:"endpoint" validate:"required"`
	Port            int    `json:"port" validate:"required,min=1,max=65535"`
	Path            string `json:"path"`
	WritesPerSecond int    `json:"writes_per_second" validate:"required,min=1"`
	BatchSize       int    `json:"batch_size,omitempty" validate:"omitempty,min=1"`
	MimeType        string `json:"mime_type,omitempty"`
	GraphSONV1      bool   `json:"graphson_v1,omitempty"`
}

// GremlinNode is a shadow-table copy of a node, snapshotted at export
// initiation. GremlinNodeID is nil until the vertex has been written to the
// target store; that null is what makes the export resumable.
type GremlinNode struct {
	ID            uuid.UUID      `json:"id"`
	ExportID      uuid.UUID      `json:"export_id"`
	ContainerID   uuid.UUID      `json:"container_id"`
	MetatypeID    uuid.UUID      `json:"metatype_id"`
	MetatypeName  string         `json:"metatype_name"`
	Properties    map[string]any `json:"properties"`
	GremlinNodeID *string        `json:"gremlin_node_id,omitempty"`
}

// GremlinEdge is the edge counterpart of GremlinNode.
type GremlinEdge struct {
	ID                 uuid.UUID      `json:"id"`
	ExportID           uuid.UUID      `json:"export_id"`
	ContainerID        uuid.UUID      `json:"container_id"`
	RelationshipPairID uuid.UUID      `json:"relationship_pair_id"`
	RelationshipName   string         `json:"relationship_name"`
	OriginNodeID       uuid.UUID      `json:"origin_node_id"`
	DestinationNodeID  uuid.UUID      `json:"destination_node_id"`
	Properties         map[string]any `json:"properties"`
	GremlinEdgeID      *string        `json:"gremlin_edge_id,omitempty"`
}
