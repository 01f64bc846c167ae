package models

import (
	"time"

	"github.com/google/uuid"
)

// Graph groups the nodes and edges of a container. A container can hold many
// graphs but exactly one is active at a time; all node and edge writes
// implicitly target the active graph.
type Graph struct {
	ID          uuid.UUID `json:"id"`
	ContainerID uuid.UUID `json:"container_id"`
	CreatedBy   string    `json:"created_by"`
	ModifiedBy  string    `json:"modified_by"`
	Archived    bool      `json:"archived"`
	CreatedAt   time.Time `json:"created_at"`
}

// ActiveGraph maps a container to its single write-target graph.
type ActiveGraph struct {
	ContainerID uuid.UUID `json:"container_id"`
	GraphID     uuid.UUID `json:"graph_id"`
}

// Container is the top-level scoping unit. Each container carries its own
// ontology and graph data.
type Container struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Archived    bool      `json:"archived"`
	CreatedAt   time.Time `json:"created_at"`
}
