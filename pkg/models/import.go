package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ImportStatus is the lifecycle state of an import.
type ImportStatus string

const (
	ImportReady      ImportStatus = "ready"
	ImportProcessing ImportStatus = "processing"
	ImportError      ImportStatus = "error"
	ImportStopped    ImportStatus = "stopped"
	ImportCompleted  ImportStatus = "completed"
)

// Terminal reports whether the status ends an import run. Terminal
// transitions emit a data_imported event.
func (s ImportStatus) Terminal() bool {
	return s == ImportCompleted || s == ImportStopped || s == ImportError
}

// Import is a single batch of incoming raw data from a data source. Imports
// are locked row-exclusively while a worker processes their staged records.
type Import struct {
	ID            uuid.UUID    `json:"id"`
	DataSourceID  uuid.UUID    `json:"data_source_id"`
	Status        ImportStatus `json:"status"`
	StatusMessage *string      `json:"status_message,omitempty"`
	Reference     string       `json:"reference"`
	CreatedAt     time.Time    `json:"created_at"`
	ModifiedAt    *time.Time   `json:"modified_at,omitempty"`
}

// DataStaging is one raw record awaiting transformation into nodes or edges.
// A null InsertedAt marks pending work; records become eligible for
// processing only once an active type mapping with transformations exists for
// their shape.
type DataStaging struct {
	ID           int64           `json:"id"`
	DataSourceID uuid.UUID       `json:"data_source_id"`
	ImportID     uuid.UUID       `json:"import_id"`
	MappingID    *uuid.UUID      `json:"mapping_id,omitempty"`
	Data         json.RawMessage `json:"data"`
	Errors       []string        `json:"errors,omitempty"`
	InsertedAt   *time.Time      `json:"inserted_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
