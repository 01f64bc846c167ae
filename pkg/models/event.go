package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates every event the system emits. The set is closed:
// Emit rejects values that don't pass Valid.
type EventType string

const (
	EventDataImported        EventType = "data_imported"
	EventDataIngested        EventType = "data_ingested"
	EventTypeMappingCreated  EventType = "type_mapping_created"
	EventTypeMappingModified EventType = "type_mapping_modified"
	EventFileCreated         EventType = "file_created"
	EventFileModified        EventType = "file_modified"
	EventDataSourceCreated   EventType = "data_source_created"
	EventDataSourceModified  EventType = "data_source_modified"
	EventDataExported        EventType = "data_exported"
)

// Valid reports whether t is a recognized event type.
func (t EventType) Valid() bool {
	switch t {
	case EventDataImported, EventDataIngested, EventTypeMappingCreated,
		EventTypeMappingModified, EventFileCreated, EventFileModified,
		EventDataSourceCreated, EventDataSourceModified, EventDataExported:
		return true
	}
	return false
}

// EventSourceType identifies what kind of entity an event originated from,
// which controls how listeners are matched.
type EventSourceType string

const (
	SourceDataSource EventSourceType = "data_source"
	SourceContainer  EventSourceType = "container"
)

// Event describes a single mutation for downstream notification. Data is
// forwarded verbatim to each matching listener.
type Event struct {
	Type       EventType       `json:"type"`
	SourceID   uuid.UUID       `json:"source_id"`
	SourceType EventSourceType `json:"source_type"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Task is one durable queue row wrapping a batch of events. The processor
// lists tasks, delivers the contained events, then deletes the row.
type Task struct {
	ID       int64           `json:"id"`
	Task     json.RawMessage `json:"task"` // serialized []Event
	Priority int             `json:"priority"`
	Added    time.Time       `json:"added"`
	Lock     *string         `json:"lock,omitempty"`
}

// Events decodes the task payload.
func (t *Task) Events() ([]Event, error) {
	var events []Event
	if err := json.Unmarshal(t.Task, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// EventRegistration is a webhook listener registration. A registration
// matches an event when the event type matches and the source id matches the
// registration's data source or container scope.
type EventRegistration struct {
	ID           uuid.UUID  `json:"id"`
	AppName      string     `json:"app_name"`
	AppURL       string     `json:"app_url"`
	EventType    EventType  `json:"event_type"`
	DataSourceID *uuid.UUID `json:"data_source_id,omitempty"`
	ContainerID  *uuid.UUID `json:"container_id,omitempty"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
}
