package models

import (
	"time"

	"github.com/google/uuid"
)

// Metatype key data types. Every metatype key declares one; node property
// validation coerces and checks incoming values against it.
const (
	DataTypeNumber      = "number"
	DataTypeString      = "string"
	DataTypeBoolean     = "boolean"
	DataTypeDate        = "date"
	DataTypeEnumeration = "enumeration"
	DataTypeFile        = "file"
	DataTypeUnknown     = "unknown"
)

// Metatype is a user-defined entity-type schema. Every node references
// exactly one metatype and its properties must validate against the
// metatype's keys.
type Metatype struct {
	ID          uuid.UUID `json:"id"`
	ContainerID uuid.UUID `json:"container_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Archived    bool      `json:"archived"`
	CreatedAt   time.Time `json:"created_at"`
}

// MetatypeKey is a single named property definition on a metatype.
type MetatypeKey struct {
	ID           uuid.UUID      `json:"id"`
	MetatypeID   uuid.UUID      `json:"metatype_id"`
	Name         string         `json:"name"`
	PropertyName string         `json:"property_name"`
	Description  string         `json:"description"`
	Required     bool           `json:"required"`
	DataType     string         `json:"data_type"`
	Options      []string       `json:"options,omitempty"`
	DefaultValue *string        `json:"default_value,omitempty"`
	Validation   *KeyValidation `json:"validation,omitempty"`
	Archived     bool           `json:"archived"`
}

// KeyValidation holds the optional extra constraints of a metatype key.
type KeyValidation struct {
	Regex string   `json:"regex,omitempty"`
	Min   *float64 `json:"min,omitempty"`
	Max   *float64 `json:"max,omitempty"`
}

// MetatypeRelationshipPair is a typed edge schema: an origin metatype, a
// destination metatype, and relationship semantics. Name is denormalized from
// the underlying relationship so exports can label edges without a join.
type MetatypeRelationshipPair struct {
	ID                    uuid.UUID `json:"id"`
	ContainerID           uuid.UUID `json:"container_id"`
	Name                  string    `json:"name"`
	OriginMetatypeID      uuid.UUID `json:"origin_metatype_id"`
	DestinationMetatypeID uuid.UUID `json:"destination_metatype_id"`
	RelationshipType      string    `json:"relationship_type"` // one:one, one:many, many:many
	Archived              bool      `json:"archived"`
	CreatedAt             time.Time `json:"created_at"`
}
