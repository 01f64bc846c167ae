package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DataTargetStatus is the poll-cycle state of a data target.
type DataTargetStatus string

const (
	DataTargetReady   DataTargetStatus = "ready"
	DataTargetPolling DataTargetStatus = "polling"
	DataTargetError   DataTargetStatus = "error"
)

// Data target config kinds. The config column is a tagged union discriminated
// by the "kind" field; unknown kinds are rejected at construction.
const (
	DataTargetKindHTTP = "http"
)

// Data target auth methods.
const (
	AuthMethodNone  = "none"
	AuthMethodBasic = "basic"
	AuthMethodToken = "token"
)

// DataTarget is a periodic outbound push of container data to an external
// endpoint. Config secrets (token, username, password) are encrypted at rest
// and decrypted only in memory at poll time.
type DataTarget struct {
	ID          uuid.UUID        `json:"id"`
	ContainerID uuid.UUID        `json:"container_id"`
	Name        string           `json:"name"`
	AdapterType string           `json:"adapter_type"`
	Active      bool             `json:"active"`
	Status      DataTargetStatus `json:"status"`
	Config      json.RawMessage  `json:"config"`
	LastRunAt   *time.Time       `json:"last_run_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	ModifiedAt  *time.Time       `json:"modified_at,omitempty"`
}

// HTTPDataTargetConfig configures the http data target kind.
// PollInterval is a duration string ("30s", "15m", "1h30m").
type HTTPDataTargetConfig struct {
	Kind         string `json:"kind" validate:"required,eq=http"`
	Endpoint     string `json:"endpoint" validate:"required,url"`
	Secure       bool   `json:"secure"`
	AuthMethod   string `json:"auth_method" validate:"required,oneof=none basic token"`
	PollInterval string `json:"poll_interval" validate:"required"`
	Query        string `json:"graphql_query"`
	Token        string `json:"token,omitempty"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
}

// ParseDataTargetConfig decodes a data target config union by its kind tag.
func ParseDataTargetConfig(raw json.RawMessage) (*HTTPDataTargetConfig, error) {
	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("failed to decode data target config: %w", err)
	}

	switch probe.Kind {
	case DataTargetKindHTTP:
		var config HTTPDataTargetConfig
		if err := json.Unmarshal(raw, &config); err != nil {
			return nil, fmt.Errorf("failed to decode http data target config: %w", err)
		}
		return &config, nil
	default:
		return nil, fmt.Errorf("unknown data target config kind %q", probe.Kind)
	}
}
