package services

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/idaholab/Deep-Lynx-sub010/pkg/apperrors"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/models"
)

// validateProperties checks an incoming property map against a metatype's key
// schema and returns the coerced copy that gets persisted. Missing optional
// keys with defaults are filled in; missing required keys, unparseable
// values, and constraint violations fail with apperrors.ErrValidation.
// Properties not covered by any key pass through untouched.
func validateProperties(keys []*models.MetatypeKey, properties map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(properties))
	for k, v := range properties {
		out[k] = v
	}

	for _, key := range keys {
		value, present := out[key.PropertyName]

		if !present || value == nil {
			if key.DefaultValue != nil {
				coerced, err := coerceValue(key, *key.DefaultValue)
				if err != nil {
					return nil, fmt.Errorf("%w: default for property %q: %v", apperrors.ErrValidation, key.PropertyName, err)
				}
				out[key.PropertyName] = coerced
				continue
			}
			if key.Required {
				return nil, fmt.Errorf("%w: required property %q is missing", apperrors.ErrValidation, key.PropertyName)
			}
			continue
		}

		coerced, err := coerceValue(key, value)
		if err != nil {
			return nil, fmt.Errorf("%w: property %q: %v", apperrors.ErrValidation, key.PropertyName, err)
		}
		out[key.PropertyName] = coerced
	}

	return out, nil
}

// coerceValue converts a raw value to the key's declared data type and
// applies the key's extra constraints.
func coerceValue(key *models.MetatypeKey, value any) (any, error) {
	switch key.DataType {
	case models.DataTypeNumber:
		n, err := toNumber(value)
		if err != nil {
			return nil, err
		}
		if v := key.Validation; v != nil {
			if v.Min != nil && n < *v.Min {
				return nil, fmt.Errorf("value %v is below minimum %v", n, *v.Min)
			}
			if v.Max != nil && n > *v.Max {
				return nil, fmt.Errorf("value %v is above maximum %v", n, *v.Max)
			}
		}
		return n, nil

	case models.DataTypeString:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %T", value)
		}
		if v := key.Validation; v != nil && v.Regex != "" {
			matched, err := regexp.MatchString(v.Regex, s)
			if err != nil {
				return nil, fmt.Errorf("invalid validation regex: %v", err)
			}
			if !matched {
				return nil, fmt.Errorf("value does not match pattern %q", v.Regex)
			}
		}
		return s, nil

	case models.DataTypeBoolean:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("expected a boolean, got %q", v)
			}
			return b, nil
		default:
			return nil, fmt.Errorf("expected a boolean, got %T", value)
		}

	case models.DataTypeDate:
		switch v := value.(type) {
		case string:
			if _, err := time.Parse(time.RFC3339, v); err == nil {
				return v, nil
			}
			if t, err := time.Parse("2006-01-02", v); err == nil {
				return t.UTC().Format(time.RFC3339), nil
			}
			return nil, fmt.Errorf("expected an RFC 3339 date, got %q", v)
		case float64:
			// epoch milliseconds
			return time.UnixMilli(int64(v)).UTC().Format(time.RFC3339), nil
		default:
			return nil, fmt.Errorf("expected a date, got %T", value)
		}

	case models.DataTypeEnumeration:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %T", value)
		}
		if !slices.Contains(key.Options, s) {
			return nil, fmt.Errorf("value %q is not one of %v", s, key.Options)
		}
		return s, nil

	case models.DataTypeFile, models.DataTypeUnknown, "":
		return value, nil

	default:
		return nil, fmt.Errorf("unrecognized data type %q", key.DataType)
	}
}

func toNumber(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("expected a number, got %q", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", value)
	}
}

// compositeOriginalID derives the ingestion idempotency key for a record.
// Stable across runs: the same source record always lands on the same row.
func compositeOriginalID(containerID uuid.UUID, dataSourceID uuid.UUID, originalID string) string {
	return fmt.Sprintf("%s+%s+%s", containerID, dataSourceID, originalID)
}
