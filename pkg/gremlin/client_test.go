package gremlin

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstScalarPlainList(t *testing.T) {
	id, err := firstScalar(json.RawMessage(`["vertex-1"]`))
	require.NoError(t, err)
	assert.Equal(t, "vertex-1", id)
}

func TestFirstScalarNumericID(t *testing.T) {
	id, err := firstScalar(json.RawMessage(`[4128]`))
	require.NoError(t, err)
	assert.Equal(t, "4128", id)
}

func TestFirstScalarTypedList(t *testing.T) {
	data := json.RawMessage(`{"@type":"g:List","@value":[{"@type":"g:Int64","@value":42}]}`)
	id, err := firstScalar(data)
	require.NoError(t, err)
	assert.Equal(t, "42", id)
}

func TestFirstScalarEmpty(t *testing.T) {
	_, err := firstScalar(json.RawMessage(`[]`))
	assert.Error(t, err)

	_, err = firstScalar(nil)
	assert.Error(t, err)
}

func TestWritePropertyStepsBindsEverything(t *testing.T) {
	var script strings.Builder
	bindings := map[string]any{}

	writePropertySteps(&script, bindings, map[string]any{
		"name":   "pump-1; drop()",
		"rating": 4.5,
	})

	// Keys and values travel as bindings, never inline in the script.
	assert.NotContains(t, script.String(), "pump-1")
	assert.Contains(t, script.String(), ".property(")
	assert.Len(t, bindings, 4)
}

func TestBindingValueFlattensObjects(t *testing.T) {
	assert.Equal(t, "plain", bindingValue("plain"))
	assert.Equal(t, 42, bindingValue(42))
	assert.Equal(t, `{"nested":true}`, bindingValue(map[string]any{"nested": true}))
	assert.Equal(t, "", bindingValue(nil))
}
