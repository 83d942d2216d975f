package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_MarshalRoundTrip(t *testing.T) {
	v := TableValue{
		"name": StringValue("Hunter"),
		"tags": ArrayValue{StringValue("npc"), StringValue("vendor")},
		"stats": TableValue{
			"hp": StringValue("10"),
		},
	}

	raw, err := json.Marshal(v)
	require.NoError(t, err)

	parsed, err := ParseValue(raw)
	require.NoError(t, err)

	table, ok := parsed.(TableValue)
	require.True(t, ok)
	assert.Equal(t, StringValue("Hunter"), table["name"])

	tags, ok := table["tags"].(ArrayValue)
	require.True(t, ok)
	assert.Equal(t, ArrayValue{StringValue("npc"), StringValue("vendor")}, tags)

	stats, ok := table["stats"].(TableValue)
	require.True(t, ok)
	assert.Equal(t, StringValue("10"), stats["hp"])
}

func TestParseValue_Scalar(t *testing.T) {
	v, err := ParseValue(json.RawMessage(`"plain"`))
	require.NoError(t, err)
	assert.Equal(t, StringValue("plain"), v)
}

func TestParseValue_Malformed(t *testing.T) {
	_, err := ParseValue(json.RawMessage(`{not json`))
	assert.Error(t, err)
}
