package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionId_Unique(t *testing.T) {
	a := NewSessionId()
	b := NewSessionId()
	assert.NotEqual(t, a, b)
}

func TestParseSessionId_RoundTrip(t *testing.T) {
	id := NewSessionId()
	parsed, err := ParseSessionId(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParseSessionId_Invalid(t *testing.T) {
	_, err := ParseSessionId("not-a-uuid")
	assert.Error(t, err)
}

func TestParseEntityId_RoundTrip(t *testing.T) {
	id := NewEntityId()
	parsed, err := ParseEntityId(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParseEntityId_Invalid(t *testing.T) {
	_, err := ParseEntityId("")
	assert.Error(t, err)
}
