package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGameOutput_PlainText(t *testing.T) {
	cases := []struct {
		name string
		out  GameOutput
		want string
	}{
		{"text", Text("hello"), "hello"},
		{"system", System("you are dead"), "you are dead"},
		{"combat", Combat("a hits b"), "a hits b"},
		{
			"room with exits",
			Room(RoomInfo{Name: "Foyer", Description: "A dusty entry.", Exits: []string{"north", "east"}}),
			"Foyer\r\nA dusty entry.\r\nObvious exits: north, east",
		},
		{
			"room with no exits",
			Room(RoomInfo{Name: "Vault", Description: "Sealed shut."}),
			"Vault\r\nSealed shut.\r\nObvious exits: none",
		},
		{"structured", Structured("char.vitals", StringValue("ignored")), "[char.vitals]"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.out.PlainText())
		})
	}
}

// TestGameOutput_JSONRoundTripStructured exercises the wire decode path the
// RPC fabric's send_output uses: StructuredData is an interface, so
// UnmarshalJSON must rebuild the Value tree rather than leave it nil.
func TestGameOutput_JSONRoundTripStructured(t *testing.T) {
	out := Structured("char.vitals", TableValue{
		"hp":   StringValue("10"),
		"tags": ArrayValue{StringValue("npc")},
	})

	raw, err := json.Marshal(out)
	require.NoError(t, err)

	var back GameOutput
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, out.Kind, back.Kind)
	assert.Equal(t, out.StructuredType, back.StructuredType)
	assert.Equal(t, out.StructuredData, back.StructuredData)
}

func TestGameOutput_JSONRoundTripRoom(t *testing.T) {
	out := Room(RoomInfo{Name: "Foyer", Description: "Dusty.", Exits: []string{"north"}})

	raw, err := json.Marshal(out)
	require.NoError(t, err)

	var back GameOutput
	require.NoError(t, json.Unmarshal(raw, &back))
	require.NotNil(t, back.Room)
	assert.Equal(t, *out.Room, *back.Room)
}
