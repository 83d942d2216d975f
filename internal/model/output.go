package model

import "encoding/json"

// OutputKind discriminates the GameOutput wire union (spec §3).
type OutputKind int

const (
	OutputText OutputKind = iota
	OutputFormattedText
	OutputSystem
	OutputRoom
	OutputCombat
	OutputStructured
	// OutputInputMode switches the client's input buffering between
	// line-mode and keystroke-mode for an in-band editor (§4.1, §4.8). The
	// Gateway's connection pool intercepts it before the adapter write loop
	// rather than forwarding it as displayable text.
	OutputInputMode
)

// EntityEvent is one out-of-band entity state change, pushed to the client
// through world.entity_state_changed rather than the in-band output stream.
// Field names the reserved structured surface it lands on (char.vitals,
// room.info); Value is the payload the client renders there.
type EntityEvent struct {
	EntityID PersistentEntityId
	Field    string
	Value    Value
}

// RoomInfo is the room-description payload: name, description, and the list
// of obvious exits.
type RoomInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Exits       []string `json:"exits"`
}

// GameOutput is a single unit of output the world emits for a session. Only
// one of the kind-specific fields is populated, matching OutputKind.
type GameOutput struct {
	Kind           OutputKind `json:"kind"`
	Text           string     `json:"text,omitempty"`
	FormattedText  string     `json:"formatted_text,omitempty"`
	SystemMessage  string     `json:"system,omitempty"`
	Room           *RoomInfo  `json:"room,omitempty"`
	CombatMessage  string     `json:"combat,omitempty"`
	StructuredType string     `json:"structured_type,omitempty"`
	StructuredData Value      `json:"structured_data,omitempty"`
	InputMode      string     `json:"input_mode,omitempty"`
	InputModeTitle string     `json:"input_mode_title,omitempty"`
}

// UnmarshalJSON decodes a GameOutput off the wire, routing structured_data
// through ParseValue since Value is an interface encoding/json cannot fill
// on its own.
func (o *GameOutput) UnmarshalJSON(raw []byte) error {
	type plain struct {
		Kind           OutputKind      `json:"kind"`
		Text           string          `json:"text,omitempty"`
		FormattedText  string          `json:"formatted_text,omitempty"`
		SystemMessage  string          `json:"system,omitempty"`
		Room           *RoomInfo       `json:"room,omitempty"`
		CombatMessage  string          `json:"combat,omitempty"`
		StructuredType string          `json:"structured_type,omitempty"`
		StructuredData json.RawMessage `json:"structured_data,omitempty"`
		InputMode      string          `json:"input_mode,omitempty"`
		InputModeTitle string          `json:"input_mode_title,omitempty"`
	}
	var p plain
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}
	*o = GameOutput{
		Kind:           p.Kind,
		Text:           p.Text,
		FormattedText:  p.FormattedText,
		SystemMessage:  p.SystemMessage,
		Room:           p.Room,
		CombatMessage:  p.CombatMessage,
		StructuredType: p.StructuredType,
		InputMode:      p.InputMode,
		InputModeTitle: p.InputModeTitle,
	}
	if len(p.StructuredData) > 0 && string(p.StructuredData) != "null" {
		v, err := ParseValue(p.StructuredData)
		if err != nil {
			return err
		}
		o.StructuredData = v
	}
	return nil
}

// Text builds a plain-text GameOutput.
func Text(s string) GameOutput { return GameOutput{Kind: OutputText, Text: s} }

// System builds a system-message GameOutput.
func System(s string) GameOutput { return GameOutput{Kind: OutputSystem, SystemMessage: s} }

// Combat builds a combat-message GameOutput.
func Combat(s string) GameOutput { return GameOutput{Kind: OutputCombat, CombatMessage: s} }

// Room builds a room-description GameOutput.
func Room(r RoomInfo) GameOutput { return GameOutput{Kind: OutputRoom, Room: &r} }

// Structured builds a structured-payload GameOutput.
func Structured(outputType string, data Value) GameOutput {
	return GameOutput{Kind: OutputStructured, StructuredType: outputType, StructuredData: data}
}

// InputModeChange builds a GameOutput that switches the client between
// line-mode ("line") and keystroke-mode ("keystroke") input, used to enter
// and leave the Editing state's in-band editor (§4.1, §4.8).
func InputModeChange(mode, title string) GameOutput {
	return GameOutput{Kind: OutputInputMode, InputMode: mode, InputModeTitle: title}
}

// PlainText renders a GameOutput the way a line-terminal client would
// display it — the fallback form used when the peer negotiated neither
// MSDP nor GMCP (see internal/protocol).
func (o GameOutput) PlainText() string {
	switch o.Kind {
	case OutputText:
		return o.Text
	case OutputFormattedText:
		return o.FormattedText
	case OutputSystem:
		return o.SystemMessage
	case OutputCombat:
		return o.CombatMessage
	case OutputRoom:
		if o.Room == nil {
			return ""
		}
		exits := "none"
		if len(o.Room.Exits) > 0 {
			exits = joinComma(o.Room.Exits)
		}
		return o.Room.Name + "\r\n" + o.Room.Description + "\r\nObvious exits: " + exits
	case OutputStructured:
		return "[" + o.StructuredType + "]"
	case OutputInputMode:
		return ""
	default:
		return ""
	}
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
