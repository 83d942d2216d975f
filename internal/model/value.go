package model

import (
	"encoding/json"
	"fmt"
)

// Value is the recursive structured-data tree carried by GameOutput's
// structured payload and by GMCP/MSDP negotiated output (§3, §9): a string,
// a table keyed by string, or an array of values. It marshals to and from
// JSON directly — a Value IS its own wire encoding, so no separate codec is
// needed for the WebSocket envelope or the RPC fabric.
type Value interface {
	isValue()
}

// StringValue is a leaf scalar.
type StringValue string

func (StringValue) isValue() {}

// TableValue is a string-keyed map of values.
type TableValue map[string]Value

func (TableValue) isValue() {}

// ArrayValue is an ordered list of values.
type ArrayValue []Value

func (ArrayValue) isValue() {}

// MarshalJSON renders a Value using its natural JSON shape: a string stays a
// string, a TableValue becomes an object, an ArrayValue becomes an array.
func (v StringValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(v))
}

func (v TableValue) MarshalJSON() ([]byte, error) {
	raw := make(map[string]json.RawMessage, len(v))
	for k, child := range v {
		b, err := json.Marshal(child)
		if err != nil {
			return nil, fmt.Errorf("marshal value field %q: %w", k, err)
		}
		raw[k] = b
	}
	return json.Marshal(raw)
}

func (v ArrayValue) MarshalJSON() ([]byte, error) {
	raw := make([]json.RawMessage, len(v))
	for i, child := range v {
		b, err := json.Marshal(child)
		if err != nil {
			return nil, fmt.Errorf("marshal value index %d: %w", i, err)
		}
		raw[i] = b
	}
	return json.Marshal(raw)
}

// ParseValue decodes the JSON shape produced by MarshalJSON back into a
// Value tree, picking the concrete variant from the token shape.
func ParseValue(raw json.RawMessage) (Value, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return StringValue(s), nil
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		out := make(ArrayValue, len(arr))
		for i, elem := range arr {
			v, err := ParseValue(elem)
			if err != nil {
				return nil, fmt.Errorf("parse value index %d: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("parse value: not string, array, or table: %w", err)
	}
	out := make(TableValue, len(obj))
	for k, elem := range obj {
		v, err := ParseValue(elem)
		if err != nil {
			return nil, fmt.Errorf("parse value field %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}
