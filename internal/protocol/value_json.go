package protocol

import (
	"encoding/json"

	"github.com/huhlig/wyldlands-gw/internal/model"
)

func jsonMarshalValue(v model.Value) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

func jsonUnmarshalValue(raw []byte) (model.Value, error) {
	return model.ParseValue(raw)
}
