package jsonrpc

import (
	"bytes"
	"encoding/json"

	"fitgate/pkg/validation"
)

// DecodeParams unmarshals params into T and runs its validate tags. Missing
// params decode as an empty object.
func DecodeParams[T any](params json.RawMessage) (*T, error) {
	var v T
	if len(bytes.TrimSpace(params)) == 0 {
		params = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(params, &v); err != nil {
		return nil, InvalidParams("invalid params")
	}
	if err := validation.Validate(&v); err != nil {
		return nil, InvalidParams(err.Error())
	}
	return &v, nil
}
