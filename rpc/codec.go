package rpc

import (
	"encoding/json"
	"fmt"
)

// jsonCodec replaces connect's protobuf JSON codec. Service messages are
// plain Go structs with json tags.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
