package events

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Encode serializes an event payload.
func Encode(payload any) ([]byte, error) {
	data, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	return data, nil
}

// Decode unmarshals the MessagePack data into the provided pointer.
func Decode(data []byte, v any) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode event: %w", err)
	}
	return nil
}
