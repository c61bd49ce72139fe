// Package msgpack wraps MessagePack encoding for Airport action bodies.
package msgpack

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrEmpty is returned when decoding an empty body.
var ErrEmpty = errors.New("empty MessagePack data")

// Decode unmarshals data into v, which must be a pointer.
func Decode(data []byte, v any) error {
	if len(data) == 0 {
		return ErrEmpty
	}
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode MessagePack: %w", err)
	}
	return nil
}

// DecodeOptional is Decode that leaves v untouched for an empty body.
func DecodeOptional(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return Decode(data, v)
}

// Encode marshals v.
func Encode(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode MessagePack: %w", err)
	}
	return data, nil
}
