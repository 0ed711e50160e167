// ABOUTME: JSON codec between domain records and stored document values
// ABOUTME: Decode failures are reported to callers, who treat them as absent data

package collection

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrDecode wraps any failure to decode a stored value.
var ErrDecode = errors.New("decoding stored value")

// Encode converts v to the store's value representation.
func Encode[T any](v T) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding value: %w", err)
	}
	return data, nil
}

// CheckFunc vets one stored record before it is decoded.
type CheckFunc func(raw json.RawMessage) error

var jsonNull = []byte("null")

// Decode converts a stored value back into T. JSON null is not a value.
func Decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if bytes.Equal(bytes.TrimSpace(raw), jsonNull) {
		return v, fmt.Errorf("%w: null", ErrDecode)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return v, nil
}

// decodeRecord runs check, when set, and decodes raw into T.
func decodeRecord[T any](raw json.RawMessage, check CheckFunc) (T, error) {
	if check != nil {
		if err := check(raw); err != nil {
			var zero T
			return zero, fmt.Errorf("%w: %w", ErrDecode, err)
		}
	}
	return Decode[T](raw)
}

// decodeSeq decodes a stored sequence. JSON null decodes to an empty sequence.
// Any element that fails check or decoding fails the whole sequence.
func decodeSeq[T any](raw json.RawMessage, check CheckFunc) ([]T, error) {
	if bytes.Equal(bytes.TrimSpace(raw), jsonNull) {
		return []T{}, nil
	}
	elems, err := Decode[[]json.RawMessage](raw)
	if err != nil {
		return nil, err
	}
	items := make([]T, 0, len(elems))
	for i, elem := range elems {
		item, err := decodeRecord[T](elem, check)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}
