// ABOUTME: Singleton slot collection holding at most one value
// ABOUTME: Set overwrites wholesale; Get treats absent or malformed data as no value

package collection

import (
	"context"
	"encoding/json"
)

// Slot stores a single value of type T.
type Slot[T any] struct {
	b binder
}

// NewSlot binds a singleton value to b.
func NewSlot[T any](b Binding) *Slot[T] {
	return &Slot[T]{b: newBinder(b)}
}

// Get returns the stored value. ok is false if nothing valid is stored.
func (s *Slot[T]) Get(ctx context.Context) (value T, ok bool, err error) {
	raw, present, err := s.b.read(ctx)
	if err != nil || !present {
		return value, false, err
	}

	value, err = decodeRecord[T](raw, s.b.check)
	if err != nil {
		s.b.warnDecode(err)
		var zero T
		return zero, false, nil
	}
	return value, true, nil
}

// Set replaces the stored value and persists it.
func (s *Slot[T]) Set(ctx context.Context, value T) error {
	next, err := Encode(value)
	if err != nil {
		return err
	}
	return s.b.update(ctx, func(json.RawMessage, bool) (json.RawMessage, error) {
		return next, nil
	})
}
