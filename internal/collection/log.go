// ABOUTME: Capped append-only log collection
// ABOUTME: Keeps the most recent entries in append order and reads newest-first

package collection

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
)

// Log is an append-only sequence of at most Cap entries.
type Log[T any] struct {
	b   binder
	cap int
}

// NewLog binds a capped log to b. capacity must be positive.
func NewLog[T any](b Binding, capacity int) *Log[T] {
	if capacity <= 0 {
		panic(fmt.Sprintf("collection: log capacity must be positive, got %d", capacity))
	}
	return &Log[T]{b: newBinder(b), cap: capacity}
}

// Cap returns the maximum number of retained entries.
func (l *Log[T]) Cap() int {
	return l.cap
}

// Append adds entry as the newest element, dropping the oldest entries above Cap.
func (l *Log[T]) Append(ctx context.Context, entry T) error {
	return l.b.update(ctx, func(prev json.RawMessage, ok bool) (json.RawMessage, error) {
		entries := l.decode(prev, ok)
		entries = append(entries, entry)
		if over := len(entries) - l.cap; over > 0 {
			entries = entries[over:]
		}
		return Encode(entries)
	})
}

// Recent returns up to limit entries, newest first. limit <= 0 returns none.
func (l *Log[T]) Recent(ctx context.Context, limit int) ([]T, error) {
	entries, err := l.all(ctx)
	if err != nil {
		return nil, err
	}

	n := min(max(limit, 0), len(entries))
	out := slices.Clone(entries[len(entries)-n:])
	slices.Reverse(out)
	return out, nil
}

// Len returns the number of stored entries.
func (l *Log[T]) Len(ctx context.Context) (int, error) {
	entries, err := l.all(ctx)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Clear replaces the log with an empty sequence.
func (l *Log[T]) Clear(ctx context.Context) error {
	return l.b.update(ctx, func(json.RawMessage, bool) (json.RawMessage, error) {
		return Encode([]T{})
	})
}

func (l *Log[T]) all(ctx context.Context) ([]T, error) {
	raw, ok, err := l.b.read(ctx)
	if err != nil {
		return nil, err
	}
	return l.decode(raw, ok), nil
}

// decode returns the stored entries, or an empty log if absent or malformed.
func (l *Log[T]) decode(raw json.RawMessage, ok bool) []T {
	if !ok {
		return []T{}
	}
	entries, err := decodeSeq[T](raw, l.b.check)
	if err != nil {
		l.b.warnDecode(err)
		return []T{}
	}
	return entries
}
