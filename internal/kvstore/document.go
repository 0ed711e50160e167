// ABOUTME: In-memory document shared by every backend
// ABOUTME: Holds slot values and delegates Save to a backend-specific flusher

package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sync"
)

// flusher writes a complete snapshot of a namespace to durable storage.
type flusher interface {
	flush(ctx context.Context, namespace string, values map[string]json.RawMessage) error
}

// document implements Document on top of a flusher.
type document struct {
	namespace string
	backend   flusher

	mu     sync.RWMutex
	values map[string]json.RawMessage
}

func newDocument(namespace string, backend flusher, values map[string]json.RawMessage) *document {
	if values == nil {
		values = make(map[string]json.RawMessage)
	}
	return &document{
		namespace: namespace,
		backend:   backend,
		values:    values,
	}
}

func (d *document) Namespace() string {
	return d.namespace
}

// Get returns a copy of the value stored under slot.
func (d *document) Get(slot string) (json.RawMessage, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	v, ok := d.values[slot]
	if !ok {
		return nil, false
	}
	return bytes.Clone(v), true
}

// Set stores a copy of value under slot. It is not persisted until Save.
func (d *document) Set(slot string, value json.RawMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.values[slot] = bytes.Clone(value)
}

// Delete removes slot. It is not persisted until Save.
func (d *document) Delete(slot string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.values, slot)
}

// Save flushes a snapshot of every slot to the backend.
func (d *document) Save(ctx context.Context) error {
	d.mu.RLock()
	snapshot := maps.Clone(d.values)
	d.mu.RUnlock()

	if err := d.backend.flush(ctx, d.namespace, snapshot); err != nil {
		return fmt.Errorf("%w: saving %s: %w", ErrPersistence, d.namespace, err)
	}
	return nil
}

// Commit flushes a snapshot with slot replaced by value, then applies value
// in memory. Readers never see a value whose flush failed.
func (d *document) Commit(ctx context.Context, slot string, value json.RawMessage) error {
	value = bytes.Clone(value)

	d.mu.RLock()
	snapshot := maps.Clone(d.values)
	d.mu.RUnlock()
	snapshot[slot] = value

	if err := d.backend.flush(ctx, d.namespace, snapshot); err != nil {
		return fmt.Errorf("%w: saving %s: %w", ErrPersistence, d.namespace, err)
	}

	d.mu.Lock()
	d.values[slot] = value
	d.mu.Unlock()
	return nil
}
