// ABOUTME: In-memory document store for tests and ephemeral runs
// ABOUTME: Supports injecting open/save failures and counting flushes

package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	"maps"
	"sync"
)

// MemoryStore is a Store that persists to a process-local map.
type MemoryStore struct {
	mu         sync.Mutex
	persisted  map[string]map[string]json.RawMessage
	openErr    error
	saveErrs   map[string]error
	saves      map[string]int
	beforeSave func(namespace string)

	registry *registry
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		persisted: make(map[string]map[string]json.RawMessage),
		saveErrs:  make(map[string]error),
		saves:     make(map[string]int),
	}
	m.registry = newRegistry(m.load, m)
	return m
}

// Open returns the document for namespace.
func (m *MemoryStore) Open(ctx context.Context, namespace string) (Document, error) {
	return m.registry.open(ctx, namespace)
}

// Close stops handing out documents.
func (m *MemoryStore) Close() error {
	m.registry.close()
	return nil
}

// FailOpen makes every subsequent load of a not-yet-opened namespace fail with err.
// Pass nil to clear.
func (m *MemoryStore) FailOpen(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErr = err
}

// FailSave makes Save on namespace fail with err. Pass nil to clear.
func (m *MemoryStore) FailSave(namespace string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.saveErrs, namespace)
		return
	}
	m.saveErrs[namespace] = err
}

// BeforeSave installs a hook called at the start of every flush.
func (m *MemoryStore) BeforeSave(fn func(namespace string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beforeSave = fn
}

// Seed sets a persisted slot directly, as if written by an earlier process.
// It only affects namespaces that have not been opened yet.
func (m *MemoryStore) Seed(namespace, slot string, value json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.persisted[namespace] == nil {
		m.persisted[namespace] = make(map[string]json.RawMessage)
	}
	m.persisted[namespace][slot] = bytes.Clone(value)
}

// Persisted returns the last successfully saved value of a slot.
func (m *MemoryStore) Persisted(namespace, slot string) (json.RawMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.persisted[namespace][slot]
	return bytes.Clone(v), ok
}

// Saves returns how many successful saves namespace has seen.
func (m *MemoryStore) Saves(namespace string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves[namespace]
}

func (m *MemoryStore) load(_ context.Context, namespace string) (map[string]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.openErr != nil {
		return nil, m.openErr
	}
	values := make(map[string]json.RawMessage, len(m.persisted[namespace]))
	for k, v := range m.persisted[namespace] {
		values[k] = bytes.Clone(v)
	}
	return values, nil
}

func (m *MemoryStore) flush(_ context.Context, namespace string, values map[string]json.RawMessage) error {
	m.mu.Lock()
	hook := m.beforeSave
	m.mu.Unlock()

	if hook != nil {
		hook(namespace)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.saveErrs[namespace]; err != nil {
		return err
	}
	m.persisted[namespace] = maps.Clone(values)
	m.saves[namespace]++
	return nil
}
