// ABOUTME: Per-store cache of opened documents
// ABOUTME: Guarantees one shared Document per namespace for the store's lifetime

package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// loadFunc reads the persisted slots of a namespace. A namespace that was never
// saved must load as an empty map, not an error.
type loadFunc func(ctx context.Context, namespace string) (map[string]json.RawMessage, error)

// registry lazily loads documents and keeps them for reuse.
type registry struct {
	mu      sync.Mutex
	docs    map[string]*document
	closed  bool
	load    loadFunc
	backend flusher
}

func newRegistry(load loadFunc, backend flusher) *registry {
	return &registry{
		docs:    make(map[string]*document),
		load:    load,
		backend: backend,
	}
}

func (r *registry) open(ctx context.Context, namespace string) (*document, error) {
	if err := ValidateNamespace(namespace); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, fmt.Errorf("%w: %w", ErrStoreAccess, ErrClosed)
	}
	if doc, ok := r.docs[namespace]; ok {
		return doc, nil
	}

	values, err := r.load(ctx, namespace)
	if err != nil {
		return nil, fmt.Errorf("%w: loading %s: %w", ErrStoreAccess, namespace, err)
	}

	doc := newDocument(namespace, r.backend, values)
	r.docs[namespace] = doc
	return doc, nil
}

// close marks the registry closed. Documents already handed out keep working
// in memory but new opens fail.
func (r *registry) close() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	r.closed = true
	return true
}
