// ABOUTME: Capped deduplicated cache collection keyed by entry identifier
// ABOUTME: Re-putting a key replaces the entry and moves it to the newest position

package collection

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
)

// Keyed is implemented by cache entries. Key must be stable for an entry's identity.
type Keyed interface {
	Key() string
}

// Cache is a sequence of at most Cap entries, unique by Key, evicted oldest first.
type Cache[T Keyed] struct {
	b   binder
	cap int
}

// NewCache binds a capped deduplicated cache to b. capacity must be positive.
func NewCache[T Keyed](b Binding, capacity int) *Cache[T] {
	if capacity <= 0 {
		panic(fmt.Sprintf("collection: cache capacity must be positive, got %d", capacity))
	}
	return &Cache[T]{b: newBinder(b), cap: capacity}
}

// Cap returns the maximum number of retained entries.
func (c *Cache[T]) Cap() int {
	return c.cap
}

// Put inserts entry as the newest element, replacing any entry with the same key.
func (c *Cache[T]) Put(ctx context.Context, entry T) error {
	return c.b.update(ctx, func(prev json.RawMessage, ok bool) (json.RawMessage, error) {
		set := newOrderedSet[T](c.cap)
		for _, e := range c.decode(prev, ok) {
			set.put(e)
		}
		set.put(entry)
		return Encode(set.items())
	})
}

// Get returns the entry stored under key.
func (c *Cache[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T

	entries, err := c.all(ctx)
	if err != nil {
		return zero, false, err
	}
	for _, e := range entries {
		if e.Key() == key {
			return e, true, nil
		}
	}
	return zero, false, nil
}

// Entries returns every stored entry, oldest first.
func (c *Cache[T]) Entries(ctx context.Context) ([]T, error) {
	return c.all(ctx)
}

// Len returns the number of stored entries.
func (c *Cache[T]) Len(ctx context.Context) (int, error) {
	entries, err := c.all(ctx)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Clear replaces the cache with an empty sequence.
func (c *Cache[T]) Clear(ctx context.Context) error {
	return c.b.update(ctx, func(json.RawMessage, bool) (json.RawMessage, error) {
		return Encode([]T{})
	})
}

func (c *Cache[T]) all(ctx context.Context) ([]T, error) {
	raw, ok, err := c.b.read(ctx)
	if err != nil {
		return nil, err
	}
	return c.decode(raw, ok), nil
}

func (c *Cache[T]) decode(raw json.RawMessage, ok bool) []T {
	if !ok {
		return []T{}
	}
	entries, err := decodeSeq[T](raw, c.b.check)
	if err != nil {
		c.b.warnDecode(err)
		return []T{}
	}
	return entries
}

// orderedSet keeps entries unique by key in insertion order (oldest at front).
// Uses a doubly-linked list so replacement and eviction are O(1).
type orderedSet[T Keyed] struct {
	index   map[string]*list.Element
	order   *list.List
	maxSize int
}

func newOrderedSet[T Keyed](maxSize int) *orderedSet[T] {
	return &orderedSet[T]{
		index:   make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
	}
}

// put inserts or replaces entry and moves it to the back, evicting from the
// front while over capacity.
func (s *orderedSet[T]) put(entry T) {
	key := entry.Key()

	if elem, exists := s.index[key]; exists {
		elem.Value = entry
		s.order.MoveToBack(elem)
		return
	}

	s.index[key] = s.order.PushBack(entry)
	for s.order.Len() > s.maxSize {
		s.evictOldest()
	}
}

// evictOldest removes the front entry.
func (s *orderedSet[T]) evictOldest() {
	front := s.order.Front()
	if front == nil {
		return
	}
	entry, _ := front.Value.(T)
	s.order.Remove(front)
	delete(s.index, entry.Key())
}

func (s *orderedSet[T]) items() []T {
	out := make([]T, 0, s.order.Len())
	for e := s.order.Front(); e != nil; e = e.Next() {
		entry, _ := e.Value.(T)
		out = append(out, entry)
	}
	return out
}
