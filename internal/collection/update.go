// ABOUTME: Read-modify-write protocol shared by Slot, Log and Cache
// ABOUTME: Holds the namespace lock across read, write and save; failed saves leave the value unchanged

package collection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/2389/statekeeper/internal/kvstore"
)

// Binding ties a collection to one slot of one namespace document.
type Binding struct {
	Store     kvstore.Store
	Namespace string
	Slot      string

	// Locks must be shared by all bindings on the same store. Nil gets a private registry.
	Locks *Locks

	// Check vets each stored record on read: the value of a Slot, or every
	// element of a Log or Cache. Records it rejects read as malformed.
	Check CheckFunc

	Logger *slog.Logger
}

// binder is the resolved form of a Binding used by the collections.
type binder struct {
	store     kvstore.Store
	namespace string
	slot      string
	locks     *Locks
	check     CheckFunc
	logger    *slog.Logger
}

func newBinder(b Binding) binder {
	locks := b.Locks
	if locks == nil {
		locks = NewLocks()
	}
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return binder{
		store:     b.Store,
		namespace: b.Namespace,
		slot:      b.Slot,
		locks:     locks,
		check:     b.Check,
		logger:    logger.With("namespace", b.Namespace, "slot", b.Slot),
	}
}

// read returns the current stored value without locking.
func (b binder) read(ctx context.Context) (json.RawMessage, bool, error) {
	doc, err := b.store.Open(ctx, b.namespace)
	if err != nil {
		return nil, false, fmt.Errorf("opening %s: %w", b.namespace, err)
	}
	raw, ok := doc.Get(b.slot)
	return raw, ok, nil
}

// mutateFunc computes the next stored value from the current one.
type mutateFunc func(prev json.RawMessage, ok bool) (json.RawMessage, error)

// update runs one serialized read-modify-write-save cycle.
//
// The cycle ignores cancellation of ctx once started so that an abandoned
// caller never leaves a half-applied mutation behind.
func (b binder) update(ctx context.Context, mutate mutateFunc) error {
	ctx = context.WithoutCancel(ctx)

	lock := b.locks.For(b.namespace)
	lock.Lock()
	defer lock.Unlock()

	doc, err := b.store.Open(ctx, b.namespace)
	if err != nil {
		return fmt.Errorf("opening %s: %w", b.namespace, err)
	}

	prev, ok := doc.Get(b.slot)
	next, err := mutate(prev, ok)
	if err != nil {
		return err
	}

	if err := doc.Commit(ctx, b.slot, next); err != nil {
		b.logger.Error("save failed, stored value unchanged", "error", err)
		return err
	}

	b.logger.Debug("slot updated", "bytes", len(next))
	return nil
}

// warnDecode logs a swallowed decode failure.
func (b binder) warnDecode(err error) {
	b.logger.Warn("ignoring malformed stored value", "error", err)
}
