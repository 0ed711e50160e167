// ABOUTME: Key-value document store contract shared by all backends
// ABOUTME: Defines Store, Document, sentinel errors and namespace validation

package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrStoreAccess is returned when a namespace document cannot be opened or read.
	ErrStoreAccess = errors.New("store access failed")

	// ErrPersistence is returned when a document cannot be flushed to the backend.
	ErrPersistence = errors.New("persistence failed")

	// ErrClosed is returned by stores that have already been closed.
	ErrClosed = errors.New("store closed")
)

// Store opens named documents.
type Store interface {
	// Open returns the document for namespace, loading it on first use.
	// Missing documents are returned empty; they are created on first Save.
	Open(ctx context.Context, namespace string) (Document, error)

	// Close releases any resources held by the store.
	Close() error
}

// Document is a single persisted namespace holding JSON values under slot names.
type Document interface {
	Namespace() string
	Get(slot string) (json.RawMessage, bool)
	Set(slot string, value json.RawMessage)
	Delete(slot string)
	Save(ctx context.Context) error

	// Commit flushes the document with slot set to value. The in-memory
	// value changes only after the flush succeeds.
	Commit(ctx context.Context, slot string, value json.RawMessage) error
}

var namespacePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,63}$`)

// ValidateNamespace reports whether name can be used as a namespace.
// Namespaces double as file names in the file backend.
func ValidateNamespace(name string) error {
	if !namespacePattern.MatchString(name) {
		return fmt.Errorf("%w: invalid namespace %q", ErrStoreAccess, name)
	}
	return nil
}
