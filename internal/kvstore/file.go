// ABOUTME: File-backed document store, one JSON file per namespace
// ABOUTME: Writes atomically via temp file + rename; a missing file is an empty document

package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FileStore keeps each namespace in <dir>/<namespace>.json.
type FileStore struct {
	dir      string
	logger   *slog.Logger
	registry *registry
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a store rooted at dir. The directory is created if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("data directory is required")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	s := &FileStore{
		dir:    dir,
		logger: slog.Default().With("component", "kvstore", "backend", "file"),
	}
	s.registry = newRegistry(s.load, s)

	s.logger.Info("file store initialized", "dir", dir)
	return s, nil
}

// Open returns the document for namespace.
func (s *FileStore) Open(ctx context.Context, namespace string) (Document, error) {
	return s.registry.open(ctx, namespace)
}

// Path returns the file backing namespace.
func (s *FileStore) Path(namespace string) string {
	return filepath.Join(s.dir, namespace+".json")
}

// Close stops handing out documents.
func (s *FileStore) Close() error {
	if s.registry.close() {
		s.logger.Info("closing file store")
	}
	return nil
}

func (s *FileStore) load(_ context.Context, namespace string) (map[string]json.RawMessage, error) {
	path := s.Path(namespace)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	values := map[string]json.RawMessage{}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		// A corrupt document is treated like a missing one; the next Save rewrites it.
		s.logger.Warn("discarding unreadable document", "namespace", namespace, "path", path, "error", err)
		return map[string]json.RawMessage{}, nil
	}
	return values, nil
}

func (s *FileStore) flush(_ context.Context, namespace string, values map[string]json.RawMessage) error {
	path := s.Path(namespace)

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	s.logger.Debug("saved document", "namespace", namespace, "slots", len(values))
	return nil
}
