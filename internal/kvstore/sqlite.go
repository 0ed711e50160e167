// ABOUTME: SQLite-backed document store using modernc.org/sqlite or mattn/go-sqlite3
// ABOUTME: Stores one row per (namespace, slot); Save replaces a namespace in one transaction

package kvstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// SQLite driver names accepted by NewSQLiteStore.
const (
	DriverModernc = "sqlite"  // pure Go, default
	DriverCGO     = "sqlite3" // mattn/go-sqlite3, requires cgo
)

// SQLiteOptions configures a SQLiteStore.
type SQLiteOptions struct {
	// Driver is DriverModernc or DriverCGO. Empty means DriverModernc.
	Driver string

	// BusyTimeout is applied as PRAGMA busy_timeout. Zero leaves the driver default.
	BusyTimeout time.Duration
}

// SQLiteStore keeps every namespace in a single SQLite database.
type SQLiteStore struct {
	db       *sql.DB
	logger   *slog.Logger
	registry *registry
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path.
// Parent directories are created if needed. Use ":memory:" for tests.
func NewSQLiteStore(path string, opts SQLiteOptions) (*SQLiteStore, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverModernc
	}
	if driver != DriverModernc && driver != DriverCGO {
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}

	logger := slog.Default().With("component", "kvstore", "backend", "sqlite")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection: writes are serialized anyway and ":memory:" is per-connection.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
	}

	if opts.BusyTimeout > 0 {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", opts.BusyTimeout.Milliseconds())); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting busy timeout: %w", err)
		}
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}
	s.registry = newRegistry(s.load, s)

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path, "driver", driver)
	return s, nil
}

// createSchema creates the documents table if it doesn't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS documents (
			namespace  TEXT NOT NULL,
			slot       TEXT NOT NULL,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL,

			PRIMARY KEY (namespace, slot)
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Open returns the document for namespace.
func (s *SQLiteStore) Open(ctx context.Context, namespace string) (Document, error) {
	return s.registry.open(ctx, namespace)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if !s.registry.close() {
		return nil
	}
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

func (s *SQLiteStore) load(ctx context.Context, namespace string) (map[string]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT slot, value FROM documents WHERE namespace = ?`, namespace)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	values := make(map[string]json.RawMessage)
	for rows.Next() {
		var slot, value string
		if err := rows.Scan(&slot, &value); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		values[slot] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", err)
	}
	return values, nil
}

func (s *SQLiteStore) flush(ctx context.Context, namespace string, values map[string]json.RawMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE namespace = ?`, namespace); err != nil {
		return fmt.Errorf("clearing namespace: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for slot, value := range values {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO documents (namespace, slot, value, updated_at)
			VALUES (?, ?, ?, ?)
		`, namespace, slot, string(value), now)
		if err != nil {
			return fmt.Errorf("writing slot %s: %w", slot, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Debug("saved document", "namespace", namespace, "slots", len(values))
	return nil
}
