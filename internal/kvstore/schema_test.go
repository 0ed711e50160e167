// ABOUTME: Contract tests for the SQLite documents table
// ABOUTME: Fails when a column or the primary key changes in a way older databases cannot read

package kvstore

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// expectedColumns maps each documents column to its primary key position (0 = not in key).
var expectedColumns = map[string]int{
	"namespace":  1,
	"slot":       2,
	"value":      0,
	"updated_at": 0,
}

type columnInfo struct {
	colType string
	notNull bool
	pk      int
}

// setupSchemaDB creates a database through the store and opens a second connection to inspect it.
func setupSchemaDB(t *testing.T, driver string) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "contract_test.db")

	s, err := NewSQLiteStore(dbPath, SQLiteOptions{Driver: driver, BusyTimeout: time.Second})
	if err != nil && driver == DriverCGO && strings.Contains(err.Error(), "cgo") {
		t.Skipf("driver %s unavailable: %v", driver, err)
	}
	require.NoError(t, err, "failed to create SQLite store")

	db, err := sql.Open(driver, dbPath)
	require.NoError(t, err, "failed to open database")

	t.Cleanup(func() {
		db.Close()
		s.Close()
	})
	return db
}

func tableColumns(ctx context.Context, db *sql.DB, table string) (map[string]columnInfo, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("querying table info: %w", err)
	}
	defer rows.Close()

	columns := make(map[string]columnInfo)
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("scanning column info: %w", err)
		}
		columns[name] = columnInfo{colType: colType, notNull: notNull == 1, pk: pk}
	}
	return columns, rows.Err()
}

func TestSchemaSurface(t *testing.T) {
	for _, driver := range []string{DriverModernc, DriverCGO} {
		t.Run(driver, func(t *testing.T) {
			db := setupSchemaDB(t, driver)

			actual, err := tableColumns(context.Background(), db, "documents")
			require.NoError(t, err)
			require.NotEmpty(t, actual, "documents table should exist")

			for col, pk := range expectedColumns {
				info, ok := actual[col]
				if !assert.True(t, ok, "column documents.%s should exist", col) {
					continue
				}
				assert.Equal(t, "TEXT", info.colType, "documents.%s type", col)
				assert.True(t, info.notNull, "documents.%s should be NOT NULL", col)
				assert.Equal(t, pk, info.pk, "documents.%s primary key position", col)
			}

			for col := range actual {
				if _, ok := expectedColumns[col]; !ok {
					t.Logf("INFO: extra column documents.%s not in contract", col)
				}
			}
		})
	}
}

func TestSchemaStoresRawJSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "raw.db")
	s, err := NewSQLiteStore(dbPath, SQLiteOptions{BusyTimeout: time.Second})
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	doc, err := s.Open(ctx, "voice_commands")
	require.NoError(t, err)
	doc.Set("command_history", []byte(`[{"id":"a"}]`))
	require.NoError(t, doc.Save(ctx))

	db, err := sql.Open(DriverModernc, dbPath)
	require.NoError(t, err)
	defer db.Close()

	var slots []string
	rows, err := db.QueryContext(ctx, "SELECT slot, value FROM documents WHERE namespace = ?", "voice_commands")
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var slot, value string
		require.NoError(t, rows.Scan(&slot, &value))
		slots = append(slots, slot)
		assert.JSONEq(t, `[{"id":"a"}]`, value)
	}
	require.NoError(t, rows.Err())
	assert.True(t, slices.Equal([]string{"command_history"}, slots), "got slots %v", slots)
}
