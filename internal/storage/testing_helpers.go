package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kyleking/timesheet-sql/internal/testutil"
)

// NewTestStore creates an initialized store in a temporary directory. The
// store is closed when the test ends.
func NewTestStore(t *testing.T) *DuckDBStore {
	t.Helper()

	store, err := NewDuckDBStore(filepath.Join(t.TempDir(), "test.duckdb"), testutil.TestTable, Options{})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}

	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close test store: %v", err)
		}
	})

	if err := store.Initialize(context.Background()); err != nil {
		t.Fatalf("failed to initialize test store: %v", err)
	}

	return store
}

// NewTestStoreWithRows creates a test store with rows loaded through a CSV fixture
func NewTestStoreWithRows(t *testing.T, rows ...testutil.Row) *DuckDBStore {
	t.Helper()

	store := NewTestStore(t)

	if _, err := store.LoadCSV(context.Background(), testutil.WriteTimesheetCSV(t, rows...)); err != nil {
		t.Fatalf("failed to load test rows: %v", err)
	}

	return store
}
