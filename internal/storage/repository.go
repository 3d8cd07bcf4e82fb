// Package storage keeps the timesheet table in an embedded DuckDB database and
// runs generated SQL against it.
package storage

import (
	"context"
	"time"

	"github.com/kyleking/timesheet-sql/internal/schema"
)

// Store defines the data access the commands need
type Store interface {
	// Initialize applies pending metadata migrations
	Initialize(ctx context.Context) error

	// LoadCSV replaces the table with the contents of a CSV file
	LoadCSV(ctx context.Context, path string) (*LoadInfo, error)

	// Catalog returns the table's columns in declaration order
	Catalog(ctx context.Context) (*schema.Catalog, error)

	// DistinctValues returns the distinct non-null values of a column as text
	DistinctValues(ctx context.Context, column string) ([]string, error)

	TableExists(ctx context.Context) (bool, error)
	RowCount(ctx context.Context) (int64, error)

	// Execute runs a read-only statement. SQL failures are reported in the
	// Result rather than as an error.
	Execute(ctx context.Context, sql string) Result

	// DropTable removes the timesheet table and reports whether it existed
	DropTable(ctx context.Context) (bool, error)

	LoadHistory(ctx context.Context, limit int) ([]LoadInfo, error)

	// ResetHistory rolls the metadata migrations back and reapplies them,
	// leaving an empty load history
	ResetHistory(ctx context.Context) error

	GetStats(ctx context.Context) (*Stats, error)
	Close() error
}

// Result is the outcome of running one statement
type Result struct {
	Success  bool          `json:"success"`
	Columns  []string      `json:"columns"`
	Rows     [][]any       `json:"rows"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// LoadInfo describes one CSV import
type LoadInfo struct {
	ID       string        `json:"id"`
	Source   string        `json:"source"`
	Table    string        `json:"table"`
	Rows     int64         `json:"rows"`
	Duration time.Duration `json:"duration"`
	LoadedAt time.Time     `json:"loaded_at"`
}

// Stats represents database statistics
type Stats struct {
	Table        string     `json:"table"`
	TableExists  bool       `json:"table_exists"`
	Rows         int64      `json:"rows"`
	Columns      int        `json:"columns"`
	Loads        int64      `json:"loads"`
	LastLoadedAt *time.Time `json:"last_loaded_at,omitempty"`
	DatabaseSize int64      `json:"database_size_bytes"`

	SchemaVersion       int `json:"schema_version"`
	LatestSchemaVersion int `json:"latest_schema_version"`
}
