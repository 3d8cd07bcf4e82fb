package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb" // DuckDB driver

	apperrors "github.com/kyleking/timesheet-sql/internal/errors"
	"github.com/kyleking/timesheet-sql/internal/schema"
)

// InMemory opens a private in-memory database instead of a file
const InMemory = ":memory:"

// Options tunes the connection pool and statement deadline
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
}

// DefaultOptions returns the pool settings used when none are configured
func DefaultOptions() Options {
	return Options{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		QueryTimeout:    30 * time.Second,
	}
}

// DuckDBStore implements the Store interface using DuckDB
type DuckDBStore struct {
	db           *sql.DB
	path         string
	table        string
	queryTimeout time.Duration
}

// NewDuckDBStore opens (creating if needed) the database at path with connection pooling
func NewDuckDBStore(path, table string, opts Options) (*DuckDBStore, error) {
	if !schema.ValidTableName(table) {
		return nil, apperrors.Newf(apperrors.ErrTypeValidation, "invalid table name %q", table)
	}

	dsn := path
	if path == InMemory || path == "" {
		dsn = ""
	} else if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeFileSystem, "failed to create database directory")
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to open database")
	}

	defaults := DefaultOptions()
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = defaults.MaxOpenConns
	}

	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = defaults.MaxIdleConns
	}

	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = defaults.ConnMaxLifetime
	}

	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = defaults.QueryTimeout
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to ping database").
			WithSuggestion("Check that no other process holds a write lock on " + path)
	}

	return newStore(db, path, table, opts.QueryTimeout), nil
}

var _ Store = (*DuckDBStore)(nil)

func newStore(db *sql.DB, path, table string, queryTimeout time.Duration) *DuckDBStore {
	return &DuckDBStore{
		db:           db,
		path:         path,
		table:        table,
		queryTimeout: queryTimeout,
	}
}

// Table returns the name of the timesheet table
func (s *DuckDBStore) Table() string {
	return s.table
}

// Path returns the database file path
func (s *DuckDBStore) Path() string {
	return s.path
}

// Initialize brings the metadata tables up to date
func (s *DuckDBStore) Initialize(ctx context.Context) error {
	if _, err := NewMigrationManager(s.db).MigrateUp(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to migrate database")
	}

	return nil
}

// ResetHistory drops the metadata tables through their down migrations and
// recreates them
func (s *DuckDBStore) ResetHistory(ctx context.Context) error {
	manager := NewMigrationManager(s.db)

	if err := manager.MigrateDown(ctx, 0); err != nil {
		return apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to roll back metadata tables")
	}

	if _, err := manager.MigrateUp(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to recreate metadata tables")
	}

	return nil
}

// DropTable removes the timesheet table if it exists
func (s *DuckDBStore) DropTable(ctx context.Context) (bool, error) {
	exists, err := s.TableExists(ctx)
	if err != nil || !exists {
		return false, err
	}

	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+s.table); err != nil {
		return false, apperrors.Wrapf(err, apperrors.ErrTypeDatabase, "failed to drop table %s", s.table)
	}

	return true, nil
}

// LoadCSV replaces the table with the CSV at path and records the load
func (s *DuckDBStore) LoadCSV(ctx context.Context, path string) (*LoadInfo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeFileSystem, "failed to resolve CSV path")
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrTypeFileSystem, "cannot read %s", path)
	}

	if info.IsDir() {
		return nil, apperrors.Newf(apperrors.ErrTypeFileSystem, "%s is a directory", path)
	}

	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	createSQL := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv_auto(%s, header = true)",
		s.table, stringLiteral(abs))

	if _, err := tx.ExecContext(ctx, createSQL); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrTypeDatabase, "failed to load %s", path).
			WithSuggestion("Check that the file is a CSV with a header row")
	}

	var rows int64
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.table).Scan(&rows); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to count loaded rows")
	}

	load := &LoadInfo{
		ID:       uuid.New().String(),
		Source:   abs,
		Table:    s.table,
		Rows:     rows,
		Duration: time.Since(start),
		LoadedAt: time.Now().UTC(),
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO load_history (id, source, table_name, row_count, loaded_at, duration_ms) VALUES (?, ?, ?, ?, ?, ?)",
		load.ID, load.Source, load.Table, load.Rows, load.LoadedAt, load.Duration.Milliseconds())
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to record load").
			WithSuggestion("Run the load command again so the database is initialized")
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to commit load")
	}

	return load, nil
}

// Catalog reads the table's columns from information_schema
func (s *DuckDBStore) Catalog(ctx context.Context) (*schema.Catalog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_name = ?
		ORDER BY ordinal_position`, s.table)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to read table columns")
	}
	defer rows.Close()

	var columns []schema.Column

	for rows.Next() {
		var col schema.Column
		if err := rows.Scan(&col.Name, &col.Type); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to scan column")
		}

		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to read table columns")
	}

	if len(columns) == 0 {
		return nil, apperrors.NewTableMissingError(s.table)
	}

	return schema.NewCatalog(columns)
}

// DistinctValues returns the sorted distinct non-null values of column
func (s *DuckDBStore) DistinctValues(ctx context.Context, column string) ([]string, error) {
	ident := schema.QuoteIdent(column)
	query := fmt.Sprintf("SELECT DISTINCT CAST(%s AS VARCHAR) AS v FROM %s WHERE %s IS NOT NULL ORDER BY v",
		ident, s.table, ident)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrTypeDatabase, "failed to read distinct values of %s", column)
	}
	defer rows.Close()

	var values []string

	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to scan value")
		}

		values = append(values, v)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrTypeDatabase, "failed to read distinct values of %s", column)
	}

	return values, nil
}

// TableExists reports whether the timesheet table has been created
func (s *DuckDBStore) TableExists(ctx context.Context) (bool, error) {
	var count int

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_name = ?", s.table).Scan(&count)
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to check table")
	}

	return count > 0, nil
}

// RowCount returns the number of rows in the timesheet table
func (s *DuckDBStore) RowCount(ctx context.Context) (int64, error) {
	exists, err := s.TableExists(ctx)
	if err != nil {
		return 0, err
	}

	if !exists {
		return 0, apperrors.NewTableMissingError(s.table)
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.table).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to count rows")
	}

	return count, nil
}

// Execute runs a read-only statement under the query timeout
func (s *DuckDBStore) Execute(ctx context.Context, statement string) Result {
	start := time.Now()

	fail := func(err error) Result {
		return Result{Error: err.Error(), Duration: time.Since(start)}
	}

	if !readOnly(statement) {
		return fail(errors.New("only SELECT statements can be executed"))
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	// The driver refuses to prepare more than one statement, which keeps a
	// SELECT prefix from smuggling in a second command
	stmt, err := s.db.PrepareContext(ctx, statement)
	if err != nil {
		return fail(err)
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return fail(err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fail(err)
	}

	result := Result{Columns: columns, Rows: [][]any{}}

	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))

		for i := range values {
			ptrs[i] = &values[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return fail(err)
		}

		for i, v := range values {
			values[i] = normalizeValue(v)
		}

		result.Rows = append(result.Rows, values)
	}

	if err := rows.Err(); err != nil {
		return fail(err)
	}

	result.Success = true
	result.Duration = time.Since(start)

	return result
}

// LoadHistory returns the most recent loads, newest first
func (s *DuckDBStore) LoadHistory(ctx context.Context, limit int) ([]LoadInfo, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, table_name, row_count, COALESCE(duration_ms, 0), loaded_at
		FROM load_history
		ORDER BY loaded_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to query load history")
	}
	defer rows.Close()

	var loads []LoadInfo

	for rows.Next() {
		var (
			load LoadInfo
			ms   int64
		)

		if err := rows.Scan(&load.ID, &load.Source, &load.Table, &load.Rows, &ms, &load.LoadedAt); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to scan load history")
		}

		load.Duration = time.Duration(ms) * time.Millisecond
		loads = append(loads, load)
	}

	return loads, rows.Err()
}

// GetStats returns statistics about the loaded data
func (s *DuckDBStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{Table: s.table}

	exists, err := s.TableExists(ctx)
	if err != nil {
		return nil, err
	}

	stats.TableExists = exists

	if exists {
		if stats.Rows, err = s.RowCount(ctx); err != nil {
			return nil, err
		}

		catalog, err := s.Catalog(ctx)
		if err != nil {
			return nil, err
		}

		stats.Columns = catalog.Len()
	}

	var last sql.NullTime

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*), MAX(loaded_at) FROM load_history").Scan(&stats.Loads, &last)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to read load history")
	}

	if last.Valid {
		stats.LastLoadedAt = &last.Time
	}

	manager := NewMigrationManager(s.db)
	stats.LatestSchemaVersion = manager.LatestVersion()

	status, err := manager.GetMigrationStatus(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to read migration status")
	}

	for version, st := range status {
		if st.Applied && version > stats.SchemaVersion {
			stats.SchemaVersion = version
		}
	}

	if s.path != "" && s.path != InMemory {
		if info, err := os.Stat(s.path); err == nil {
			stats.DatabaseSize = info.Size()
		}
	}

	return stats, nil
}

// Close closes the database connection
func (s *DuckDBStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}

	return nil
}

func readOnly(statement string) bool {
	fields := strings.Fields(statement)
	if len(fields) == 0 {
		return false
	}

	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH":
		return true
	default:
		return false
	}
}

func stringLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// normalizeValue converts driver values into types that print and encode cleanly
func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format(time.DateOnly)
		}

		return val.Format(time.DateTime)
	case *big.Int:
		if val.IsInt64() {
			return val.Int64()
		}

		return val.String()
	default:
		return v
	}
}
