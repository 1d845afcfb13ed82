// Package engine defines the query-engine adapter the lakehouse layer
// drives: a thin contract around an embedded columnar SQL engine capable
// of scanning a table's data files, executing parameterized SQL against
// them, and appending/overwriting new data. internal/engine/dolt is the
// concrete implementation.
package engine

import (
	"context"
)

// Row is a single result row keyed by column name, the shape every
// QueryRows caller consumes.
type Row = map[string]interface{}

// Engine executes SQL against a table's current data and commits new data
// files back to it. Implementations must be safe for concurrent use.
type Engine interface {
	// QueryRows runs a read-only parameterized query and returns every
	// matching row.
	QueryRows(ctx context.Context, sourceLocation, query string, args []interface{}) ([]Row, error)

	// AppendRows appends new rows to the table backing sourceLocation,
	// returning the new metadata location the catalog should record.
	AppendRows(ctx context.Context, sourceLocation string, columns []string, rows []Row) (newLocation string, err error)

	// OverwriteRows replaces the entire contents of the table backing
	// sourceLocation with rows, used by compaction's whole-tenant rewrite.
	OverwriteRows(ctx context.Context, sourceLocation string, columns []string, rows []Row) (newLocation string, err error)

	// DeleteRows removes every row matching the parameterized predicate
	// from the table backing sourceLocation (hard delete), returning the
	// new metadata location and the count of files rewritten.
	DeleteRows(ctx context.Context, sourceLocation, predicate string, args []interface{}) (newLocation string, filesRewritten int, err error)

	// PlanFiles returns the data-file manifest for the table backing
	// sourceLocation: path, size in bytes, and row count per file.
	PlanFiles(ctx context.Context, sourceLocation string) ([]FileInfo, error)

	// ExpireSnapshots drops every snapshot older than the given cutoff,
	// keeping at least the current one, returning how many were removed.
	ExpireSnapshots(ctx context.Context, sourceLocation string, olderThanUnixMillis int64) (expired int, err error)

	// CreateDataTable provisions the physical storage for a new table with
	// the given columns at location.
	CreateDataTable(ctx context.Context, location string, columns []ColumnDef) error

	// DropDataTable removes the physical storage backing location.
	DropDataTable(ctx context.Context, location string) error

	// Close releases resources held by the engine.
	Close() error
}

// ColumnDef is a physical column the engine provisions for a new table.
type ColumnDef struct {
	Name     string
	SQLType  string
	Nullable bool
}

// FileInfo describes one data file in a table's current snapshot.
type FileInfo struct {
	Path     string
	Bytes    int64
	RowCount int64
}
