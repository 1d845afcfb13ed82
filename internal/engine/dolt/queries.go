package dolt

import (
	"context"
	"fmt"
	"strings"

	"github.com/rivermark/ironlake/internal/engine"
)

// snapshotTableSuffix names the companion table tracking one row per
// "snapshot" (one per append/overwrite), the engine's stand-in for Iceberg
// snapshot metadata since Dolt itself doesn't expose a per-write snapshot
// id through database/sql.
const snapshotTableSuffix = "__snapshots"

func quoteTable(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QueryRows executes a read-only parameterized query against the engine.
// sourceLocation is unused directly here (it's already baked into query by
// the caller via sqlbuild), but kept on the interface so future backends
// that need it per-call (e.g. to resolve a scan handle) have it available.
func (s *Store) QueryRows(ctx context.Context, sourceLocation, query string, args []interface{}) ([]engine.Row, error) {
	rows, err := s.queryContext(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("engine/dolt: query: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func scanRows(rows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(...interface{}) error
	Err() error
}) ([]engine.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("engine/dolt: columns: %w", err)
	}
	var out []engine.Row
	for rows.Next() {
		raw := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("engine/dolt: scan: %w", err)
		}
		row := make(engine.Row, len(cols))
		for i, c := range cols {
			row[c] = raw[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) AppendRows(ctx context.Context, sourceLocation string, columns []string, rows []engine.Row) (string, error) {
	if len(rows) == 0 {
		return sourceLocation, nil
	}
	table := quoteTable(sourceLocation)
	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	colList := strings.Join(columns, ", ")

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", table, colList)
	args := make([]interface{}, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders)
		for _, c := range columns {
			args = append(args, row[c])
		}
	}
	if _, err := s.execContext(ctx, b.String(), args); err != nil {
		return "", fmt.Errorf("engine/dolt: append: %w", err)
	}
	if err := s.recordSnapshot(ctx, sourceLocation); err != nil {
		return "", err
	}
	return sourceLocation, nil
}

func (s *Store) OverwriteRows(ctx context.Context, sourceLocation string, columns []string, rows []engine.Row) (string, error) {
	table := quoteTable(sourceLocation)
	if _, err := s.execContext(ctx, fmt.Sprintf("DELETE FROM %s", table), nil); err != nil {
		return "", fmt.Errorf("engine/dolt: overwrite (clear): %w", err)
	}
	return s.AppendRows(ctx, sourceLocation, columns, rows)
}

func (s *Store) DeleteRows(ctx context.Context, sourceLocation, predicate string, args []interface{}) (string, int, error) {
	table := quoteTable(sourceLocation)
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", table, predicate)
	result, err := s.execContext(ctx, query, args)
	if err != nil {
		return "", 0, fmt.Errorf("engine/dolt: hard delete: %w", err)
	}
	affected, _ := result.RowsAffected()
	if err := s.recordSnapshot(ctx, sourceLocation); err != nil {
		return "", 0, err
	}
	// Dolt has no concept of per-file rewrite under database/sql; one
	// logical rewrite always touches the table's single underlying chunk
	// set, so files-rewritten is reported as 1 whenever any row changed.
	filesRewritten := 0
	if affected > 0 {
		filesRewritten = 1
	}
	return sourceLocation, filesRewritten, nil
}

// PlanFiles reports the table as a single logical file sized by its row
// count, since the embedded engine doesn't expose its internal chunk
// layout through database/sql. This keeps the small-file/large-file
// compaction decision meaningful (row-count-driven) without depending on
// storage internals the driver doesn't surface.
func (s *Store) PlanFiles(ctx context.Context, sourceLocation string) ([]engine.FileInfo, error) {
	table := quoteTable(sourceLocation)
	rows, err := s.queryContext(ctx, fmt.Sprintf("SELECT COUNT(*) AS n FROM %s", table), nil)
	if err != nil {
		return nil, fmt.Errorf("engine/dolt: plan files: %w", err)
	}
	defer rows.Close()
	var count int64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return nil, fmt.Errorf("engine/dolt: plan files scan: %w", err)
		}
	}
	if count == 0 {
		return nil, nil
	}
	const approxBytesPerRow = 256
	return []engine.FileInfo{{
		Path:     sourceLocation,
		Bytes:    count * approxBytesPerRow,
		RowCount: count,
	}}, nil
}

func (s *Store) recordSnapshot(ctx context.Context, sourceLocation string) error {
	snapTable := quoteTable(sourceLocation + snapshotTableSuffix)
	_, err := s.execContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (created_at) VALUES (CURRENT_TIMESTAMP(6))", snapTable), nil)
	return err
}

func (s *Store) ExpireSnapshots(ctx context.Context, sourceLocation string, olderThanUnixMillis int64) (int, error) {
	snapTable := quoteTable(sourceLocation + snapshotTableSuffix)
	result, err := s.execContext(ctx, fmt.Sprintf(
		"DELETE FROM %s WHERE created_at < FROM_UNIXTIME(?) AND id != (SELECT max_id FROM (SELECT MAX(id) AS max_id FROM %s) AS t)",
		snapTable, snapTable,
	), []interface{}{float64(olderThanUnixMillis) / 1000.0})
	if err != nil {
		return 0, fmt.Errorf("engine/dolt: expire snapshots: %w", err)
	}
	affected, _ := result.RowsAffected()
	return int(affected), nil
}

func (s *Store) CreateDataTable(ctx context.Context, location string, columns []engine.ColumnDef) error {
	table := quoteTable(location)
	defs := make([]string, len(columns))
	for i, c := range columns {
		null := "NOT NULL"
		if c.Nullable {
			null = "NULL"
		}
		defs[i] = fmt.Sprintf("%s %s %s", quoteTable(c.Name), c.SQLType, null)
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(defs, ", "))
	if _, err := s.execContext(ctx, ddl, nil); err != nil {
		return fmt.Errorf("engine/dolt: create table: %w", err)
	}

	snapTable := quoteTable(location + snapshotTableSuffix)
	snapDDL := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (id INT AUTO_INCREMENT PRIMARY KEY, created_at DATETIME(6) NOT NULL)",
		snapTable,
	)
	if _, err := s.execContext(ctx, snapDDL, nil); err != nil {
		return fmt.Errorf("engine/dolt: create snapshot table: %w", err)
	}
	return s.recordSnapshot(ctx, location)
}

func (s *Store) DropDataTable(ctx context.Context, location string) error {
	table := quoteTable(location)
	if _, err := s.execContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table), nil); err != nil {
		return fmt.Errorf("engine/dolt: drop table: %w", err)
	}
	snapTable := quoteTable(location + snapshotTableSuffix)
	_, err := s.execContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", snapTable), nil)
	return err
}
