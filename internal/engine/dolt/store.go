// Package dolt implements internal/engine.Engine on top of a running dolt
// sql-server reached over the pure-Go MySQL driver. Open also has an
// embedded mode that opens a database/sql driver named "dolt"; this package
// imports only the MySQL driver, so embedded mode fails to open unless some
// other import registers that name. This is the one deliberate conceptual
// substitution in this codebase: the original system queried data files
// directly with DuckDB's `iceberg_scan` table function; nothing in the
// available Go dependency surface carries a DuckDB or Arrow-native query
// engine, so Dolt's SQL engine — the same one the teacher already depends
// on — stands in for it. Each table's data lives in one table of the
// connected Dolt database, named by the whole sourceLocation; "appending" is
// a literal INSERT and "overwriting" is a DELETE of every row followed by an
// INSERT, rather than Parquet file manipulation.
package dolt

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rivermark/ironlake/internal/engine"
)

// Config mirrors the teacher's connection-mode split: an embedded
// (CGO-only) database/sql handle, or a TCP connection to a running
// dolt sql-server for deployments without CGO.
type Config struct {
	Path   string // embedded mode: directory containing the Dolt database
	Server bool   // true selects server mode over embedded

	ServerHost     string
	ServerPort     int
	ServerUser     string
	ServerPassword string
	Database       string
}

const serverRetryMaxElapsed = 30 * time.Second

func newServerRetryBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = serverRetryMaxElapsed
	return bo
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	for _, transient := range []string{
		"driver: bad connection", "invalid connection", "broken pipe",
		"connection reset", "connection refused", "database is read only",
		"lost connection", "gone away", "i/o timeout", "unknown database",
	} {
		if strings.Contains(s, transient) {
			return true
		}
	}
	return false
}

var engineTracer = otel.Tracer("github.com/rivermark/ironlake/engine/dolt")

// Store is an engine.Engine backed by a single Dolt database connection.
// One Store is shared across all tenants/tables; sourceLocation (such as
// "t1_default.issues", quoted whole as a single table name) selects which
// table a call operates on.
type Store struct {
	db         *sql.DB
	serverMode bool
	closed     atomic.Bool
	mu         sync.RWMutex
}

// Open dials (server mode) or opens (embedded mode) the configured Dolt
// engine.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	var dsn, driverName string
	if cfg.Server {
		driverName = "mysql"
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			cfg.ServerUser, cfg.ServerPassword, cfg.ServerHost, cfg.ServerPort, cfg.Database)
	} else {
		driverName = "dolt"
		dsn = fmt.Sprintf("file://%s?commitname=ironlake&commitemail=ironlake@localhost&database=%s", cfg.Path, cfg.Database)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("engine/dolt: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("engine/dolt: ping: %w", err)
	}
	return &Store{db: db, serverMode: cfg.Server}, nil
}

func (s *Store) withRetry(ctx context.Context, op func() error) error {
	if !s.serverMode {
		return op()
	}
	bo := newServerRetryBackoff()
	return backoff.Retry(func() error {
		err := op()
		if err != nil && isRetryableError(err) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(bo, ctx))
}

func spanSQL(q string) string {
	if len(q) > 300 {
		return q[:300] + "…"
	}
	return q
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Store) queryContext(ctx context.Context, query string, args []interface{}) (*sql.Rows, error) {
	ctx, span := engineTracer.Start(ctx, "engine.query",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "dolt"),
			attribute.String("db.statement", spanSQL(query)),
		),
	)
	var rows *sql.Rows
	err := s.withRetry(ctx, func() error {
		var qerr error
		rows, qerr = s.db.QueryContext(ctx, query, args...)
		return qerr
	})
	endSpan(span, err)
	return rows, err
}

func (s *Store) execContext(ctx context.Context, query string, args []interface{}) (sql.Result, error) {
	ctx, span := engineTracer.Start(ctx, "engine.exec",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "dolt"),
			attribute.String("db.statement", spanSQL(query)),
		),
	)
	var result sql.Result
	err := s.withRetry(ctx, func() error {
		var eerr error
		result, eerr = s.db.ExecContext(ctx, query, args...)
		return eerr
	})
	endSpan(span, err)
	return result, err
}

// Close closes the underlying database handle. Safe to call more than
// once.
func (s *Store) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		return s.db.Close()
	}
	return nil
}

var _ engine.Engine = (*Store)(nil)
