// Package compact rewrites a table's small data files into fewer, larger
// ones and expires stale snapshots. It never touches row content: a
// compaction is a physical repack of the exact same logical rows, keyed off
// file-size statistics rather than anything about what the rows contain.
package compact

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/rivermark/ironlake/internal/engine"
)

const (
	defaultConcurrency          = 5
	defaultMaxFilesPerRun       = 100
	defaultSmallFileThresholdMB = 64
	minFilesToCompact           = 10
)

var tracer = otel.Tracer("github.com/rivermark/ironlake/compact")
var meter = otel.Meter("github.com/rivermark/ironlake/compact")
var filesRewrittenCounter, _ = meter.Int64Counter("ironlake.compact.files_rewritten",
	metric.WithDescription("Data files rewritten by compaction runs"))

// Config tunes a Compactor's defaults; a zero Config falls back to sane
// values for all three fields.
type Config struct {
	Concurrency           int
	MaxFilesPerCompaction int
	SmallFileThresholdMB  int
}

// Compactor rewrites small files for tables addressed by physical location.
// It holds no catalog reference: its caller (lakehouse.handleCompact) is
// responsible for resolving a table identifier to its location and for
// committing the new metadata pointer afterward.
type Compactor struct {
	data   engine.Engine
	config Config
}

func New(data engine.Engine, config Config) *Compactor {
	if config.Concurrency <= 0 {
		config.Concurrency = defaultConcurrency
	}
	if config.MaxFilesPerCompaction <= 0 {
		config.MaxFilesPerCompaction = defaultMaxFilesPerRun
	}
	if config.SmallFileThresholdMB <= 0 {
		config.SmallFileThresholdMB = defaultSmallFileThresholdMB
	}
	return &Compactor{data: data, config: config}
}

// Plan is what a table looks like going into a compaction decision.
type Plan struct {
	Location      string
	Columns       []string
	SmallFiles    int
	TotalFiles    int
	EligibleBytes int64
}

// Result reports what a single compaction run did.
type Result struct {
	Location            string
	FilesBefore         int
	FilesAfter          int
	FilesRemoved        int
	BytesBefore         int64
	BytesAfter          int64
	BytesSaved          int64
	SmallFilesRemaining int
	SnapshotsExpired    int
	CompactionTimeMs    int64
	NewLocation         string
	Err                 error
}

// Classify inspects a table's current file manifest and reports whether it
// has enough small files to be worth compacting. force bypasses the file
// count gate (an operator-requested compaction always runs).
func (c *Compactor) Classify(ctx context.Context, location string, force bool) (*Plan, bool, error) {
	files, err := c.data.PlanFiles(ctx, location)
	if err != nil {
		return nil, false, fmt.Errorf("compact: plan files: %w", err)
	}
	threshold := int64(c.config.SmallFileThresholdMB) * 1024 * 1024
	small := 0
	for _, f := range files {
		if f.Bytes < threshold {
			small++
		}
	}
	plan := &Plan{Location: location, SmallFiles: small, TotalFiles: len(files)}
	eligible := force || small >= minFilesToCompact
	return plan, eligible, nil
}

// Compact rewrites a table's files into one batch and, if requested, expires
// snapshots older than retentionHours. Columns must be the table's full
// (system + user) column list, in schema order, as resolved by the caller.
func (c *Compactor) Compact(ctx context.Context, location string, columns []string, expireSnapshots bool, retentionHours int) (*Result, error) {
	ctx, span := tracer.Start(ctx, "compact.Compact", trace.WithAttributes(
		attribute.String("ironlake.compact.location", location),
	))
	defer span.End()
	started := time.Now()

	threshold := int64(c.config.SmallFileThresholdMB) * 1024 * 1024
	files, err := c.data.PlanFiles(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("compact: plan files: %w", err)
	}
	before := len(files)
	var bytesBefore int64
	for _, f := range files {
		bytesBefore += f.Bytes
	}

	rows, err := c.data.QueryRows(ctx, location, quotedSelectAll(location), nil)
	if err != nil {
		return nil, fmt.Errorf("compact: read current rows: %w", err)
	}

	newLocation, err := c.data.OverwriteRows(ctx, location, columns, rows)
	if err != nil {
		return nil, fmt.Errorf("compact: rewrite rows: %w", err)
	}

	after, err := c.data.PlanFiles(ctx, newLocation)
	if err != nil {
		return nil, fmt.Errorf("compact: plan files after rewrite: %w", err)
	}
	var bytesAfter int64
	var smallRemaining int
	for _, f := range after {
		bytesAfter += f.Bytes
		if f.Bytes < threshold {
			smallRemaining++
		}
	}

	result := &Result{
		Location:            location,
		FilesBefore:         before,
		FilesAfter:          len(after),
		FilesRemoved:        before - len(after),
		BytesBefore:         bytesBefore,
		BytesAfter:          bytesAfter,
		BytesSaved:          bytesBefore - bytesAfter,
		SmallFilesRemaining: smallRemaining,
		NewLocation:         newLocation,
	}

	if expireSnapshots {
		cutoff := time.Now().Add(-time.Duration(retentionHours) * time.Hour).UnixMilli()
		expired, err := c.data.ExpireSnapshots(ctx, newLocation, cutoff)
		if err != nil {
			result.CompactionTimeMs = time.Since(started).Milliseconds()
			return result, fmt.Errorf("compact: expire snapshots: %w", err)
		}
		result.SnapshotsExpired = expired
	}

	result.CompactionTimeMs = time.Since(started).Milliseconds()
	filesRewrittenCounter.Add(ctx, int64(before), metric.WithAttributes(
		attribute.String("location", location),
	))
	return result, nil
}

func quotedSelectAll(location string) string {
	return "SELECT * FROM `" + location + "`"
}

// Table pairs a physical location with its column list, the unit
// CompactBatch fans compaction work out over.
type Table struct {
	Location string
	Columns  []string
}

// CompactBatch compacts several tables concurrently, bounded by the
// Compactor's configured concurrency; only this package's tests call it.
// Per-table errors are collected rather than aborting the batch, the
// same work-channel/WaitGroup shape used for the original per-issue
// compaction fan-out.
func (c *Compactor) CompactBatch(ctx context.Context, tables []Table, expireSnapshots bool, retentionHours int) []*Result {
	if len(tables) == 0 {
		return nil
	}

	workCh := make(chan Table, len(tables))
	resultCh := make(chan *Result, len(tables))

	var wg sync.WaitGroup
	for i := 0; i < c.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range workCh {
				result, err := c.Compact(ctx, t.Location, t.Columns, expireSnapshots, retentionHours)
				if err != nil {
					if result == nil {
						result = &Result{Location: t.Location}
					}
					result.Err = err
				}
				resultCh <- result
			}
		}()
	}

	for _, t := range tables {
		workCh <- t
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]*Result, 0, len(tables))
	for result := range resultCh {
		results = append(results, result)
	}
	return results
}
