package lakehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/rivermark/ironlake/internal/idgen"
	"github.com/rivermark/ironlake/internal/op"
	"github.com/rivermark/ironlake/internal/schema"
)

// smallFileCheckInterval and minFilesToCompact gate the opportunistic
// compaction probe a write performs every Nth snapshot, matching the
// original system's default "check every 100th write, recommend at >= 10
// small files" thresholds (iceberg.compaction.opportunistic_check_interval
// / min_files_to_compact).
const (
	smallFileCheckInterval = 100
	minFilesToCompact      = 10
)

// handleWrite appends the caller's records to the table: each record is
// enriched with the six system columns, gap-filled against the table's
// full column list, and appended in one batch. A write that lands on a
// check-interval boundary probes for small-file buildup and flags the
// response with compaction_recommended, exactly as the original write
// path's opportunistic trigger does.
func (e *Engine) handleWrite(ctx context.Context, env *op.Envelope) (*op.Response, error) {
	var req op.WriteRequest
	if err := decodePayload(env.Payload, &req); err != nil {
		return op.Fail(env.RequestID, op.CodeInvalidSchema, err.Error()), nil
	}
	if len(req.Records) == 0 {
		return op.OK(env.RequestID, map[string]interface{}{"records_written": 0}), nil
	}
	if req.Mode == "upsert" {
		return e.upsertRecords(ctx, env, req.Records)
	}

	namespace, identifier := e.namespaceFor(env)
	meta, err := e.resolveTable(ctx, namespace, env.Table, identifier)
	if err != nil {
		if isTableNotFound(err) {
			return op.Fail(env.RequestID, op.CodeTableNotFound, fmt.Sprintf("table %s not found", identifier)), nil
		}
		return op.Fail(env.RequestID, op.CodeCatalogUnavailable, err.Error()), nil
	}

	now := time.Now().UTC()
	rows := make([]map[string]interface{}, len(req.Records))
	for i, record := range req.Records {
		recordID := idgen.RecordID(record)
		enriched := schema.EnrichSystemColumns(record, env.TenantID, recordID, now)
		rows[i] = schema.GapFill(enriched, meta.Columns)
	}

	var newLocation string
	if req.Mode == "overwrite" {
		newLocation, err = e.Data.OverwriteRows(ctx, meta.Location, meta.Columns, rows)
	} else {
		newLocation, err = e.Data.AppendRows(ctx, meta.Location, meta.Columns, rows)
	}
	if err != nil {
		return op.Fail(env.RequestID, op.CodeEngineUnavailable, err.Error()), nil
	}
	if err := e.Catalog.CommitMetadata(ctx, namespace, env.Table, newLocation); err != nil {
		return op.Fail(env.RequestID, op.CodeCatalogUnavailable, err.Error()), nil
	}
	e.invalidateTable(identifier)

	result := map[string]interface{}{"records_written": len(rows)}
	if small, recommended, err := e.probeCompaction(ctx, newLocation); err != nil {
		e.Log.Warn("opportunistic compaction probe failed", "table", identifier, "error", err)
	} else if recommended {
		result["compaction_recommended"] = true
		result["small_files_count"] = small
	}
	return op.OK(env.RequestID, result), nil
}

// probeCompaction implements the write path's opportunistic small-file
// check: every smallFileCheckInterval snapshots, count files and flag the
// response if at least minFilesToCompact are present. A probe failure is
// swallowed (logged by the caller via the returned error) since it must
// never fail the write itself.
func (e *Engine) probeCompaction(ctx context.Context, location string) (small int, recommended bool, err error) {
	files, err := e.Data.PlanFiles(ctx, location)
	if err != nil {
		return 0, false, err
	}
	if len(files)%smallFileCheckInterval != 0 {
		return 0, false, nil
	}
	for _, f := range files {
		if f.Bytes < smallFileThresholdBytes {
			small++
		}
	}
	return small, small >= minFilesToCompact, nil
}

const smallFileThresholdBytes = 64 * 1024 * 1024
