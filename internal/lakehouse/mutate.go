package lakehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/rivermark/ironlake/internal/idgen"
	"github.com/rivermark/ironlake/internal/op"
	"github.com/rivermark/ironlake/internal/schema"
	"github.com/rivermark/ironlake/internal/sqlbuild"
)

// handleUpdate reads the current (latest-version, non-deleted) rows
// matching the filter, applies the patch to each, bumps _version and
// _timestamp, and appends the new versions — the same read-patch-append
// shape as the original system's update(), which never mutates a row in
// place (every update is a new, higher-versioned row).
func (e *Engine) handleUpdate(ctx context.Context, env *op.Envelope) (*op.Response, error) {
	var req op.UpdateRequest
	if err := decodePayload(env.Payload, &req); err != nil {
		return op.Fail(env.RequestID, op.CodeInvalidSchema, err.Error()), nil
	}
	updated, err := e.applyUpdate(ctx, env, req.Filters, req.Updates)
	if err != nil {
		if isTableNotFound(err) {
			_, identifier := e.namespaceFor(env)
			return op.Fail(env.RequestID, op.CodeTableNotFound, fmt.Sprintf("table %s not found", identifier)), nil
		}
		return op.Fail(env.RequestID, op.CodeEngineUnavailable, err.Error()), nil
	}
	return op.OK(env.RequestID, map[string]interface{}{"records_updated": updated}), nil
}

// handleSoftDelete implements DELETE as an UPDATE setting _deleted and
// _deleted_at, matching the original system's delete() being a thin
// wrapper over update().
func (e *Engine) handleSoftDelete(ctx context.Context, env *op.Envelope) (*op.Response, error) {
	var req op.UpdateRequest
	if err := decodePayload(env.Payload, &req); err != nil {
		return op.Fail(env.RequestID, op.CodeInvalidSchema, err.Error()), nil
	}
	now := time.Now().UTC()
	updates := map[string]interface{}{"_deleted": true, "_deleted_at": now}
	deleted, err := e.applyUpdate(ctx, env, req.Filters, updates)
	if err != nil {
		if isTableNotFound(err) {
			_, identifier := e.namespaceFor(env)
			return op.Fail(env.RequestID, op.CodeTableNotFound, fmt.Sprintf("table %s not found", identifier)), nil
		}
		return op.Fail(env.RequestID, op.CodeEngineUnavailable, err.Error()), nil
	}
	return op.OK(env.RequestID, map[string]interface{}{"records_deleted": deleted}), nil
}

// applyUpdate is the shared read-patch-append machinery behind UPDATE and
// soft DELETE.
func (e *Engine) applyUpdate(ctx context.Context, env *op.Envelope, filters []op.Filter, updates map[string]interface{}) (int, error) {
	namespace, identifier := e.namespaceFor(env)
	meta, err := e.resolveTable(ctx, namespace, env.Table, identifier)
	if err != nil {
		return 0, err
	}

	current, err := e.latestMatching(ctx, meta.Location, env.TenantID, filters)
	if err != nil {
		return 0, err
	}
	if len(current) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	next := make([]map[string]interface{}, len(current))
	for i, row := range current {
		row["_deleted_at"] = nil
		patched := applyPatch(row, updates)
		patched["_version"] = toInt64(row["_version"]) + 1
		patched["_timestamp"] = now
		next[i] = schema.GapFill(patched, meta.Columns)
	}

	newLocation, err := e.Data.AppendRows(ctx, meta.Location, meta.Columns, next)
	if err != nil {
		return 0, err
	}
	if err := e.Catalog.CommitMetadata(ctx, namespace, env.Table, newLocation); err != nil {
		return 0, err
	}
	e.invalidateTable(identifier)
	return len(next), nil
}

// latestMatching runs the ranked-by-version CTE restricted to the given
// filters and returns the current (rn=1, non-deleted) rows, with the
// ranking column stripped.
func (e *Engine) latestMatching(ctx context.Context, location, tenantID string, filters []op.Filter) ([]map[string]interface{}, error) {
	query, params, err := sqlbuild.SelectLatest(quoted(location), tenantID, &op.QueryRequest{Filters: filters})
	if err != nil {
		return nil, err
	}
	rows, err := e.Data.QueryRows(ctx, location, query, params)
	if err != nil {
		return nil, err
	}
	return toRecords(rows), nil
}

func applyPatch(row map[string]interface{}, patch map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(row)+len(patch))
	for k, v := range row {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}

// handleUpsert implements both upsert modes documented for UPSERT:
// records-mode keys on the content digest (a record with a payload
// matching an existing _record_id becomes a new version of it; otherwise
// it's a fresh insert), and filters+updates-mode treats the filter as an
// all-or-nothing gate: zero current matches inserts a new record built
// from the update patch, any matches applies the patch to all of them.
func (e *Engine) handleUpsert(ctx context.Context, env *op.Envelope) (*op.Response, error) {
	var req op.UpsertRequest
	if err := decodePayload(env.Payload, &req); err != nil {
		return op.Fail(env.RequestID, op.CodeInvalidSchema, err.Error()), nil
	}

	if len(req.Records) > 0 {
		return e.upsertRecords(ctx, env, req.Records)
	}
	return e.upsertFilter(ctx, env, req.Filters, req.Updates)
}

func (e *Engine) upsertRecords(ctx context.Context, env *op.Envelope, records []map[string]interface{}) (*op.Response, error) {
	namespace, identifier := e.namespaceFor(env)
	meta, err := e.resolveTable(ctx, namespace, env.Table, identifier)
	if err != nil {
		if isTableNotFound(err) {
			return op.Fail(env.RequestID, op.CodeTableNotFound, fmt.Sprintf("table %s not found", identifier)), nil
		}
		return op.Fail(env.RequestID, op.CodeCatalogUnavailable, err.Error()), nil
	}

	inserted, updatedCount := 0, 0
	now := time.Now().UTC()
	var rows []map[string]interface{}
	for _, record := range records {
		recordID := idgen.RecordID(record)
		existing, err := e.latestMatching(ctx, meta.Location, env.TenantID, []op.Filter{
			{Field: "_record_id", Operator: "eq", Value: recordID},
		})
		if err != nil {
			return op.Fail(env.RequestID, op.CodeEngineUnavailable, err.Error()), nil
		}
		if len(existing) == 0 {
			enriched := schema.EnrichSystemColumns(record, env.TenantID, recordID, now)
			rows = append(rows, schema.GapFill(enriched, meta.Columns))
			inserted++
		} else {
			patched := applyPatch(existing[0], record)
			patched["_version"] = toInt64(existing[0]["_version"]) + 1
			patched["_timestamp"] = now
			rows = append(rows, schema.GapFill(patched, meta.Columns))
			updatedCount++
		}
	}

	newLocation, err := e.Data.AppendRows(ctx, meta.Location, meta.Columns, rows)
	if err != nil {
		return op.Fail(env.RequestID, op.CodeEngineUnavailable, err.Error()), nil
	}
	if err := e.Catalog.CommitMetadata(ctx, namespace, env.Table, newLocation); err != nil {
		return op.Fail(env.RequestID, op.CodeCatalogUnavailable, err.Error()), nil
	}
	e.invalidateTable(identifier)

	return op.OK(env.RequestID, map[string]interface{}{
		"records_inserted": inserted,
		"records_updated":  updatedCount,
		"total_affected":   inserted + updatedCount,
	}), nil
}

func (e *Engine) upsertFilter(ctx context.Context, env *op.Envelope, filters []op.Filter, updates map[string]interface{}) (*op.Response, error) {
	namespace, identifier := e.namespaceFor(env)
	meta, err := e.resolveTable(ctx, namespace, env.Table, identifier)
	if err != nil {
		if isTableNotFound(err) {
			return op.Fail(env.RequestID, op.CodeTableNotFound, fmt.Sprintf("table %s not found", identifier)), nil
		}
		return op.Fail(env.RequestID, op.CodeCatalogUnavailable, err.Error()), nil
	}

	current, err := e.latestMatching(ctx, meta.Location, env.TenantID, filters)
	if err != nil {
		return op.Fail(env.RequestID, op.CodeEngineUnavailable, err.Error()), nil
	}

	var rows []map[string]interface{}
	now := time.Now().UTC()
	var inserted, updatedCount int
	if len(current) == 0 {
		record := map[string]interface{}{}
		for k, v := range updates {
			record[k] = v
		}
		recordID := idgen.RecordID(record)
		enriched := schema.EnrichSystemColumns(record, env.TenantID, recordID, now)
		rows = append(rows, schema.GapFill(enriched, meta.Columns))
		inserted = 1
	} else {
		for _, row := range current {
			patched := applyPatch(row, updates)
			patched["_version"] = toInt64(row["_version"]) + 1
			patched["_timestamp"] = now
			rows = append(rows, schema.GapFill(patched, meta.Columns))
		}
		updatedCount = len(rows)
	}

	newLocation, err := e.Data.AppendRows(ctx, meta.Location, meta.Columns, rows)
	if err != nil {
		return op.Fail(env.RequestID, op.CodeEngineUnavailable, err.Error()), nil
	}
	if err := e.Catalog.CommitMetadata(ctx, namespace, env.Table, newLocation); err != nil {
		return op.Fail(env.RequestID, op.CodeCatalogUnavailable, err.Error()), nil
	}
	e.invalidateTable(identifier)

	return op.OK(env.RequestID, map[string]interface{}{
		"records_inserted": inserted,
		"records_updated":  updatedCount,
	}), nil
}
