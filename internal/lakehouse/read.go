package lakehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/rivermark/ironlake/internal/cache"
	"github.com/rivermark/ironlake/internal/idgen"
	"github.com/rivermark/ironlake/internal/op"
	"github.com/rivermark/ironlake/internal/sqlbuild"
)

// handleQuery resolves the table, builds the ranked-by-version CTE query
// (latest row per _record_id, soft-deletes filtered out unless requested),
// checks the result cache, executes on a miss, and caches the result —
// mirroring the original system's query() method end to end.
func (e *Engine) handleQuery(ctx context.Context, env *op.Envelope) (*op.Response, error) {
	var req op.QueryRequest
	if err := decodePayload(env.Payload, &req); err != nil {
		return op.Fail(env.RequestID, op.CodeInvalidSchema, err.Error()), nil
	}

	started := time.Now()
	namespace, identifier := e.namespaceFor(env)

	key := cache.Key(env.TenantID, identifier, req)
	if rows, ok := e.Query.Get(key); ok {
		return op.OK(env.RequestID, map[string]interface{}{
			"records":        rows,
			"query_metadata": queryMetadata(rows, started, true),
		}), nil
	}

	meta, err := e.resolveTable(ctx, namespace, env.Table, identifier)
	if err != nil {
		if isTableNotFound(err) {
			return op.OK(env.RequestID, map[string]interface{}{
				"records":        []map[string]interface{}{},
				"query_metadata": queryMetadata(nil, started, false),
			}), nil
		}
		return op.Fail(env.RequestID, op.CodeCatalogUnavailable, err.Error()), nil
	}

	query, params, err := sqlbuild.SelectLatest(quoted(meta.Location), env.TenantID, &req)
	if err != nil {
		return op.Fail(env.RequestID, op.CodeInvalidFilter, err.Error()), nil
	}

	rows, err := e.Data.QueryRows(ctx, meta.Location, query, params)
	if err != nil {
		return op.Fail(env.RequestID, op.CodeEngineUnavailable, err.Error()), nil
	}

	records := toRecords(rows)
	e.Query.Set(key, records)

	return op.OK(env.RequestID, map[string]interface{}{
		"records":        records,
		"query_metadata": queryMetadata(records, started, false),
	}), nil
}

// queryMetadata mints a fresh query_id on every call — including a cache
// hit, per the result cache's "return a shallow copy with a fresh query_id"
// contract — alongside row_count, execution_time_ms, and cache_hit.
func queryMetadata(records []map[string]interface{}, started time.Time, cacheHit bool) map[string]interface{} {
	return map[string]interface{}{
		"row_count":         len(records),
		"execution_time_ms": time.Since(started).Milliseconds(),
		"cache_hit":         cacheHit,
		"query_id":          idgen.NewRequestID(),
	}
}

func toRecords(rows []map[string]interface{}) []map[string]interface{} {
	out := make([]map[string]interface{}, len(rows))
	for i, r := range rows {
		delete(r, "rn")
		out[i] = r
	}
	return out
}
