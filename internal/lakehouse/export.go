package lakehouse

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"

	"github.com/rivermark/ironlake/internal/op"
	"github.com/rivermark/ironlake/internal/sqlbuild"
)

// handleExportCSV runs the same ranked-version read path as QUERY, then
// streams the result set to a CSV object in the warehouse bucket under
// exports/{tenant}/{request_id}.csv, returning its key and a presigned GET
// URL for retrieval.
func (e *Engine) handleExportCSV(ctx context.Context, env *op.Envelope) (*op.Response, error) {
	var req op.QueryRequest
	if err := decodePayload(env.Payload, &req); err != nil {
		return op.Fail(env.RequestID, op.CodeInvalidSchema, err.Error()), nil
	}
	namespace, identifier := e.namespaceFor(env)

	meta, err := e.resolveTable(ctx, namespace, env.Table, identifier)
	if err != nil {
		if isTableNotFound(err) {
			return op.Fail(env.RequestID, op.CodeTableNotFound, fmt.Sprintf("table %s not found", identifier)), nil
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

	body, err := encodeCSV(records)
	if err != nil {
		return op.Fail(env.RequestID, op.CodeInternal, err.Error()), nil
	}

	key := fmt.Sprintf("exports/%s/%s.csv", env.TenantID, env.RequestID)
	if e.Storage == nil {
		return op.Fail(env.RequestID, op.CodeEngineUnavailable, "object storage backend not configured"), nil
	}
	if err := e.Storage.PutObject(ctx, key, bytes.NewReader(body), int64(len(body)), "text/csv"); err != nil {
		return op.Fail(env.RequestID, op.CodeEngineUnavailable, err.Error()), nil
	}
	url, err := e.Storage.PresignGet(ctx, key, e.PresignTTL)
	if err != nil {
		return op.Fail(env.RequestID, op.CodeEngineUnavailable, err.Error()), nil
	}

	return op.OK(env.RequestID, map[string]interface{}{
		"key":          key,
		"download_url": url,
		"row_count":    len(records),
	}), nil
}

// encodeCSV writes rows to CSV with a header row derived from the union of
// every row's keys, sorted for a deterministic column order.
func encodeCSV(rows []map[string]interface{}) ([]byte, error) {
	columns := map[string]struct{}{}
	for _, row := range rows {
		for k := range row {
			columns[k] = struct{}{}
		}
	}
	header := make([]string, 0, len(columns))
	for k := range columns {
		header = append(header, k)
	}
	sort.Strings(header)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, row := range rows {
		record := make([]string, len(header))
		for i, col := range header {
			if v, ok := row[col]; ok && v != nil {
				record[i] = fmt.Sprintf("%v", v)
			}
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// handlePresign mints a time-bounded PUT or GET URL against the warehouse
// bucket, scoped under the caller's own tenant/namespace prefix — the
// "trivial thin wrapper" the design deliberately keeps out of the read/
// write path's algorithmic surface.
func (e *Engine) handlePresign(ctx context.Context, env *op.Envelope, upload bool) (*op.Response, error) {
	var req op.PresignRequest
	if err := decodePayload(env.Payload, &req); err != nil {
		return op.Fail(env.RequestID, op.CodeInvalidSchema, err.Error()), nil
	}
	if e.Storage == nil {
		return op.Fail(env.RequestID, op.CodeEngineUnavailable, "object storage backend not configured"), nil
	}

	_, identifier := e.namespaceFor(env)
	prefix := identifier + "/"
	if len(req.Key) < len(prefix) || req.Key[:len(prefix)] != prefix {
		return op.Fail(env.RequestID, op.CodeInvalidFilter,
			fmt.Sprintf("key must be scoped under %s", prefix)), nil
	}

	var url string
	var err error
	if upload {
		url, err = e.Storage.PresignPut(ctx, req.Key, e.PresignTTL)
	} else {
		url, err = e.Storage.PresignGet(ctx, req.Key, e.PresignTTL)
	}
	if err != nil {
		return op.Fail(env.RequestID, op.CodeEngineUnavailable, err.Error()), nil
	}

	return op.OK(env.RequestID, map[string]interface{}{
		"url":        url,
		"key":        req.Key,
		"expires_in": int(e.PresignTTL.Seconds()),
	}), nil
}
