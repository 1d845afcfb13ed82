package lakehouse

import (
	"context"
	"fmt"

	"github.com/rivermark/ironlake/internal/op"
	"github.com/rivermark/ironlake/internal/sqlbuild"
)

// handleHardDelete physically removes every row matching the filter,
// including every historical version, from the table's storage — the one
// operation that doesn't keep history. It requires confirm=true, matching
// the original system's refusal to run an irreversible delete without an
// explicit confirmation flag on the request.
func (e *Engine) handleHardDelete(ctx context.Context, env *op.Envelope) (*op.Response, error) {
	var req op.HardDeleteRequest
	if err := decodePayload(env.Payload, &req); err != nil {
		return op.Fail(env.RequestID, op.CodeInvalidSchema, err.Error()), nil
	}
	if !req.Confirm {
		return op.Fail(env.RequestID, op.CodeConfirmationRequired, "hard delete requires confirm=true"), nil
	}

	namespace, identifier := e.namespaceFor(env)
	meta, err := e.resolveTable(ctx, namespace, env.Table, identifier)
	if err != nil {
		if isTableNotFound(err) {
			return op.Fail(env.RequestID, op.CodeTableNotFound, fmt.Sprintf("table %s not found", identifier)), nil
		}
		return op.Fail(env.RequestID, op.CodeCatalogUnavailable, err.Error()), nil
	}

	clause, params, err := sqlbuild.Filters(req.Filters)
	if err != nil {
		return op.Fail(env.RequestID, op.CodeInvalidFilter, err.Error()), nil
	}
	predicate := "_tenant_id = ?"
	bind := append([]interface{}{env.TenantID}, params...)
	if clause != "" {
		predicate += " AND " + clause
	}

	countQuery, countParams, err := sqlbuild.SelectLatest(quoted(meta.Location), env.TenantID, &op.QueryRequest{
		Filters:        req.Filters,
		Aggregations:   []op.Aggregation{{Function: "count", Alias: "n"}},
		IncludeDeleted: true,
	})
	if err != nil {
		return op.Fail(env.RequestID, op.CodeInvalidFilter, err.Error()), nil
	}
	countRows, err := e.Data.QueryRows(ctx, meta.Location, countQuery, countParams)
	if err != nil {
		return op.Fail(env.RequestID, op.CodeEngineUnavailable, err.Error()), nil
	}
	var affected int64
	if len(countRows) > 0 {
		affected = toInt64(countRows[0]["n"])
	}
	if affected == 0 {
		return op.OK(env.RequestID, map[string]interface{}{
			"records_deleted": 0,
			"files_rewritten": 0,
		}), nil
	}

	newLocation, filesRewritten, err := e.Data.DeleteRows(ctx, meta.Location, predicate, bind)
	if err != nil {
		return op.Fail(env.RequestID, op.CodeEngineUnavailable, err.Error()), nil
	}
	if err := e.Catalog.CommitMetadata(ctx, namespace, env.Table, newLocation); err != nil {
		return op.Fail(env.RequestID, op.CodeCatalogUnavailable, err.Error()), nil
	}
	e.invalidateTable(identifier)

	return op.OK(env.RequestID, map[string]interface{}{
		"records_deleted": affected,
		"files_rewritten": filesRewritten,
	}), nil
}
