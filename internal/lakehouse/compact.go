package lakehouse

import (
	"context"
	"fmt"

	"github.com/rivermark/ironlake/internal/op"
)

// defaultSnapshotRetentionHours is the original system's snapshot-expiry
// window, used when a COMPACT request omits snapshot_retention_hours. No
// code path starts a compaction on its own: handleWrite's opportunistic
// probe only flags compaction_recommended.
const defaultSnapshotRetentionHours = 168

// handleCompact rewrites a table's small files into fewer, larger ones.
// Force skips the small-file-count gate; expire_snapshots additionally
// prunes old snapshot pointers once the rewrite lands.
func (e *Engine) handleCompact(ctx context.Context, env *op.Envelope) (*op.Response, error) {
	var req op.CompactRequest
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

	_, eligible, err := e.Compact.Classify(ctx, meta.Location, req.Force)
	if err != nil {
		return op.Fail(env.RequestID, op.CodeEngineUnavailable, err.Error()), nil
	}
	if !eligible {
		return op.OK(env.RequestID, map[string]interface{}{
			"compacted": false,
			"reason":    "not enough small files",
		}), nil
	}

	// An explicit 0 is kept (expire everything but the newest snapshot);
	// only an omitted or negative value falls back to the default.
	retention := defaultSnapshotRetentionHours
	if _, set := env.Payload["snapshot_retention_hours"]; set && req.SnapshotRetentionHours >= 0 {
		retention = req.SnapshotRetentionHours
	}

	result, err := e.Compact.Compact(ctx, meta.Location, meta.Columns, req.ExpireSnapshots, retention)
	if err != nil {
		return op.Fail(env.RequestID, op.CodeEngineUnavailable, err.Error()), nil
	}

	if err := e.Catalog.CommitMetadata(ctx, namespace, env.Table, result.NewLocation); err != nil {
		return op.Fail(env.RequestID, op.CodeCatalogUnavailable, err.Error()), nil
	}
	e.invalidateTable(identifier)

	return op.OK(env.RequestID, map[string]interface{}{
		"compacted": true,
		"stats": map[string]interface{}{
			"files_before":          result.FilesBefore,
			"files_after":           result.FilesAfter,
			"files_compacted":       result.FilesBefore - result.SmallFilesRemaining,
			"files_removed":         result.FilesRemoved,
			"bytes_before":          result.BytesBefore,
			"bytes_after":           result.BytesAfter,
			"bytes_saved":           result.BytesSaved,
			"snapshots_expired":     result.SnapshotsExpired,
			"compaction_time_ms":    result.CompactionTimeMs,
			"small_files_remaining": result.SmallFilesRemaining,
		},
	}), nil
}
