package lakehouse

import (
	"context"
	"errors"
	"strings"

	"github.com/rivermark/ironlake/internal/catalog"
	"github.com/rivermark/ironlake/internal/op"
)

// tenantNamespace derives the tenant-scoped catalog namespace for an
// envelope, without also computing the table identifier (namespaceFor's
// companion for handlers that only need the namespace, e.g. DROP_NAMESPACE
// and LIST_TABLES).
func tenantNamespace(env *op.Envelope) string {
	return catalog.TenantNamespace(env.TenantID, env.Namespace)
}

// quoted wraps a physical table/column name the way the dolt engine's SQL
// dialect expects. Lakehouse only ever builds SQL text for identifiers it
// fully controls (a table's own metadata location), never caller-supplied
// strings, so this is purely dialect quoting, not an injection boundary.
func quoted(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// resolved is what every write/read/mutate handler needs to address a
// table's data: its physical location and its full (system + user) column
// list, in schema order.
type resolved struct {
	Location string
	Columns  []string
}

// resolveTable returns the table's current metadata location and column
// list, consulting the metadata cache before round-tripping the catalog,
// matching the original system's TTL-cached metadata_location lookup.
func (e *Engine) resolveTable(ctx context.Context, namespace, table, identifier string) (*resolved, error) {
	if location, columns, ok := e.Metadata.Get(identifier); ok {
		return &resolved{Location: location, Columns: columns}, nil
	}
	meta, err := e.Catalog.LoadTable(ctx, namespace, table)
	if err != nil {
		return nil, err
	}
	var columns []string
	if meta.Schema != nil {
		columns = meta.Schema.ColumnNames()
	}
	e.Metadata.Set(identifier, meta.MetadataLocation, columns)
	return &resolved{Location: meta.MetadataLocation, Columns: columns}, nil
}

// invalidateTable drops identifier's metadata-cache entry and purges the
// whole query-result cache after any write that changes its data or
// metadata pointer.
func (e *Engine) invalidateTable(identifier string) {
	e.Metadata.Invalidate(identifier)
	e.Query.InvalidateTable()
}

func isTableNotFound(err error) bool {
	return errors.Is(err, catalog.ErrTableNotFound)
}

func isNamespaceNotFound(err error) bool {
	return errors.Is(err, catalog.ErrNamespaceNotFound)
}
