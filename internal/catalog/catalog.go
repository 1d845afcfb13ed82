// Package catalog defines the thin metastore client contract the lakehouse
// engine talks to, and a backend-registry so a concrete implementation
// (REST metastore, DynamoDB) is selected by configuration rather than
// compiled-in choice, the same shape the teacher uses for its storage
// backends.
package catalog

import (
	"context"
	"fmt"

	"github.com/rivermark/ironlake/internal/schema"
)

// TableMeta is everything the engine needs to address a table's data: its
// current metadata-pointer location and its resolved schema.
type TableMeta struct {
	Identifier       string
	MetadataLocation string
	Schema           *schema.Table
}

// Client is the catalog operations the lakehouse engine depends on. A
// concrete backend (internal/catalog/rest, internal/catalog/dynamo) only
// needs to implement this surface.
type Client interface {
	CreateNamespace(ctx context.Context, namespace string) error
	NamespaceExists(ctx context.Context, namespace string) (bool, error)
	DropNamespace(ctx context.Context, namespace string) error

	CreateTable(ctx context.Context, namespace, table string, fields []*schema.Field) error
	LoadTable(ctx context.Context, namespace, table string) (*TableMeta, error)
	TableExists(ctx context.Context, namespace, table string) (bool, error)
	ListTables(ctx context.Context, namespace string) ([]string, error)
	DropTable(ctx context.Context, namespace, table string, purge bool) error

	// CommitMetadata advances a table's metadata pointer to newLocation
	// after the engine appends/overwrites data.
	CommitMetadata(ctx context.Context, namespace, table string, newLocation string) error
}

// Factory constructs a Client from a backend-specific DSN/config blob.
type Factory func(ctx context.Context, dsn string) (Client, error)

var registry = make(map[string]Factory)

// Register makes a catalog backend available under name (e.g. "rest",
// "dynamodb") for New to construct.
func Register(name string, f Factory) {
	registry[name] = f
}

// New constructs the catalog backend named by backendType, dialing it with
// dsn (a REST base URL or a DynamoDB table name, depending on backend).
func New(ctx context.Context, backendType, dsn string) (Client, error) {
	f, ok := registry[backendType]
	if !ok {
		return nil, fmt.Errorf("catalog: unknown backend %q (supported: rest, dynamodb)", backendType)
	}
	return f(ctx, dsn)
}

// Identifier joins a tenant-scoped namespace and table name the way every
// catalog backend addresses a table, matching the original system's
// "{tenant}_{namespace}.{table}" convention.
func Identifier(namespace, table string) string {
	return fmt.Sprintf("%s.%s", namespace, table)
}

// TenantNamespace derives the catalog-level namespace for a tenant and a
// caller-supplied namespace, replacing hyphens with underscores since the
// underlying SQL identifiers the engine builds can't contain them.
func TenantNamespace(tenantID, namespace string) string {
	raw := tenantID + "_" + namespace
	out := make([]byte, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] == '-' {
			out[i] = '_'
		} else {
			out[i] = raw[i]
		}
	}
	return string(out)
}
