package lakehouse

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/rivermark/ironlake/internal/catalog"
	"github.com/rivermark/ironlake/internal/engine"
	"github.com/rivermark/ironlake/internal/schema"
)

// fakeCatalog is an in-memory catalog.Client test double: namespaces and
// tables live in plain maps, guarded by nothing since tests run single
// threaded against one Engine.
type fakeCatalog struct {
	namespaces map[string]bool
	tables     map[string]*catalog.TableMeta // key: namespace+"/"+table
	dropErr    error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		namespaces: make(map[string]bool),
		tables:     make(map[string]*catalog.TableMeta),
	}
}

func tableKey(namespace, table string) string { return namespace + "/" + table }

func (c *fakeCatalog) CreateNamespace(ctx context.Context, namespace string) error {
	c.namespaces[namespace] = true
	return nil
}

func (c *fakeCatalog) NamespaceExists(ctx context.Context, namespace string) (bool, error) {
	return c.namespaces[namespace], nil
}

func (c *fakeCatalog) DropNamespace(ctx context.Context, namespace string) error {
	if !c.namespaces[namespace] {
		return catalog.ErrNamespaceNotFound
	}
	delete(c.namespaces, namespace)
	return nil
}

func (c *fakeCatalog) CreateTable(ctx context.Context, namespace, table string, fields []*schema.Field) error {
	c.tables[tableKey(namespace, table)] = &catalog.TableMeta{
		Identifier:       catalog.Identifier(namespace, table),
		MetadataLocation: catalog.Identifier(namespace, table),
		Schema:           &schema.Table{Namespace: namespace, Name: table, Fields: fields},
	}
	return nil
}

func (c *fakeCatalog) LoadTable(ctx context.Context, namespace, table string) (*catalog.TableMeta, error) {
	meta, ok := c.tables[tableKey(namespace, table)]
	if !ok {
		return nil, catalog.ErrTableNotFound
	}
	return meta, nil
}

func (c *fakeCatalog) TableExists(ctx context.Context, namespace, table string) (bool, error) {
	_, ok := c.tables[tableKey(namespace, table)]
	return ok, nil
}

func (c *fakeCatalog) ListTables(ctx context.Context, namespace string) ([]string, error) {
	if !c.namespaces[namespace] {
		return nil, catalog.ErrNamespaceNotFound
	}
	var names []string
	for k, meta := range c.tables {
		_ = k
		if meta.Schema != nil && meta.Schema.Namespace == namespace {
			names = append(names, meta.Schema.Name)
		}
	}
	return names, nil
}

func (c *fakeCatalog) DropTable(ctx context.Context, namespace, table string, purge bool) error {
	if c.dropErr != nil {
		return c.dropErr
	}
	delete(c.tables, tableKey(namespace, table))
	return nil
}

func (c *fakeCatalog) CommitMetadata(ctx context.Context, namespace, table string, newLocation string) error {
	meta, ok := c.tables[tableKey(namespace, table)]
	if !ok {
		return catalog.ErrTableNotFound
	}
	meta.MetadataLocation = newLocation
	return nil
}

// fakeDataEngine is an in-memory engine.Engine test double: rows live in a
// plain slice per location, and AppendRows/OverwriteRows return the
// location unchanged, the way the real dolt engine returns the same
// sourceLocation after every write.
type fakeDataEngine struct {
	rows       map[string][]engine.Row
	files      map[string][]engine.FileInfo
	queryErr   error
	appendErr  error
	nextSuffix int
}

func newFakeDataEngine() *fakeDataEngine {
	return &fakeDataEngine{rows: make(map[string][]engine.Row), files: make(map[string][]engine.FileInfo)}
}

func (f *fakeDataEngine) QueryRows(ctx context.Context, loc, query string, args []interface{}) ([]engine.Row, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.rows[loc], nil
}

func (f *fakeDataEngine) AppendRows(ctx context.Context, loc string, cols []string, rows []engine.Row) (string, error) {
	if f.appendErr != nil {
		return "", f.appendErr
	}
	f.nextSuffix++
	next := loc
	f.rows[next] = append(f.rows[next], rows...)
	return next, nil
}

func (f *fakeDataEngine) OverwriteRows(ctx context.Context, loc string, cols []string, rows []engine.Row) (string, error) {
	f.rows[loc] = rows
	return loc, nil
}

func (f *fakeDataEngine) DeleteRows(ctx context.Context, loc, predicate string, args []interface{}) (string, int, error) {
	f.rows[loc] = nil
	return loc, 1, nil
}

func (f *fakeDataEngine) PlanFiles(ctx context.Context, loc string) ([]engine.FileInfo, error) {
	return f.files[loc], nil
}

func (f *fakeDataEngine) ExpireSnapshots(ctx context.Context, loc string, cutoff int64) (int, error) {
	return 0, nil
}

func (f *fakeDataEngine) CreateDataTable(ctx context.Context, loc string, cols []engine.ColumnDef) error {
	return nil
}

func (f *fakeDataEngine) DropDataTable(ctx context.Context, loc string) error { return nil }

func (f *fakeDataEngine) Close() error { return nil }

// fakeStorage is an in-memory storageio.Client test double.
type fakeStorage struct {
	objects map[string][]byte
}

func newFakeStorage() *fakeStorage { return &fakeStorage{objects: make(map[string][]byte)} }

func (s *fakeStorage) PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.objects[key] = b
	return nil
}

func (s *fakeStorage) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.objects[key])), nil
}

func (s *fakeStorage) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://example.test/get/" + key, nil
}

func (s *fakeStorage) PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://example.test/put/" + key, nil
}

// newTestEngine wires an Engine around fresh fakes, with no compactor set
// (tests exercising COMPACT build their own with a real compact.Compactor
// over the same fakeDataEngine).
func newTestEngine() (*Engine, *fakeCatalog, *fakeDataEngine, *fakeStorage) {
	cat := newFakeCatalog()
	data := newFakeDataEngine()
	storage := newFakeStorage()
	eng := New(cat, data, nil, storage, 0, nil)
	return eng, cat, data, storage
}
