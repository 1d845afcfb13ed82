// Package schema models a table's column schema — the user-defined fields
// plus the six system columns every table carries — and performs the
// gap-fill step (GapFill) that turns a loosely-typed caller record into a
// row with exactly the table's columns, missing ones set to nil. GapFill
// does not coerce values to the column types; CastDecimal is a separate
// helper that the write path does not call.
package schema

import (
	"fmt"
	"time"

	"github.com/rivermark/ironlake/internal/op"
)

// Kind is the scalar/compound type universe a field can take.
type Kind string

const (
	KindString    Kind = "string"
	KindInt32     Kind = "integer"
	KindInt64     Kind = "long"
	KindFloat32   Kind = "float"
	KindFloat64   Kind = "double"
	KindBool      Kind = "boolean"
	KindDate      Kind = "date"
	KindTimestamp Kind = "timestamp"
	KindDecimal   Kind = "decimal"
	KindBinary    Kind = "binary"
	KindArray     Kind = "array"
	KindMap       Kind = "map"
	KindStruct    Kind = "struct"
)

// Field is one column in a table's schema, recursively for compound kinds.
type Field struct {
	Name     string
	Kind     Kind
	Required bool
	Items    *Field            // Kind == KindArray
	KeyKind  Kind              // Kind == KindMap
	ValKind  Kind              // Kind == KindMap
	Fields   []*Field          // Kind == KindStruct
}

// SystemFields are the six columns every table's schema carries in
// addition to its user-defined fields, in field-id order 1-6.
func SystemFields() []*Field {
	return []*Field{
		{Name: "_tenant_id", Kind: KindString, Required: true},
		{Name: "_record_id", Kind: KindString, Required: true},
		{Name: "_timestamp", Kind: KindTimestamp, Required: true},
		{Name: "_version", Kind: KindInt64, Required: true},
		{Name: "_deleted", Kind: KindBool, Required: true},
		{Name: "_deleted_at", Kind: KindTimestamp, Required: false},
	}
}

// Table is a resolved table schema: system fields followed by user fields,
// in the column order the engine appends/overwrites against.
type Table struct {
	Namespace string
	Name      string
	Fields    []*Field // system fields first, then user fields
}

// ColumnNames returns the ordered list of column names in this schema.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}

// FromDefinitions builds a Table's user-facing field list from the
// FieldDefinitions a CREATE_TABLE request carries, recursively resolving
// array/map/struct fields the way the original system's type mapper does.
func FromDefinitions(defs []op.FieldDefinition) ([]*Field, error) {
	fields := make([]*Field, 0, len(defs))
	for _, d := range defs {
		f, err := fieldFromDefinition(d)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func fieldFromDefinition(d op.FieldDefinition) (*Field, error) {
	switch Kind(d.Type) {
	case KindArray:
		if d.Items == nil {
			return nil, fmt.Errorf("schema: field %q of type array requires \"items\"", d.Name)
		}
		items, err := fieldFromDefinition(*d.Items)
		if err != nil {
			return nil, err
		}
		return &Field{Name: d.Name, Kind: KindArray, Required: d.Required, Items: items}, nil
	case KindMap:
		if d.KeyType == "" || d.ValueType == "" {
			return nil, fmt.Errorf("schema: field %q of type map requires \"key_type\" and \"value_type\"", d.Name)
		}
		return &Field{Name: d.Name, Kind: KindMap, Required: d.Required, KeyKind: Kind(d.KeyType), ValKind: Kind(d.ValueType)}, nil
	case KindStruct:
		if len(d.Fields) == 0 {
			return nil, fmt.Errorf("schema: field %q of type struct requires \"fields\"", d.Name)
		}
		nested := make([]*Field, 0, len(d.Fields))
		for _, nd := range d.Fields {
			nf, err := fieldFromDefinition(*nd)
			if err != nil {
				return nil, err
			}
			nested = append(nested, nf)
		}
		return &Field{Name: d.Name, Kind: KindStruct, Required: d.Required, Fields: nested}, nil
	case KindString, KindInt32, KindInt64, KindFloat32, KindFloat64, KindBool, KindDate, KindTimestamp, KindDecimal, KindBinary:
		return &Field{Name: d.Name, Kind: Kind(d.Type), Required: d.Required}, nil
	default:
		return nil, fmt.Errorf("schema: field %q has unknown type %q", d.Name, d.Type)
	}
}

// EnrichSystemColumns stamps a caller-provided record with the system
// columns for a fresh write: tenant, content-digest record id, timestamp,
// initial version, and un-deleted state. recordID and now are supplied by
// the caller so the computation stays pure and testable.
func EnrichSystemColumns(record map[string]interface{}, tenantID, recordID string, now time.Time) map[string]interface{} {
	out := make(map[string]interface{}, len(record)+6)
	for k, v := range record {
		out[k] = v
	}
	out["_tenant_id"] = tenantID
	out["_record_id"] = recordID
	out["_timestamp"] = now
	out["_version"] = int64(1)
	out["_deleted"] = false
	out["_deleted_at"] = nil
	return out
}

// GapFill returns a copy of record with every column in names present,
// filling any column the record is missing with a nil value, so every
// record appended to the table matches the table's schema column-for-
// column regardless of which optional user fields a given write supplied.
func GapFill(record map[string]interface{}, names []string) map[string]interface{} {
	out := make(map[string]interface{}, len(names))
	for _, n := range names {
		if v, ok := record[n]; ok {
			out[n] = v
		} else {
			out[n] = nil
		}
	}
	return out
}
