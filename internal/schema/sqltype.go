package schema

import "fmt"

// SQLType maps a field's Kind to the column type the engine provisions in
// its physical storage (internal/engine.ColumnDef.SQLType). Compound kinds
// (array/map/struct) are stored as JSON text, matching how the engine's
// underlying SQL dialect represents nested data when there's no native
// Parquet/Arrow layer underneath it.
func (f *Field) SQLType() string {
	switch f.Kind {
	case KindString:
		return "TEXT"
	case KindInt32:
		return "INT"
	case KindInt64:
		return "BIGINT"
	case KindFloat32:
		return "FLOAT"
	case KindFloat64:
		return "DOUBLE"
	case KindBool:
		return "BOOLEAN"
	case KindDate:
		return "DATE"
	case KindTimestamp:
		return "DATETIME(6)"
	case KindDecimal:
		return fmt.Sprintf("DECIMAL(%d,%d)", decimalPrecision, decimalScale)
	case KindBinary:
		return "BLOB"
	case KindArray, KindMap, KindStruct:
		return "JSON"
	default:
		return "TEXT"
	}
}
