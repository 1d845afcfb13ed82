package op

// Filter is a single flat AND-joined predicate: field OP value.
// Supported operators: eq, ne, gt, gte, lt, lte, in, like.
type Filter struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value"`
}

// ProjectionField selects (and optionally transforms) one output column.
// Transforms compose in a fixed order — case, trim, substring, one date
// transform, cast, alias — mirroring the original query builder's
// _build_projection_field.
type ProjectionField struct {
	Field string `json:"field"`
	Upper bool   `json:"upper,omitempty"`
	Lower bool   `json:"lower,omitempty"`
	Trim  bool   `json:"trim,omitempty"`

	// SubstringStart/SubstringLength are both required together to apply
	// SUBSTRING(field, start, length); nil means no substring transform.
	SubstringStart  *int `json:"substring_start,omitempty"`
	SubstringLength *int `json:"substring_length,omitempty"`

	// At most one of these three date transforms applies; DateTrunc wins
	// if more than one is set.
	DateTrunc  string `json:"date_trunc,omitempty"`  // unit, e.g. "day", "month"
	Extract    string `json:"extract,omitempty"`     // part, e.g. "year", "dow"
	DateFormat string `json:"date_format,omitempty"` // strftime-style format string

	Cast  string `json:"cast,omitempty"` // cast target type
	Alias string `json:"alias,omitempty"`
}

// Aggregation describes one aggregate output column.
type Aggregation struct {
	Function string `json:"function"` // count, sum, avg, min, max, median, percentile
	Field    string `json:"field,omitempty"`
	Distinct bool   `json:"distinct,omitempty"`
	Arg      string `json:"arg,omitempty"` // percentile argument, e.g. "0.95"
	Alias    string `json:"alias,omitempty"`
}

// SortField orders the result set.
type SortField struct {
	Field         string `json:"field"`
	Descending    bool   `json:"descending,omitempty"`
	NullsFirst    bool   `json:"nulls_first,omitempty"`
	NullsLast     bool   `json:"nulls_last,omitempty"`
}

// QueryRequest is the payload for QUERY and EXPORT_CSV.
type QueryRequest struct {
	Filters        []Filter          `json:"filters,omitempty"`
	Projection     []ProjectionField `json:"projection,omitempty"`
	Aggregations   []Aggregation     `json:"aggregations,omitempty"`
	GroupBy        []string          `json:"group_by,omitempty"`
	Having         []Filter          `json:"having,omitempty"`
	Sort           []SortField       `json:"sort,omitempty"`
	Limit          int               `json:"limit,omitempty"`
	Offset         int               `json:"offset,omitempty"`
	IncludeDeleted bool              `json:"include_deleted,omitempty"`
}

// WriteRequest is the payload for WRITE. Mode defaults to "append" when
// empty; "overwrite" replaces the table's entire tenant-scoped contents
// with the new batch; "upsert" defers to the same keyed merge UPSERT uses.
type WriteRequest struct {
	Records []map[string]interface{} `json:"records"`
	Mode    string                   `json:"mode,omitempty"`
}

// UpdateRequest is the payload for UPDATE and DELETE (delete sets the two
// system fields in Updates and leaves Filters as the caller provided them).
type UpdateRequest struct {
	Filters []Filter               `json:"filters"`
	Updates map[string]interface{} `json:"updates"`
}

// HardDeleteRequest is the payload for HARD_DELETE.
type HardDeleteRequest struct {
	Filters []Filter `json:"filters"`
	Confirm bool     `json:"confirm"`
}

// UpsertRequest is the payload for UPSERT. Exactly one of Records or
// Filters+Updates is expected to be populated, per the two upsert modes.
type UpsertRequest struct {
	Records []map[string]interface{} `json:"records,omitempty"`
	Filters []Filter                 `json:"filters,omitempty"`
	Updates map[string]interface{}   `json:"updates,omitempty"`
}

// CompactRequest is the payload for COMPACT.
type CompactRequest struct {
	Force                  bool `json:"force,omitempty"`
	MaxFilesPerCompaction  int  `json:"max_files_per_compaction,omitempty"`
	SmallFileThresholdMB   int  `json:"small_file_threshold_mb,omitempty"`
	ExpireSnapshots        bool `json:"expire_snapshots,omitempty"`
	SnapshotRetentionHours int  `json:"snapshot_retention_hours,omitempty"`
}

// FieldDefinition describes one user column in CREATE_TABLE, recursively
// for list/map/struct types.
type FieldDefinition struct {
	Name      string             `json:"name"`
	Type      string             `json:"type"`
	Items     *FieldDefinition   `json:"items,omitempty"`      // for type=array
	KeyType   string             `json:"key_type,omitempty"`   // for type=map
	ValueType string             `json:"value_type,omitempty"` // for type=map
	Fields    []*FieldDefinition `json:"fields,omitempty"`     // for type=struct
	Required  bool               `json:"required,omitempty"`
}

// CreateTableRequest is the payload for CREATE_TABLE.
type CreateTableRequest struct {
	Fields    []FieldDefinition `json:"fields"`
	IfExists  string            `json:"if_exists,omitempty"` // "error" (default) or "ignore"
}

// DropTableRequest is the payload for DROP_TABLE.
type DropTableRequest struct {
	Purge bool `json:"purge,omitempty"`
}

// PresignRequest is the payload for GET_UPLOAD_URL / GET_DOWNLOAD_URL.
type PresignRequest struct {
	Key string `json:"key"`
}
