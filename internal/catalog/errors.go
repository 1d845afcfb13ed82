package catalog

import "errors"

// Sentinel errors a Client implementation returns so the lakehouse layer
// can map them onto op.Code values without depending on backend-specific
// error types.
var (
	ErrTableNotFound     = errors.New("catalog: table not found")
	ErrTableExists       = errors.New("catalog: table already exists")
	ErrNamespaceNotFound = errors.New("catalog: namespace not found")
)
