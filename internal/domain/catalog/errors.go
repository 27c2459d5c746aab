package catalog

import "errors"

// Sentinel error kinds for this package.
var (
	ErrInvalidCatalog  = errors.New("invalid catalog")
	ErrLoadCatalog     = errors.New("load catalog failed")
	ErrIndexOutOfRange = errors.New("vendor index out of range")
)
