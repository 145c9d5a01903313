package engine

import "errors"

// ErrCacheRootUnusable is returned when the cache root cannot be created
// or accessed at all: the driver cannot even begin.
var ErrCacheRootUnusable = errors.New("engine: cache root is unusable")
