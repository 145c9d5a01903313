package cas

import (
	"context"

	"github.com/casdepot/cas/internal/engine"
)

type engineOptions = engine.Options

// Verify runs the full verification and garbage-collection pipeline
// against cacheRoot: clear scratch space, rebuild the index from
// whatever bucket files currently exist, reclaim content-store blobs the
// rebuilt index no longer references, and record a last-verified marker.
//
// Phase order is strict and internal to the engine: tmp cleanup, index
// rebuild, content collection, marker write. Verify returns once every
// phase has completed or the first phase to fail has returned its error.
func Verify(ctx context.Context, cacheRoot string, opts ...VerifyOption) (Stats, error) {
	var o engineOptions
	for _, opt := range opts {
		opt(&o)
	}
	return engine.Verify(ctx, cacheRoot, o)
}

// LastRun reads the timestamp (epoch milliseconds) recorded by the most
// recent completed Verify run against cacheRoot. ok is false, with a nil
// error, when no run has completed yet.
func LastRun(cacheRoot string) (timestamp int64, ok bool, err error) {
	return engine.LastRun(cacheRoot)
}
