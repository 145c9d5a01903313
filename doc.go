// Package cas implements verification and garbage collection for a
// content-addressed local cache: a content store of digest-named blobs
// plus a sharded index of append-only bucket files that map logical keys
// to those blobs.
//
// A cache root has this shape:
//
//	<root>/content-v1/<algo>/<shard>/<shard>/<hex>   content-addressed blobs
//	<root>/index-v1/<shard>/<shard>/<hash>           append-only bucket files
//	<root>/tmp/                                      scratch space for atomic writes
//	<root>/_lastverified                             marker written after a run
//
// [Verify] runs the full pipeline against a cache root: clear scratch
// space, rebuild the index from whatever bucket files currently exist
// (dropping corrupted lines, shadowed entries, and entries a caller's
// filter rejects), verify every blob the surviving index still
// references, then reclaim everything else. Each distinct blob is
// checked at most once per run no matter how many entries reference it.
//
//	stats, err := cas.Verify(ctx, "/var/cache/myapp",
//	    cas.WithConcurrency(32),
//	    cas.WithFilter(func(e cas.Entry) bool {
//	        return time.Since(time.UnixMilli(e.Time)) < 30*24*time.Hour
//	    }),
//	)
//
// [Store] provides the minimal collaborator callers need to populate a
// cache root outside of verification: inserting content by digest and
// appending bucket entries that point at it.
package cas
