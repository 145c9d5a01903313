// Package engine implements the verification and garbage-collection
// pipeline: rebuild the index from whatever bucket files currently exist,
// then reclaim content-store blobs the rebuilt index no longer references.
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/casdepot/cas/internal/bucket"
	"github.com/casdepot/cas/internal/contentstore"
)

// DefaultConcurrency bounds parallel integrity checks when callers don't
// set Options.Concurrency.
const DefaultConcurrency = 20

// Filter is called once per parsed bucket entry. A falsy return removes
// the entry from the rebuilt index. Filter is pure and called
// synchronously; it must be safe to call from multiple goroutines since
// bucket processing is parallel.
type Filter func(bucket.Entry) bool

// Options configures a Verify run.
type Options struct {
	Filter      Filter
	Concurrency int
	Logger      *slog.Logger
}

// resolvedOptions carries the fully-defaulted options plus the
// capability seams the engine's phases run against: a filesystem for
// blob stat/open/remove, a stream integrity checker, and a bucket
// writer. Production runs bind all three to the real OS and digest
// implementations; unit tests substitute fakes to exercise fatal error
// paths a real filesystem can't be made to produce on demand.
type resolvedOptions struct {
	Filter       Filter
	Concurrency  int
	Logger       *slog.Logger
	fs           blobFS
	integrity    integrityChecker
	bucketWriter bucketWriter
}

func (o Options) resolve() *resolvedOptions {
	r := &resolvedOptions{
		Filter:       o.Filter,
		Concurrency:  o.Concurrency,
		Logger:       o.Logger,
		fs:           osBlobFS{},
		integrity:    defaultIntegrityChecker{},
		bucketWriter: osBucketWriter{},
	}
	if r.Concurrency <= 0 {
		r.Concurrency = DefaultConcurrency
	}
	if r.Logger == nil {
		r.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r
}

// Verify runs the full pipeline against cacheRoot: ensure the directory
// tree exists, clear tmp/, rebuild the index, reclaim orphaned content,
// and record the last-verified marker. It returns the accounting record
// described by Stats.
//
// Phase order (GarbageCollectTmp, RebuildIndex, GarbageCollectContent,
// WriteLastVerified) is strict: GarbageCollectContent depends on a
// rebuilt index, or live entries would lose their content.
func Verify(ctx context.Context, cacheRoot string, opts Options) (Stats, error) {
	return verify(ctx, cacheRoot, opts.resolve())
}

// verify runs the pipeline against an already-resolved options value,
// letting tests supply fake capabilities in ro that Verify's public
// signature has no room for.
func verify(ctx context.Context, cacheRoot string, ro *resolvedOptions) (Stats, error) {
	startTime := time.Now().UnixMilli()
	log := ro.Logger

	if err := markStart(cacheRoot); err != nil {
		return Stats{}, fmt.Errorf("%w: %v", ErrCacheRootUnusable, err)
	}

	// FixPerms is a reserved hook; currently a no-op.

	log.Debug("clearing tmp scratch directory")
	if err := gcTmp(cacheRoot); err != nil {
		return Stats{}, err
	}

	acc := &accumulator{}

	log.Debug("rebuilding index", "concurrency", ro.Concurrency)
	retained, err := rebuildIndex(ctx, cacheRoot, ro, acc)
	if err != nil {
		return Stats{}, err
	}

	log.Debug("collecting orphaned content")
	if err := gcContent(ctx, cacheRoot, retained, ro, acc); err != nil {
		return Stats{}, err
	}

	endTime := time.Now().UnixMilli()
	if err := writeLastVerified(cacheRoot, endTime); err != nil {
		return Stats{}, err
	}

	stats := acc.snapshot(startTime, endTime)
	log.Info("verify complete",
		"total_entries", stats.TotalEntries,
		"verified_content", stats.VerifiedContent,
		"reclaimed_count", stats.ReclaimedCount,
		"rejected_entries", stats.RejectedEntries,
	)
	return stats, nil
}

// markStart ensures the cache directory tree (index, content, and tmp)
// exists before any phase runs.
func markStart(root string) error {
	for _, sub := range []string{
		fmt.Sprintf("index-v%d", bucket.Version),
		fmt.Sprintf("content-v%d", contentstore.Version),
		"tmp",
	} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return err
		}
	}
	return nil
}
