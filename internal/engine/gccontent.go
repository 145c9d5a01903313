package engine

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/casdepot/cas/internal/contentstore"
)

// gcContent deletes every content-store blob not referenced by the
// freshly rebuilt index. It must run after rebuildIndex: running it first
// would delete blobs still referenced by soon-to-be-retained entries.
func gcContent(ctx context.Context, root string, retained *contentSet, opts *resolvedOptions, acc *accumulator) error {
	blobs, err := contentstore.Enumerate(root)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(opts.Concurrency))

	for _, blob := range blobs {
		blob := blob
		if retained.has(blob.ID) {
			continue
		}
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			if err := contentstore.Delete(root, blob.ID); err != nil {
				return err
			}
			acc.reclaimedCount.Add(1)
			acc.reclaimedSize.Add(blob.Size)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return contentstore.PruneEmptyDirs(root)
}
