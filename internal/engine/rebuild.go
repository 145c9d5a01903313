package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/casdepot/cas/internal/bucket"
	"github.com/casdepot/cas/internal/contentstore"
	"github.com/casdepot/cas/internal/digest"
)

// bucketWriter is the capability used to persist a rebuilt bucket's
// surviving records. The default implementation binds to bucket.WriteFile;
// tests substitute a fake to simulate a write failure occurring after
// content validation has already completed for every record in the
// bucket.
type bucketWriter interface {
	write(path, tmpDir string, records []bucket.Record) error
}

type osBucketWriter struct{}

func (osBucketWriter) write(path, tmpDir string, records []bucket.Record) error {
	return bucket.WriteFile(path, tmpDir, records)
}

// contentSet is a concurrency-safe set of content IDs, used to collect
// which blobs the rebuilt index ends up referencing so GarbageCollectContent
// knows what to keep.
type contentSet struct {
	mu sync.Mutex
	m  map[contentstore.ID]struct{}
}

func newContentSet() *contentSet {
	return &contentSet{m: make(map[contentstore.ID]struct{})}
}

func (s *contentSet) add(id contentstore.ID) {
	s.mu.Lock()
	s.m[id] = struct{}{}
	s.mu.Unlock()
}

func (s *contentSet) has(id contentstore.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.m[id]
	return ok
}

// rebuildIndex is the heart of the engine: it re-derives a consistent
// index from whatever bucket files currently exist, rewriting each bucket
// to hold only filtered, deduplicated, content-verified entries.
//
// Bucket processing is unordered and commutative: two buckets never
// reference each other's state, so it fans out across opts.Concurrency
// workers via a bounded errgroup, one goroutine per bucket.
func rebuildIndex(ctx context.Context, root string, opts *resolvedOptions, acc *accumulator) (*contentSet, error) {
	paths, err := bucket.Enumerate(root)
	if err != nil {
		return nil, err
	}

	retained := newContentSet()
	dc := newDigestCacheWithCapabilities(root, acc, opts.fs, opts.integrity)
	tmpDir := filepath.Join(root, "tmp")

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(opts.Concurrency))

	for _, path := range paths {
		path := path
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			return processBucket(gctx, path, tmpDir, opts, acc, dc, retained)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := bucket.PruneEmptyDirs(root); err != nil {
		return nil, err
	}
	return retained, nil
}

// candidate is a record that survived hash verification, JSON parsing, and
// the caller's filter, paired with its decoded entry for dedup and content
// verification.
type candidate struct {
	rec   bucket.Record
	entry bucket.Entry
}

func processBucket(ctx context.Context, path, tmpDir string, opts *resolvedOptions, acc *accumulator, dc *digestCache, retained *contentSet) error {
	records, err := bucket.ReadFile(path)
	if err != nil {
		return fmt.Errorf("engine: read bucket %s: %w", path, err)
	}

	candidates := make([]candidate, 0, len(records))
	for _, rec := range records {
		entry, err := bucket.DecodeEntry(rec.Payload)
		if err != nil {
			// Unparseable payload: silently dropped, not a rejection.
			continue
		}
		if opts.Filter != nil && !opts.Filter(entry) {
			acc.rejectedEntries.Add(1)
			continue
		}
		candidates = append(candidates, candidate{rec: rec, entry: entry})
	}

	winners := dedup(candidates, acc)

	survivors := make([]bucket.Record, 0, len(winners))
	for _, c := range winners {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ok, err := verifyCandidate(c, acc, dc, retained)
		if err != nil {
			return fmt.Errorf("engine: verify %q: %w", c.entry.Key, err)
		}
		if ok {
			survivors = append(survivors, c.rec)
		}
	}

	return opts.bucketWriter.write(path, tmpDir, survivors)
}

// dedup keeps, per key, only the candidate with the greatest Time. Every
// other candidate sharing that key counts as a rejected (shadowed) entry.
func dedup(candidates []candidate, acc *accumulator) []candidate {
	best := make(map[string]candidate, len(candidates))
	for _, c := range candidates {
		cur, ok := best[c.entry.Key]
		if !ok {
			best[c.entry.Key] = c
			continue
		}
		if c.entry.Time > cur.entry.Time {
			best[c.entry.Key] = c
			acc.rejectedEntries.Add(1)
		} else {
			acc.rejectedEntries.Add(1)
		}
	}
	winners := make([]candidate, 0, len(best))
	for _, c := range best {
		winners = append(winners, c)
	}
	return winners
}

// verifyCandidate resolves a candidate's integrity digest and verifies
// the referenced blob, accounting for the outcome and reporting whether
// the entry should be retained in the rewritten bucket.
func verifyCandidate(c candidate, acc *accumulator, dc *digestCache, retained *contentSet) (bool, error) {
	digests, err := digest.ParseList(c.entry.Integrity)
	if err != nil {
		acc.missingContent.Add(1)
		acc.rejectedEntries.Add(1)
		return false, nil
	}
	d, err := digest.Strongest(digests)
	if err != nil {
		acc.missingContent.Add(1)
		acc.rejectedEntries.Add(1)
		return false, nil
	}

	outcome, err := dc.verify(d, c.entry.Size)
	if err != nil {
		return false, err
	}
	if !outcome.ok {
		acc.missingContent.Add(1)
		acc.rejectedEntries.Add(1)
		return false, nil
	}

	retained.add(contentstore.IDOf(d))
	acc.totalEntries.Add(1)
	return true, nil
}
