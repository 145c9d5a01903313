package engine

import (
	"errors"
	"io"
	"io/fs"
	"sync"

	"github.com/casdepot/cas/internal/contentstore"
	"github.com/casdepot/cas/internal/digest"
)

// digestOutcome is the memoized result of verifying one content-store
// blob, keyed by its canonical digest. Every entry that shares a digest
// reuses this outcome instead of re-stating or re-streaming the blob.
type digestOutcome struct {
	ok   bool
	size int64
}

type digestSlot struct {
	once   sync.Once
	err    error
	result digestOutcome
}

// blobFS is the filesystem capability digestCache needs to verify a
// blob: stat for its size, open for streaming, and remove for deleting
// a blob that fails verification. The default implementation binds
// directly to contentstore's OS-backed helpers; tests substitute a fake
// to produce stat or open errors a real filesystem can't be made to
// raise on demand.
type blobFS interface {
	stat(root string, id contentstore.ID) (int64, error)
	open(root string, id contentstore.ID) (io.ReadCloser, error)
	remove(root string, id contentstore.ID) error
}

type osBlobFS struct{}

func (osBlobFS) stat(root string, id contentstore.ID) (int64, error) {
	return contentstore.Stat(root, id)
}

func (osBlobFS) open(root string, id contentstore.ID) (io.ReadCloser, error) {
	return contentstore.Open(root, id)
}

func (osBlobFS) remove(root string, id contentstore.ID) error {
	return contentstore.Delete(root, id)
}

// integrityChecker streams r and reports whether it matches d, returning
// digest.ErrMismatch on a genuine mismatch. The default implementation
// binds to Digest.VerifyReader; tests substitute a fake to return error
// kinds a real stream can't be made to produce (anything other than a
// mismatch or an I/O failure).
type integrityChecker interface {
	verify(d digest.Digest, r io.Reader) error
}

type defaultIntegrityChecker struct{}

func (defaultIntegrityChecker) verify(d digest.Digest, r io.Reader) error {
	return d.VerifyReader(r)
}

// digestCache verifies each distinct content-store blob exactly once
// across an entire RebuildIndex run, no matter how many entries (in the
// same bucket or different ones) reference it concurrently.
type digestCache struct {
	mu        sync.Mutex
	m         map[contentstore.ID]*digestSlot
	root      string
	acc       *accumulator
	fs        blobFS
	integrity integrityChecker
}

func newDigestCache(root string, acc *accumulator) *digestCache {
	return newDigestCacheWithCapabilities(root, acc, osBlobFS{}, defaultIntegrityChecker{})
}

func newDigestCacheWithCapabilities(root string, acc *accumulator, fs blobFS, integrity integrityChecker) *digestCache {
	return &digestCache{m: make(map[contentstore.ID]*digestSlot), root: root, acc: acc, fs: fs, integrity: integrity}
}

// verify returns whether the blob for d is present and integrity-valid,
// running the actual stat/stream/delete work at most once per digest. A
// non-nil error means an UnexpectedIOError occurred and the whole run
// must abort.
func (c *digestCache) verify(d digest.Digest, declaredSize *int64) (digestOutcome, error) {
	id := contentstore.IDOf(d)

	c.mu.Lock()
	slot, ok := c.m[id]
	if !ok {
		slot = &digestSlot{}
		c.m[id] = slot
	}
	c.mu.Unlock()

	slot.once.Do(func() {
		slot.result, slot.err = c.compute(id, d, declaredSize)
	})
	return slot.result, slot.err
}

func (c *digestCache) compute(id contentstore.ID, d digest.Digest, declaredSize *int64) (digestOutcome, error) {
	size, err := c.fs.stat(c.root, id)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return digestOutcome{ok: false}, nil
		}
		return digestOutcome{}, err
	}

	if declaredSize != nil && *declaredSize != size {
		return c.rejectBad(id, size)
	}

	f, err := c.fs.open(c.root, id)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return digestOutcome{ok: false}, nil
		}
		return digestOutcome{}, err
	}
	defer f.Close()

	if err := c.integrity.verify(d, f); err != nil {
		if errors.Is(err, digest.ErrMismatch) {
			return c.rejectBad(id, size)
		}
		return digestOutcome{}, err
	}

	c.acc.verifiedContent.Add(1)
	c.acc.keptSize.Add(size)
	return digestOutcome{ok: true, size: size}, nil
}

func (c *digestCache) rejectBad(id contentstore.ID, size int64) (digestOutcome, error) {
	if err := c.fs.remove(c.root, id); err != nil {
		return digestOutcome{}, err
	}
	c.acc.badContentCount.Add(1)
	c.acc.reclaimedCount.Add(1)
	c.acc.reclaimedSize.Add(size)
	return digestOutcome{ok: false}, nil
}
