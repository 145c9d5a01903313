package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casdepot/cas/internal/bucket"
	"github.com/casdepot/cas/internal/contentstore"
	"github.com/casdepot/cas/internal/digest"
	"github.com/casdepot/cas/internal/testutil"
)

var errFakeUnexpected = errors.New("engine: fake unexpected failure")

// fakeBlobFS wraps the real OS-backed implementation but can be told to
// fail a specific operation with an arbitrary error, simulating the kind
// of unexpected stat/open failure a real filesystem won't produce on
// demand.
type fakeBlobFS struct {
	osBlobFS
	statErr error
	openErr error
}

func (f fakeBlobFS) stat(root string, id contentstore.ID) (int64, error) {
	if f.statErr != nil {
		return 0, f.statErr
	}
	return f.osBlobFS.stat(root, id)
}

func (f fakeBlobFS) open(root string, id contentstore.ID) (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.osBlobFS.open(root, id)
}

// fakeIntegrityChecker substitutes an arbitrary error kind for the real
// stream comparison, simulating an integrity checker that fails with
// something other than a mismatch or an I/O error.
type fakeIntegrityChecker struct {
	err error
}

func (f fakeIntegrityChecker) verify(d digest.Digest, r io.Reader) error {
	if f.err != nil {
		return f.err
	}
	return (defaultIntegrityChecker{}).verify(d, r)
}

// fakeBucketWriter substitutes an arbitrary write failure for the real
// bucket rewrite, simulating a failure that occurs after every entry in
// the bucket has already passed content validation.
type fakeBucketWriter struct {
	err error
}

func (f fakeBucketWriter) write(path, tmpDir string, records []bucket.Record) error {
	if f.err != nil {
		return f.err
	}
	return (osBucketWriter{}).write(path, tmpDir, records)
}

func testResolvedOptions() *resolvedOptions {
	return &resolvedOptions{
		Concurrency:  DefaultConcurrency,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		fs:           osBlobFS{},
		integrity:    defaultIntegrityChecker{},
		bucketWriter: osBucketWriter{},
	}
}

// TestVerifyPropagatesUnexpectedReadError forces the content path to be a
// directory rather than a regular file. Stat succeeds (so the declared
// size check doesn't short-circuit into rejectBad), but opening and
// reading it fails with something other than a missing-file or digest
// mismatch error, which must abort the whole run rather than be treated
// as a rejected entry.
func TestVerifyPropagatesUnexpectedReadError(t *testing.T) {
	t.Parallel()

	root := testutil.NewRoot(t)
	integrity := testutil.PutContent(t, root, []byte("placeholder"))
	path := testutil.ContentPath(t, root, integrity)

	require.NoError(t, os.Remove(path))
	require.NoError(t, os.MkdirAll(path, 0o755))

	info, err := os.Stat(path)
	require.NoError(t, err)
	size := info.Size()
	testutil.AppendEntry(t, root, "k1", bucket.Entry{Key: "k1", Integrity: integrity, Time: 1, Size: &size})

	_, err = Verify(context.Background(), root, Options{})
	assert.Error(t, err)
}

// TestVerifyTreatsMissingBlobAsMissingNotFatal exercises the other half of
// the same branch: a declared digest whose blob was never written at all.
func TestVerifyTreatsMissingBlobAsMissingNotFatal(t *testing.T) {
	t.Parallel()

	root := testutil.NewRoot(t)
	fakeIntegrity := "sha256-AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="
	size := int64(10)
	testutil.AppendEntry(t, root, "k1", bucket.Entry{Key: "k1", Integrity: fakeIntegrity, Time: 1, Size: &size})

	stats, err := Verify(context.Background(), root, Options{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.MissingContent)
	assert.Equal(t, int64(1), stats.RejectedEntries)
	assert.Equal(t, int64(0), stats.BadContentCount)
}

// TestVerifyAbortsOnUnknownStatError injects a blobFS whose stat fails
// with an error unrelated to a missing file. That must abort the whole
// run rather than be folded into MissingContent, since an unreadable
// content store says nothing about whether the blob actually exists.
func TestVerifyAbortsOnUnknownStatError(t *testing.T) {
	t.Parallel()

	root := testutil.NewRoot(t)
	integrity := testutil.PutContent(t, root, []byte("payload"))
	size := int64(len("payload"))
	testutil.AppendEntry(t, root, "k1", bucket.Entry{Key: "k1", Integrity: integrity, Time: 1, Size: &size})

	ro := testResolvedOptions()
	ro.fs = fakeBlobFS{statErr: errFakeUnexpected}

	_, err := verify(context.Background(), root, ro)
	require.Error(t, err)
	assert.ErrorIs(t, err, errFakeUnexpected)
}

// TestVerifyAbortsOnUnknownIntegrityError injects an integrityChecker
// that fails with an error kind other than digest.ErrMismatch, which
// must abort the run instead of being treated as a rejected entry.
func TestVerifyAbortsOnUnknownIntegrityError(t *testing.T) {
	t.Parallel()

	root := testutil.NewRoot(t)
	integrity := testutil.PutContent(t, root, []byte("payload"))
	size := int64(len("payload"))
	testutil.AppendEntry(t, root, "k1", bucket.Entry{Key: "k1", Integrity: integrity, Time: 1, Size: &size})

	ro := testResolvedOptions()
	ro.integrity = fakeIntegrityChecker{err: errFakeUnexpected}

	_, err := verify(context.Background(), root, ro)
	require.Error(t, err)
	assert.ErrorIs(t, err, errFakeUnexpected)
}

// TestVerifyAbortsOnBucketRewriteFailure injects a bucketWriter that
// fails after content validation has already succeeded for every record
// in the bucket, confirming the failure still propagates as fatal rather
// than being swallowed once verification itself is done.
func TestVerifyAbortsOnBucketRewriteFailure(t *testing.T) {
	t.Parallel()

	root := testutil.NewRoot(t)
	integrity := testutil.PutContent(t, root, []byte("payload"))
	size := int64(len("payload"))
	testutil.AppendEntry(t, root, "k1", bucket.Entry{Key: "k1", Integrity: integrity, Time: 1, Size: &size})

	ro := testResolvedOptions()
	ro.bucketWriter = fakeBucketWriter{err: errFakeUnexpected}

	_, err := verify(context.Background(), root, ro)
	require.Error(t, err)
	assert.ErrorIs(t, err, errFakeUnexpected)
}
