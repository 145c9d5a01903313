package cas

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	ocidigest "github.com/opencontainers/go-digest"

	"github.com/casdepot/cas/internal/bucket"
	"github.com/casdepot/cas/internal/contentstore"
	"github.com/casdepot/cas/internal/digest"
)

// Store is the minimal collaborator for populating a cache root: writing
// content-addressed blobs and appending the bucket entries that name
// them. Verify reads what Store writes; Store does not itself verify
// anything already on disk.
type Store struct {
	root string
}

// NewStore returns a Store rooted at dir, creating the directory tree if
// it does not already exist.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("cas: store root is empty")
	}
	for _, sub := range []string{
		fmt.Sprintf("content-v%d", contentstore.Version),
		fmt.Sprintf("index-v%d", bucket.Version),
		"tmp",
	} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, err
		}
	}
	return &Store{root: dir}, nil
}

// Insert stores content in the content-addressed blob store under its
// SHA-256 digest, returning the integrity string to record against the
// key that references it. Inserting content already present is a no-op.
func (s *Store) Insert(content []byte) (string, error) {
	d, err := digest.FromBytes(ocidigest.SHA256, content)
	if err != nil {
		return "", err
	}
	id := contentstore.IDOf(d)
	path, err := contentstore.Path(s.root, id)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil {
		return d.String(), nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, "insert-*")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}
	return d.String(), nil
}

// Get opens a stored blob for reading by its integrity string, choosing
// whichever listed digest this module recognizes as canonical.
func (s *Store) Get(integrity string) (io.ReadCloser, error) {
	digests, err := digest.ParseList(integrity)
	if err != nil {
		return nil, err
	}
	d, err := digest.Strongest(digests)
	if err != nil {
		return nil, err
	}
	return contentstore.Open(s.root, contentstore.IDOf(d))
}

// Put appends a bucket entry mapping key to integrity, timestamped with
// the current wall-clock time. A later Put for the same key does not
// remove the earlier one; RebuildIndex resolves the duplicate by keeping
// whichever has the greatest Time.
func (s *Store) Put(key, integrity string, size int64, metadata json.RawMessage) error {
	entry := bucket.Entry{
		Key:       key,
		Integrity: integrity,
		Time:      time.Now().UnixMilli(),
		Metadata:  metadata,
		Size:      &size,
	}
	payload, err := bucket.EncodePayload(entry)
	if err != nil {
		return err
	}
	rec := bucket.NewRecord(payload)

	path := bucket.Path(s.root, key)
	existing, err := bucket.ReadFile(path)
	if err != nil {
		return err
	}
	records := append(existing, rec)
	return bucket.WriteFile(path, filepath.Join(s.root, "tmp"), records)
}

// List returns every entry currently recorded for key, in the order the
// bucket file holds them (oldest first). RebuildIndex, not List, is
// responsible for resolving duplicates.
func (s *Store) List(key string) ([]Entry, error) {
	path := bucket.Path(s.root, key)
	records, err := bucket.ReadFile(path)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(records))
	for _, rec := range records {
		entry, err := bucket.DecodeEntry(rec.Payload)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
