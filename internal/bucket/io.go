package bucket

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/casdepot/cas/internal/fsutil"
)

// ReadFile reads a bucket file and splits it into candidate records.
// Lines that fail ParseLine (torn or corrupted) are silently omitted:
// that is the bucket format's contract, not an error condition. A missing
// bucket file is reported as a zero-length, nil-error result.
func ReadFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is derived from a key hash, not user input
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	lines := bytes.Split(data, []byte("\n"))
	records := make([]Record, 0, len(lines))
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		rec, ok := ParseLine(line)
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// WriteFile rewrites a bucket file to contain exactly the given records,
// via write-to-temp-then-rename so concurrent readers never observe a
// partially written bucket. tmpDir is the cache's scratch directory.
// An empty records slice deletes the bucket file instead of leaving an
// empty one behind.
func WriteFile(path, tmpDir string, records []Record) error {
	if len(records) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	for _, r := range records {
		buf.Write(FormatRecord(r))
	}
	tmp, tmpPath, err := createTemp(tmpDir, "bucket-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func createTemp(dir, pattern string) (*os.File, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", err
	}
	for tries := 0; tries < 10000; tries++ {
		var randBytes [8]byte
		if _, err := rand.Read(randBytes[:]); err != nil {
			return nil, "", err
		}
		name := pattern[:len(pattern)-1] + hex.EncodeToString(randBytes[:])
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		return f, path, nil
	}
	return nil, "", errors.New("bucket: failed to create temp file")
}

// Enumerate walks the index tree and returns every bucket file path.
// Non-file children (directories) are descended into; anything else is
// skipped.
func Enumerate(root string) ([]string, error) {
	base := dirName(root)
	var paths []string
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return paths, nil
}

// PruneEmptyDirs removes empty directories under the index tree,
// bottom-up, leaving the index tree's own root directory in place.
func PruneEmptyDirs(root string) error {
	return fsutil.PruneEmptyDirs(dirName(root))
}
