package engine

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

const lastVerifiedName = "_lastverified"

// writeLastVerified persists endTime (epoch milliseconds) to the cache
// root's marker file, atomically via write-to-temp-then-rename under
// tmp/.
func writeLastVerified(root string, endTime int64) error {
	tmpDir := filepath.Join(root, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return err
	}
	tmp, tmpPath, err := createTempFile(tmpDir, "lastverified-")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(strconv.FormatInt(endTime, 10)); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, filepath.Join(root, lastVerifiedName)); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// LastRun reads and parses the last-verified marker. ok is false, with a
// nil error, when the marker does not exist.
func LastRun(root string) (timestamp int64, ok bool, err error) {
	data, err := os.ReadFile(filepath.Join(root, lastVerifiedName)) //nolint:gosec // fixed filename under a caller-provided cache root
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, false, nil
		}
		return 0, false, err
	}
	ts, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, false, err
	}
	return ts, true, nil
}

func createTempFile(dir, prefix string) (*os.File, string, error) {
	for tries := 0; tries < 10000; tries++ {
		var randBytes [8]byte
		if _, err := rand.Read(randBytes[:]); err != nil {
			return nil, "", err
		}
		path := filepath.Join(dir, prefix+hex.EncodeToString(randBytes[:]))
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		return f, path, nil
	}
	return nil, "", errors.New("engine: failed to create temp file")
}
