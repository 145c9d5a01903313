// Package fsutil holds small filesystem helpers shared across the cache's
// index, content-store, and tmp-scratch bookkeeping.
package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// PruneEmptyDirs removes empty directories under base, bottom-up, leaving
// base itself in place even if it ends up empty.
func PruneEmptyDirs(base string) error {
	return pruneBottomUp(base, base)
}

func pruneBottomUp(dir, keep string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := pruneBottomUp(filepath.Join(dir, e.Name()), keep); err != nil {
				return err
			}
		}
	}
	if dir == keep {
		return nil
	}
	entries, err = os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(entries) == 0 {
		if err := os.Remove(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}
