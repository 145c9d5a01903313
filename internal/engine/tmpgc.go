package engine

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// gcTmp removes every direct child of the cache's scratch directory. A
// missing tmp/ is not an error: it is created (then left empty) so later
// phases that write through it have somewhere to do so.
func gcTmp(root string) error {
	dir := filepath.Join(root, "tmp")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return os.MkdirAll(dir, 0o755)
		}
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
