// Package contentstore derives paths into the content-addressed blob store
// beneath a cache root, and stats, opens, deletes and enumerates its blobs.
// Integrity checks are done by callers, not by this package.
//
// Blobs live at content-v<N>/<algo>/<shard>/<shard>/<digest-tail>, sharded
// by the first four hex characters of the digest.
package contentstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	ocidigest "github.com/opencontainers/go-digest"

	"github.com/casdepot/cas/internal/digest"
	"github.com/casdepot/cas/internal/fsutil"
)

// Version is the on-disk layout version for the content store directory.
const Version = 1

const shardLen = 2

// ID identifies a blob by its canonical (strongest) digest, independent of
// the integrity string's base64 encoding or options suffix. It is the key
// used to track which blobs are referenced by the rebuilt index.
type ID struct {
	Algorithm ocidigest.Algorithm
	Hex       string
}

// String renders the ID as "<algo>:<hex>", matching OCI digest notation.
func (id ID) String() string {
	return string(id.Algorithm) + ":" + id.Hex
}

// IDOf returns the canonical content ID for a digest.
func IDOf(d digest.Digest) ID {
	return ID{Algorithm: d.Algorithm, Hex: d.Hex()}
}

func dirName(root string) string {
	return filepath.Join(root, fmt.Sprintf("content-v%d", Version))
}

// Path returns the on-disk path for a blob identified by id.
func Path(root string, id ID) (string, error) {
	if id.Hex == "" {
		return "", errors.New("contentstore: empty digest hex")
	}
	if len(id.Hex) < shardLen*2 {
		return filepath.Join(dirName(root), string(id.Algorithm), id.Hex), nil
	}
	return filepath.Join(dirName(root), string(id.Algorithm), id.Hex[:shardLen], id.Hex[shardLen:shardLen*2], id.Hex), nil
}

// Stat returns the size of the blob for id. It returns fs.ErrNotExist
// (wrapped) when the blob is absent, and any other stat error unwrapped.
func Stat(root string, id ID) (int64, error) {
	path, err := Path(root, id)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Delete removes the blob for id. Deleting an already-absent blob is not
// an error.
func Delete(root string, id ID) error {
	path, err := Path(root, id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Open opens the blob for id for reading.
func Open(root string, id ID) (*os.File, error) {
	path, err := Path(root, id)
	if err != nil {
		return nil, err
	}
	return os.Open(path) //nolint:gosec // path is derived from a digest, not user input
}

// Blob describes one file discovered while enumerating the content store.
type Blob struct {
	ID   ID
	Path string
	Size int64
}

// Enumerate walks the content store and returns every regular file found,
// with its content ID derived from its path (the inverse of [Path]).
// Files whose path does not parse as "<algo>/<shard>/<shard>/<hex>" are
// skipped rather than treated as an error: they are not blobs this store
// wrote.
func Enumerate(root string) ([]Blob, error) {
	base := dirName(root)
	var blobs []Blob
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
		id, ok := idFromPath(base, path)
		if !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		blobs = append(blobs, Blob{ID: id, Path: path, Size: info.Size()})
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return blobs, nil
}

// idFromPath inverts Path: base/<algo>/<shard1>/<shard2>/<hex> or
// base/<algo>/<hex> for digests shorter than two shard levels.
func idFromPath(base, path string) (ID, bool) {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return ID{}, false
	}
	parts := strings.Split(rel, string(filepath.Separator))
	switch len(parts) {
	case 2:
		return ID{Algorithm: ocidigest.Algorithm(parts[0]), Hex: parts[1]}, true
	case 4:
		hexHash := parts[3]
		if !strings.HasPrefix(hexHash, parts[1]) || !strings.HasPrefix(hexHash[shardLen:], parts[2]) {
			return ID{}, false
		}
		return ID{Algorithm: ocidigest.Algorithm(parts[0]), Hex: hexHash}, true
	default:
		return ID{}, false
	}
}

// PruneEmptyDirs removes empty directories under the content store,
// bottom-up, leaving the content store's own root directory in place.
func PruneEmptyDirs(root string) error {
	return fsutil.PruneEmptyDirs(dirName(root))
}
