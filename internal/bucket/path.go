package bucket

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
)

// Version is the on-disk layout version for the index directory.
const Version = 1

const shardLen = 2

// HashKeyFunc computes the stable hash used to derive a key's bucket path.
// It is a package variable, rather than a plain function, so tests can
// force a constant value and exercise hash-collision handling without
// needing to find two keys that actually collide under SHA-256.
var HashKeyFunc = defaultHashKey

func defaultHashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// HashKey returns the stable hash used in bucket path derivation.
func HashKey(key string) string {
	return HashKeyFunc(key)
}

func dirName(root string) string {
	return filepath.Join(root, fmt.Sprintf("index-v%d", Version))
}

// Path returns the bucket file path for key: index-v1/<shard>/<shard>/<hash>.
func Path(root, key string) string {
	h := HashKey(key)
	if len(h) < shardLen*2 {
		return filepath.Join(dirName(root), h)
	}
	return filepath.Join(dirName(root), h[:shardLen], h[shardLen:shardLen*2], h)
}
