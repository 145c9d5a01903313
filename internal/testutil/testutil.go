// Package testutil provides cache-root fixtures shared by the engine,
// bucket, and contentstore test suites.
package testutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	ocidigest "github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/require"

	"github.com/casdepot/cas/internal/bucket"
	"github.com/casdepot/cas/internal/contentstore"
	"github.com/casdepot/cas/internal/digest"
)

// NewRoot creates an empty cache root under t.TempDir with the standard
// index/content/tmp subdirectories already present.
func NewRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, sub := range []string{
		fmt.Sprintf("index-v%d", bucket.Version),
		fmt.Sprintf("content-v%d", contentstore.Version),
		"tmp",
	} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, sub), 0o755))
	}
	return root
}

// PutContent writes data into the content store at root under its
// SHA-256 digest and returns the integrity string for it.
func PutContent(t *testing.T, root string, data []byte) string {
	t.Helper()
	d, err := digest.FromBytes(ocidigest.SHA256, data)
	require.NoError(t, err)
	id := contentstore.IDOf(d)
	path, err := contentstore.Path(root, id)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return d.String()
}

// ContentPath returns the path content with the given integrity string
// would live at under root, without requiring it to exist.
func ContentPath(t *testing.T, root, integrity string) string {
	t.Helper()
	digests, err := digest.ParseList(integrity)
	require.NoError(t, err)
	d, err := digest.Strongest(digests)
	require.NoError(t, err)
	path, err := contentstore.Path(root, contentstore.IDOf(d))
	require.NoError(t, err)
	return path
}

// AppendEntry appends a raw bucket record for entry to key's bucket file
// at root, bypassing Store so tests can construct malformed or
// out-of-order records directly.
func AppendEntry(t *testing.T, root, key string, entry bucket.Entry) {
	t.Helper()
	payload, err := bucket.EncodePayload(entry)
	require.NoError(t, err)
	AppendRawPayload(t, root, key, payload)
}

// AppendRawPayload appends a record computed over an arbitrary payload,
// letting tests exercise bucket entries that aren't valid Entry JSON.
func AppendRawPayload(t *testing.T, root, key string, payload []byte) {
	t.Helper()
	rec := bucket.NewRecord(payload)
	path := bucket.Path(root, key)
	existing, err := bucket.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, bucket.WriteFile(path, filepath.Join(root, "tmp"), append(existing, rec)))
}

// AppendCorruptLine appends a line to key's bucket file that will fail
// ParseLine's checksum check, simulating a torn or corrupted write.
func AppendCorruptLine(t *testing.T, root, key string, line string) {
	t.Helper()
	path := bucket.Path(root, key)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString("\n" + line)
	require.NoError(t, err)
}

// ReadEntries decodes every valid entry currently in key's bucket file.
func ReadEntries(t *testing.T, root, key string) []bucket.Entry {
	t.Helper()
	path := bucket.Path(root, key)
	records, err := bucket.ReadFile(path)
	require.NoError(t, err)
	entries := make([]bucket.Entry, 0, len(records))
	for _, rec := range records {
		var e bucket.Entry
		require.NoError(t, json.Unmarshal(rec.Payload, &e))
		entries = append(entries, e)
	}
	return entries
}

// ContentExists reports whether a blob with the given integrity string
// is still present in the content store at root.
func ContentExists(t *testing.T, root, integrity string) bool {
	t.Helper()
	_, err := os.Stat(ContentPath(t, root, integrity))
	return err == nil
}
