package cas

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreInsertGetPutList(t *testing.T) {
	t.Parallel()

	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	integrity, err := s.Insert([]byte("hello world"))
	require.NoError(t, err)
	require.NotEmpty(t, integrity)

	r, err := s.Get(integrity)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, s.Put("greeting", integrity, int64(len("hello world")), nil))

	entries, err := s.List("greeting")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "greeting", entries[0].Key)
	assert.Equal(t, integrity, entries[0].Integrity)
}

func TestStoreInsertIsIdempotent(t *testing.T) {
	t.Parallel()

	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	i1, err := s.Insert([]byte("same content"))
	require.NoError(t, err)
	i2, err := s.Insert([]byte("same content"))
	require.NoError(t, err)
	assert.Equal(t, i1, i2)
}

func TestNewStoreRejectsEmptyDir(t *testing.T) {
	t.Parallel()

	_, err := NewStore("")
	require.Error(t, err)
}

func TestVerifyEndToEndThroughStore(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	s, err := NewStore(root)
	require.NoError(t, err)

	integrity, err := s.Insert([]byte("tracked content"))
	require.NoError(t, err)
	require.NoError(t, s.Put("k1", integrity, int64(len("tracked content")), nil))

	orphan, err := s.Insert([]byte("orphaned content"))
	require.NoError(t, err)

	stats, err := Verify(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalEntries)
	assert.Equal(t, int64(1), stats.ReclaimedCount)

	_, err = s.Get(orphan)
	assert.Error(t, err)

	ts, ok, err := LastRun(root)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stats.EndTime, ts)
}

func TestVerifyWithFilterAndConcurrencyOptions(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	s, err := NewStore(root)
	require.NoError(t, err)

	integrity, err := s.Insert([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, s.Put("k1", integrity, int64(len("payload")), nil))

	stats, err := Verify(context.Background(), root,
		WithConcurrency(4),
		WithFilter(func(Entry) bool { return false }),
	)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalEntries)
	assert.Equal(t, int64(1), stats.RejectedEntries)
}
