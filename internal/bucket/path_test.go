package bucket

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathShardsByHashPrefix(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	key := "some-key"
	h := HashKey(key)

	got := Path(root, key)
	want := filepath.Join(root, "index-v1", h[:2], h[2:4], h)
	assert.Equal(t, want, got)
}

func TestHashKeyFuncOverrideForcesCollision(t *testing.T) {
	old := HashKeyFunc
	defer func() { HashKeyFunc = old }()
	HashKeyFunc = func(string) string { return "fixedvalueforcollisiontests00" }

	p1 := Path(t.TempDir(), "alpha")
	p2 := Path(t.TempDir(), "beta")
	assert.Equal(t, filepath.Base(p1), filepath.Base(p2))
}
