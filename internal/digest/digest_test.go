package digest

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	ocidigest "github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	t.Parallel()

	d, err := FromBytes(ocidigest.SHA256, []byte("hello"))
	require.NoError(t, err)

	s := d.String()
	parsed, err := Parse(s)
	require.NoError(t, err)
	assert.Equal(t, d.Algorithm, parsed.Algorithm)
	assert.Equal(t, d.Hex(), parsed.Hex())
}

func TestParseWithOptions(t *testing.T) {
	t.Parallel()

	d, err := FromBytes(ocidigest.SHA256, []byte("hello"))
	require.NoError(t, err)

	withOpts := d.String() + "?foo=bar"
	parsed, err := Parse(withOpts)
	require.NoError(t, err)
	assert.Equal(t, "foo=bar", parsed.Options)
	assert.Equal(t, d.Hex(), parsed.Hex())
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "nodash", "sha256-", "-abc", "unknown-AAAA"} {
		_, err := Parse(s)
		require.Error(t, err, s)
	}
}

func TestParseListAndStrongest(t *testing.T) {
	t.Parallel()

	weak, err := FromBytes(ocidigest.SHA256, []byte("x"))
	require.NoError(t, err)
	strong, err := FromBytes(ocidigest.SHA512, []byte("x"))
	require.NoError(t, err)

	list, err := ParseList(weak.String() + " " + strong.String())
	require.NoError(t, err)
	require.Len(t, list, 2)

	best, err := Strongest(list)
	require.NoError(t, err)
	assert.Equal(t, ocidigest.SHA512, best.Algorithm)
}

func TestStrongestEmpty(t *testing.T) {
	t.Parallel()

	_, err := Strongest(nil)
	require.ErrorIs(t, err, ErrInvalidDigest)
}

func TestVerifyReaderMatch(t *testing.T) {
	t.Parallel()

	content := []byte("the quick brown fox")
	d, err := FromBytes(ocidigest.SHA256, content)
	require.NoError(t, err)

	require.NoError(t, d.VerifyReader(bytes.NewReader(content)))
}

func TestVerifyReaderMismatch(t *testing.T) {
	t.Parallel()

	d, err := FromBytes(ocidigest.SHA256, []byte("expected"))
	require.NoError(t, err)

	err = d.VerifyReader(bytes.NewReader([]byte("actual")))
	require.ErrorIs(t, err, ErrMismatch)
}

func TestVerifyReaderPropagatesReadError(t *testing.T) {
	t.Parallel()

	d, err := FromBytes(ocidigest.SHA256, []byte("x"))
	require.NoError(t, err)

	err = d.VerifyReader(errReader{})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrMismatch)
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errBoom }

var errBoom = errors.New("boom")

func TestUnsupportedAlgorithm(t *testing.T) {
	t.Parallel()

	_, err := Parse("sha1-" + strings.Repeat("A", 8))
	require.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}
