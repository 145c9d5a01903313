// Package digest parses and verifies the self-describing integrity strings
// used to identify content-store blobs.
//
// A digest string names one algorithm and a base64-encoded sum, with an
// optional trailing options suffix, mirroring the shape of Subresource
// Integrity values: "<algo>-<base64>[?<options>]". An entry's integrity
// field may list more than one digest, space-separated, when the content
// was hashed with multiple algorithms; [Strongest] picks the canonical one.
package digest

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"

	ocidigest "github.com/opencontainers/go-digest"
)

// ErrInvalidDigest is returned when a digest string cannot be parsed.
var ErrInvalidDigest = errors.New("digest: invalid digest string")

// ErrUnsupportedAlgorithm is returned for a well-formed digest whose
// algorithm this package does not implement.
var ErrUnsupportedAlgorithm = errors.New("digest: unsupported algorithm")

// ErrMismatch is returned when streamed content does not match a digest.
var ErrMismatch = errors.New("digest: content does not match integrity value")

// strength ranks algorithms from weakest to strongest. Higher is stronger.
// Order follows the conventional OCI/SRI preference: sha512 over sha384
// over sha256. sha1 is not supported.
var strength = map[ocidigest.Algorithm]int{
	ocidigest.SHA256: 2,
	ocidigest.SHA384: 3,
	ocidigest.SHA512: 4,
}

// algorithmNames maps the short names used in integrity strings onto the
// opencontainers algorithm registry.
var algorithmNames = map[string]ocidigest.Algorithm{
	"sha256": ocidigest.SHA256,
	"sha384": ocidigest.SHA384,
	"sha512": ocidigest.SHA512,
}

// Digest is one parsed "<algo>-<base64>[?<options>]" component.
type Digest struct {
	Algorithm ocidigest.Algorithm
	sum       []byte
	Options   string
}

// Parse parses a single digest component.
func Parse(s string) (Digest, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Digest{}, fmt.Errorf("%w: empty", ErrInvalidDigest)
	}
	name, rest, ok := strings.Cut(s, "-")
	if !ok || name == "" || rest == "" {
		return Digest{}, fmt.Errorf("%w: %q", ErrInvalidDigest, s)
	}
	b64 := rest
	opts := ""
	if idx := strings.IndexByte(rest, '?'); idx >= 0 {
		b64 = rest[:idx]
		opts = rest[idx+1:]
	}
	sum, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return Digest{}, fmt.Errorf("%w: %q: %v", ErrInvalidDigest, s, err)
	}
	algo, ok := algorithmNames[strings.ToLower(name)]
	if !ok || !algo.Available() {
		return Digest{}, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
	}
	return Digest{Algorithm: algo, sum: sum, Options: opts}, nil
}

// ParseList parses a space-separated integrity string into its components.
func ParseList(s string) ([]Digest, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty integrity value", ErrInvalidDigest)
	}
	out := make([]Digest, 0, len(fields))
	for _, f := range fields {
		d, err := Parse(f)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Strongest returns the digest using the strongest supported algorithm
// among a parsed integrity list. It is the canonical identity of the blob
// for content-store path derivation.
func Strongest(digests []Digest) (Digest, error) {
	if len(digests) == 0 {
		return Digest{}, fmt.Errorf("%w: no digests", ErrInvalidDigest)
	}
	best := digests[0]
	for _, d := range digests[1:] {
		if strength[d.Algorithm] > strength[best.Algorithm] {
			best = d
		}
	}
	return best, nil
}

// Hex returns the raw sum encoded as lowercase hex, used as the content-path
// filename tail.
func (d Digest) Hex() string {
	return hex.EncodeToString(d.sum)
}

// Bytes returns the raw decoded sum.
func (d Digest) Bytes() []byte {
	return d.sum
}

// String renders the digest back to its "<algo>-<base64>[?<options>]" form.
func (d Digest) String() string {
	s := string(d.Algorithm) + "-" + base64.StdEncoding.EncodeToString(d.sum)
	if d.Options != "" {
		s += "?" + d.Options
	}
	return s
}

// NewHash returns a fresh hash.Hash for the digest's algorithm.
func (d Digest) NewHash() (hash.Hash, error) {
	if !d.Algorithm.Available() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, d.Algorithm)
	}
	return d.Algorithm.Hash(), nil
}

// VerifyReader streams r through the digest's hash and returns ErrMismatch
// if the computed sum disagrees with d. Any error from r is propagated
// as-is so callers can distinguish I/O failure from a mismatch.
func (d Digest) VerifyReader(r io.Reader) error {
	h, err := d.NewHash()
	if err != nil {
		return err
	}
	if _, err := io.Copy(h, r); err != nil {
		return err
	}
	if !constantTimeEqual(h.Sum(nil), d.sum) {
		return ErrMismatch
	}
	return nil
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}

// FromBytes computes the digest of data for algo, used to build integrity
// strings for freshly inserted content.
func FromBytes(algo ocidigest.Algorithm, data []byte) (Digest, error) {
	if !algo.Available() {
		return Digest{}, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algo)
	}
	sum := algo.FromBytes(data)
	raw, err := hex.DecodeString(sum.Encoded())
	if err != nil {
		return Digest{}, err
	}
	return Digest{Algorithm: algo, sum: raw}, nil
}
