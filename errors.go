package cas

import (
	"github.com/casdepot/cas/internal/digest"
	"github.com/casdepot/cas/internal/engine"
)

// Errors re-exported from internal/engine.
var (
	// ErrCacheRootUnusable is returned when the cache root cannot be
	// created or accessed at all: Verify cannot even begin.
	ErrCacheRootUnusable = engine.ErrCacheRootUnusable
)

// Errors re-exported from internal/digest.
var (
	// ErrInvalidDigest is returned when an entry's integrity string
	// cannot be parsed.
	ErrInvalidDigest = digest.ErrInvalidDigest

	// ErrUnsupportedAlgorithm is returned for a well-formed digest whose
	// algorithm this module does not implement.
	ErrUnsupportedAlgorithm = digest.ErrUnsupportedAlgorithm

	// ErrMismatch is returned when streamed content does not match its
	// declared digest.
	ErrMismatch = digest.ErrMismatch
)
