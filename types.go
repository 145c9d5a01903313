package cas

import (
	"github.com/casdepot/cas/internal/bucket"
	"github.com/casdepot/cas/internal/engine"
)

// --- Re-exports from internal/bucket ---

// Entry is a single key-to-digest mapping recorded in an index bucket.
type Entry = bucket.Entry

// --- Re-exports from internal/engine ---

// Stats is the accounting record returned by a completed Verify run.
type Stats = engine.Stats

// Filter is called once per parsed bucket entry during RebuildIndex. A
// falsy return removes the entry from the rebuilt index.
type Filter = engine.Filter

// DefaultConcurrency bounds parallel integrity checks when no
// WithConcurrency option is given.
const DefaultConcurrency = engine.DefaultConcurrency
