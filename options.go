package cas

import "log/slog"

// VerifyOption configures a Verify run.
type VerifyOption func(*engineOptions)

// WithFilter sets the predicate used to drop bucket entries while
// rebuilding the index. Filter is called synchronously from multiple
// goroutines and must be safe for concurrent use.
func WithFilter(f Filter) VerifyOption {
	return func(o *engineOptions) { o.Filter = f }
}

// WithConcurrency bounds how many buckets (and, separately, how many
// content-store blobs) are processed in parallel. Values <= 0 fall back
// to DefaultConcurrency.
func WithConcurrency(n int) VerifyOption {
	return func(o *engineOptions) { o.Concurrency = n }
}

// WithLogger sets the structured logger Verify reports phase progress
// to. The default discards all output.
func WithLogger(log *slog.Logger) VerifyOption {
	return func(o *engineOptions) { o.Logger = log }
}
