// Command cacheverify runs a single verification and garbage-collection
// pass against a content-addressed cache root.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/casdepot/cas"
)

type config struct {
	root        string
	concurrency int
	maxAge      time.Duration
	verbose     bool
	statsJSON   bool
}

func main() {
	cfg := parseFlags()

	level := slog.LevelWarn
	if cfg.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []cas.VerifyOption{
		cas.WithConcurrency(cfg.concurrency),
		cas.WithLogger(logger),
	}
	if cfg.maxAge > 0 {
		cutoff := time.Now().Add(-cfg.maxAge).UnixMilli()
		opts = append(opts, cas.WithFilter(func(e cas.Entry) bool {
			return e.Time >= cutoff
		}))
	}

	stats, err := cas.Verify(ctx, cfg.root, opts...)
	if err != nil {
		log.Fatalf("verify failed: %v", err)
	}

	if cfg.statsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(stats); err != nil {
			log.Fatalf("encode stats: %v", err)
		}
		return
	}

	fmt.Printf("total entries:    %d\n", stats.TotalEntries)
	fmt.Printf("verified content: %d\n", stats.VerifiedContent)
	fmt.Printf("kept size:        %d bytes\n", stats.KeptSize)
	fmt.Printf("bad content:      %d\n", stats.BadContentCount)
	fmt.Printf("missing content:  %d\n", stats.MissingContent)
	fmt.Printf("rejected entries: %d\n", stats.RejectedEntries)
	fmt.Printf("reclaimed:        %d blobs, %d bytes\n", stats.ReclaimedCount, stats.ReclaimedSize)
	fmt.Printf("run time:         %dms\n", stats.RunTime)
}

func parseFlags() config {
	var cfg config
	flag.StringVar(&cfg.root, "root", "", "cache root directory (required)")
	flag.IntVar(&cfg.concurrency, "concurrency", cas.DefaultConcurrency, "max concurrent integrity checks")
	flag.DurationVar(&cfg.maxAge, "max-age", 0, "drop entries older than this during rebuild (0 disables)")
	flag.BoolVar(&cfg.verbose, "verbose", false, "log debug-level phase progress")
	flag.BoolVar(&cfg.statsJSON, "json", false, "print stats as JSON instead of a summary")
	flag.Parse()

	if cfg.root == "" {
		fmt.Fprintln(os.Stderr, "cacheverify: -root is required")
		flag.Usage()
		os.Exit(2)
	}
	return cfg
}
