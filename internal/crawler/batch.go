package crawler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/wavecrawl/internal/model"
	"golang.org/x/sync/errgroup"
)

// BatchRunner crawls multiple seeds concurrently, each as a full
// independent crawl with its own registry and time-box.
//
// Design decision: We run whole crawls concurrently rather than merging
// seeds into one crawl because:
//  1. Each seed gets its own depth labels and termination reason
//  2. Seeds sharing a host still share the fetcher's rate limiter, so
//     batching never crawls a host harder than a single run would
//  3. One misbehaving seed cannot time-box the others out
type BatchRunner struct {
	// scheduler runs the individual crawls. A Scheduler keeps all
	// per-crawl state local, so sharing one across goroutines is safe.
	scheduler *Scheduler

	// concurrency is the maximum number of crawls in flight.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	mu sync.Mutex
}

// BatchOption configures a BatchRunner.
type BatchOption func(*BatchRunner)

// WithBatchLogger sets a custom logger for batch-level progress.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchRunner) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithBatchConcurrency sets the maximum number of concurrent crawls.
// Default is 5 if not specified.
func WithBatchConcurrency(n int) BatchOption {
	return func(b *BatchRunner) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchRunner creates a BatchRunner on top of an existing Scheduler.
func NewBatchRunner(scheduler *Scheduler, opts ...BatchOption) (*BatchRunner, error) {
	if scheduler == nil {
		return nil, ErrNilScheduler
	}

	b := &BatchRunner{
		scheduler:   scheduler,
		concurrency: 5,
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.logger == nil {
		b.logger = slog.Default()
	}

	return b, nil
}

// Run crawls every seed and returns the reports aligned with the seeds
// by index. A nil entry means that seed was rejected before crawling
// (the reason is logged); a crawl cancelled mid-flight still leaves its
// partial report in place.
//
// The error return reflects batch-level cancellation only. Individual
// crawl failures never abort the other seeds.
func (b *BatchRunner) Run(ctx context.Context, seeds []string) ([]*model.CrawlReport, error) {
	reports := make([]*model.CrawlReport, len(seeds))

	err := b.RunWithCallback(ctx, seeds, func(report *model.CrawlReport, index int) {
		b.mu.Lock()
		reports[index] = report
		b.mu.Unlock()
	})

	return reports, err
}

// RunWithCallback crawls every seed and calls the callback as each
// crawl finishes, which lets callers persist or print reports while
// later crawls are still running. The report passed to the callback is
// nil when the seed was rejected before crawling.
//
// The callback runs on the goroutine that finished the crawl; it must
// be safe to call concurrently.
func (b *BatchRunner) RunWithCallback(ctx context.Context, seeds []string, callback func(report *model.CrawlReport, index int)) error {
	b.logger.Info("starting batch crawl",
		"total_seeds", len(seeds),
		"concurrency", b.concurrency,
	)

	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, seed := range seeds {
		g.Go(func() error {
			// Check for cancellation before starting
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			b.logger.Info("crawling seed",
				"seed", seed,
				"index", i+1,
				"total", len(seeds),
			)

			report, err := b.scheduler.Crawl(ctx, seed)

			// Deliver the report regardless of error; a cancelled
			// crawl still produced a partial report worth keeping.
			callback(report, i)

			if err != nil {
				// A context error is batch-level cancellation, not a
				// bad seed; propagating it stops the dispatch loop.
				if ctx.Err() != nil {
					return err
				}
				b.logger.Warn("crawl rejected",
					"seed", seed,
					"error", err,
				)
				// Don't return the error to the group - one bad seed
				// must not cancel the others.
				return nil
			}

			b.logger.Info("crawl completed",
				"seed", seed,
				"pages", report.PagesCrawled(),
				"termination", report.Termination,
			)

			return nil
		})
	}

	err := g.Wait()

	b.logger.Info("batch crawl complete",
		"total_seeds", len(seeds),
		"elapsed", time.Since(startTime),
	)

	return err
}
