package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/wavecrawl/internal/model"
	"golang.org/x/sync/errgroup"
)

// Scheduler defaults, chosen to finish a polite crawl of a small site
// in about a minute.
const (
	defaultMaxDepth    = 2
	defaultTimeLimit   = 60 * time.Second
	defaultWorkers     = 10
	defaultGracePeriod = 10 * time.Second
)

// Scheduler runs wave-synchronized breadth-first crawls. It is
// immutable after construction; all per-crawl state lives inside Crawl,
// so a single Scheduler can serve many crawls, sequentially or
// concurrently.
type Scheduler struct {
	// fetcher retrieves pages.
	fetcher Fetcher

	// analyzer turns page text into word frequencies.
	analyzer Analyzer

	// maxDepth bounds the crawl's link distance from the seed.
	// Both 0 and 1 crawl exactly the seed wave; the bound is checked
	// after each wave, and the seed wave always runs.
	maxDepth int

	// timeLimit is the crawl's wall-clock budget. Zero means the seed
	// wave runs without a deadline and the crawl stops at the first
	// wave boundary.
	timeLimit time.Duration

	// workers is the task pool size within a wave.
	workers int

	// maxPages stops the crawl once at least this many pages have been
	// collected, checked at wave boundaries. Zero disables the bound.
	maxPages int

	// retry controls per-URL retry of transient fetch failures.
	retry RetryPolicy

	// grace is how long to wait for in-flight fetches to unwind after
	// the time-box fires before abandoning them.
	grace time.Duration

	// logger records crawl progress.
	logger *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMaxDepth bounds the crawl's link distance from the seed.
// Both 0 and 1 crawl exactly the seed page's wave; 2 adds the pages the
// seed links to, and so on.
func WithMaxDepth(depth int) Option {
	return func(s *Scheduler) {
		s.maxDepth = depth
	}
}

// WithTimeLimit sets the crawl's wall-clock budget. In-flight waves are
// cancelled when it fires; the pages collected so far form the report.
// Zero is not unlimited: the seed wave runs without a deadline and the
// crawl then stops, reported as timed out.
func WithTimeLimit(d time.Duration) Option {
	return func(s *Scheduler) {
		s.timeLimit = d
	}
}

// WithWorkers sets how many fetches run concurrently within a wave.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		s.workers = n
	}
}

// WithMaxPages stops the crawl once at least n pages have been
// collected, checked at wave boundaries so a wave is never cut in half.
// Zero disables the bound.
func WithMaxPages(n int) Option {
	return func(s *Scheduler) {
		s.maxPages = n
	}
}

// WithRetryPolicy sets the per-URL retry policy for transient fetch
// failures.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Scheduler) {
		s.retry = p
	}
}

// WithGracePeriod sets how long the scheduler waits for in-flight
// fetches to unwind after cancellation before abandoning them.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Scheduler) {
		s.grace = d
	}
}

// WithLogger sets the logger for crawl progress and fetch failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScheduler creates a Scheduler around the given fetcher and
// analyzer.
//
// Design decision: We require the collaborators as arguments rather
// than options because:
//  1. A scheduler without them is useless; options imply optional
//  2. Tests swap in stubs through the same door production uses
//  3. The fetcher package stays a dependency of the caller, not of
//     this package
func NewScheduler(fetcher Fetcher, analyzer Analyzer, opts ...Option) (*Scheduler, error) {
	if fetcher == nil {
		return nil, ErrNilFetcher
	}
	if analyzer == nil {
		return nil, ErrNilAnalyzer
	}

	s := &Scheduler{
		fetcher:   fetcher,
		analyzer:  analyzer,
		maxDepth:  defaultMaxDepth,
		timeLimit: defaultTimeLimit,
		workers:   defaultWorkers,
		retry:     DefaultRetryPolicy,
		grace:     defaultGracePeriod,
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := s.validate(); err != nil {
		return nil, err
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s, nil
}

// validate rejects settings that could never crawl correctly. Checks
// run in a fixed order and the first failure wins, so callers see one
// actionable error at a time.
func (s *Scheduler) validate() error {
	if s.maxDepth < 0 {
		return ErrInvalidDepth
	}
	if s.timeLimit < 0 {
		return ErrInvalidTimeLimit
	}
	if s.workers < 1 {
		return ErrInvalidWorkers
	}
	if s.maxPages < 0 {
		return ErrInvalidMaxPages
	}
	if s.retry.MaxAttempts < 1 || s.retry.BaseDelay < 0 {
		return ErrInvalidRetryPolicy
	}
	if s.grace <= 0 {
		return ErrInvalidGracePeriod
	}
	return nil
}

// Crawl explores the page graph reachable from seedURL, wave by wave,
// and returns a report of per-page word frequencies.
//
// The returned error is non-nil only for an invalid seed or external
// cancellation; the time-box firing is an expected termination recorded
// in the report, not an error. On cancellation the partial report is
// returned alongside the context's error.
func (s *Scheduler) Crawl(ctx context.Context, seedURL string) (*model.CrawlReport, error) {
	seed, err := NormalizeSeed(seedURL)
	if err != nil {
		return nil, err
	}

	report := &model.CrawlReport{
		RunID:     uuid.NewString(),
		Seed:      seed,
		MaxDepth:  s.maxDepth,
		TimeLimit: s.timeLimit,
		Workers:   s.workers,
		StartedAt: time.Now(),
	}

	// Per-crawl state is all local; nothing survives between runs.
	registry := NewRegistry()
	pages := make([]*model.PageWords, 0)
	var failed atomic.Int64

	// Arm the time-box. The deadline context covers every wave and
	// every in-task backoff sleep.
	crawlCtx := ctx
	if s.timeLimit > 0 {
		var cancel context.CancelFunc
		crawlCtx, cancel = context.WithTimeout(ctx, s.timeLimit)
		defer cancel()
	}

	s.logger.Info("starting crawl",
		"run_id", report.RunID,
		"seed", seed,
		"max_depth", s.maxDepth,
		"time_limit", s.timeLimit,
		"workers", s.workers)

	registry.Register(seed)
	current := []string{seed}
	depth := 0

	finish := func(termination model.Termination) *model.CrawlReport {
		report.Pages = pages
		report.FailedFetches = int(failed.Load())
		report.Termination = termination
		report.FinishedAt = time.Now()

		stats := registry.Stats()
		s.logger.Info("crawl finished",
			"run_id", report.RunID,
			"termination", termination,
			"depth_reached", report.DepthReached,
			"pages", len(pages),
			"failed_fetches", report.FailedFetches,
			"urls_seen", stats.Known,
			"duration", report.Duration())

		return report
	}

	for {
		next := newLinkBuffer()
		results := newResultBuffer()

		s.logger.Debug("starting wave", "run_id", report.RunID, "depth", depth, "urls", len(current))
		s.runWave(crawlCtx, current, registry, next, results, &failed)

		// Draining seals both buffers; anything a straggler writes
		// from here on is dropped. Depth is stamped now because tasks
		// never know which wave they ran in.
		for _, page := range results.drain() {
			page.Depth = depth
			pages = append(pages, page)
		}
		discovered := next.drain()
		report.DepthReached = depth

		// Exactly one reason stops a crawl, decided here in priority
		// order: external cancellation, the time-box, the depth bound,
		// the page budget, quiescence.
		switch {
		case ctx.Err() != nil:
			return finish(model.TerminationCanceled), ctx.Err()
		case s.timeLimit == 0 || crawlCtx.Err() != nil:
			return finish(model.TerminationTimedOut), nil
		case depth+1 >= s.maxDepth:
			return finish(model.TerminationDepthExhausted), nil
		case s.maxPages > 0 && len(pages) >= s.maxPages:
			return finish(model.TerminationPageLimit), nil
		case len(discovered) == 0:
			return finish(model.TerminationQuiescent), nil
		}

		current = discovered
		depth++
	}
}

// runWave dispatches one task per URL to the worker pool and blocks at
// the wave barrier: every task finished, or the context fired and the
// grace period ran out.
//
// Tasks abandoned past the grace period hold references only to this
// wave's buffers, which the caller seals immediately after runWave
// returns, so a late writer cannot leak results into a later wave.
func (s *Scheduler) runWave(ctx context.Context, urls []string, registry *Registry, next *linkBuffer, results *resultBuffer, failed *atomic.Int64) {
	g, waveCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, u := range urls {
			t := &task{
				url:      u,
				fetcher:  s.fetcher,
				analyzer: s.analyzer,
				registry: registry,
				next:     next,
				results:  results,
				retry:    s.retry,
				failed:   failed,
				logger:   s.logger,
			}
			g.Go(func() error {
				t.run(waveCtx)
				return nil
			})
		}
		//nolint:errcheck // tasks always return nil
		_ = g.Wait()
	}()

	select {
	case <-done:
		return
	case <-ctx.Done():
	}

	// The context fired mid-wave. In-flight fetches observe the
	// cancellation through their requests; give them a bounded window
	// to unwind instead of blocking the boundary forever.
	select {
	case <-done:
	case <-time.After(s.grace):
		s.logger.Warn("abandoning in-flight fetches after grace period", "grace", s.grace)
	}
}

// NormalizeSeed fills in a missing scheme and validates a seed URL.
// People paste bare hostnames; the crawler should cope. Stored reports
// carry the normalized form, so lookups must normalize the same way.
func NormalizeSeed(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmptySeed
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidSeed, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme %q is not crawlable", ErrInvalidSeed, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrInvalidSeed, raw)
	}

	return u.String(), nil
}
