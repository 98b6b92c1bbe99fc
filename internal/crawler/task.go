package crawler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nao1215/wavecrawl/internal/model"
)

// Fetcher retrieves one page. The crawler defines the interface it
// consumes so any implementation can be plugged in; the fetcher package
// provides the production one. Implementations must be safe for
// concurrent use and must honor context cancellation.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*model.Page, error)
}

// Analyzer turns page text into a word-frequency table. Implementations
// must be pure: same text in, same table out, no shared state.
type Analyzer interface {
	Frequencies(text string) map[string]int
}

// task carries one URL through claim, fetch, analyze, and discovery.
// Tasks know nothing about depth; the scheduler stamps results with the
// wave's depth when it drains them.
type task struct {
	url      string
	fetcher  Fetcher
	analyzer Analyzer
	registry *Registry
	next     *linkBuffer
	results  *resultBuffer
	retry    RetryPolicy
	failed   *atomic.Int64
	logger   *slog.Logger
}

// run executes the task. It never returns an error: a page that cannot
// be fetched is logged and counted, and the rest of the wave proceeds.
func (t *task) run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	default:
	}

	// The claim is the dedup point. Losing it means another task owns
	// this URL and this task has nothing to do.
	if !t.registry.Claim(t.url) {
		return
	}

	page, err := t.fetchWithRetry(ctx)
	t.registry.Done(t.url)

	if err != nil {
		t.failed.Add(1)
		t.logger.Warn("page fetch failed", "url", t.url, "error", err)
		return
	}

	// Discovery happens only after a successful fetch. Register wins
	// exactly once per URL crawl-wide, so a link seen by many pages in
	// this wave still joins the next wave once.
	for _, link := range page.Links {
		if t.registry.Register(link) {
			t.next.add(link)
		}
	}

	t.results.add(&model.PageWords{
		URL:         page.URL,
		Title:       page.Title,
		Frequencies: t.analyzer.Frequencies(page.Text),
	})
}

// fetchWithRetry attempts the fetch up to MaxAttempts times, backing
// off exponentially between attempts. Permanent failures and context
// cancellation stop the retry loop early.
//
// Design decision: The backoff sleep happens here, inside the worker
// slot, rather than by resubmitting the task to the pool because:
//  1. The wave barrier must cover retries; a resubmitted task could
//     outlive its wave
//  2. A sleeping worker is exactly the back-pressure a struggling
//     server needs
//  3. The select on ctx.Done keeps even a mid-backoff task responsive
//     to the time-box
func (t *task) fetchWithRetry(ctx context.Context) (*model.Page, error) {
	var lastErr error

	for attempt := 1; attempt <= t.retry.MaxAttempts; attempt++ {
		page, err := t.fetcher.Fetch(ctx, t.url)
		if err == nil {
			return page, nil
		}
		lastErr = err

		if isPermanent(err) || ctx.Err() != nil || attempt == t.retry.MaxAttempts {
			break
		}

		delay := t.retry.Delay(attempt)
		t.logger.Debug("retrying fetch", "url", t.url, "attempt", attempt, "delay", delay)

		select {
		case <-ctx.Done():
			return nil, lastErr
		case <-time.After(delay):
		}
	}

	return nil, lastErr
}

// isPermanent reports whether err is a failure retrying cannot fix.
// The check is duck-typed, like net.Error's Timeout, so any Fetcher
// implementation can classify its failures without this package
// depending on one.
func isPermanent(err error) bool {
	var p interface{ Permanent() bool }
	return errors.As(err, &p) && p.Permanent()
}
