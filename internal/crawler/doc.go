// Package crawler implements wave-synchronized breadth-first crawling.
//
// # Architecture
//
// The package is designed around the Scheduler type, which partitions
// discovered URLs into depth "waves" and dispatches one task per URL to
// a bounded worker pool. A wave is a synchronization barrier: every page
// at depth N is fetched before any page at depth N+1, so a page's depth
// is always its true link distance from the seed.
//
// Design decision: We schedule in waves rather than with a single work
// queue because:
//  1. Depth labels are exact; a queue assigns the depth of whichever
//     parent got there first
//  2. The time-box has a natural place to act (wave boundaries), so a
//     crawl never stops halfway through a depth level
//  3. The barrier makes concurrency testable: a wave's results are
//     final the moment its buffers are drained, even when an abandoned
//     fetch is still unwinding somewhere
//
// # Components
//
//   - Scheduler: Coordinates waves, the worker pool, and the time-box
//   - Registry: Concurrent URL set with linearizable claim semantics
//   - task: Claims one URL, fetches with retry, analyzes, discovers links
//   - BatchRunner: Runs full crawls for many seeds concurrently
//
// # Deduplication
//
// Every URL passes through the Registry exactly once. Discoverers call
// Register, which inserts the URL only if it was never seen, so a URL
// joins exactly one wave no matter how many pages link to it. The task
// that processes the URL then calls Claim, which atomically transitions
// it to claimed; at most one task ever wins that transition.
//
// # Termination
//
// A crawl stops for exactly one reason, checked in order at each wave
// boundary: external cancellation, the time-box firing, the depth bound,
// the page budget, or quiescence (no new URLs discovered). The time-box
// firing is an expected outcome, not an error; only external
// cancellation surfaces a non-nil error from Crawl.
//
// # Usage
//
//	scheduler, err := crawler.NewScheduler(fetcher, analyzer,
//		crawler.WithMaxDepth(3),
//		crawler.WithTimeLimit(time.Minute),
//	)
//	report, err := scheduler.Crawl(ctx, "https://example.com")
package crawler
