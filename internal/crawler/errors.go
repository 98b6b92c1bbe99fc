package crawler

import "errors"

var (
	// ErrNilFetcher is returned when a Scheduler is built without a fetcher.
	ErrNilFetcher = errors.New("fetcher must not be nil")

	// ErrNilAnalyzer is returned when a Scheduler is built without an analyzer.
	ErrNilAnalyzer = errors.New("analyzer must not be nil")

	// ErrEmptySeed is returned when Crawl is called with an empty seed URL.
	ErrEmptySeed = errors.New("seed URL must not be empty")

	// ErrInvalidSeed is returned when the seed URL cannot be parsed or
	// does not name an http(s) host.
	ErrInvalidSeed = errors.New("invalid seed URL")

	// ErrNilScheduler is returned when a BatchRunner is built without a
	// scheduler.
	ErrNilScheduler = errors.New("scheduler must not be nil")

	// ErrInvalidDepth is returned for a negative depth bound.
	ErrInvalidDepth = errors.New("max depth must not be negative")

	// ErrInvalidTimeLimit is returned for a negative time limit.
	ErrInvalidTimeLimit = errors.New("time limit must not be negative")

	// ErrInvalidWorkers is returned when the worker count is below one.
	ErrInvalidWorkers = errors.New("worker count must be at least 1")

	// ErrInvalidMaxPages is returned for a negative page budget.
	ErrInvalidMaxPages = errors.New("max pages must not be negative")

	// ErrInvalidRetryPolicy is returned when the retry policy allows no
	// attempts or has a negative base delay.
	ErrInvalidRetryPolicy = errors.New("retry policy must allow at least one attempt and a non-negative delay")

	// ErrInvalidGracePeriod is returned for a non-positive grace period.
	ErrInvalidGracePeriod = errors.New("grace period must be positive")
)
