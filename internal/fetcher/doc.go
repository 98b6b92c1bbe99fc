// Package fetcher downloads single pages over HTTP(S) and extracts the
// material the crawler needs from them: the title, the outgoing links,
// and the visible text.
//
// # Architecture
//
// The package is designed around the Fetcher type, which owns an
// http.Client and a politeness rate limiter. A Fetcher performs exactly
// one page retrieval per call and keeps no crawl state; scheduling,
// deduplication, and retries belong to the crawler package.
//
// Design decision: We separate fetching from crawling because:
//  1. The crawler can be tested against a stub without any network
//  2. Rate limiting and proxying are transport concerns, not scheduling ones
//  3. A single Fetcher is safe for concurrent use by many workers
//
// # Components
//
//   - Fetcher: Retrieves one URL and builds a model.Page from the response
//   - Parser: HTML parser that extracts the title, links, and visible text
//   - Error: Classified fetch failure (permanent vs. transient)
//
// # Error Classification
//
// Every failure is wrapped in *Error, which reports whether retrying
// could help. Malformed URLs, unsupported schemes, and 4xx statuses are
// permanent; network failures, 5xx statuses, and 429 are transient.
// Callers decide retry policy from Permanent alone.
//
// # Usage
//
//	f, err := fetcher.New(fetcher.WithUserAgent("mybot/1.0"))
//	page, err := f.Fetch(ctx, "https://example.com")
//
// # Politeness
//
// The fetcher is designed to be polite:
//   - Requests are throttled by a shared token-bucket limiter
//   - Response bodies are capped to avoid unbounded memory use
//   - Redirect chains are limited to ten hops
//   - An honest User-Agent is sent with every request
package fetcher
