// Package model defines the core data structures used throughout wavecrawl.
//
// This package contains the following main types:
//   - Page: Represents one fetched web page with parsed content
//   - PageWords: The word-frequency result for one crawled page
//   - CrawlReport: The full result of one crawl run
//   - Termination: Why a crawl stopped
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. Multiple packages (crawler, fetcher, report, database) need to
// use these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
