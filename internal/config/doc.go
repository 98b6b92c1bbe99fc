// Package config provides configuration structures and utilities for
// wavecrawl. It defines the main configuration options for crawl depth,
// time limits, worker pools, retries, per-host overrides, and report
// generation preferences.
package config
