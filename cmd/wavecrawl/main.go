// Package main provides the entry point for the wavecrawl CLI.
//
// wavecrawl is a wave-synchronized web crawler. It explores sites
// breadth-first in depth waves, bounded by a time limit, and reports the
// most frequent words on every page it visits.
//
// Usage:
//
//	wavecrawl crawl <url>
//	wavecrawl history <url> --diff
//
// See --help for all available options.
package main

// main is the entry point for wavecrawl.
func main() {
	Execute()
}
