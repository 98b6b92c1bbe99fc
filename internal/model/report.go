package model

import (
	"sort"
	"time"
)

// PageWords is the word-frequency result for one crawled page.
// One of these is produced for every page the crawler fetches successfully.
//
// A PageWords is immutable after creation with one exception: Depth is
// assigned exactly once by the scheduler when the page's wave is drained.
// Tasks that produce results never know which wave they ran in.
type PageWords struct {
	// URL is the fetched URL this result belongs to.
	URL string `json:"url"`

	// Title is the page title, when the page had one.
	Title string `json:"title,omitempty"`

	// Depth is the wave index at which the page was fetched. The seed page
	// has depth 0; a page discovered at depth N is fetched at depth N+1.
	Depth int `json:"depth"`

	// Frequencies maps each non-stopword word on the page to its
	// occurrence count.
	Frequencies map[string]int `json:"frequencies"`
}

// WordCount pairs a word with its occurrence count, for sorted views of a
// frequency table.
type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// TotalWords returns the number of counted word occurrences on the page.
func (p *PageWords) TotalWords() int {
	total := 0
	for _, n := range p.Frequencies {
		total += n
	}
	return total
}

// DistinctWords returns the number of distinct words on the page.
func (p *PageWords) DistinctWords() int {
	return len(p.Frequencies)
}

// TopWords returns the n most frequent words on the page, sorted by count
// descending with ties broken lexically so output is deterministic.
// It returns fewer than n entries when the page has fewer distinct words.
func (p *PageWords) TopWords(n int) []WordCount {
	return topWords(p.Frequencies, n)
}

// CrawlReport is the full result of one crawl run. It is the unit of
// reporting and database persistence.
//
// Design decision: We keep run parameters (seed, depth, time limit) on the
// report rather than only in configuration because:
//  1. Stored reports must be interpretable without the config that made them
//  2. Comparing runs of the same seed requires knowing their parameters
//  3. Report writers render parameters alongside results
type CrawlReport struct {
	// RunID uniquely identifies this crawl run.
	RunID string `json:"run_id"`

	// Seed is the URL the crawl started from.
	Seed string `json:"seed"`

	// MaxDepth is the configured depth bound for this run.
	MaxDepth int `json:"max_depth"`

	// TimeLimit is the configured time-box for this run. Zero means the
	// crawl was limited to the seed wave.
	TimeLimit time.Duration `json:"time_limit"`

	// Workers is the worker pool size used for this run.
	Workers int `json:"workers"`

	// StartedAt is when the crawl began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the crawl terminated.
	FinishedAt time.Time `json:"finished_at"`

	// Termination records why the crawl stopped.
	Termination Termination `json:"termination"`

	// DepthReached is the deepest wave that actually executed.
	DepthReached int `json:"depth_reached"`

	// Pages holds one entry per successfully crawled page. Entries are
	// never removed; the collection is the crawl's primary output.
	Pages []*PageWords `json:"pages"`

	// FailedFetches counts URLs dropped after exhausted retries or a
	// permanent fetch failure. The URLs themselves appear only in logs.
	FailedFetches int `json:"failed_fetches"`
}

// Duration returns how long the crawl ran.
func (r *CrawlReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// PagesCrawled returns the number of successfully crawled pages.
func (r *CrawlReport) PagesCrawled() int {
	return len(r.Pages)
}

// TotalWords returns the number of counted word occurrences across all pages.
func (r *CrawlReport) TotalWords() int {
	total := 0
	for _, p := range r.Pages {
		total += p.TotalWords()
	}
	return total
}

// TopWords returns the n most frequent words aggregated across every page in
// the run, sorted by count descending with lexical tie-break.
func (r *CrawlReport) TopWords(n int) []WordCount {
	merged := make(map[string]int)
	for _, p := range r.Pages {
		for word, count := range p.Frequencies {
			merged[word] += count
		}
	}
	return topWords(merged, n)
}

// topWords sorts a frequency table and keeps the n most frequent entries.
func topWords(freq map[string]int, n int) []WordCount {
	if n <= 0 || len(freq) == 0 {
		return nil
	}

	counts := make([]WordCount, 0, len(freq))
	for word, count := range freq {
		counts = append(counts, WordCount{Word: word, Count: count})
	}

	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Word < counts[j].Word
	})

	if len(counts) > n {
		counts = counts[:n]
	}
	return counts
}
