package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/nao1215/wavecrawl/internal/model"
)

// defaultTopWords is how many of a page's most frequent words writers show
// when not configured otherwise.
const defaultTopWords = 10

// Writer defines the interface for report output.
// Implementations write crawl results in various formats.
//
// Design decision: We use an interface to allow different output formats
// and destinations. This enables writing to files, stdout, or network
// connections with the same API.
type Writer interface {
	// Write outputs the full report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.CrawlReport) (int, error)

	// WriteSummary outputs only the run header and aggregate word counts,
	// without the per-page detail. This is useful when crawling many seeds
	// in one invocation.
	WriteSummary(report *model.CrawlReport) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
//
// Design decision: We implement this as a separate type rather than
// using io.MultiWriter because our Writer interface is different
// from io.Writer - we write reports, not raw bytes.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.CrawlReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSummary outputs the run summary to all configured Writers.
func (m *MultiWriter) WriteSummary(report *model.CrawlReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteSummary(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// sortedPages returns the report's pages sorted by depth then URL.
// Writers render pages in this order so output is deterministic regardless
// of the order workers completed in.
func sortedPages(report *model.CrawlReport) []*model.PageWords {
	pages := make([]*model.PageWords, len(report.Pages))
	copy(pages, report.Pages)

	sort.Slice(pages, func(i, j int) bool {
		if pages[i].Depth != pages[j].Depth {
			return pages[i].Depth < pages[j].Depth
		}
		return pages[i].URL < pages[j].URL
	})

	return pages
}

// formatWordCounts renders word counts as space-separated "word(count)" pairs.
func formatWordCounts(counts []model.WordCount) string {
	parts := make([]string, 0, len(counts))
	for _, wc := range counts {
		parts = append(parts, fmt.Sprintf("%s(%d)", wc.Word, wc.Count))
	}
	return strings.Join(parts, " ")
}
