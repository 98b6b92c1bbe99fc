package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/wavecrawl/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with clear section
// formatting.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// topWords is how many of each page's most frequent words are shown.
	topWords int

	// verbose enables additional per-page detail in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithTopWords sets how many of each page's most frequent words are shown.
func WithTopWords(n int) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.topWords = n
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		topWords:   defaultTopWords,
		verbose:    false,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the full report in human-readable format.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writePages(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// WriteSummary outputs the run header and aggregate word counts without
// the per-page detail.
func (w *SimpleWriter) WriteSummary(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)

	top := report.TopWords(w.topWords)
	if len(top) > 0 {
		sb.WriteString(fmt.Sprintf("Top Words:   %s\n", formatWordCounts(top)))
		sb.WriteString("\n")
	}

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                          CRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Seed URL:    %s\n", report.Seed))
	sb.WriteString(fmt.Sprintf("Run ID:      %s\n", report.RunID))
	sb.WriteString(fmt.Sprintf("Started:     %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Duration:    %s\n", report.Duration().Round(time.Millisecond)))
	sb.WriteString(fmt.Sprintf("Termination: %s\n", report.Termination))
	sb.WriteString(fmt.Sprintf("Depth:       reached %d of max %d\n", report.DepthReached, report.MaxDepth))
	sb.WriteString(fmt.Sprintf("Pages:       %d crawled, %d failed\n", report.PagesCrawled(), report.FailedFetches))
	sb.WriteString(fmt.Sprintf("Total Words: %d\n", report.TotalWords()))
	sb.WriteString("\n")
}

// writePages writes one line per crawled page, sorted by depth then URL.
func (w *SimpleWriter) writePages(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("PAGES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	pages := sortedPages(report)
	if len(pages) == 0 {
		sb.WriteString("  No pages crawled\n\n")
		return
	}

	for _, page := range pages {
		sb.WriteString(fmt.Sprintf("  [depth %d] %s (%d words)\n", page.Depth, page.URL, page.TotalWords()))

		if top := page.TopWords(w.topWords); len(top) > 0 {
			sb.WriteString(fmt.Sprintf("    %s\n", formatWordCounts(top)))
		}

		if w.verbose {
			if page.Title != "" {
				sb.WriteString(fmt.Sprintf("    Title: %s\n", page.Title))
			}
			sb.WriteString(fmt.Sprintf("    Distinct words: %d\n", page.DistinctWords()))
		}
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by wavecrawl\n")
	sb.WriteString("https://github.com/nao1215/wavecrawl\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
