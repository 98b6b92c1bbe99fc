package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/wavecrawl/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter

	// topWords is how many aggregate words the summary table and pie
	// chart show.
	topWords int
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithTopN sets how many aggregate words the summary table and chart show.
func WithTopN(n int) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.topWords = n
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		topWords:   defaultTopWords,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writePages(md, report)
	w.writeTopWords(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummary outputs the run header and aggregate word counts without
// the per-page table.
func (w *MarkdownWriter) WriteSummary(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeTopWords(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport) {
	md.H1("Crawl Report")
	md.PlainText("")

	// Basic info table
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed URL", "`" + report.Seed + "`"},
			{"Run ID", "`" + report.RunID + "`"},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration().Round(time.Millisecond).String()},
			{"Termination", w.terminationText(report.Termination)},
			{"Depth Reached", strconv.Itoa(report.DepthReached) + " of " + strconv.Itoa(report.MaxDepth)},
			{"Pages Crawled", strconv.Itoa(report.PagesCrawled())},
			{"Failed Fetches", strconv.Itoa(report.FailedFetches)},
			{"Total Words", strconv.Itoa(report.TotalWords())},
		},
	})
	md.PlainText("")

	w.writeAlert(md, report)
}

// terminationText renders a termination reason in title case for display.
func (w *MarkdownWriter) terminationText(t model.Termination) string {
	return cases.Title(language.English).String(t.String())
}

// writeAlert writes an alert matching the run's outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.CrawlReport) {
	switch report.Termination {
	case model.TerminationCanceled:
		md.Cautionf(
			"The crawl was canceled before completion. %d page(s) were collected before cancellation.",
			report.PagesCrawled(),
		)
	case model.TerminationTimedOut:
		md.Warningf(
			"The time limit expired after depth %d. Results cover the waves that completed in time.",
			report.DepthReached,
		)
	case model.TerminationPageLimit:
		md.Importantf(
			"The page budget was reached at depth %d. Deeper pages were not crawled.",
			report.DepthReached,
		)
	case model.TerminationDepthExhausted:
		md.Note("The configured maximum depth was reached.")
	default:
		md.Tip("Every reachable page within the configured bounds was crawled.")
	}
	md.PlainText("")
}

// writePages writes the per-page table, sorted by depth then URL.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Pages")
	md.PlainText("")

	pages := sortedPages(report)
	if len(pages) == 0 {
		md.PlainText("No pages crawled.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(pages))
	for i, page := range pages {
		title := page.Title
		if title == "" {
			title = "-"
		}

		rows[i] = []string{
			strconv.Itoa(page.Depth),
			truncateString(page.URL, 60),
			truncateString(title, 40),
			strconv.Itoa(page.TotalWords()),
			truncateString(formatWordCounts(page.TopWords(5)), 60),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Depth", "URL", "Title", "Words", "Top Words"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeTopWords writes the aggregate most-frequent-words table and chart.
func (w *MarkdownWriter) writeTopWords(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Most Frequent Words")
	md.PlainText("")

	top := report.TopWords(w.topWords)
	if len(top) == 0 {
		md.PlainText("No words counted.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(top))
	for i, wc := range top {
		rows[i] = []string{
			strconv.Itoa(i + 1),
			wc.Word,
			strconv.Itoa(wc.Count),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Rank", "Word", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writePieChart(md, top)
}

// writePieChart writes a mermaid pie chart of the run's top words.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, top []model.WordCount) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Word Distribution"),
		piechart.WithShowData(true),
	)

	for _, wc := range top {
		chart.LabelAndIntValue(wc.Word, uint64(wc.Count))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [wavecrawl](https://github.com/nao1215/wavecrawl)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
