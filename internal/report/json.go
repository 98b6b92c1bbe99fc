package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/nao1215/wavecrawl/internal/model"
)

// JSONWriter outputs reports in JSON format.
// This format is designed for tool integration and programmatic processing.
//
// Design decision: We use standard encoding/json rather than a third-party
// JSON library because:
// 1. It's part of the standard library (no extra dependencies)
// 2. It's sufficient for our needs
// 3. It provides consistent behavior across Go versions
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = ""
		w.indentString = "  "
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter:   newBaseWriter(output),
		indent:       false,
		indentPrefix: "",
		indentString: "",
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the full report in JSON format.
func (w *JSONWriter) Write(report *model.CrawlReport) (int, error) {
	return w.writeJSON(report)
}

// WriteSummary outputs only the run summary in JSON format.
func (w *JSONWriter) WriteSummary(report *model.CrawlReport) (int, error) {
	return w.writeJSON(NewJSONSummary(report))
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v interface{}) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}

// JSONSummary is the run-level view of a report, without per-page tables.
// This is what WriteSummary encodes.
type JSONSummary struct {
	// RunID uniquely identifies the crawl run.
	RunID string `json:"run_id"`

	// Seed is the URL the crawl started from.
	Seed string `json:"seed"`

	// Termination records why the crawl stopped.
	Termination model.Termination `json:"termination"`

	// Duration is how long the crawl ran.
	Duration time.Duration `json:"duration"`

	// DepthReached is the deepest wave that executed.
	DepthReached int `json:"depth_reached"`

	// PagesCrawled is the number of pages collected.
	PagesCrawled int `json:"pages_crawled"`

	// FailedFetches is the number of URLs dropped.
	FailedFetches int `json:"failed_fetches"`

	// TotalWords is the number of counted word occurrences across all pages.
	TotalWords int `json:"total_words"`

	// TopWords holds the run's most frequent words.
	TopWords []model.WordCount `json:"top_words,omitempty"`
}

// NewJSONSummary creates the summary view of a report.
func NewJSONSummary(report *model.CrawlReport) *JSONSummary {
	return &JSONSummary{
		RunID:         report.RunID,
		Seed:          report.Seed,
		Termination:   report.Termination,
		Duration:      report.Duration(),
		DepthReached:  report.DepthReached,
		PagesCrawled:  report.PagesCrawled(),
		FailedFetches: report.FailedFetches,
		TotalWords:    report.TotalWords(),
		TopWords:      report.TopWords(defaultTopWords),
	}
}

// JSONReport is a wrapper for the full report with additional metadata.
// This is used when writing the complete report with contextual information.
//
// Design decision: We wrap the report rather than adding fields to
// CrawlReport because this allows us to add output-specific fields without
// polluting the core data structure.
type JSONReport struct {
	// Version is the wavecrawl version that generated this report.
	Version string `json:"version"`

	// Report is the full crawl report.
	Report *model.CrawlReport `json:"report"`
}

// NewJSONReport creates a JSONReport wrapper with version information.
func NewJSONReport(report *model.CrawlReport, version string) *JSONReport {
	return &JSONReport{
		Version: version,
		Report:  report,
	}
}

// FullJSONWriter outputs complete reports with metadata wrapper.
type FullJSONWriter struct {
	*JSONWriter

	// version is the wavecrawl version string.
	version string
}

// NewFullJSONWriter creates a writer for complete reports with metadata.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs the full report wrapped with metadata.
func (w *FullJSONWriter) Write(report *model.CrawlReport) (int, error) {
	return w.writeJSON(NewJSONReport(report, w.version))
}
