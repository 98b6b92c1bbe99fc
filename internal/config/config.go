package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These values are chosen for polite clearnet crawling with bounded resource
// usage; every one of them can be overridden via CLI flags.
const (
	// DefaultMaxDepth of 2 crawls the seed page plus one wave of its links.
	// Breadth grows exponentially with depth, so the default stays shallow;
	// use --depth for deeper crawls.
	DefaultMaxDepth = 2

	// DefaultTimeLimit bounds a whole crawl run. One minute is enough to
	// exhaust depth 2 on most sites while keeping accidental runs cheap.
	// A limit of 0 stops the crawl after the seed wave.
	DefaultTimeLimit = 60 * time.Second

	// DefaultWorkers is the worker pool size for each wave. Ten concurrent
	// fetches saturate typical last-mile bandwidth without looking like a
	// flood to the target.
	DefaultWorkers = 10

	// DefaultTimeout is the per-request timeout. 30 seconds tolerates slow
	// servers without letting one dead host stall a whole wave through the
	// retry budget.
	DefaultTimeout = 30 * time.Second

	// DefaultRetryAttempts is the total number of fetch attempts per URL.
	// Three attempts ride out transient network hiccups; failures past that
	// are logged and dropped.
	DefaultRetryAttempts = 3

	// DefaultRetryBaseDelay is the backoff unit between attempts. The delay
	// doubles per attempt: 500ms, 1s, 2s, ...
	DefaultRetryBaseDelay = 500 * time.Millisecond

	// DefaultBatchSize of 5 concurrent crawls balances throughput with
	// resource usage when several seeds are given. Each crawl brings its
	// own worker pool, so this multiplies quickly.
	DefaultBatchSize = 5

	// DefaultMaxPages of 0 disables the page budget. Depth and the time
	// limit are the primary brakes; set --max-pages for a hard cap on
	// runaway sites.
	DefaultMaxPages = 0

	// DefaultTopWords is how many of a page's most frequent words reports
	// show by default.
	DefaultTopWords = 10

	// AppName is the application name used for XDG directory paths.
	AppName = "wavecrawl"

	// DefaultUserAgent identifies wavecrawl in HTTP requests.
	// Using a descriptive User-Agent is good practice and allows operators
	// to identify crawler traffic in their logs.
	DefaultUserAgent = "wavecrawl/1.0 (+https://github.com/nao1215/wavecrawl)"

	// DefaultMaxBodySize limits the maximum response body size to read.
	// 2MB is sufficient for most HTML pages while preventing memory
	// exhaustion from unexpectedly large responses.
	DefaultMaxBodySize = 2 * 1024 * 1024 // 2MB
)

// Config holds all configuration options for wavecrawl.
// This struct is designed to be populated from CLI flags and passed through
// the application via dependency injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., CrawlConfig, ReportConfig) for simplicity. The number of options
// is manageable, and nesting would add complexity without significant benefit.
// If the configuration grows significantly, consider refactoring into sub-structs.
type Config struct {
	// Seeds is the list of URLs to start crawling from. Each seed gets its
	// own crawl run with its own registry and report.
	Seeds []string

	// MaxDepth is the maximum wave index to schedule. The seed page is
	// depth 0. Both 0 and 1 crawl exactly the seed wave; depth N crawls
	// waves 0 through N-1.
	MaxDepth int

	// TimeLimit bounds the whole crawl run. The limit is checked at wave
	// boundaries; a wave in flight when it expires is given a bounded
	// grace period. 0 means no waves after the seed wave.
	TimeLimit time.Duration

	// Workers is the worker pool size per wave.
	Workers int

	// MaxPages caps the number of pages crawled per run, checked at wave
	// boundaries. 0 disables the cap.
	MaxPages int

	// Timeout is the timeout for each HTTP request.
	// This applies to individual fetches, not the overall crawl duration.
	Timeout time.Duration

	// RetryAttempts is the total number of fetch attempts per URL before
	// the URL is dropped.
	RetryAttempts int

	// RetryBaseDelay is the backoff unit between attempts; the actual delay
	// doubles with each failed attempt.
	RetryBaseDelay time.Duration

	// RequestsPerSecond rate-limits outgoing fetches across all workers.
	// 0 disables rate limiting.
	RequestsPerSecond float64

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	// Empty means direct connections.
	ProxyAddress string

	// SameHostOnly restricts discovered links to the seed's host.
	// When false, the crawl follows links to any host (subject to depth).
	SameHostOnly bool

	// MaxBodySize is the maximum response body size in bytes to read.
	// Responses larger than this are truncated to prevent memory exhaustion.
	// Set to 0 to use the default (2MB).
	MaxBodySize int64

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// BatchSize is the number of concurrent crawls when several seeds are
	// given. Each crawl runs with its own worker pool.
	BatchSize int

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .wavecrawl in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds per-host configurations loaded from the config file.
	// This is populated by LoadConfigFile and used when building fetchers.
	SiteConfigs *File

	// JSONReport enables JSON report output instead of human-readable format.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output with tables and charts.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	// Directories are created automatically if they don't exist.
	ReportFile string

	// TopWords is how many of the most frequent words reports show per page.
	TopWords int

	// DBDir is the directory path for storing the SQLite database.
	// Crawl reports are saved there for the history command.
	// Defaults to the XDG data directory (~/.local/share/wavecrawl on Linux).
	DBDir string

	// SaveToDB indicates whether to save crawl reports to the database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use cases.
// Users can override specific values after creation.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., timeout, worker
// count). This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		MaxDepth:       DefaultMaxDepth,
		TimeLimit:      DefaultTimeLimit,
		Workers:        DefaultWorkers,
		MaxPages:       DefaultMaxPages,
		Timeout:        DefaultTimeout,
		RetryAttempts:  DefaultRetryAttempts,
		RetryBaseDelay: DefaultRetryBaseDelay,
		BatchSize:      DefaultBatchSize,
		UserAgent:      DefaultUserAgent,
		MaxBodySize:    DefaultMaxBodySize,
		TopWords:       DefaultTopWords,
	}
}

// XDGDataDir returns the XDG data directory for wavecrawl.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.local/share/wavecrawl
// On macOS: ~/Library/Application Support/wavecrawl
// On Windows: %LOCALAPPDATA%\wavecrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for wavecrawl.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.config/wavecrawl
// On macOS: ~/Library/Application Support/wavecrawl
// On Windows: %APPDATA%\wavecrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after CLI parsing, before any crawling begins.
//
// We chose to return the first error found rather than collecting all errors
// because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	// We must have at least one seed to crawl
	if len(c.Seeds) == 0 {
		return ErrNoSeed
	}

	// Depth may be zero (seed only) but never negative
	if c.MaxDepth < 0 {
		return ErrInvalidDepth
	}

	// Time limit may be zero (seed wave only) but never negative
	if c.TimeLimit < 0 {
		return ErrInvalidTimeLimit
	}

	// Workers must be positive; zero would mean no fetching
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}

	// Timeout must be positive; zero timeout would cause immediate failures
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	// At least one attempt is needed to fetch at all
	if c.RetryAttempts <= 0 {
		return ErrInvalidRetryAttempts
	}

	// Backoff delay must be non-negative
	if c.RetryBaseDelay < 0 {
		return ErrInvalidRetryDelay
	}

	// Rate must be non-negative; zero disables limiting
	if c.RequestsPerSecond < 0 {
		return ErrInvalidRate
	}

	// Page budget must be non-negative; zero disables it
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}

	// BatchSize must be positive; zero would mean no crawling
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	// JSONReport and MarkdownReport are mutually exclusive
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	// MaxBodySize must be non-negative if set
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	// Reports need at least one word per page to show
	if c.TopWords <= 0 {
		return ErrInvalidTopWords
	}

	return nil
}
