package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nao1215/wavecrawl/internal/config"
	"github.com/nao1215/wavecrawl/internal/crawler"
	"github.com/nao1215/wavecrawl/internal/database"
	"github.com/nao1215/wavecrawl/internal/fetcher"
	"github.com/nao1215/wavecrawl/internal/log"
	"github.com/nao1215/wavecrawl/internal/model"
	"github.com/nao1215/wavecrawl/internal/report"
	"github.com/nao1215/wavecrawl/internal/words"
	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url> [url...]",
		Short: "Crawl sites and report per-page word frequencies",
		Long: `Crawl explores each seed URL breadth-first in synchronized depth waves
and builds a word-frequency table for every page it visits.

All pages at the same link distance from the seed are fetched before any
page one hop further. A crawl stops when it runs out of reachable pages,
hits the depth bound, exhausts its time limit, or reaches the page budget.

Examples:
  # Crawl a single site with defaults (depth 2, one minute)
  wavecrawl crawl https://example.com

  # Crawl deeper with more time
  wavecrawl crawl --depth 4 --time-limit 5m https://example.com

  # Crawl several sites concurrently
  wavecrawl crawl site1.example site2.example site3.example

  # Route requests through a SOCKS5 proxy
  wavecrawl crawl --proxy 127.0.0.1:9050 https://example.com

  # Write a Markdown report to a file
  wavecrawl crawl --markdown -o report.md https://example.com

  # Use a custom configuration file
  wavecrawl crawl -c myconfig.yaml https://example.com

Configuration file (.wavecrawl) example:
  stopwords:
    - copyright
  sites:
    en.wikipedia.org:
      depth: 3
      requestsPerSecond: 1
    intranet.example.com:
      cookie: "session_id=abc123"
      headers:
        Authorization: "Bearer token"`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Crawl bound flags
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum crawl depth (0 and 1 both crawl only the seed page)")
	cmd.Flags().DurationP("time-limit", "t", config.DefaultTimeLimit,
		"Wall-clock budget per crawl, checked between waves (0 stops after the seed wave)")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of concurrent fetches within a wave")
	cmd.Flags().Int("max-pages", config.DefaultMaxPages,
		"Maximum number of pages to crawl per seed (0 means unlimited)")

	// Fetch behavior flags
	cmd.Flags().Int("retries", config.DefaultRetryAttempts,
		"Total fetch attempts per URL before giving up")
	cmd.Flags().Duration("retry-delay", config.DefaultRetryBaseDelay,
		"Base delay between fetch attempts (doubles with each attempt)")
	cmd.Flags().Float64("rate", 0,
		"Maximum requests per second across all workers (0 disables limiting)")
	cmd.Flags().Duration("timeout", config.DefaultTimeout,
		"Connection timeout for each request")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with requests")
	cmd.Flags().String("proxy", "",
		"Route requests through a SOCKS5 proxy at the specified address (e.g., 127.0.0.1:9050)")
	cmd.Flags().Bool("same-host", false,
		"Only follow links on the seed's host")

	// Batch crawling flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of concurrent crawls")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .wavecrawl in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().IntP("top", "n", config.DefaultTopWords,
		"Number of most frequent words to show per page")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	// Build config from flags
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Set up structured logging with credential redaction
	logger := log.NewLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runCrawl(ctx, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	// Get flag values
	var err error

	cfg.MaxDepth, err = cmd.Flags().GetInt("depth")
	if err != nil {
		return nil, err
	}

	cfg.TimeLimit, err = cmd.Flags().GetDuration("time-limit")
	if err != nil {
		return nil, err
	}

	cfg.Workers, err = cmd.Flags().GetInt("workers")
	if err != nil {
		return nil, err
	}

	cfg.MaxPages, err = cmd.Flags().GetInt("max-pages")
	if err != nil {
		return nil, err
	}

	cfg.RetryAttempts, err = cmd.Flags().GetInt("retries")
	if err != nil {
		return nil, err
	}

	cfg.RetryBaseDelay, err = cmd.Flags().GetDuration("retry-delay")
	if err != nil {
		return nil, err
	}

	cfg.RequestsPerSecond, err = cmd.Flags().GetFloat64("rate")
	if err != nil {
		return nil, err
	}

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.UserAgent, err = cmd.Flags().GetString("user-agent")
	if err != nil {
		return nil, err
	}

	cfg.ProxyAddress, err = cmd.Flags().GetString("proxy")
	if err != nil {
		return nil, err
	}

	cfg.SameHostOnly, err = cmd.Flags().GetBool("same-host")
	if err != nil {
		return nil, err
	}

	cfg.BatchSize, err = cmd.Flags().GetInt("batch")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Load site-specific configurations from config file
	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use empty config if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		// User explicitly specified a config file that doesn't exist
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		// Use empty config if no file found and user didn't explicitly specify one
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	cfg.TopWords, err = cmd.Flags().GetInt("top")
	if err != nil {
		return nil, err
	}

	// Always save to database using XDG data directory
	cfg.SaveToDB = true
	cfg.DBDir = config.XDGDataDir()

	// Get positional arguments (seed URLs)
	cfg.Seeds = args

	return cfg, nil
}

// runCrawl executes the crawl.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if len(cfg.Seeds) == 0 {
		return errors.New("no seeds provided (specify one or more URLs as arguments)")
	}

	logger.Info("starting crawl",
		"seeds", cfg.Seeds,
		"maxDepth", cfg.MaxDepth,
		"timeLimit", cfg.TimeLimit,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	// Open database connection if saving is enabled
	var db *database.CrawlDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "dir", cfg.DBDir)
	}

	// Use the batch runner for parallel crawling if multiple seeds
	if len(cfg.Seeds) > 1 && cfg.BatchSize > 1 {
		return runBatchCrawl(ctx, cfg, db, logger)
	}

	// Single seed or sequential crawling
	return runSequentialCrawl(ctx, cfg, db, logger)
}

// runSequentialCrawl crawls seeds one at a time, applying per-site
// configuration to each.
func runSequentialCrawl(ctx context.Context, cfg *config.Config, db *database.CrawlDB, logger *slog.Logger) error {
	for _, seed := range cfg.Seeds {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Get site-specific configuration
		siteConfig := getSiteConfig(cfg, seed)

		// Create a scheduler with site-specific options
		sched, err := newSchedulerForSeed(cfg, siteConfig, logger)
		if err != nil {
			return err
		}

		fmt.Printf("Crawling %s...\n", seed)
		startTime := time.Now()

		crawlReport, crawlErr := sched.Crawl(ctx, seed)
		if crawlReport == nil {
			logger.Error("crawl failed", "seed", seed, "error", crawlErr)
			fmt.Fprintf(os.Stderr, "Crawl error for %s: %v\n", seed, crawlErr)
			continue
		}

		elapsed := time.Since(startTime)
		fmt.Printf("Crawl finished in %s (%s)\n\n", elapsed.Round(time.Millisecond), crawlReport.Termination)

		// An interrupted crawl still produced a partial report; print and
		// persist it before surfacing the cancellation.
		if err := outputReport(cfg, crawlReport); err != nil {
			logger.Error("report failed", "seed", seed, "error", err)
		}

		// Save to database if enabled
		if err := saveCrawlReport(ctx, db, crawlReport, logger); err != nil {
			logger.Error("failed to save crawl report", "seed", seed, "error", err)
		}

		if crawlErr != nil {
			return crawlErr
		}
	}

	return nil
}

// runBatchCrawl crawls multiple seeds concurrently using BatchRunner.
func runBatchCrawl(ctx context.Context, cfg *config.Config, db *database.CrawlDB, logger *slog.Logger) error {
	fmt.Printf("Starting batch crawl of %d seeds (concurrency: %d)...\n\n",
		len(cfg.Seeds), cfg.BatchSize)

	startTime := time.Now()

	// Warn user about batch processing limitation
	if cfg.SiteConfigs != nil && len(cfg.SiteConfigs.Sites) > 0 {
		logger.Warn("batch crawling uses default site config only; site-specific configs (cookies, headers, depth) are ignored",
			"siteCount", len(cfg.SiteConfigs.Sites))
		fmt.Fprintf(os.Stderr, "Warning: Site-specific configurations are ignored in batch mode. Use sequential mode (--batch 1) to apply per-site settings.\n\n")
	}

	// Note: For batch crawling, all seeds share one scheduler built from
	// the defaults section. Site-specific configs would require a
	// scheduler (and fetcher) per seed.
	var siteConfig config.SiteConfig
	if cfg.SiteConfigs != nil {
		siteConfig = cfg.SiteConfigs.Defaults
	}
	sched, err := newSchedulerForSeed(cfg, siteConfig, logger)
	if err != nil {
		return err
	}

	runner, err := crawler.NewBatchRunner(sched,
		crawler.WithBatchConcurrency(cfg.BatchSize),
		crawler.WithBatchLogger(logger),
	)
	if err != nil {
		return err
	}

	// Process with callback for streaming output
	var mu sync.Mutex
	err = runner.RunWithCallback(ctx, cfg.Seeds, func(crawlReport *model.CrawlReport, index int) {
		mu.Lock()
		defer mu.Unlock()

		if crawlReport == nil {
			fmt.Fprintf(os.Stderr, "[%d/%d] Crawl rejected: %s\n", index+1, len(cfg.Seeds), cfg.Seeds[index])
			return
		}

		fmt.Printf("[%d/%d] Crawl completed: %s (%d pages, %s)\n",
			index+1, len(cfg.Seeds), crawlReport.Seed, crawlReport.PagesCrawled(), crawlReport.Termination)

		// Generate and output report
		if err := outputReport(cfg, crawlReport); err != nil {
			logger.Error("report failed", "seed", crawlReport.Seed, "error", err)
		}

		// Save to database if enabled
		if err := saveCrawlReport(ctx, db, crawlReport, logger); err != nil {
			logger.Error("failed to save crawl report", "seed", crawlReport.Seed, "error", err)
		}
	})

	elapsed := time.Since(startTime)
	fmt.Printf("\nBatch crawl completed in %s\n", elapsed.Round(time.Millisecond))

	return err
}

// getSiteConfig returns the merged site configuration for a seed URL.
// Falls back to the defaults section if no site-specific entry exists.
func getSiteConfig(cfg *config.Config, seed string) config.SiteConfig {
	if cfg.SiteConfigs == nil {
		return config.SiteConfig{}
	}
	return cfg.SiteConfigs.GetSiteConfig(seedHost(seed))
}

// seedHost extracts the hostname used for site-config lookup. Seeds may
// be given without a scheme.
func seedHost(seed string) string {
	raw := strings.TrimSpace(seed)
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// newSchedulerForSeed creates a scheduler honoring site-specific overrides
// for user agent, rate limit, depth, cookies, and headers.
func newSchedulerForSeed(cfg *config.Config, siteConfig config.SiteConfig, logger *slog.Logger) (*crawler.Scheduler, error) {
	// Site-specific values win over global flags
	userAgent := cfg.UserAgent
	if siteConfig.UserAgent != "" {
		userAgent = siteConfig.UserAgent
	}
	rate := cfg.RequestsPerSecond
	if siteConfig.RequestsPerSecond > 0 {
		rate = siteConfig.RequestsPerSecond
	}
	depth := cfg.MaxDepth
	if siteConfig.Depth > 0 {
		depth = siteConfig.Depth
	}

	var client *http.Client
	var err error
	if siteConfig.Cookie != "" || len(siteConfig.Headers) > 0 {
		client, err = fetcher.NewHTTPClientWithConfig(cfg.Timeout, cfg.ProxyAddress, siteConfig.Cookie, siteConfig.Headers)
	} else {
		client, err = fetcher.NewHTTPClient(cfg.Timeout, cfg.ProxyAddress)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	fetchOpts := []fetcher.Option{
		fetcher.WithClient(client),
		fetcher.WithUserAgent(userAgent),
		fetcher.WithMaxBodySize(cfg.MaxBodySize),
		fetcher.WithRequestsPerSecond(rate),
		fetcher.WithSameHostOnly(cfg.SameHostOnly),
		fetcher.WithLogger(logger),
	}
	if len(siteConfig.IgnorePatterns) > 0 {
		fetchOpts = append(fetchOpts, fetcher.WithIgnorePatterns(siteConfig.IgnorePatterns))
	}
	if len(siteConfig.FollowPatterns) > 0 {
		fetchOpts = append(fetchOpts, fetcher.WithFollowPatterns(siteConfig.FollowPatterns))
	}

	// Extra stopwords from the config file apply to every seed
	var analyzerOpts []words.Option
	if cfg.SiteConfigs != nil && len(cfg.SiteConfigs.Stopwords) > 0 {
		analyzerOpts = append(analyzerOpts, words.WithExtraStopwords(cfg.SiteConfigs.Stopwords...))
	}

	return crawler.NewScheduler(fetcher.New(fetchOpts...), words.NewAnalyzer(analyzerOpts...),
		crawler.WithMaxDepth(depth),
		crawler.WithTimeLimit(cfg.TimeLimit),
		crawler.WithWorkers(cfg.Workers),
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithRetryPolicy(crawler.RetryPolicy{
			MaxAttempts: cfg.RetryAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
		}),
		crawler.WithLogger(logger),
	)
}

// outputReport writes the crawl report in the requested format.
func outputReport(cfg *config.Config, crawlReport *model.CrawlReport) error {
	// Determine output destination
	var output *os.File
	if cfg.ReportFile != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Create/overwrite the output file with secure permissions (0600)
		// Reports reveal what was crawled and should only be readable by the owner
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	} else {
		output = os.Stdout
	}

	// JSON output (full report with every frequency table)
	if cfg.JSONReport {
		writer := report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
		_, err := writer.Write(crawlReport)
		return err
	}

	// Markdown output
	if cfg.MarkdownReport {
		writer := report.NewMarkdownWriter(output, report.WithTopN(cfg.TopWords))
		_, err := writer.Write(crawlReport)
		return err
	}

	// Human-readable report (default)
	writer := report.NewSimpleWriter(output, report.WithTopWords(cfg.TopWords), report.WithVerbose(cfg.Verbose))
	_, err := writer.Write(crawlReport)
	return err
}

// saveCrawlReport saves the crawl report to the database if enabled.
// If db is nil, this function is a no-op. Saving ignores cancellation of
// the crawl context so interrupted runs keep their partial reports.
func saveCrawlReport(ctx context.Context, db *database.CrawlDB, crawlReport *model.CrawlReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	if err := db.SaveReport(context.WithoutCancel(ctx), crawlReport); err != nil {
		return fmt.Errorf("failed to save crawl report: %w", err)
	}

	logger.Info("crawl report saved", "run_id", crawlReport.RunID, "seed", crawlReport.Seed)
	return nil
}
