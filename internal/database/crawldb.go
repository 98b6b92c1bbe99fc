package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/wavecrawl/internal/model"
)

// dbFileName is the SQLite database file created under the data directory.
const dbFileName = "wavecrawl.db"

// CrawlDB provides SQLite-based storage for crawl reports.
// It manages connection pooling and provides methods for CRUD operations.
//
// Design decision: We use a single database file for all crawl runs rather
// than one file per seed. This keeps history queries (list seeds, compare
// runs of a seed) simple joins and makes backup a single-file copy.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB at the specified path.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, dbFileName)

	// Check if we should create the database or require it to exist
	if !opts.CreateIfNotExists {
		// Check if database file exists
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		// Ensure directory exists
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Build connection string
	// We use modernc.org/sqlite which uses a different connection string format.
	// When CreateIfNotExists is false, we use mode=rw to prevent creating new files.
	// When CreateIfNotExists is true, we use mode=rwc to allow creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	// SQLite doesn't benefit from multiple connections for writes,
	// but multiple readers can improve performance
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	// Session pragmas: wait for locks instead of failing with SQLITE_BUSY,
	// and enforce the run -> pages cascade.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}

	// Enable WAL mode if requested
	if opts.EnableWAL {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(context.Background(), pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	// Create tables
	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- Crawl runs store one row per completed crawl with its parameters
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id TEXT PRIMARY KEY,
		seed_url TEXT NOT NULL,
		max_depth INTEGER NOT NULL,
		time_limit_seconds REAL NOT NULL,
		workers INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		termination TEXT NOT NULL,
		depth_reached INTEGER NOT NULL,
		pages_crawled INTEGER NOT NULL,
		failed_fetches INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_seed ON crawl_runs(seed_url);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON crawl_runs(started_at);

	-- Crawl pages store the per-page word-frequency tables of a run
	CREATE TABLE IF NOT EXISTS crawl_pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		depth INTEGER NOT NULL,
		title TEXT,
		word_count INTEGER NOT NULL,
		frequencies TEXT NOT NULL,
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON crawl_pages(run_id);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveReport persists a crawl report and all of its pages.
// The run row and page rows are written in a single transaction so a stored
// run is never missing pages. Saving the same run ID again replaces the run's
// outcome columns and upserts its pages, which makes re-saves idempotent.
func (cdb *CrawlDB) SaveReport(ctx context.Context, report *model.CrawlReport) error {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	runQuery := `
	INSERT INTO crawl_runs (id, seed_url, max_depth, time_limit_seconds, workers,
		started_at, finished_at, termination, depth_reached, pages_crawled, failed_fetches)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		finished_at = excluded.finished_at,
		termination = excluded.termination,
		depth_reached = excluded.depth_reached,
		pages_crawled = excluded.pages_crawled,
		failed_fetches = excluded.failed_fetches
	`

	_, err = tx.ExecContext(ctx, runQuery,
		report.RunID,
		report.Seed,
		report.MaxDepth,
		report.TimeLimit.Seconds(),
		report.Workers,
		report.StartedAt.UTC().Format(time.RFC3339Nano),
		report.FinishedAt.UTC().Format(time.RFC3339Nano),
		report.Termination.String(),
		report.DepthReached,
		report.PagesCrawled(),
		report.FailedFetches,
	)
	if err != nil {
		return fmt.Errorf("failed to insert crawl run: %w", err)
	}

	pageQuery := `
	INSERT INTO crawl_pages (run_id, url, depth, title, word_count, frequencies)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, url) DO UPDATE SET
		depth = excluded.depth,
		title = excluded.title,
		word_count = excluded.word_count,
		frequencies = excluded.frequencies
	`

	stmt, err := tx.PrepareContext(ctx, pageQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	for _, page := range report.Pages {
		freqJSON, err := json.Marshal(page.Frequencies)
		if err != nil {
			return fmt.Errorf("failed to serialize frequencies for %s: %w", page.URL, err)
		}

		_, err = stmt.ExecContext(ctx,
			report.RunID,
			page.URL,
			page.Depth,
			page.Title,
			page.TotalWords(),
			string(freqJSON),
		)
		if err != nil {
			return fmt.Errorf("failed to insert page %s: %w", page.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit report: %w", err)
	}

	return nil
}

// GetReport retrieves a crawl report by its run ID, including all pages.
// It returns nil without error when no run with that ID exists.
func (cdb *CrawlDB) GetReport(ctx context.Context, runID string) (*model.CrawlReport, error) {
	runQuery := `
	SELECT id, seed_url, max_depth, time_limit_seconds, workers,
		started_at, finished_at, termination, depth_reached, failed_fetches
	FROM crawl_runs
	WHERE id = ?
	`

	var report model.CrawlReport
	var timeLimitSeconds float64
	var startedAt, finishedAt, termination string

	err := cdb.db.QueryRowContext(ctx, runQuery, runID).Scan(
		&report.RunID,
		&report.Seed,
		&report.MaxDepth,
		&timeLimitSeconds,
		&report.Workers,
		&startedAt,
		&finishedAt,
		&termination,
		&report.DepthReached,
		&report.FailedFetches,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl run: %w", err)
	}

	report.TimeLimit = time.Duration(timeLimitSeconds * float64(time.Second))
	report.StartedAt = parseTimestamp(startedAt)
	report.FinishedAt = parseTimestamp(finishedAt)

	term, err := model.ParseTermination(termination)
	if err != nil {
		return nil, fmt.Errorf("failed to parse run %s: %w", runID, err)
	}
	report.Termination = term

	pages, err := cdb.getPages(ctx, runID)
	if err != nil {
		return nil, err
	}
	report.Pages = pages

	return &report, nil
}

// getPages loads all page rows of a run ordered by depth then URL, which is
// the order report writers render pages in.
func (cdb *CrawlDB) getPages(ctx context.Context, runID string) ([]*model.PageWords, error) {
	query := `
	SELECT url, depth, title, frequencies
	FROM crawl_pages
	WHERE run_id = ?
	ORDER BY depth, url
	`

	rows, err := cdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	var pages []*model.PageWords
	for rows.Next() {
		var page model.PageWords
		var title sql.NullString
		var freqJSON string

		if err := rows.Scan(&page.URL, &page.Depth, &title, &freqJSON); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		page.Title = title.String

		if err := json.Unmarshal([]byte(freqJSON), &page.Frequencies); err != nil {
			return nil, fmt.Errorf("failed to parse frequencies for %s: %w", page.URL, err)
		}

		pages = append(pages, &page)
	}

	return pages, rows.Err()
}

// RunSummary contains summary information about a stored crawl run.
// This is used for displaying run history without loading the page rows.
type RunSummary struct {
	// RunID is the unique identifier of the run.
	RunID string

	// Seed is the URL the run started from.
	Seed string

	// MaxDepth is the depth bound the run was configured with.
	MaxDepth int

	// StartedAt is when the run began.
	StartedAt time.Time

	// FinishedAt is when the run terminated.
	FinishedAt time.Time

	// Termination records why the run stopped.
	Termination model.Termination

	// DepthReached is the deepest wave the run executed.
	DepthReached int

	// PagesCrawled is the number of pages the run collected.
	PagesCrawled int

	// FailedFetches is the number of URLs the run dropped.
	FailedFetches int
}

// ListRuns retrieves run summaries, newest first.
// An empty seed lists runs for every seed. A limit of zero or less returns
// all matching runs.
func (cdb *CrawlDB) ListRuns(ctx context.Context, seed string, limit int) ([]RunSummary, error) {
	query := `
	SELECT id, seed_url, max_depth, started_at, finished_at, termination,
		depth_reached, pages_crawled, failed_fetches
	FROM crawl_runs
	WHERE 1=1
	`
	args := make([]interface{}, 0)

	if seed != "" {
		query += " AND seed_url = ?"
		args = append(args, seed)
	}

	query += " ORDER BY started_at DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunSummary
	for rows.Next() {
		var summary RunSummary
		var startedAt, finishedAt, termination string

		err := rows.Scan(
			&summary.RunID,
			&summary.Seed,
			&summary.MaxDepth,
			&startedAt,
			&finishedAt,
			&termination,
			&summary.DepthReached,
			&summary.PagesCrawled,
			&summary.FailedFetches,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run summary: %w", err)
		}

		summary.StartedAt = parseTimestamp(startedAt)
		summary.FinishedAt = parseTimestamp(finishedAt)

		term, err := model.ParseTermination(termination)
		if err != nil {
			return nil, fmt.Errorf("failed to parse run %s: %w", summary.RunID, err)
		}
		summary.Termination = term

		results = append(results, summary)
	}

	return results, rows.Err()
}

// ListSeeds returns every seed URL that has at least one stored run.
func (cdb *CrawlDB) ListSeeds(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT seed_url FROM crawl_runs
	ORDER BY seed_url
	`

	rows, err := cdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list seeds: %w", err)
	}
	defer rows.Close()

	var seeds []string
	for rows.Next() {
		var seed string
		if err := rows.Scan(&seed); err != nil {
			return nil, fmt.Errorf("failed to scan seed: %w", err)
		}
		seeds = append(seeds, seed)
	}

	return seeds, rows.Err()
}

// LatestRunIDs returns the IDs of the n most recent runs for a seed,
// newest first. Fewer IDs are returned when the seed has fewer runs.
func (cdb *CrawlDB) LatestRunIDs(ctx context.Context, seed string, n int) ([]string, error) {
	query := `
	SELECT id FROM crawl_runs
	WHERE seed_url = ?
	ORDER BY started_at DESC
	LIMIT ?
	`

	rows, err := cdb.db.QueryContext(ctx, query, seed, n)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan run ID: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,          // format we write
	time.RFC3339,              // RFC3339 without fractional seconds
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on configuration.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	// Return zero time if no format matches
	// This is a fallback to avoid breaking functionality for edge cases
	return time.Time{}
}
