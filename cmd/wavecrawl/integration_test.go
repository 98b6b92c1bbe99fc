package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/wavecrawl/internal/config"
	"github.com/nao1215/wavecrawl/internal/database"
	"github.com/nao1215/wavecrawl/internal/log"
	"github.com/nao1215/wavecrawl/internal/model"
)

// startTestSite starts a local HTTP server with a small three-page site:
// the home page links to /about and /contact, which link back home.
func startTestSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Test Site</title></head>
<body>
<h1>Welcome to the test site</h1>
<p>Waves of pages with words to count: crawler crawler crawler.</p>
<a href="/about">About</a>
<a href="/contact">Contact</a>
</body>
</html>`))
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>About - Test Site</title></head>
<body>
<h1>About the team</h1>
<p>Frequency tables make pages comparable.</p>
<a href="/">Home</a>
</body>
</html>`))
	})
	mux.HandleFunc("/contact", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Contact - Test Site</title></head>
<body>
<h1>Contact the team</h1>
<p>Send a raven or an email.</p>
<a href="/">Home</a>
</body>
</html>`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// TestIntegrationCrawlSavesReport crawls a local site end to end and
// verifies the run lands in the database and the report file.
func TestIntegrationCrawlSavesReport(t *testing.T) {
	server := startTestSite(t)

	tmpDir := t.TempDir()
	dbDir := filepath.Join(tmpDir, "db")
	reportPath := filepath.Join(tmpDir, "report.txt")

	cfg := config.NewConfig()
	cfg.Seeds = []string{server.URL}
	cfg.MaxDepth = 2
	cfg.BatchSize = 1
	cfg.DBDir = dbDir
	cfg.SaveToDB = true
	cfg.ReportFile = reportPath

	logger := log.NewLogger(os.Stderr, false)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := runCrawl(ctx, cfg, logger); err != nil {
		t.Fatalf("runCrawl() error = %v", err)
	}

	// Verify database was created and has the run
	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		t.Fatalf("failed to open database after crawl: %v", err)
	}
	defer db.Close()

	runs, err := db.ListRuns(ctx, server.URL, 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run in database, got %d", len(runs))
	}

	run := runs[0]
	if run.Termination != model.TerminationDepthExhausted {
		t.Errorf("expected depth-exhausted termination, got %v", run.Termination)
	}
	// Depth 2 crawls the seed wave plus its links: home, about, contact
	if run.PagesCrawled != 3 {
		t.Errorf("expected 3 pages crawled, got %d", run.PagesCrawled)
	}

	// The stored report carries the per-page frequency tables
	crawlReport, err := db.GetReport(ctx, run.RunID)
	if err != nil {
		t.Fatalf("failed to get stored report: %v", err)
	}
	if crawlReport == nil {
		t.Fatal("expected stored report")
	}
	if len(crawlReport.Pages) != 3 {
		t.Fatalf("expected 3 stored pages, got %d", len(crawlReport.Pages))
	}
	for _, page := range crawlReport.Pages {
		if len(page.Frequencies) == 0 {
			t.Errorf("expected non-empty frequency table for %s", page.URL)
		}
	}

	// The report file was written
	content, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("failed to read report file: %v", err)
	}
	if !bytes.Contains(content, []byte(server.URL)) {
		t.Error("expected report file to contain the seed URL")
	}
	if !bytes.Contains(content, []byte("depth-exhausted")) {
		t.Error("expected report file to contain the termination reason")
	}
}

// TestIntegrationCrawlAndDiff crawls a site twice, growing it between
// runs, then diffs the two stored runs.
func TestIntegrationCrawlAndDiff(t *testing.T) {
	// Note: Not using t.Parallel() because this test captures os.Stdout

	// The site grows by one page between the two crawls
	var expanded atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		home := `<!DOCTYPE html>
<html>
<head><title>Changing Site</title></head>
<body>
<p>Fresh words every visit.</p>
<a href="/about">About</a>
<a href="/contact">Contact</a>`
		if expanded.Load() {
			home += `
<a href="/news">News</a>`
		}
		home += `
</body>
</html>`
		_, _ = w.Write([]byte(home))
	})
	for _, path := range []string{"/about", "/contact", "/news"} {
		mux.HandleFunc(path, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Page</title></head>
<body><p>Words words words.</p><a href="/">Home</a></body>
</html>`))
		})
	}

	server := httptest.NewServer(mux)
	defer server.Close()

	tmpDir := t.TempDir()
	dbDir := filepath.Join(tmpDir, "db")

	cfg := config.NewConfig()
	cfg.Seeds = []string{server.URL}
	cfg.MaxDepth = 2
	cfg.BatchSize = 1
	cfg.DBDir = dbDir
	cfg.SaveToDB = true
	cfg.ReportFile = filepath.Join(tmpDir, "report.txt")

	logger := log.NewLogger(os.Stderr, false)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// First crawl sees three pages
	if err := runCrawl(ctx, cfg, logger); err != nil {
		t.Fatalf("first runCrawl() error = %v", err)
	}

	// Land the runs in different seconds so newest-first ordering over
	// stored timestamps is unambiguous.
	time.Sleep(1100 * time.Millisecond)

	// Second crawl sees the new page
	expanded.Store(true)
	if err := runCrawl(ctx, cfg, logger); err != nil {
		t.Fatalf("second runCrawl() error = %v", err)
	}

	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	runIDs, err := db.LatestRunIDs(ctx, server.URL, 2)
	if err != nil {
		t.Fatalf("failed to get latest runs: %v", err)
	}
	if len(runIDs) != 2 {
		t.Fatalf("expected 2 stored runs, got %d", len(runIDs))
	}

	// Diff the two runs - capture output using pipe
	oldStdout := os.Stdout
	r, w, pipeErr := os.Pipe()
	if pipeErr != nil {
		t.Fatalf("failed to create pipe: %v", pipeErr)
	}
	os.Stdout = w

	diffErr := runDiff(ctx, db, server.URL, false)

	w.Close()
	os.Stdout = oldStdout

	if diffErr != nil {
		t.Fatalf("runDiff() error = %v", diffErr)
	}

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	r.Close()
	output := buf.String()

	if !strings.Contains(output, "Run Diff: "+server.URL) {
		t.Errorf("expected diff header, got: %s", output)
	}
	if !strings.Contains(output, "New Pages (1):") {
		t.Errorf("expected one new page, got: %s", output)
	}
	if !strings.Contains(output, "[+] "+server.URL+"/news") {
		t.Errorf("expected the new page to be listed, got: %s", output)
	}
	if !strings.Contains(output, "Unchanged: 3 pages") {
		t.Errorf("expected 3 unchanged pages, got: %s", output)
	}

	// Diff again with JSON output
	r, w, pipeErr = os.Pipe()
	if pipeErr != nil {
		t.Fatalf("failed to create pipe: %v", pipeErr)
	}
	os.Stdout = w

	diffErr = runDiff(ctx, db, server.URL, true)

	w.Close()
	os.Stdout = oldStdout

	if diffErr != nil {
		t.Fatalf("runDiff() with JSON error = %v", diffErr)
	}

	buf.Reset()
	_, _ = buf.ReadFrom(r)
	r.Close()
	output = buf.String()

	if !strings.Contains(output, `"new_pages"`) {
		t.Errorf("expected JSON output to contain 'new_pages', got: %s", output)
	}
}

// TestIntegrationBatchCrawl crawls two sites concurrently through the
// batch path and verifies both runs are stored.
func TestIntegrationBatchCrawl(t *testing.T) {
	server1 := startTestSite(t)
	server2 := startTestSite(t)

	tmpDir := t.TempDir()
	dbDir := filepath.Join(tmpDir, "db")

	cfg := config.NewConfig()
	cfg.Seeds = []string{server1.URL, server2.URL}
	cfg.MaxDepth = 2
	cfg.BatchSize = 2 // Enable batch crawling
	cfg.DBDir = dbDir
	cfg.SaveToDB = true
	cfg.ReportFile = filepath.Join(tmpDir, "report.txt")

	logger := log.NewLogger(os.Stderr, false)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := runCrawl(ctx, cfg, logger); err != nil {
		t.Fatalf("runCrawl() error = %v", err)
	}

	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	runs, err := db.ListRuns(ctx, "", 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs in database, got %d", len(runs))
	}

	seeds := map[string]bool{}
	for _, run := range runs {
		seeds[run.Seed] = true
		if run.PagesCrawled != 3 {
			t.Errorf("run %s: expected 3 pages crawled, got %d", run.RunID, run.PagesCrawled)
		}
	}
	if !seeds[server1.URL] || !seeds[server2.URL] {
		t.Errorf("expected runs for both seeds, got %v", seeds)
	}
}

// TestIntegrationSequentialCrawl crawls two sites one at a time and
// verifies both runs are stored.
func TestIntegrationSequentialCrawl(t *testing.T) {
	server1 := startTestSite(t)
	server2 := startTestSite(t)

	tmpDir := t.TempDir()
	dbDir := filepath.Join(tmpDir, "db")

	cfg := config.NewConfig()
	cfg.Seeds = []string{server1.URL, server2.URL}
	cfg.MaxDepth = 2
	cfg.BatchSize = 1 // Force sequential crawling
	cfg.DBDir = dbDir
	cfg.SaveToDB = true
	cfg.ReportFile = filepath.Join(tmpDir, "report.txt")

	logger := log.NewLogger(os.Stderr, false)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := runCrawl(ctx, cfg, logger); err != nil {
		t.Fatalf("runCrawl() error = %v", err)
	}

	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	runs, err := db.ListRuns(ctx, "", 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs in database, got %d", len(runs))
	}
}

// TestIntegrationSiteConfigFollowPatterns verifies that a follow-pattern
// site configuration restricts which links a crawl expands.
func TestIntegrationSiteConfigFollowPatterns(t *testing.T) {
	server := startTestSite(t)

	tmpDir := t.TempDir()
	dbDir := filepath.Join(tmpDir, "db")

	cfg := config.NewConfig()
	cfg.Seeds = []string{server.URL}
	cfg.MaxDepth = 2
	cfg.BatchSize = 1
	cfg.DBDir = dbDir
	cfg.SaveToDB = true
	cfg.ReportFile = filepath.Join(tmpDir, "report.txt")
	cfg.SiteConfigs = &config.File{
		Sites: map[string]config.SiteConfig{
			seedHost(server.URL): {
				// Only the about page may be followed
				FollowPatterns: []string{"/about"},
			},
		},
	}

	logger := log.NewLogger(os.Stderr, false)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := runCrawl(ctx, cfg, logger); err != nil {
		t.Fatalf("runCrawl() error = %v", err)
	}

	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	runs, err := db.ListRuns(ctx, server.URL, 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run in database, got %d", len(runs))
	}

	// Only the seed and the about page: /contact does not match the
	// follow pattern.
	if runs[0].PagesCrawled != 2 {
		t.Errorf("expected 2 pages crawled, got %d", runs[0].PagesCrawled)
	}

	crawlReport, err := db.GetReport(ctx, runs[0].RunID)
	if err != nil {
		t.Fatalf("failed to get stored report: %v", err)
	}
	for _, page := range crawlReport.Pages {
		if strings.HasSuffix(page.URL, "/contact") {
			t.Errorf("contact page should not have been crawled: %s", page.URL)
		}
	}
}
