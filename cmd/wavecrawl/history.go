package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/wavecrawl/internal/config"
	"github.com/nao1215/wavecrawl/internal/crawler"
	"github.com/nao1215/wavecrawl/internal/database"
	"github.com/nao1215/wavecrawl/internal/model"
	"github.com/nao1215/wavecrawl/internal/report"
	"github.com/spf13/cobra"
)

// diffTopWords is how many aggregate top words each side of a diff
// contributes. The union of both runs' top words is reported, so a word
// that fell out of the top list still shows its decline.
const diffTopWords = 10

// NewHistoryCmd creates the history command.
// This command lists and compares crawl runs stored in the database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [seed-url]",
		Short: "List and compare stored crawl runs",
		Long: `History lists and compares crawl runs stored in the local database.

Every 'wavecrawl crawl' run is saved automatically. This command retrieves
those runs to list them, reprint a stored report, or diff the two most
recent runs of a seed: which pages appeared or disappeared, and how the
most frequent words shifted between runs.

Examples:
  # List recent runs across all seeds
  wavecrawl history

  # List runs for one seed
  wavecrawl history https://example.com

  # List every seed in the database
  wavecrawl history --list-seeds

  # Limit the listing to the five most recent runs
  wavecrawl history --limit 5 https://example.com

  # Reprint a stored report
  wavecrawl history --show <run-id>

  # Diff the latest two runs of a seed
  wavecrawl history --diff https://example.com

  # Diff in JSON format
  wavecrawl history --diff --json https://example.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	// Listing flags
	cmd.Flags().BoolP("list-seeds", "l", false,
		"List all seeds with stored runs")
	cmd.Flags().IntP("limit", "n", 0,
		"Maximum number of runs to list (0 means all)")

	// Single run display
	cmd.Flags().StringP("show", "s", "",
		"Print the stored report for the given run ID")

	// Comparison flags
	cmd.Flags().BoolP("diff", "d", false,
		"Diff the latest two runs of the given seed")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format (applies to --show and --diff)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	listSeeds, err := cmd.Flags().GetBool("list-seeds")
	if err != nil {
		return err
	}
	showRunID, err := cmd.Flags().GetString("show")
	if err != nil {
		return err
	}
	diff, err := cmd.Flags().GetBool("diff")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database. Stored runs carry
	// the normalized seed, so the lookup key must be normalized the same
	// way the crawler does it.
	var seed string
	if len(args) > 0 {
		seed, err = crawler.NormalizeSeed(args[0])
		if err != nil {
			return fmt.Errorf("invalid seed URL: %w", err)
		}
	}
	if diff && seed == "" {
		return errors.New("a seed URL is required for --diff (use --list-seeds to see available seeds)")
	}

	// Use XDG data directory for database
	dbDir := config.XDGDataDir()

	// Open database
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	switch {
	case listSeeds:
		return listCrawledSeeds(ctx, db)
	case showRunID != "":
		return showRun(ctx, db, showRunID, jsonOutput)
	case diff:
		return runDiff(ctx, db, seed, jsonOutput)
	default:
		return listRunHistory(ctx, db, seed, limit)
	}
}

// listCrawledSeeds lists all seeds that have crawl runs in the database.
func listCrawledSeeds(ctx context.Context, db *database.CrawlDB) error {
	seeds, err := db.ListSeeds(ctx)
	if err != nil {
		return fmt.Errorf("failed to list seeds: %w", err)
	}

	if len(seeds) == 0 {
		fmt.Println("No crawl runs found in the database.")
		fmt.Println("\nUse 'wavecrawl crawl <url>' to crawl a site.")
		return nil
	}

	fmt.Printf("Crawled seeds (%d):\n\n", len(seeds))
	for _, seed := range seeds {
		fmt.Printf("  • %s\n", seed)
	}
	fmt.Println("\nUse 'wavecrawl history <url>' to see the runs for a seed.")

	return nil
}

// listRunHistory lists stored crawl runs, newest first. An empty seed
// lists runs for every seed.
func listRunHistory(ctx context.Context, db *database.CrawlDB, seed string, limit int) error {
	runs, err := db.ListRuns(ctx, seed, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		if seed != "" {
			fmt.Printf("No crawl runs found for %s\n", seed)
		} else {
			fmt.Println("No crawl runs found in the database.")
		}
		fmt.Println("\nUse 'wavecrawl crawl <url>' to crawl a site.")
		return nil
	}

	if seed != "" {
		fmt.Printf("Crawl runs for %s (%d runs):\n\n", seed, len(runs))
	} else {
		fmt.Printf("Crawl runs (%d):\n\n", len(runs))
	}
	fmt.Printf("  %-36s  %-20s  %-15s  %6s  %s\n", "Run ID", "Started", "Termination", "Pages", "Seed")
	fmt.Println("  " + strings.Repeat("-", 100))

	for _, run := range runs {
		fmt.Printf("  %-36s  %-20s  %-15s  %6d  %s\n",
			run.RunID,
			run.StartedAt.Format("2006-01-02 15:04:05"),
			run.Termination,
			run.PagesCrawled,
			run.Seed,
		)
	}

	fmt.Println("\nUse 'wavecrawl history --show <run-id>' to print a stored report.")
	fmt.Println("Use 'wavecrawl history --diff <url>' to compare the latest two runs.")

	return nil
}

// showRun prints the stored report for a single run.
func showRun(ctx context.Context, db *database.CrawlDB, runID string, jsonOutput bool) error {
	crawlReport, err := db.GetReport(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to get report: %w", err)
	}
	if crawlReport == nil {
		return fmt.Errorf("run %s not found (use 'wavecrawl history' to list run IDs)", runID)
	}

	if jsonOutput {
		writer := report.NewJSONWriter(os.Stdout, report.WithPrettyPrint())
		_, err = writer.Write(crawlReport)
		return err
	}

	writer := report.NewSimpleWriter(os.Stdout)
	_, err = writer.Write(crawlReport)
	return err
}

// runDiff compares the latest two runs of a seed.
func runDiff(ctx context.Context, db *database.CrawlDB, seed string, jsonOutput bool) error {
	runIDs, err := db.LatestRunIDs(ctx, seed, 2)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if len(runIDs) == 0 {
		return fmt.Errorf("no crawl runs found for %s", seed)
	}
	if len(runIDs) < 2 {
		return fmt.Errorf("at least 2 runs are required for a diff (found %d)", len(runIDs))
	}

	// LatestRunIDs returns newest first
	current, err := db.GetReport(ctx, runIDs[0])
	if err != nil {
		return fmt.Errorf("failed to load run %s: %w", runIDs[0], err)
	}
	if current == nil {
		return fmt.Errorf("run %s not found", runIDs[0])
	}
	previous, err := db.GetReport(ctx, runIDs[1])
	if err != nil {
		return fmt.Errorf("failed to load run %s: %w", runIDs[1], err)
	}
	if previous == nil {
		return fmt.Errorf("run %s not found", runIDs[1])
	}

	diff := diffReports(previous, current)

	if jsonOutput {
		return outputDiffJSON(diff)
	}
	return outputDiffText(diff)
}

// DiffResult holds the result of comparing two crawl runs of one seed.
type DiffResult struct {
	// Seed is the URL both runs started from.
	Seed string `json:"seed"`

	// PreviousRun contains metadata about the older run.
	PreviousRun RunMetadata `json:"previous_run"`

	// CurrentRun contains metadata about the newer run.
	CurrentRun RunMetadata `json:"current_run"`

	// NewPages are URLs crawled in the current run but not the previous one.
	NewPages []string `json:"new_pages,omitempty"`

	// RemovedPages are URLs crawled in the previous run but not the current one.
	RemovedPages []string `json:"removed_pages,omitempty"`

	// UnchangedCount is the number of URLs present in both runs.
	UnchangedCount int `json:"unchanged_count"`

	// WordDeltas describes how the aggregate top-word counts changed.
	WordDeltas []WordDelta `json:"word_deltas,omitempty"`
}

// RunMetadata contains metadata about one run for diff display.
type RunMetadata struct {
	// RunID is the unique identifier of the run.
	RunID string `json:"run_id"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Termination records why the run stopped.
	Termination string `json:"termination"`

	// PagesCrawled is the number of pages the run collected.
	PagesCrawled int `json:"pages_crawled"`

	// TotalWords is the sum of word occurrences across the run's pages.
	TotalWords int `json:"total_words"`
}

// WordDelta describes how one word's aggregate count changed between runs.
type WordDelta struct {
	// Word is the counted word.
	Word string `json:"word"`

	// PreviousCount is the aggregate count in the older run.
	PreviousCount int `json:"previous_count"`

	// CurrentCount is the aggregate count in the newer run.
	CurrentCount int `json:"current_count"`

	// Delta is CurrentCount minus PreviousCount.
	Delta int `json:"delta"`
}

// diffReports compares two crawl runs and generates a diff result.
func diffReports(previous, current *model.CrawlReport) *DiffResult {
	result := &DiffResult{
		Seed:        current.Seed,
		PreviousRun: newRunMetadata(previous),
		CurrentRun:  newRunMetadata(current),
	}

	// Build page sets for comparison
	previousPages := make(map[string]bool)
	for _, page := range previous.Pages {
		previousPages[page.URL] = true
	}
	currentPages := make(map[string]bool)
	for _, page := range current.Pages {
		currentPages[page.URL] = true
	}

	// Find new pages (in current but not in previous)
	for url := range currentPages {
		if !previousPages[url] {
			result.NewPages = append(result.NewPages, url)
		}
	}

	// Find removed pages (in previous but not in current)
	for url := range previousPages {
		if !currentPages[url] {
			result.RemovedPages = append(result.RemovedPages, url)
		} else {
			result.UnchangedCount++
		}
	}

	sort.Strings(result.NewPages)
	sort.Strings(result.RemovedPages)

	result.WordDeltas = wordDeltas(previous, current, diffTopWords)

	return result
}

// newRunMetadata extracts the diff display metadata from a report.
func newRunMetadata(crawlReport *model.CrawlReport) RunMetadata {
	return RunMetadata{
		RunID:        crawlReport.RunID,
		StartedAt:    crawlReport.StartedAt,
		Termination:  crawlReport.Termination.String(),
		PagesCrawled: crawlReport.PagesCrawled(),
		TotalWords:   crawlReport.TotalWords(),
	}
}

// wordDeltas compares the aggregate word counts of two runs over the
// union of both runs' top n words.
func wordDeltas(previous, current *model.CrawlReport, n int) []WordDelta {
	previousCounts := aggregateCounts(previous)
	currentCounts := aggregateCounts(current)

	union := make(map[string]bool)
	for _, wc := range previous.TopWords(n) {
		union[wc.Word] = true
	}
	for _, wc := range current.TopWords(n) {
		union[wc.Word] = true
	}

	deltas := make([]WordDelta, 0, len(union))
	for word := range union {
		deltas = append(deltas, WordDelta{
			Word:          word,
			PreviousCount: previousCounts[word],
			CurrentCount:  currentCounts[word],
			Delta:         currentCounts[word] - previousCounts[word],
		})
	}

	// Largest current count first; ties break alphabetically, matching
	// the order reports use.
	sort.Slice(deltas, func(i, j int) bool {
		if deltas[i].CurrentCount != deltas[j].CurrentCount {
			return deltas[i].CurrentCount > deltas[j].CurrentCount
		}
		return deltas[i].Word < deltas[j].Word
	})

	return deltas
}

// aggregateCounts sums word frequencies across all pages of a run.
func aggregateCounts(crawlReport *model.CrawlReport) map[string]int {
	counts := make(map[string]int)
	for _, page := range crawlReport.Pages {
		for word, count := range page.Frequencies {
			counts[word] += count
		}
	}
	return counts
}

// outputDiffJSON outputs the diff result in JSON format.
func outputDiffJSON(result *DiffResult) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// outputDiffText outputs the diff result in human-readable text format.
func outputDiffText(result *DiffResult) error {
	fmt.Printf("Run Diff: %s\n", result.Seed)
	fmt.Println(strings.Repeat("=", 60))

	// Run metadata
	fmt.Printf("\nPrevious run: %s\n", result.PreviousRun.RunID)
	fmt.Printf("              %s, %d pages, %s\n",
		result.PreviousRun.StartedAt.Format("2006-01-02 15:04:05"),
		result.PreviousRun.PagesCrawled,
		result.PreviousRun.Termination)
	fmt.Printf("Current run:  %s\n", result.CurrentRun.RunID)
	fmt.Printf("              %s, %d pages, %s\n",
		result.CurrentRun.StartedAt.Format("2006-01-02 15:04:05"),
		result.CurrentRun.PagesCrawled,
		result.CurrentRun.Termination)

	// Page set changes
	if len(result.NewPages) > 0 {
		fmt.Printf("\nNew Pages (%d):\n", len(result.NewPages))
		for _, url := range result.NewPages {
			fmt.Printf("  [+] %s\n", url)
		}
	}
	if len(result.RemovedPages) > 0 {
		fmt.Printf("\nRemoved Pages (%d):\n", len(result.RemovedPages))
		for _, url := range result.RemovedPages {
			fmt.Printf("  [-] %s\n", url)
		}
	}
	fmt.Printf("\nUnchanged: %d pages\n", result.UnchangedCount)

	// Aggregate word changes
	if len(result.WordDeltas) > 0 {
		fmt.Println("\nTop Word Changes:")
		fmt.Printf("  %-20s  %-10s  %-10s  %-10s\n", "Word", "Previous", "Current", "Change")
		fmt.Println("  " + strings.Repeat("-", 56))
		for _, delta := range result.WordDeltas {
			fmt.Printf("  %-20s  %-10d  %-10d  %-10s\n",
				delta.Word, delta.PreviousCount, delta.CurrentCount, formatDelta(delta.Delta))
		}
	}

	fmt.Printf("\nTotal words: %d -> %d (%s)\n",
		result.PreviousRun.TotalWords,
		result.CurrentRun.TotalWords,
		formatDelta(result.CurrentRun.TotalWords-result.PreviousRun.TotalWords))

	return nil
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	} else if delta < 0 {
		return strconv.Itoa(delta)
	}
	return "0"
}
