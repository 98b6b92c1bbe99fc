package fetcher

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/wavecrawl/internal/model"
	"golang.org/x/time/rate"
)

// defaultUserAgent identifies the crawler honestly. Sites that want to
// block or rate it can do so by name.
const defaultUserAgent = "wavecrawl/1.0 (+https://github.com/nao1215/wavecrawl)"

// defaultTimeout bounds a single request including redirects.
const defaultTimeout = 30 * time.Second

// Fetcher retrieves pages over HTTP(S) and extracts their title, links,
// and visible text. It holds no crawl state, so a single Fetcher is safe
// for concurrent use by any number of workers.
type Fetcher struct {
	// client is the HTTP client used for all requests.
	client *http.Client

	// userAgent is the User-Agent header to send.
	userAgent string

	// maxBodySize limits the size of response bodies to read.
	maxBodySize int64

	// limiter throttles outgoing requests across all workers.
	// nil means unthrottled.
	limiter *rate.Limiter

	// sameHostOnly drops discovered links that leave the fetched
	// page's host.
	sameHostOnly bool

	// ignorePatterns are URL path patterns whose links are dropped.
	// Patterns use glob syntax (e.g., "/admin/*", "*.pdf").
	ignorePatterns []string

	// followPatterns are URL path patterns links must match to be kept.
	// Empty means all links are allowed (subject to ignorePatterns).
	followPatterns []string

	// logger records per-fetch details at debug level.
	logger *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets the HTTP client to use. Build one with NewHTTPClient
// to get cookie and redirect handling, or pass a custom client in tests.
func WithClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the maximum response body size in bytes.
func WithMaxBodySize(size int64) Option {
	return func(f *Fetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithRequestsPerSecond throttles outgoing requests to the given rate,
// shared across all concurrent workers. Zero or negative means no limit.
func WithRequestsPerSecond(rps float64) Option {
	return func(f *Fetcher) {
		if rps > 0 {
			f.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithSameHostOnly restricts discovered links to the fetched page's
// host. Because every page only ever emits same-host links, the crawl
// as a whole stays on the seed's host.
func WithSameHostOnly(on bool) Option {
	return func(f *Fetcher) {
		f.sameHostOnly = on
	}
}

// WithIgnorePatterns sets URL path patterns whose links are dropped.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
func WithIgnorePatterns(patterns []string) Option {
	return func(f *Fetcher) {
		f.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns links must match to be kept.
// Patterns use glob syntax (e.g., "/wiki/*", "/docs/*").
// Empty slice means all links are allowed (default behavior).
func WithFollowPatterns(patterns []string) Option {
	return func(f *Fetcher) {
		f.followPatterns = patterns
	}
}

// WithLogger sets the logger for per-fetch debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New creates a Fetcher with sensible defaults: a direct-connection
// client with a 30 second timeout, a 2 MiB body cap, and no rate limit.
func New(opts ...Option) *Fetcher {
	// Error is impossible without a proxy address.
	client, _ := NewHTTPClient(defaultTimeout, "")

	f := &Fetcher{
		client:      client,
		userAgent:   defaultUserAgent,
		maxBodySize: model.MaxPageSize,
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.logger == nil {
		f.logger = slog.Default()
	}

	return f
}

// Fetch retrieves one URL and builds a model.Page from the response.
//
// Every failure is returned as *Error so the caller can distinguish
// permanent failures from transient ones. The returned page carries the
// requested URL, not the final one after redirects, because that is the
// identity the caller claimed before fetching.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*model.Page, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, NewPermanentError(rawURL, 0, err)
	}
	if pageURL.Scheme != "http" && pageURL.Scheme != "https" {
		return nil, NewPermanentError(rawURL, 0, ErrUnsupportedScheme)
	}

	// Politeness gate. Waiting respects cancellation, so a timed-out
	// crawl never sits in line for a token.
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, NewTransientError(rawURL, 0, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return nil, NewPermanentError(rawURL, 0, err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, NewTransientError(rawURL, 0, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(rawURL, resp.StatusCode); err != nil {
		return nil, err
	}

	// Read body with limit
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, NewTransientError(rawURL, 0, err)
	}

	page := &model.Page{
		URL:         rawURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Raw:         body,
		FetchedAt:   time.Now(),
	}
	page.ComputeHash()

	// Redirects may have moved the document; relative links resolve
	// against where it actually came from.
	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}

	switch {
	case page.IsHTML():
		if parser, perr := NewParser(finalURL.String()); perr == nil {
			if result, perr := parser.Parse(bytes.NewReader(body)); perr == nil {
				page.Title = result.Title
				page.Text = result.Text
				page.Links = f.filterLinks(pageURL, finalURL, result.Links)
			}
		}
	case page.IsText():
		// Words in a plain-text page count the same as words in HTML,
		// but there are no links to follow. Whitespace is collapsed the
		// same way the HTML parser does it, so line breaks stay word
		// boundaries for downstream counting.
		page.Text = strings.Join(strings.Fields(string(body)), " ")
	}

	page.TruncateText()
	page.TruncateRaw()

	f.logger.Debug("fetched page",
		"url", rawURL,
		"status", resp.StatusCode,
		"content_type", page.ContentType,
		"links", len(page.Links))

	return page, nil
}

// classifyStatus converts a non-2xx status into a classified error.
// Overload answers (429, 5xx) deserve another attempt; everything else
// will answer the same way next time.
func classifyStatus(rawURL string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests || status >= 500:
		return NewTransientError(rawURL, status, nil)
	default:
		// Remaining 4xx, plus 3xx responses that survived the redirect
		// cap (a redirect loop).
		return NewPermanentError(rawURL, status, nil)
	}
}

// filterLinks applies the same-host and pattern filters to links
// extracted from a page.
//
// Same-host comparison accepts both the requested host and the final
// host after redirects, so a seed that redirects from example.com to
// www.example.com still yields its links.
func (f *Fetcher) filterLinks(requested, final *url.URL, links []string) []string {
	if !f.sameHostOnly && len(f.ignorePatterns) == 0 && len(f.followPatterns) == 0 {
		return links
	}

	kept := make([]string, 0, len(links))
	for _, link := range links {
		u, err := url.Parse(link)
		if err != nil {
			continue
		}
		if f.sameHostOnly && !sameHost(u, requested, final) {
			continue
		}
		if !f.shouldFollow(u) {
			continue
		}
		kept = append(kept, link)
	}

	return kept
}

// sameHost reports whether u points at one of the given hosts.
func sameHost(u *url.URL, hosts ...*url.URL) bool {
	for _, h := range hosts {
		if h != nil && strings.EqualFold(u.Host, h.Host) {
			return true
		}
	}
	return false
}

// shouldFollow checks a link against the ignore/follow patterns.
//
// Logic:
//  1. If the path matches any ignorePattern, drop it
//  2. If followPatterns is set and the path matches none, drop it
//  3. Otherwise, keep it
func (f *Fetcher) shouldFollow(u *url.URL) bool {
	// Get the path for pattern matching
	path := u.Path
	if path == "" {
		path = "/"
	}

	// Check ignore patterns first - if matched, skip
	for _, pattern := range f.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	// If follow patterns are set, the path must match at least one
	if len(f.followPatterns) > 0 {
		for _, pattern := range f.followPatterns {
			if matchPattern(pattern, path) {
				return true
			}
		}
		// No follow pattern matched
		return false
	}

	// No follow patterns set, allow all (that weren't ignored)
	return true
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard", "/admin/users"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, path string) bool {
	// For patterns like "/admin/*", match the whole subtree rather
	// than a single segment.
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	// Handle extension patterns like "*.pdf" anywhere in the path
	if strings.HasPrefix(pattern, "*.") {
		ext := strings.TrimPrefix(pattern, "*")
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	// Use filepath.Match for standard glob matching.
	// Note: filepath.Match doesn't support ** for recursive matching,
	// but it handles * and ? well for single-segment patterns.
	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}

	return matched
}
