package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Page represents one fetched web page with the content the crawler needs.
// This is what the fetcher hands to the scheduler for every successful fetch.
//
// Design decision: We keep the fetch result separate from the crawl result
// (PageWords) because:
//  1. The raw body and extracted text are only needed transiently for analysis
//  2. Crawl results are persisted and reported; fetch artifacts are not
//  3. The split keeps the scheduler's collaborator contract narrow
type Page struct {
	// URL is the full URL the page was fetched from.
	URL string `json:"url"`

	// StatusCode is the HTTP response status code.
	StatusCode int `json:"status_code"`

	// ContentType is the Content-Type header as the server sent it,
	// parameters included (e.g., "text/html; charset=utf-8").
	ContentType string `json:"content_type"`

	// Title is the page title extracted from the <title> tag.
	// Empty for non-HTML content.
	Title string `json:"title,omitempty"`

	// Links contains the absolute URLs of all outbound anchors on the page.
	// Only http and https links are included; relative hrefs are resolved
	// against the page URL before they land here.
	Links []string `json:"links,omitempty"`

	// Text is the visible text of the page with script, style, and noscript
	// content removed. Limited to MaxTextSize bytes.
	Text string `json:"-"` // Excluded from JSON; it is analysis input, not output

	// Raw contains the raw response body bytes, limited to MaxPageSize.
	Raw []byte `json:"-"`

	// Hash is the SHA-256 hash of the raw content.
	// Used for change detection between crawl runs.
	Hash string `json:"hash,omitempty"`

	// FetchedAt records when the fetch completed.
	FetchedAt time.Time `json:"fetched_at"`
}

// MaxTextSize is the maximum size of the extracted text in bytes.
// We limit this to prevent memory issues with very large pages.
const MaxTextSize = 512 * 1024 // 512 KB

// MaxPageSize is the maximum size of raw page content to keep.
// Larger bodies are truncated to this size.
const MaxPageSize = 2 * 1024 * 1024 // 2 MB

// ComputeHash calculates and sets the SHA-256 hash of the page's raw content.
// This should be called after setting the Raw field.
func (p *Page) ComputeHash() {
	if len(p.Raw) == 0 {
		p.Hash = ""
		return
	}

	hash := sha256.Sum256(p.Raw)
	p.Hash = hex.EncodeToString(hash[:])
}

// IsHTML returns true if the page content type indicates HTML.
// Prefix matching covers charset-suffixed variants of both types.
func (p *Page) IsHTML() bool {
	return strings.HasPrefix(p.ContentType, "text/html") ||
		strings.HasPrefix(p.ContentType, "application/xhtml+xml")
}

// IsText returns true if the page content type indicates plain text.
// Plain text pages carry no links but their text is still analyzable.
func (p *Page) IsText() bool {
	return strings.HasPrefix(p.ContentType, "text/plain")
}

// TruncateText ensures the extracted text doesn't exceed MaxTextSize.
// Call this after setting Text to enforce the size limit.
func (p *Page) TruncateText() {
	if len(p.Text) > MaxTextSize {
		p.Text = p.Text[:MaxTextSize]
	}
}

// TruncateRaw ensures the raw content doesn't exceed MaxPageSize.
// Call this after setting Raw to enforce the size limit.
func (p *Page) TruncateRaw() {
	if len(p.Raw) > MaxPageSize {
		p.Raw = p.Raw[:MaxPageSize]
	}
}
