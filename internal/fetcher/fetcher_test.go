package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestFetch tests page retrieval and extraction.
func TestFetch(t *testing.T) {
	t.Parallel()

	t.Run("fetches an HTML page", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			//nolint:errcheck // test handler
			_, _ = w.Write([]byte(`<html><head><title>Home</title></head><body><p>hello world</p><a href="/about">About</a></body></html>`))
		}))
		defer server.Close()

		f := New(WithClient(server.Client()))

		page, err := f.Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if page.URL != server.URL {
			t.Errorf("URL = %q, expected %q", page.URL, server.URL)
		}
		if page.StatusCode != http.StatusOK {
			t.Errorf("StatusCode = %d, expected 200", page.StatusCode)
		}
		if page.Title != "Home" {
			t.Errorf("Title = %q, expected Home", page.Title)
		}
		if !strings.Contains(page.Text, "hello world") {
			t.Errorf("Text = %q, expected to contain 'hello world'", page.Text)
		}
		if len(page.Links) != 1 || page.Links[0] != server.URL+"/about" {
			t.Errorf("Links = %v, expected [%s/about]", page.Links, server.URL)
		}
		if page.Hash == "" {
			t.Error("expected content hash to be set")
		}
		if page.FetchedAt.IsZero() {
			t.Error("expected FetchedAt to be set")
		}
	})

	t.Run("malformed URL is a permanent failure", func(t *testing.T) {
		t.Parallel()

		f := New()

		_, err := f.Fetch(context.Background(), "http://exa mple.com/")
		if err == nil {
			t.Fatal("expected error, got nil")
		}

		var fetchErr *Error
		if !errors.As(err, &fetchErr) {
			t.Fatalf("expected *Error, got %T", err)
		}
		if !fetchErr.Permanent() {
			t.Error("expected permanent error for malformed URL")
		}
	})

	t.Run("unsupported scheme is a permanent failure", func(t *testing.T) {
		t.Parallel()

		f := New()

		_, err := f.Fetch(context.Background(), "ftp://example.com/file")
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !errors.Is(err, ErrUnsupportedScheme) {
			t.Errorf("expected ErrUnsupportedScheme, got %v", err)
		}

		var fetchErr *Error
		if !errors.As(err, &fetchErr) {
			t.Fatalf("expected *Error, got %T", err)
		}
		if !fetchErr.Permanent() {
			t.Error("expected permanent error for unsupported scheme")
		}
	})

	t.Run("classifies HTTP statuses", func(t *testing.T) {
		t.Parallel()

		testCases := []struct {
			name      string
			status    int
			permanent bool
		}{
			{"404 not found is permanent", http.StatusNotFound, true},
			{"403 forbidden is permanent", http.StatusForbidden, true},
			{"410 gone is permanent", http.StatusGone, true},
			{"429 too many requests is transient", http.StatusTooManyRequests, false},
			{"500 internal error is transient", http.StatusInternalServerError, false},
			{"503 unavailable is transient", http.StatusServiceUnavailable, false},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()

				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
					w.WriteHeader(tc.status)
				}))
				defer server.Close()

				f := New(WithClient(server.Client()))

				_, err := f.Fetch(context.Background(), server.URL)
				if err == nil {
					t.Fatal("expected error, got nil")
				}

				var fetchErr *Error
				if !errors.As(err, &fetchErr) {
					t.Fatalf("expected *Error, got %T", err)
				}
				if fetchErr.Permanent() != tc.permanent {
					t.Errorf("Permanent() = %v, expected %v", fetchErr.Permanent(), tc.permanent)
				}
				if fetchErr.StatusCode != tc.status {
					t.Errorf("StatusCode = %d, expected %d", fetchErr.StatusCode, tc.status)
				}
			})
		}
	})

	t.Run("network failure is transient", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, "ok")
		}))
		url := server.URL
		server.Close()

		f := New()

		_, err := f.Fetch(context.Background(), url)
		if err == nil {
			t.Fatal("expected error, got nil")
		}

		var fetchErr *Error
		if !errors.As(err, &fetchErr) {
			t.Fatalf("expected *Error, got %T", err)
		}
		if fetchErr.Permanent() {
			t.Error("expected transient error for connection failure")
		}
	})

	t.Run("non-HTML content yields no links and no text", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.4 fake content")) //nolint:errcheck
		}))
		defer server.Close()

		f := New(WithClient(server.Client()))

		page, err := f.Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(page.Links) != 0 {
			t.Errorf("expected no links, got %v", page.Links)
		}
		if page.Text != "" {
			t.Errorf("expected no text, got %q", page.Text)
		}
	})

	t.Run("plain text content yields text but no links", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("plain words\nhere http://example.com/ignored")) //nolint:errcheck
		}))
		defer server.Close()

		f := New(WithClient(server.Client()))

		page, err := f.Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !strings.Contains(page.Text, "plain words here") {
			t.Errorf("expected whitespace-collapsed text body, got %q", page.Text)
		}
		if len(page.Links) != 0 {
			t.Errorf("expected no links from plain text, got %v", page.Links)
		}
	})

	t.Run("caps response body size", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(strings.Repeat("a", 4096))) //nolint:errcheck
		}))
		defer server.Close()

		f := New(WithClient(server.Client()), WithMaxBodySize(16))

		page, err := f.Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(page.Raw) != 16 {
			t.Errorf("expected body capped at 16 bytes, got %d", len(page.Raw))
		}
	})

	t.Run("sends the configured user agent", func(t *testing.T) {
		t.Parallel()

		var gotUA, gotAccept string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA = r.Header.Get("User-Agent")
			gotAccept = r.Header.Get("Accept")
			fmt.Fprint(w, "ok")
		}))
		defer server.Close()

		f := New(WithClient(server.Client()), WithUserAgent("testbot/2.0"))

		if _, err := f.Fetch(context.Background(), server.URL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// Close waits for the handler to return, so the captured headers
		// are safe to read.
		server.Close()

		if gotUA != "testbot/2.0" {
			t.Errorf("User-Agent = %q, expected testbot/2.0", gotUA)
		}
		if !strings.Contains(gotAccept, "text/html") {
			t.Errorf("Accept = %q, expected to contain text/html", gotAccept)
		}
	})

	t.Run("keeps the requested URL across redirects", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/dir/final", http.StatusFound)
		})
		mux.HandleFunc("/dir/final", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><body><a href="child">Child</a></body></html>`)) //nolint:errcheck
		})

		server := httptest.NewServer(mux)
		defer server.Close()

		f := New(WithClient(server.Client()))

		page, err := f.Fetch(context.Background(), server.URL+"/start")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if page.URL != server.URL+"/start" {
			t.Errorf("URL = %q, expected the requested URL", page.URL)
		}
		// Relative links resolve against the redirect target, not the
		// requested URL.
		if len(page.Links) != 1 || page.Links[0] != server.URL+"/dir/child" {
			t.Errorf("Links = %v, expected [%s/dir/child]", page.Links, server.URL)
		}
	})

	t.Run("same host only drops foreign links", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			//nolint:errcheck // test handler
			_, _ = w.Write([]byte(`<html><body><a href="/local">Local</a><a href="http://other.example.org/">Foreign</a></body></html>`))
		}))
		defer server.Close()

		f := New(WithClient(server.Client()), WithSameHostOnly(true))

		page, err := f.Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(page.Links) != 1 || page.Links[0] != server.URL+"/local" {
			t.Errorf("Links = %v, expected only the local link", page.Links)
		}
	})

	t.Run("same host only accepts the redirect target host", func(t *testing.T) {
		t.Parallel()

		target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><body><a href="/moved-page">Moved</a></body></html>`)) //nolint:errcheck
		}))
		defer target.Close()

		source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, target.URL, http.StatusMovedPermanently)
		}))
		defer source.Close()

		f := New(WithSameHostOnly(true))

		page, err := f.Fetch(context.Background(), source.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(page.Links) != 1 || page.Links[0] != target.URL+"/moved-page" {
			t.Errorf("Links = %v, expected the redirect target's link", page.Links)
		}
	})

	t.Run("ignore patterns drop matching links", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			//nolint:errcheck // test handler
			_, _ = w.Write([]byte(`<html><body><a href="/admin/panel">Admin</a><a href="/docs/file.pdf">PDF</a><a href="/page">Page</a></body></html>`))
		}))
		defer server.Close()

		f := New(WithClient(server.Client()), WithIgnorePatterns([]string{"/admin/*", "*.pdf"}))

		page, err := f.Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(page.Links) != 1 || page.Links[0] != server.URL+"/page" {
			t.Errorf("Links = %v, expected only /page", page.Links)
		}
	})

	t.Run("follow patterns keep only matching links", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			//nolint:errcheck // test handler
			_, _ = w.Write([]byte(`<html><body><a href="/wiki/Go">Wiki</a><a href="/news/today">News</a></body></html>`))
		}))
		defer server.Close()

		f := New(WithClient(server.Client()), WithFollowPatterns([]string{"/wiki/*"}))

		page, err := f.Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(page.Links) != 1 || page.Links[0] != server.URL+"/wiki/Go" {
			t.Errorf("Links = %v, expected only the wiki link", page.Links)
		}
	})

	t.Run("rate limiter respects cancellation", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, "ok")
		}))
		defer server.Close()

		// One request per ~3 hours: the first call drains the burst
		// token, the second must wait far beyond the deadline.
		f := New(WithClient(server.Client()), WithRequestsPerSecond(0.0001))

		if _, err := f.Fetch(context.Background(), server.URL); err != nil {
			t.Fatalf("unexpected error on first fetch: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := f.Fetch(ctx, server.URL)
		if err == nil {
			t.Fatal("expected error, got nil")
		}

		var fetchErr *Error
		if !errors.As(err, &fetchErr) {
			t.Fatalf("expected *Error, got %T", err)
		}
		if fetchErr.Permanent() {
			t.Error("expected transient error for cancelled rate wait")
		}
	})
}

// TestMatchPattern tests glob matching for link filters.
func TestMatchPattern(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		{"subtree wildcard matches child", "/admin/*", "/admin/dashboard", true},
		{"subtree wildcard matches nested child", "/admin/*", "/admin/users/1", true},
		{"subtree wildcard matches the root itself", "/admin/*", "/admin", true},
		{"subtree wildcard rejects sibling", "/admin/*", "/administrator", false},
		{"extension pattern matches anywhere", "*.pdf", "/docs/manual.pdf", true},
		{"extension pattern rejects others", "*.pdf", "/docs/manual.html", false},
		{"question mark matches one character", "/api/v?", "/api/v1", true},
		{"question mark rejects two characters", "/api/v?", "/api/v10", false},
		{"exact match", "/logout", "/logout", true},
		{"prefix glob", "/logout*", "/logout?next=home", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := matchPattern(tc.pattern, tc.path); got != tc.want {
				t.Errorf("matchPattern(%q, %q) = %v, expected %v", tc.pattern, tc.path, got, tc.want)
			}
		})
	}
}

// TestError tests fetch error formatting and classification.
func TestError(t *testing.T) {
	t.Parallel()

	t.Run("message includes the underlying error", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("connection refused")
		err := NewTransientError("http://example.com", 0, cause)

		if !strings.Contains(err.Error(), "http://example.com") {
			t.Errorf("message %q should contain the URL", err.Error())
		}
		if !strings.Contains(err.Error(), "connection refused") {
			t.Errorf("message %q should contain the cause", err.Error())
		}
	})

	t.Run("message includes the status when there is no cause", func(t *testing.T) {
		t.Parallel()

		err := NewPermanentError("http://example.com", 404, nil)

		if !strings.Contains(err.Error(), "404") {
			t.Errorf("message %q should contain the status", err.Error())
		}
	})

	t.Run("unwraps to the underlying error", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("boom")
		err := NewTransientError("http://example.com", 0, cause)

		if !errors.Is(err, cause) {
			t.Error("expected errors.Is to see the cause")
		}
	})

	t.Run("reports permanence", func(t *testing.T) {
		t.Parallel()

		if !NewPermanentError("u", 0, nil).Permanent() {
			t.Error("expected permanent")
		}
		if NewTransientError("u", 0, nil).Permanent() {
			t.Error("expected transient")
		}
	})
}
