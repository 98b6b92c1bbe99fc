package fetcher

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestNewHTTPClient tests HTTP client construction.
func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	t.Run("direct client has cookie jar and timeout", func(t *testing.T) {
		t.Parallel()

		client, err := NewHTTPClient(10*time.Second, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.Jar == nil {
			t.Error("expected cookie jar to be set")
		}
		if client.Timeout != 10*time.Second {
			t.Errorf("Timeout = %v, expected 10s", client.Timeout)
		}
	})

	t.Run("valid proxy address creates client", func(t *testing.T) {
		t.Parallel()

		client, err := NewHTTPClient(30*time.Second, "127.0.0.1:9050")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client == nil {
			t.Fatal("expected non-nil client")
		}
	})

	t.Run("socks5 scheme prefix is accepted", func(t *testing.T) {
		t.Parallel()

		client, err := NewHTTPClient(30*time.Second, "socks5://127.0.0.1:1080")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client == nil {
			t.Fatal("expected non-nil client")
		}
	})

	t.Run("invalid proxy address returns error", func(t *testing.T) {
		t.Parallel()

		_, err := NewHTTPClient(30*time.Second, "not-a-proxy")
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !errors.Is(err, ErrInvalidProxyAddress) {
			t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
		}
	})

	t.Run("stops following redirects after the cap", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/loop/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, r.URL.Path+"x", http.StatusFound)
		})

		server := httptest.NewServer(mux)
		defer server.Close()

		client, err := NewHTTPClient(5*time.Second, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		resp, err := client.Get(server.URL + "/loop/")
		if err != nil {
			t.Fatalf("expected last response instead of error, got %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusFound {
			t.Errorf("expected status 302 after redirect cap, got %d", resp.StatusCode)
		}
	})
}

// TestIsValidProxyAddress tests the proxy address validation function.
func TestIsValidProxyAddress(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		address  string
		expected bool
	}{
		{"valid IPv4 with port", "127.0.0.1:1080", true},
		{"valid localhost with port", "localhost:1080", true},
		{"valid hostname with port", "proxy.example.com:8080", true},
		{"empty string", "", false},
		{"no port", "127.0.0.1", false},
		{"empty host", ":1080", false},
		{"empty port", "127.0.0.1:", false},
		{"multiple colons", "127.0.0.1:1080:extra", false},
		{"only colon", ":", false},
		{"port zero", "127.0.0.1:0", false},
		{"port too large", "127.0.0.1:65536", false},
		{"port not a number", "127.0.0.1:http", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			result := isValidProxyAddress(tc.address)
			if result != tc.expected {
				t.Errorf("isValidProxyAddress(%q) = %v, expected %v", tc.address, result, tc.expected)
			}
		})
	}
}

// TestNewHTTPClientWithConfig tests cookie and header injection.
func TestNewHTTPClientWithConfig(t *testing.T) {
	t.Parallel()

	t.Run("injects cookie and headers into requests", func(t *testing.T) {
		t.Parallel()

		var gotCookie, gotHeader string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotCookie = r.Header.Get("Cookie")
			gotHeader = r.Header.Get("X-Custom-Header")
			fmt.Fprint(w, "ok")
		}))
		defer server.Close()

		client, err := NewHTTPClientWithConfig(5*time.Second, "", "session_id=abc123", map[string]string{
			"X-Custom-Header": "custom-value",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		resp, err := client.Get(server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		resp.Body.Close()

		// Close waits for the handler to return, so the captured headers
		// are safe to read.
		server.Close()

		if gotCookie != "session_id=abc123" {
			t.Errorf("Cookie = %q, expected session_id=abc123", gotCookie)
		}
		if gotHeader != "custom-value" {
			t.Errorf("X-Custom-Header = %q, expected custom-value", gotHeader)
		}
	})

	t.Run("appends cookie to an existing header", func(t *testing.T) {
		t.Parallel()

		var gotCookie string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotCookie = r.Header.Get("Cookie")
			fmt.Fprint(w, "ok")
		}))
		defer server.Close()

		client, err := NewHTTPClientWithConfig(5*time.Second, "", "extra=1", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		req, err := http.NewRequest(http.MethodGet, server.URL, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		req.Header.Set("Cookie", "first=0")

		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		resp.Body.Close()

		// Same as above: wait for the handler before reading the capture.
		server.Close()

		if gotCookie != "first=0; extra=1" {
			t.Errorf("Cookie = %q, expected first=0; extra=1", gotCookie)
		}
	})

	t.Run("invalid proxy address returns error", func(t *testing.T) {
		t.Parallel()

		_, err := NewHTTPClientWithConfig(5*time.Second, "bad", "", nil)
		if !errors.Is(err, ErrInvalidProxyAddress) {
			t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
		}
	})
}
