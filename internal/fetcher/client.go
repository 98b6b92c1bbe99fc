package fetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// maxRedirects caps redirect chains to prevent loops while allowing
// normal redirects.
const maxRedirects = 10

// NewHTTPClient creates the HTTP client used by the Fetcher.
//
// When proxyAddress is empty, connections are made directly. Otherwise
// all requests are routed through the SOCKS5 proxy at that address,
// which is how corporate egress proxies and Tor are both reached. The
// address must be in "host:port" format; a "socks5://" prefix is
// accepted and stripped.
//
// Design decisions:
//   - Cookies are enabled via a cookie jar so session-gated sites stay
//     reachable across a crawl
//   - Redirect limit is 10 to prevent redirect loops while allowing
//     normal redirects; the last response is returned rather than an error
//     so status classification still applies
//   - Per-host idle connections are raised above the default because a
//     breadth-first wave hits the same host many times in a burst
func NewHTTPClient(timeout time.Duration, proxyAddress string) (*http.Client, error) {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Second,
	}

	if proxyAddress != "" {
		address := strings.TrimPrefix(proxyAddress, "socks5://")
		if !isValidProxyAddress(address) {
			return nil, ErrInvalidProxyAddress
		}

		// We use nil for auth because SOCKS5 proxies used for crawling
		// typically don't require it.
		dialer, err := proxy.SOCKS5("tcp", address, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}

		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			// x/net/proxy dialers implement ContextDialer; fall back to
			// the plain Dial only if that ever changes.
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		}
	}

	// Create cookie jar for session management
	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

// NewHTTPClientWithConfig creates an HTTP client that injects a cookie
// and custom headers into every request. This is useful for crawling
// sites that need credentials or special headers from the per-site
// configuration.
//
// The cookie parameter is a raw cookie string (e.g., "session_id=abc123").
// The headers parameter is a map of header names to values.
//
// Design decision: We use a custom RoundTripper to inject headers/cookies
// rather than modifying each request. This ensures all requests (including
// redirects) include the configured values.
func NewHTTPClientWithConfig(timeout time.Duration, proxyAddress, cookie string, headers map[string]string) (*http.Client, error) {
	client, err := NewHTTPClient(timeout, proxyAddress)
	if err != nil {
		return nil, err
	}

	client.Transport = &headerInjectingTransport{
		base:    client.Transport,
		cookie:  cookie,
		headers: headers,
	}

	return client, nil
}

// isValidProxyAddress checks if the address is in valid "host:port" format.
// We use a simple check rather than a full URL parser because the format
// is very specific (no scheme, no path, just host and port).
func isValidProxyAddress(address string) bool {
	// Must contain exactly one colon separating host and port
	parts := strings.Split(address, ":")
	if len(parts) != 2 {
		return false
	}

	host := parts[0]
	port := parts[1]

	// Host must not be empty
	if host == "" {
		return false
	}

	// Port must be a valid number between 1 and 65535
	if port == "" {
		return false
	}

	portNum := 0
	for _, c := range port {
		if c < '0' || c > '9' {
			return false
		}
		portNum = portNum*10 + int(c-'0')
		// Early exit if port is too large
		if portNum > 65535 {
			return false
		}
	}

	return portNum >= 1
}

// headerInjectingTransport wraps an http.RoundTripper to inject
// custom headers and cookies into every request.
type headerInjectingTransport struct {
	base    http.RoundTripper
	cookie  string
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid modifying the original
	clone := req.Clone(req.Context())

	// Inject cookie if configured
	if t.cookie != "" {
		// Append to existing Cookie header or set new one
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}

	// Inject custom headers
	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
