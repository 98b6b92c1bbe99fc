package fetcher

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedScheme is returned when a URL does not use http or https.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")

	// ErrInvalidProxyAddress is returned when the SOCKS5 proxy address is
	// not a valid host:port pair.
	ErrInvalidProxyAddress = errors.New("invalid proxy address")
)

// Error is a classified fetch failure. It records the URL that failed,
// the HTTP status when one was received, and whether retrying the same
// request could plausibly succeed.
//
// Design decision: Callers inspect Permanent() through a tiny local
// interface rather than importing this package because:
//  1. The crawler stays decoupled from any particular Fetcher implementation
//  2. Stub fetchers in tests can signal permanence the same way
//  3. It mirrors how net.Error exposes Timeout() to the standard library
type Error struct {
	// URL is the requested URL.
	URL string

	// StatusCode is the HTTP status of the response, or 0 when the
	// request never produced one.
	StatusCode int

	// Err is the underlying cause, or nil for plain status failures.
	Err error

	permanent bool
}

// NewPermanentError wraps err as a failure that retrying cannot fix,
// such as a malformed URL or a 404.
func NewPermanentError(url string, statusCode int, err error) *Error {
	return &Error{URL: url, StatusCode: statusCode, Err: err, permanent: true}
}

// NewTransientError wraps err as a failure that may succeed on retry,
// such as a connection reset or a 503.
func NewTransientError(url string, statusCode int, err error) *Error {
	return &Error{URL: url, StatusCode: statusCode, Err: err, permanent: false}
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("fetch %s failed", e.URL)
	}
}

// Unwrap returns the underlying cause so errors.Is and errors.As see
// through the classification.
func (e *Error) Unwrap() error {
	return e.Err
}

// Permanent reports whether retrying the same request is pointless.
func (e *Error) Permanent() bool {
	return e.permanent
}
