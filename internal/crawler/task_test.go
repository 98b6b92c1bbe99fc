package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

// TestTaskRun tests the claim-gated task lifecycle.
func TestTaskRun(t *testing.T) {
	t.Parallel()

	t.Run("skips a URL another task already claimed", func(t *testing.T) {
		t.Parallel()

		f := newStubFetcher(map[string]stubPage{
			"http://a.example": {text: "words"},
		})
		registry := NewRegistry()
		registry.Claim("http://a.example")

		var failed atomic.Int64
		tk := &task{
			url:      "http://a.example",
			fetcher:  f,
			analyzer: stubAnalyzer{},
			registry: registry,
			next:     newLinkBuffer(),
			results:  newResultBuffer(),
			retry:    DefaultRetryPolicy,
			failed:   &failed,
			logger:   slog.Default(),
		}
		tk.run(context.Background())

		if f.totalCalls() != 0 {
			t.Error("a lost claim must mean no fetch")
		}
		if got := tk.results.drain(); len(got) != 0 {
			t.Errorf("expected no results, got %d", len(got))
		}
	})

	t.Run("skips everything when the context is already done", func(t *testing.T) {
		t.Parallel()

		f := newStubFetcher(map[string]stubPage{
			"http://a.example": {text: "words"},
		})
		registry := NewRegistry()
		registry.Register("http://a.example")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var failed atomic.Int64
		tk := &task{
			url:      "http://a.example",
			fetcher:  f,
			analyzer: stubAnalyzer{},
			registry: registry,
			next:     newLinkBuffer(),
			results:  newResultBuffer(),
			retry:    DefaultRetryPolicy,
			failed:   &failed,
			logger:   slog.Default(),
		}
		tk.run(ctx)

		if f.totalCalls() != 0 {
			t.Error("a dead context must mean no fetch and no claim")
		}
		if !registry.Claim("http://a.example") {
			t.Error("the URL should still be claimable by a later wave")
		}
	})

	t.Run("cancellation cuts the backoff sleep short", func(t *testing.T) {
		t.Parallel()

		f := newStubFetcher(map[string]stubPage{
			"http://flaky.example": {},
		})
		f.transientFails["http://flaky.example"] = 99

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()

		var failed atomic.Int64
		tk := &task{
			url:      "http://flaky.example",
			fetcher:  f,
			analyzer: stubAnalyzer{},
			registry: NewRegistry(),
			next:     newLinkBuffer(),
			results:  newResultBuffer(),
			retry:    RetryPolicy{MaxAttempts: 3, BaseDelay: time.Hour},
			failed:   &failed,
			logger:   slog.Default(),
		}

		start := time.Now()
		tk.run(ctx)
		elapsed := time.Since(start)

		if elapsed > 2*time.Second {
			t.Errorf("task took %v, expected cancellation to cut the backoff short", elapsed)
		}
		if failed.Load() != 1 {
			t.Errorf("failed = %d, expected 1", failed.Load())
		}
	})
}

// TestIsPermanent tests the duck-typed failure classification.
func TestIsPermanent(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{"permanent failure", &stubErr{permanent: true, msg: "gone"}, true},
		{"transient failure", &stubErr{permanent: false, msg: "busy"}, false},
		{"plain error", errors.New("anonymous"), false},
		{"wrapped permanent failure", fmt.Errorf("fetch: %w", &stubErr{permanent: true, msg: "gone"}), true},
		{"wrapped transient failure", fmt.Errorf("fetch: %w", &stubErr{permanent: false, msg: "busy"}), false},
		{"nil error", nil, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := isPermanent(tc.err); got != tc.want {
				t.Errorf("isPermanent(%v) = %v, expected %v", tc.err, got, tc.want)
			}
		})
	}
}
