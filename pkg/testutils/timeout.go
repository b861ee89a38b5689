package testutils

import (
	"testing"
	"time"
)

var (
	ConnectTimeout = 5 * time.Second
	pollInterval   = 5 * time.Millisecond
)

// WithTimeout polls f until it returns an empty string, failing the test with the
// last reported condition once ConnectTimeout passes.
func WithTimeout(t testing.TB, f func() string) {
	t.Helper()
	WithDeadline(t, ConnectTimeout, f)
}

func WithDeadline(t testing.TB, timeout time.Duration, f func() string) {
	t.Helper()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	lastErr := f()
	for lastErr != "" {
		select {
		case <-deadline.C:
			t.Fatalf("did not reach expected state after %v: %s", timeout, lastErr)
			return
		case <-ticker.C:
			lastErr = f()
		}
	}
}
