package goroutine

import (
	"runtime"
	"testing"
	"time"
)

// Baseline captures the current goroutine count. Take it before starting the
// component under test and hand it to AssertNoLeaks after shutdown.
func Baseline() int {
	return runtime.NumGoroutine()
}

// AssertNoLeaks fails the test if the goroutine count has not returned to
// the baseline. Goroutines unwind asynchronously after a context cancel, so
// the check polls briefly before declaring a leak.
func AssertNoLeaks(t testing.TB, baseline int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	var current int
	for time.Now().Before(deadline) {
		current = runtime.NumGoroutine()
		if current <= baseline {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("goroutine leak: %d running, baseline was %d", current, baseline)
}
