// Package goroutine provides panic recovery for background workers.
//
// Every long-lived goroutine in the service, archive batch writers, the
// auction sweeper, websocket pumps, defers Recover so a panic in one worker
// is logged with its stack instead of taking the process down.
package goroutine

import (
	"fmt"
	"os"
	"runtime"

	"go.uber.org/zap"
)

// Recover logs a recovered panic with a truncated stack trace. name
// identifies the goroutine in the log line. Call it in a defer:
//
//	go func() {
//		defer goroutine.Recover("archive-flush", logger)
//		...
//	}()
func Recover(name string, logger *zap.SugaredLogger) {
	r := recover()
	if r == nil {
		return
	}

	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)

	if logger != nil {
		logger.Errorw("goroutine panic recovered",
			"goroutine", name,
			"panic", fmt.Sprintf("%v", r),
			"stack", string(buf[:n]),
		)
		return
	}
	// Logger can be nil during early startup or in tests. Losing the panic
	// entirely is worse than an unstructured line.
	fmt.Fprintf(os.Stderr, "goroutine panic recovered: goroutine=%s panic=%v\n%s\n", name, r, buf[:n])
}
