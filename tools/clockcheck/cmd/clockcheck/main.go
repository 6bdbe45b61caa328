// Command clockcheck runs the time.Now() policy checker.
//
// Usage:
//
//	go build -o clockcheck bidhouse/tools/clockcheck/cmd/clockcheck
//	go vet -vettool=./clockcheck ./auction/... ./service/...
//
// The tool flags direct time.Now() calls outside of approved locations:
//   - main() in main packages and init() functions
//   - test files
//   - lines with a clockcheck:exempt comment
package main

import (
	"bidhouse/tools/clockcheck"

	"golang.org/x/tools/go/analysis/singlechecker"
)

func main() {
	singlechecker.Main(clockcheck.Analyzer)
}
