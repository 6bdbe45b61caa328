// Package clockcheck provides a static analysis tool that detects direct
// time.Now() calls in code that must consume chain readings instead.
//
// Bid gating works off a chain.Reading resolved by the clock layer, with the
// local clock as an explicit, flagged fallback. A direct time.Now() in the
// auction window math or the service layer bypasses that authority and makes
// gate decisions untestable, so those packages are checked with this tool:
//
//	go vet -vettool=$(which clockcheck) ./auction/... ./service/...
//
// Allowed locations:
//   - main() in main packages and init() functions
//   - test files
//   - injected local-clock defaults (lines with a clockcheck:exempt comment)
package clockcheck

import (
	"go/ast"
	"go/token"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// ExemptionComment marks a time.Now() call as deliberate, typically the
// default for an injectable clock func.
// Example: // clockcheck:exempt reason="fallback local clock default"
const ExemptionComment = "clockcheck:exempt"

// Analyzer is the time.Now() policy checker.
var Analyzer = &analysis.Analyzer{
	Name:     "clockcheck",
	Doc:      doc,
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

const doc = `check for direct time.Now() calls in chain-time-gated code

Auction window and gating decisions must derive "now" from a chain.Reading
or an injected clock func, never from time.Now() directly: the local clock
is only ever a fallback, and it must arrive tagged Accurate=false so callers
can surface the degraded source. A raw time.Now() hides that distinction and
pins tests to the wall clock.

Allowed locations:
- main() in a main package, init() functions
- test files
- lines carrying a clockcheck:exempt comment (injected clock defaults)

Everything else should take a chain.Reading or a func() time.Time.`

func run(pass *analysis.Pass) (interface{}, error) {
	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	nodeFilter := []ast.Node{
		(*ast.FuncDecl)(nil),
		(*ast.CallExpr)(nil),
	}

	var currentFunc *ast.FuncDecl
	var exempt bool

	insp.Preorder(nodeFilter, func(n ast.Node) {
		switch node := n.(type) {
		case *ast.FuncDecl:
			currentFunc = node
			exempt = isAllowedFunction(pass, node)

		case *ast.CallExpr:
			if !isTimeNow(node) {
				return
			}
			if exempt || hasExemptionComment(pass, node.Pos()) {
				return
			}
			funcName := "unknown"
			if currentFunc != nil && currentFunc.Name != nil {
				funcName = currentFunc.Name.Name
			}
			pass.Reportf(node.Pos(),
				"time.Now() used in %s; consume a chain.Reading or an injected clock, or add a clockcheck:exempt comment",
				funcName)
		}
	})

	return nil, nil
}

// isTimeNow reports whether the call expression is time.Now(). Matching is
// syntactic, same as the rest of this analyzer: a local package named "time"
// would fool it, and nothing in this repository shadows the import.
func isTimeNow(call *ast.CallExpr) bool {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	ident, ok := sel.X.(*ast.Ident)
	if !ok {
		return false
	}
	return ident.Name == "time" && sel.Sel.Name == "Now"
}

// isAllowedFunction reports whether fn is a location where time.Now() is
// acceptable without an exemption comment.
func isAllowedFunction(pass *analysis.Pass, fn *ast.FuncDecl) bool {
	if fn == nil || fn.Name == nil {
		return false
	}

	if fn.Name.Name == "main" && pass.Pkg.Name() == "main" {
		return true
	}
	if fn.Name.Name == "init" {
		return true
	}

	// Test files wire fixed clocks from wall-clock seeds and measure test
	// durations; the policy only guards production gate paths.
	return strings.HasSuffix(pass.Fset.File(fn.Pos()).Name(), "_test.go")
}

// hasExemptionComment reports whether the line of pos, or the line above it,
// carries the exemption marker.
func hasExemptionComment(pass *analysis.Pass, pos token.Pos) bool {
	file := pass.Fset.File(pos)
	if file == nil {
		return false
	}
	line := file.Line(pos)

	for _, f := range pass.Files {
		if pass.Fset.File(f.Pos()).Name() != file.Name() {
			continue
		}
		for _, cg := range f.Comments {
			for _, c := range cg.List {
				commentLine := file.Line(c.Pos())
				if commentLine == line || commentLine == line-1 {
					if strings.Contains(c.Text, ExemptionComment) {
						return true
					}
				}
			}
		}
		break
	}
	return false
}
