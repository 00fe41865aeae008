package relocation

import (
	"fmt"
	"sync"

	"github.com/mamaar/methodobject/pkg/analysis"
	"github.com/mamaar/methodobject/pkg/analyzers"
	"github.com/mamaar/methodobject/pkg/types"
)

// flagMu guards the -target flag, which lives on the shared Analyzer.
var flagMu sync.Mutex

// Check runs the analyzer with the given target over one package, or over
// every package when pkgFilter is empty, and returns the flattened results.
func Check(ws *types.Workspace, parser *analysis.GoParser, pkgFilter, targetPath string) ([]*Result, error) {
	flagMu.Lock()
	defer flagMu.Unlock()

	if err := Analyzer.Flags.Set("target", targetPath); err != nil {
		return nil, err
	}
	defer func() { _ = Analyzer.Flags.Set("target", "") }()

	rr, err := analyzers.Run(ws, parser, Analyzer, pkgFilter)
	if err != nil {
		return nil, err
	}
	var results []*Result
	for _, r := range rr.Results {
		rs, ok := r.([]*Result)
		if !ok {
			return nil, fmt.Errorf("relocation: unexpected result type %T", r)
		}
		results = append(results, rs...)
	}
	return results, nil
}
