package relocation_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamaar/methodobject/pkg/analysis"
	"github.com/mamaar/methodobject/pkg/analyzers"
	"github.com/mamaar/methodobject/pkg/analyzers/relocation"
	"github.com/mamaar/methodobject/pkg/types"
)

const storeSource = `package store

type entry struct{ key string }

type Cache struct {
	entries []entry
	Hits    int
}

func (c *Cache) evict() {}

func New() *Cache {
	return &Cache{}
}

func (c *Cache) Put(k string) {
	c.entries = append(c.entries, entry{key: k})
	c.evict()
	c.Hits++
}
`

func loadWorkspace(t *testing.T) (*types.Workspace, *analysis.GoParser) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/m\n\ngo 1.25\n"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "store"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "store", "store.go"), []byte(storeSource), 0644))

	parser := analysis.NewParser(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ws, err := parser.ParseWorkspace(root)
	require.NoError(t, err)
	return ws, parser
}

func setTarget(t *testing.T, value string) {
	t.Helper()
	require.NoError(t, relocation.Analyzer.Flags.Set("target", value))
	t.Cleanup(func() { _ = relocation.Analyzer.Flags.Set("target", "") })
}

func results(t *testing.T, rr *analyzers.RunResult) []*relocation.Result {
	t.Helper()
	require.Len(t, rr.Results, 1)
	res, ok := rr.Results[0].([]*relocation.Result)
	require.Truef(t, ok, "Expected []*relocation.Result, got %T", rr.Results[0])
	return res
}

func TestRelocation_OtherPackage(t *testing.T) {
	ws, parser := loadWorkspace(t)
	setTarget(t, "example.com/m/app")

	rr, err := analyzers.Run(ws, parser, relocation.Analyzer, "store")
	require.NoError(t, err)

	res := results(t, rr)
	require.NotEmpty(t, res)
	assert.Len(t, rr.Diagnostics, len(res))

	kinds := make(map[string]int)
	for _, r := range res {
		assert.Equal(t, "Put", r.Function, "only Put touches unexported members")
		kinds[r.Kind]++
	}
	assert.Equal(t, 1, kinds["call"])
	assert.Equal(t, 1, kinds["construction"])
	assert.Positive(t, kinds["field access"])

	for _, r := range res {
		if r.Kind == "call" {
			assert.Equal(t, "store.(*Cache).evict", r.Member)
			assert.Equal(t, "c.evict()", r.Text)
			assert.Equal(t, 18, r.Line)
		}
	}
}

func TestRelocation_SamePackage(t *testing.T) {
	ws, parser := loadWorkspace(t)
	setTarget(t, "example.com/m/store")

	rr, err := analyzers.Run(ws, parser, relocation.Analyzer, "store")
	require.NoError(t, err)
	assert.Empty(t, results(t, rr))
	assert.Empty(t, rr.Diagnostics)
}

func TestRelocation_MissingTarget(t *testing.T) {
	ws, parser := loadWorkspace(t)

	_, err := analyzers.Run(ws, parser, relocation.Analyzer, "")
	assert.ErrorContains(t, err, "-target is required")
}

func TestRun_UnknownPackage(t *testing.T) {
	ws, parser := loadWorkspace(t)
	setTarget(t, "example.com/m/app")

	_, err := analyzers.Run(ws, parser, relocation.Analyzer, "nowhere")
	var refErr *types.RefactorError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, types.SymbolNotFound, refErr.Type)
}

func TestCheck(t *testing.T) {
	ws, parser := loadWorkspace(t)

	res, err := relocation.Check(ws, parser, "", "example.com/m/app")
	require.NoError(t, err)
	require.NotEmpty(t, res)
	for _, r := range res {
		assert.Equal(t, "Put", r.Function)
	}

	// the flag is reset afterwards
	assert.Equal(t, "", relocation.Analyzer.Flags.Lookup("target").Value.String())

	_, err = relocation.Check(ws, parser, "", "")
	assert.Error(t, err)
}
