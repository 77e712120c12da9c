package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webpro/unbarrelify/pkg/analyzer"
	"github.com/webpro/unbarrelify/pkg/parser"
	"github.com/webpro/unbarrelify/pkg/parser/queries"
	"github.com/webpro/unbarrelify/pkg/resolver"
	"github.com/webpro/unbarrelify/pkg/util"
)

func newPoolAnalyzer(t *testing.T) *analyzer.Analyzer {
	t.Helper()
	logger := util.DiscardLogger()
	pm := parser.NewParserManager(logger)
	qm := queries.NewQueryManager(logger)
	t.Cleanup(func() {
		qm.Close()
		pm.Close()
	})
	return analyzer.New(resolver.New(resolver.Options{}, logger), pm, qm, util.NewSourceReader(logger), analyzer.Options{}, logger)
}

func TestWorkerPool_Basic(t *testing.T) {
	root := tempRoot(t)
	a := newPoolAnalyzer(t)

	pool := newWorkerPool(context.Background(), 4, a, util.DiscardLogger())
	pool.Start()
	defer pool.Stop()

	files := []string{
		writeFile(t, root, "a.ts", "export const a = 1;\n"),
		writeFile(t, root, "index.ts", "export * from './a';\n"),
		filepath.Join(root, "missing.ts"),
	}
	for i, f := range files {
		require.NoError(t, pool.Submit(analyzeJob{path: f, index: i}))
	}
	pool.FinishSubmitting()

	got := make(map[int]analyzeResult)
	for range files {
		res := <-pool.Results()
		got[res.index] = res
	}

	require.Len(t, got, 3)
	assert.NoError(t, got[0].err)
	assert.False(t, got[0].rec.IsBarrel)
	assert.NoError(t, got[1].err)
	assert.True(t, got[1].rec.IsBarrel)
	assert.Error(t, got[2].err)

	stats := pool.GetStats()
	assert.Equal(t, int64(3), stats.JobsSubmitted)
	assert.Equal(t, int64(2), stats.JobsProcessed)
	assert.Equal(t, int64(1), stats.JobsFailed)
}

func TestWorkerPool_SubmitAfterStop(t *testing.T) {
	pool := newWorkerPool(context.Background(), 2, newPoolAnalyzer(t), util.DiscardLogger())
	pool.Start()
	pool.Stop()
	pool.Stop()

	assert.Error(t, pool.Submit(analyzeJob{path: "a.ts"}))
}

func TestAnalyzeParallel_PreservesOrder(t *testing.T) {
	root := tempRoot(t)
	var files []string
	for i := 0; i < 40; i++ {
		files = append(files, writeFile(t, root, fmt.Sprintf("m%02d.ts", i), fmt.Sprintf("export const m%d = %d;\n", i, i)))
	}

	results := analyzeParallel(context.Background(), files, 4, newPoolAnalyzer(t), util.DiscardLogger())
	require.Len(t, results, len(files))
	for i, res := range results {
		assert.Equal(t, i, res.index)
		require.NoError(t, res.err)
		assert.Equal(t, files[i], res.rec.Path)
	}
}

func TestAnalyzeParallel_Cancelled(t *testing.T) {
	root := tempRoot(t)
	files := []string{writeFile(t, root, "a.ts", "export const a = 1;\n")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := analyzeParallel(ctx, files, 2, newPoolAnalyzer(t), util.DiscardLogger())
	assert.LessOrEqual(t, len(results), len(files))
}
