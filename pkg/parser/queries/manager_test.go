package queries

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webpro/unbarrelify/pkg/parser"
	"github.com/webpro/unbarrelify/pkg/util"
)

func setupTest(t *testing.T) (*parser.ParserManager, *QueryManager) {
	t.Helper()

	pm := parser.NewParserManager(util.DiscardLogger())
	qm := NewQueryManager(util.DiscardLogger())
	t.Cleanup(func() {
		qm.Close()
		pm.Close()
	})
	return pm, qm
}

func TestQueryCompilation(t *testing.T) {
	_, qm := setupTest(t)

	for _, tc := range []struct {
		name  string
		lang  parser.Language
		isTSX bool
	}{
		{"typescript", parser.LanguageTypeScript, false},
		{"tsx", parser.LanguageTypeScript, true},
		{"javascript", parser.LanguageJavaScript, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			query, err := qm.GetQuery(tc.lang, tc.isTSX, QueryTypeDynamicImports)
			require.NoError(t, err)
			require.NotNil(t, query)
		})
	}
}

func TestQueryCaching(t *testing.T) {
	_, qm := setupTest(t)

	q1, err := qm.GetQuery(parser.LanguageTypeScript, false, QueryTypeDynamicImports)
	require.NoError(t, err)
	q2, err := qm.GetQuery(parser.LanguageTypeScript, false, QueryTypeDynamicImports)
	require.NoError(t, err)
	assert.Same(t, q1, q2)

	tsx, err := qm.GetQuery(parser.LanguageTypeScript, true, QueryTypeDynamicImports)
	require.NoError(t, err)
	assert.NotSame(t, q1, tsx, "TSX queries are compiled against the TSX grammar")

	// isTSX has no meaning for JavaScript
	js1, err := qm.GetQuery(parser.LanguageJavaScript, false, QueryTypeDynamicImports)
	require.NoError(t, err)
	js2, err := qm.GetQuery(parser.LanguageJavaScript, true, QueryTypeDynamicImports)
	require.NoError(t, err)
	assert.Same(t, js1, js2)
}

func TestQueryErrors(t *testing.T) {
	_, qm := setupTest(t)

	_, err := qm.GetQuery(parser.LanguageUnknown, false, QueryTypeDynamicImports)
	require.Error(t, err)

	_, err = qm.GetQuery(parser.LanguageTypeScript, false, QueryType(99))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown query type")

	_, err = qm.ExecuteQuery(nil, nil, nil)
	require.Error(t, err)
}

func TestDynamicImports(t *testing.T) {
	pm, qm := setupTest(t)

	tests := []struct {
		name     string
		path     string
		source   string
		expected []string
	}{
		{
			name: "typescript",
			path: "routes.ts",
			source: `import { a } from './static';
const Page = lazy(() => import('./pages/home'));
async function load() {
  const mod = await import("./barrel?raw");
  return mod;
}`,
			expected: []string{"./pages/home", "./barrel?raw"},
		},
		{
			name:     "tsx",
			path:     "App.tsx",
			source:   "const C = lazy(() => import('./components'));\nexport const App = () => <C />;\n",
			expected: []string{"./components"},
		},
		{
			name:     "javascript",
			path:     "main.mjs",
			source:   "import('./side-effect.js');\n",
			expected: []string{"./side-effect.js"},
		},
		{
			name:     "computed specifiers are ignored",
			path:     "dyn.ts",
			source:   "const name = 'x';\nimport(`./locales/${name}`);\nimport(name);\n",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := pm.ParseFile([]byte(tt.source), tt.path)
			require.NoError(t, err)
			defer tree.Close()

			specs, err := qm.DynamicImports(tree, parser.DetectLanguage(tt.path), parser.IsTSXFile(tt.path), []byte(tt.source))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, specs)
		})
	}
}

func TestExecuteQuery_Captures(t *testing.T) {
	pm, qm := setupTest(t)

	source := []byte("void import('./a');")
	tree, err := pm.Parse(source, parser.LanguageTypeScript, false)
	require.NoError(t, err)
	defer tree.Close()

	query, err := qm.GetQuery(parser.LanguageTypeScript, false, QueryTypeDynamicImports)
	require.NoError(t, err)

	matches, err := qm.ExecuteQuery(tree, query, source)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	byName := map[string]QueryCapture{}
	for _, c := range matches[0].Captures {
		byName[c.Name] = c
	}
	require.Contains(t, byName, "dynamic.source")
	require.Contains(t, byName, "dynamic.call")

	src := byName["dynamic.source"]
	assert.Equal(t, "dynamic", src.Category)
	assert.Equal(t, "source", src.Field)
	assert.Equal(t, "./a", src.Text)
	assert.Equal(t, "./a", string(source[src.StartByte:src.EndByte]))
	assert.Equal(t, "import('./a')", byName["dynamic.call"].Text)
}

func TestConcurrentQueryAccess(t *testing.T) {
	_, qm := setupTest(t)

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := qm.GetQuery(parser.LanguageTypeScript, i%2 == 0, QueryTypeDynamicImports); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("GetQuery failed: %v", err)
	}
}

func TestParseCaptureName(t *testing.T) {
	c, f := parseCaptureName("dynamic.source")
	assert.Equal(t, "dynamic", c)
	assert.Equal(t, "source", f)

	c, f = parseCaptureName("plain")
	assert.Equal(t, "plain", c)
	assert.Empty(t, f)
}
