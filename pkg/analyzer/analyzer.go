// Package analyzer parses source files into import/export summaries.
package analyzer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/webpro/unbarrelify/pkg/parser"
	"github.com/webpro/unbarrelify/pkg/parser/queries"
	"github.com/webpro/unbarrelify/pkg/resolver"
)

// ErrUnsupported is returned for files that are neither scripts nor a
// scanned component format.
var ErrUnsupported = errors.New("unsupported file type")

const defaultNameCacheSize = 4096

// Reader reads source files.
type Reader interface {
	ReadFile(path string) ([]byte, error)
}

// Options configures an Analyzer.
type Options struct {
	// ForceBarrel marks files as barrels regardless of their content
	ForceBarrel func(path string) bool
	// NameCacheSize bounds the exported-name cache; zero selects a default
	NameCacheSize int
}

// Analyzer builds FileRecords for one run. Records are cached by path and
// never re-read; the exported-name cache is kept separately so definers can
// be enumerated without a full record.
type Analyzer struct {
	resolver *resolver.Resolver
	parsers  *parser.ParserManager
	queries  *queries.QueryManager
	reader   Reader
	opts     Options
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry

	names *lru.Cache[string, NameSet]
}

// New creates an Analyzer. A nil logger uses slog.Default().
func New(res *resolver.Resolver, pm *parser.ParserManager, qm *queries.QueryManager, reader Reader, opts Options, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	size := opts.NameCacheSize
	if size <= 0 {
		size = defaultNameCacheSize
	}
	names, _ := lru.New[string, NameSet](size)

	return &Analyzer{
		resolver: res,
		parsers:  pm,
		queries:  qm,
		reader:   reader,
		opts:     opts,
		logger:   logger,
		entries:  make(map[string]*entry),
		names:    names,
	}
}

// entry is a record being analyzed or done; done is closed once rec or
// err is set.
type entry struct {
	done chan struct{}
	rec  *FileRecord
	err  error
}

// Analyze returns the record for path, analyzing it on first request.
// Concurrent callers for the same path share one analysis. Failures are
// cached too: a file that could not be read stays failed for the rest of
// the run.
func (a *Analyzer) Analyze(path string) (*FileRecord, error) {
	a.mu.Lock()
	if e, ok := a.entries[path]; ok {
		a.mu.Unlock()
		<-e.done
		return e.rec, e.err
	}
	e := &entry{done: make(chan struct{})}
	a.entries[path] = e
	a.mu.Unlock()

	e.rec, e.err = a.analyze(path)
	close(e.done)
	return e.rec, e.err
}

func (a *Analyzer) analyze(path string) (*FileRecord, error) {
	if parser.IsNonScript(path) {
		return a.analyzeNonScript(path)
	}
	if !parser.IsScript(path) {
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupported)
	}

	src, err := a.reader.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}

	tree, err := a.parsers.ParseFile(src, path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %q: %w", path, err)
	}
	defer tree.Close()

	rec := &FileRecord{
		Path:    path,
		Script:  true,
		Exports: newExportMap(),
		Imports: newImportMap(),
		Quote:   '\'',
		Source:  src,
	}

	root := tree.RootNode()
	statements, reExports := 0, 0
	quoteSet := false
	for i := uint(0); i < root.NamedChildCount(); i++ {
		node := root.NamedChild(i)
		if ignoredTopLevel[node.Kind()] {
			continue
		}
		statements++
		if isReExport(node) {
			reExports++
		}

		stmt, ok := parseModuleStatement(node, src)
		if !ok {
			continue
		}
		if !quoteSet {
			rec.Quote = stmt.Quote
			quoteSet = true
		}
		a.addStatement(rec, stmt)
	}

	rec.IsBarrel = statements > 0 && statements == reExports
	if !rec.IsBarrel && a.opts.ForceBarrel != nil && a.opts.ForceBarrel(path) {
		rec.IsBarrel = true
		rec.Forced = true
	}

	if !rec.IsBarrel {
		lang := parser.DetectLanguage(path)
		specs, err := a.queries.DynamicImports(tree, lang, parser.IsTSXFile(path), src)
		if err != nil {
			return nil, fmt.Errorf("failed to collect dynamic imports in %q: %w", path, err)
		}
		for _, spec := range specs {
			a.addDynamicImport(rec, spec)
		}
	}

	if root.HasError() {
		a.logger.Debug("analyzed file with syntax errors", "file", path)
	}
	return rec, nil
}

func (a *Analyzer) addStatement(rec *FileRecord, stmt *ModuleStatement) {
	res := a.resolver.Resolve(rec.Path, stmt.Specifier)
	if res.Kind == resolver.NotFound {
		a.logger.Debug("unresolved specifier", "file", rec.Path, "specifier", stmt.Specifier)
		return
	}

	spec := resolver.ParseSpecifier(stmt.Specifier)
	deco := Decoration{Prefix: spec.Prefix, Suffix: spec.Suffix, Original: stmt.Specifier}
	target := res.Key()
	external := res.Kind == resolver.External

	for _, b := range stmt.Bindings {
		item := ImportItem{
			Kind:              b.Kind,
			Name:              b.Name,
			Alias:             b.Alias,
			TypeOnly:          b.TypeOnly,
			Span:              stmt.Span,
			Decoration:        deco,
			Target:            target,
			External:          external,
			StatementTypeOnly: stmt.TypeOnly,
			Semicolon:         stmt.Semicolon,
		}
		if stmt.Namespace != "" {
			item.Namespace = stmt.Namespace
			item.Alias = ""
		}
		rec.Imports.add(item)
	}

	if !stmt.IsExport {
		return
	}

	entry := &ExportEntry{
		Target:    target,
		External:  external,
		Specifier: stmt.Specifier,
		Spans:     []Span{stmt.Span},
		Star:      stmt.Star,
	}
	if stmt.Namespace != "" {
		entry.Namespaces = []string{stmt.Namespace}
	}
	if stmt.Star {
		entry.StarTypeOnly = stmt.TypeOnly
	}
	for _, b := range stmt.Bindings {
		if b.Kind != KindReExport || b.Name == "*" {
			continue
		}
		exported := localName(b)
		if entry.Names == nil {
			entry.Names = make(map[string]string)
		}
		entry.Names[exported] = b.Name
		if b.TypeOnly {
			if entry.TypeOnly == nil {
				entry.TypeOnly = make(map[string]bool)
			}
			entry.TypeOnly[exported] = true
		}
	}
	rec.Exports.add(entry)
}

func (a *Analyzer) addDynamicImport(rec *FileRecord, spec string) {
	res := a.resolver.Resolve(rec.Path, spec)
	if res.Kind != resolver.Internal {
		return
	}
	for _, existing := range rec.DynamicImports {
		if existing == res.Path {
			return
		}
	}
	rec.DynamicImports = append(rec.DynamicImports, res.Path)
}
