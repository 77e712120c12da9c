package parser

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	ts "github.com/tree-sitter/go-tree-sitter"
	ts_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	ts_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/webpro/unbarrelify/pkg/util"
)

// poolKey uniquely identifies a parser pool (language + TSX variant)
type poolKey struct {
	lang  Language
	isTSX bool
}

// ParserManager hands out tree-sitter parsers per grammar.
//
// Pools are created lazily on first use. Callers own the returned trees and
// must call tree.Close(); the manager itself must be closed via Close().
type ParserManager struct {
	pools    map[poolKey]*parserPool
	poolSize int
	mutex    sync.RWMutex
	logger   *slog.Logger

	stats struct {
		parsesCalled int
		parseErrors  int
	}
}

// NewParserManager creates a ParserManager sized by util.ParserPoolSize.
func NewParserManager(logger *slog.Logger) *ParserManager {
	return NewParserManagerWithPoolSize(logger, 0)
}

// NewParserManagerWithPoolSize creates a ParserManager whose pools hold at
// most poolSize parsers. Zero selects the CPU-based default.
func NewParserManagerWithPoolSize(logger *slog.Logger, poolSize int) *ParserManager {
	if logger == nil {
		logger = slog.Default()
	}

	return &ParserManager{
		pools:    make(map[poolKey]*parserPool),
		poolSize: util.ParserPoolSize(poolSize),
		logger:   logger,
	}
}

// Parse parses source with the given grammar. isTSX only matters for
// TypeScript.
//
// Trees containing syntax errors are still returned; HasError on the root
// tells callers whether recovery happened.
func (pm *ParserManager) Parse(source []byte, lang Language, isTSX bool) (*ts.Tree, error) {
	if lang == LanguageUnknown {
		return nil, fmt.Errorf("cannot parse unknown language")
	}

	pm.mutex.Lock()
	pm.stats.parsesCalled++
	pm.mutex.Unlock()

	pool, err := pm.getOrCreatePool(lang, isTSX)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool for %s: %w", lang, err)
	}

	parser, err := pool.acquire()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire parser: %w", err)
	}
	tree := parser.Parse(source, nil)
	pool.release(parser)

	if tree == nil {
		return nil, fmt.Errorf("parser.Parse returned nil tree")
	}

	if tree.RootNode().HasError() {
		pm.mutex.Lock()
		pm.stats.parseErrors++
		pm.mutex.Unlock()
		pm.logger.Debug("parse tree contains errors", "language", lang.String(), "isTSX", isTSX)
	}

	return tree, nil
}

// ParseFile detects the grammar from filePath and parses source with it.
func (pm *ParserManager) ParseFile(source []byte, filePath string) (*ts.Tree, error) {
	lang := DetectLanguage(filePath)
	if lang == LanguageUnknown {
		return nil, fmt.Errorf("unsupported file extension: %s", filePath)
	}
	return pm.Parse(source, lang, IsTSXFile(filePath))
}

// Close releases all parser pools. The manager cannot be used afterwards.
func (pm *ParserManager) Close() error {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	pm.logger.Debug("closing ParserManager",
		"parses_called", pm.stats.parsesCalled,
		"parse_errors", pm.stats.parseErrors)

	for _, pool := range pm.pools {
		if pool != nil {
			pool.close()
		}
	}
	pm.pools = make(map[poolKey]*parserPool)

	return nil
}

// getOrCreatePool returns an existing parser pool or creates a new one
// (double-checked locking).
func (pm *ParserManager) getOrCreatePool(lang Language, isTSX bool) (*parserPool, error) {
	key := poolKey{lang: lang, isTSX: isTSX && lang == LanguageTypeScript}

	pm.mutex.RLock()
	pool, exists := pm.pools[key]
	pm.mutex.RUnlock()
	if exists {
		return pool, nil
	}

	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	if pool, exists = pm.pools[key]; exists {
		return pool, nil
	}

	langPtr, err := GetLanguagePointer(key.lang, key.isTSX)
	if err != nil {
		return nil, err
	}

	pool = newParserPool(key.lang, langPtr, key.isTSX, pm.poolSize, pm.logger)
	pm.pools[key] = pool

	pm.logger.Debug("created new parser pool",
		"language", lang.String(),
		"isTSX", key.isTSX,
		"maxSize", pm.poolSize)

	return pool, nil
}

// GetLanguagePointer returns the grammar pointer for lang. The query
// manager compiles queries against the same pointers.
func GetLanguagePointer(lang Language, isTSX bool) (unsafe.Pointer, error) {
	switch lang {
	case LanguageTypeScript:
		if isTSX {
			return ts_typescript.LanguageTSX(), nil
		}
		return ts_typescript.LanguageTypescript(), nil
	case LanguageJavaScript:
		return ts_javascript.Language(), nil
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang.String())
	}
}

// GetStats returns parser usage statistics.
func (pm *ParserManager) GetStats() ParserStats {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	totalParsers := 0
	for _, pool := range pm.pools {
		totalParsers += pool.getCreatedCount()
	}

	return ParserStats{
		ParsersCreated: totalParsers,
		ParsesCalled:   pm.stats.parsesCalled,
		ParseErrors:    pm.stats.parseErrors,
	}
}

// ParserStats contains parser usage statistics.
type ParserStats struct {
	ParsersCreated int
	ParsesCalled   int
	// ParseErrors counts trees returned with error recovery nodes
	ParseErrors int
}
