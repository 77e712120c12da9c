// Package queries provides tree-sitter query compilation, caching, and execution.
package queries

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/webpro/unbarrelify/pkg/parser"
)

// QueryType identifies which query to execute.
type QueryType int

const (
	// QueryTypeDynamicImports finds import("...") calls
	QueryTypeDynamicImports QueryType = iota
)

// String returns the string representation of a QueryType.
func (qt QueryType) String() string {
	switch qt {
	case QueryTypeDynamicImports:
		return "dynamic-imports"
	default:
		return "unknown"
	}
}

// queryKey identifies a compiled query. TSX and TypeScript are distinct
// grammars, so a query compiled for one cannot run on the other's trees.
type queryKey struct {
	lang  parser.Language
	isTSX bool
	qtype QueryType
}

// QueryManager compiles queries lazily and caches them per grammar.
// It is safe for concurrent use and must be closed via Close().
type QueryManager struct {
	cache  map[queryKey]*ts.Query
	mutex  sync.RWMutex
	logger *slog.Logger
}

// NewQueryManager creates a new query manager. Logger can be nil.
func NewQueryManager(logger *slog.Logger) *QueryManager {
	if logger == nil {
		logger = slog.Default()
	}

	return &QueryManager{
		cache:  make(map[queryKey]*ts.Query),
		logger: logger,
	}
}

// GetQuery returns the compiled query for the grammar and type.
func (qm *QueryManager) GetQuery(lang parser.Language, isTSX bool, qtype QueryType) (*ts.Query, error) {
	key := queryKey{lang: lang, isTSX: isTSX && lang == parser.LanguageTypeScript, qtype: qtype}

	qm.mutex.RLock()
	query, exists := qm.cache[key]
	qm.mutex.RUnlock()
	if exists {
		return query, nil
	}

	qm.mutex.Lock()
	defer qm.mutex.Unlock()

	if query, exists = qm.cache[key]; exists {
		return query, nil
	}

	queryString, err := getQueryString(qtype)
	if err != nil {
		return nil, err
	}

	langPtr, err := parser.GetLanguagePointer(key.lang, key.isTSX)
	if err != nil {
		return nil, fmt.Errorf("failed to get language pointer for %s: %w", lang, err)
	}

	query, qerr := ts.NewQuery(ts.NewLanguage(langPtr), queryString)
	if qerr != nil {
		return nil, fmt.Errorf("failed to compile %s query for %s: %s", qtype, lang, qerr.Message)
	}

	qm.cache[key] = query
	qm.logger.Debug("compiled query",
		"language", lang.String(),
		"isTSX", key.isTSX,
		"type", qtype.String())

	return query, nil
}

func getQueryString(qtype QueryType) (string, error) {
	switch qtype {
	case QueryTypeDynamicImports:
		return DynamicImportQuery, nil
	default:
		return "", fmt.Errorf("unknown query type: %d", qtype)
	}
}

// ExecuteQuery runs a compiled query over tree and returns its matches.
func (qm *QueryManager) ExecuteQuery(tree *ts.Tree, query *ts.Query, source []byte) ([]QueryMatch, error) {
	if tree == nil {
		return nil, fmt.Errorf("tree is nil")
	}
	if query == nil {
		return nil, fmt.Errorf("query is nil")
	}

	cursor := ts.NewQueryCursor()
	defer cursor.Close()

	iter := cursor.Matches(query, tree.RootNode(), source)
	captureNames := query.CaptureNames()

	var matches []QueryMatch
	for {
		match := iter.Next()
		if match == nil {
			break
		}

		var captures []QueryCapture
		for _, capture := range match.Captures {
			var captureName string
			if int(capture.Index) < len(captureNames) {
				captureName = captureNames[capture.Index]
			}
			category, field := parseCaptureName(captureName)
			node := capture.Node

			captures = append(captures, QueryCapture{
				Name:      captureName,
				Category:  category,
				Field:     field,
				Node:      &node,
				Text:      node.Utf8Text(source),
				StartByte: node.StartByte(),
				EndByte:   node.EndByte(),
			})
		}

		matches = append(matches, QueryMatch{
			PatternIndex: uint32(match.PatternIndex),
			Captures:     captures,
		})
	}

	return matches, nil
}

// DynamicImports parses nothing itself: it runs the dynamic-import query over
// an existing tree and returns the literal specifiers in source order.
func (qm *QueryManager) DynamicImports(tree *ts.Tree, lang parser.Language, isTSX bool, source []byte) ([]string, error) {
	query, err := qm.GetQuery(lang, isTSX, QueryTypeDynamicImports)
	if err != nil {
		return nil, err
	}
	matches, err := qm.ExecuteQuery(tree, query, source)
	if err != nil {
		return nil, err
	}

	var specifiers []string
	for _, m := range matches {
		for _, c := range m.Captures {
			if c.Name == "dynamic.source" {
				specifiers = append(specifiers, c.Text)
			}
		}
	}
	return specifiers, nil
}

// Close releases all compiled queries.
func (qm *QueryManager) Close() error {
	qm.mutex.Lock()
	defer qm.mutex.Unlock()

	qm.logger.Debug("closing QueryManager", "queries_compiled", len(qm.cache))

	for key, query := range qm.cache {
		if query != nil {
			query.Close()
		}
		delete(qm.cache, key)
	}

	return nil
}

// QueryMatch represents a single pattern match from query execution.
type QueryMatch struct {
	PatternIndex uint32
	Captures     []QueryCapture
}

// QueryCapture represents a single captured node from a query match.
type QueryCapture struct {
	// Name is the full capture name (e.g. "dynamic.source")
	Name string
	// Category is the part before the dot (e.g. "dynamic")
	Category string
	// Field is the part after the dot, empty when there is none
	Field string

	Node      *ts.Node
	Text      string
	StartByte uint
	EndByte   uint
}

// parseCaptureName splits "dynamic.source" into ("dynamic", "source").
func parseCaptureName(name string) (category, field string) {
	parts := strings.SplitN(name, ".", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return name, ""
}
