package rewriter

import (
	"fmt"
	"sort"

	"github.com/webpro/unbarrelify/pkg/analyzer"
	"github.com/webpro/unbarrelify/pkg/parser"
)

type importGroup struct {
	specifier string
	typeOnly  bool
}

// OrganizeImports merges top-level import statements that name the same
// specifier with the same type-only-ness into the first of them. Only
// default and named imports take part; namespace and side-effect imports
// are left alone. src is returned unchanged when nothing merges.
func OrganizeImports(src []byte, path string, pm *parser.ParserManager) ([]byte, error) {
	tree, err := pm.ParseFile(src, path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %q: %w", path, err)
	}
	defer tree.Close()

	var order []importGroup
	groups := make(map[importGroup][]*analyzer.ModuleStatement)
	for _, stmt := range analyzer.ParseStatements(tree.RootNode(), src) {
		if stmt.IsExport || !mergeableImport(stmt) {
			continue
		}
		key := importGroup{specifier: stmt.Specifier, typeOnly: stmt.TypeOnly}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], stmt)
	}

	type replacement struct {
		start, end uint
		text       string
	}
	var edits []replacement
	for _, key := range order {
		stmts := groups[key]
		if len(stmts) < 2 {
			continue
		}
		merged := &RewriteItem{Form: FormImport}
		for _, stmt := range stmts {
			for _, b := range stmt.Bindings {
				if b.Kind == analyzer.KindDefault {
					merged.addBinding(Binding{Imported: "default", Local: b.Alias, TypeOnly: b.TypeOnly})
					continue
				}
				merged.addBinding(newBinding(b.Name, b.Alias, b.TypeOnly))
			}
		}
		first := stmts[0]
		text := Synthesize(merged, first.Specifier, SynthOptions{Quote: first.Quote, Semicolon: first.Semicolon})
		edits = append(edits, replacement{start: first.Span.Start, end: first.Span.End, text: text})
		for _, stmt := range stmts[1:] {
			edits = append(edits, replacement{start: stmt.Span.Start, end: skipLineBreak(src, stmt.Span.End)})
		}
	}
	if len(edits) == 0 {
		return src, nil
	}

	sort.Slice(edits, func(i, j int) bool { return edits[i].start > edits[j].start })
	out := append([]byte(nil), src...)
	for _, e := range edits {
		out = splice(out, e.start, e.end, e.text)
	}
	return out, nil
}

func mergeableImport(stmt *analyzer.ModuleStatement) bool {
	if len(stmt.Bindings) == 0 {
		return false
	}
	for _, b := range stmt.Bindings {
		switch b.Kind {
		case analyzer.KindNamed, analyzer.KindAliased, analyzer.KindDefault:
		default:
			return false
		}
	}
	return true
}
