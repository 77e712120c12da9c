package analyzer

import (
	"fmt"
	"sort"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/webpro/unbarrelify/pkg/parser"
	"github.com/webpro/unbarrelify/pkg/resolver"
)

// NameSet is the enumerated export surface of a module.
type NameSet struct {
	Names []string `json:"names"`
	// Open is set when the module star-re-exports a package whose names
	// cannot be enumerated
	Open bool `json:"open,omitempty"`
}

// Has reports whether name is known to be exported.
func (s NameSet) Has(name string) bool {
	i := sort.SearchStrings(s.Names, name)
	return i < len(s.Names) && s.Names[i] == name
}

// declarationKinds map declaration nodes to their name field.
var declarationKinds = map[string]bool{
	"function_declaration":           true,
	"generator_function_declaration": true,
	"function_signature":             true,
	"class_declaration":              true,
	"abstract_class_declaration":     true,
	"interface_declaration":          true,
	"type_alias_declaration":         true,
	"enum_declaration":               true,
	"internal_module":                true,
	"module":                         true,
}

// ExportedNames enumerates the names path exports: declarations, export
// lists, default exports and re-exports. `export *` from project files is
// followed; package stars mark the set open.
func (a *Analyzer) ExportedNames(path string) (NameSet, error) {
	set, _, err := a.exportedNames(path, map[string]bool{})
	return set, err
}

// exportedNames returns complete=false when a cycle cut the walk short, so
// partial results stay out of the cache.
func (a *Analyzer) exportedNames(path string, visiting map[string]bool) (NameSet, bool, error) {
	if cached, ok := a.names.Get(path); ok {
		return cached, true, nil
	}
	if visiting[path] {
		return NameSet{}, false, nil
	}
	visiting[path] = true
	defer delete(visiting, path)

	if !parser.IsScript(path) {
		return NameSet{}, true, nil
	}

	src, err := a.reader.ReadFile(path)
	if err != nil {
		return NameSet{}, false, fmt.Errorf("failed to read %q: %w", path, err)
	}
	tree, err := a.parsers.ParseFile(src, path)
	if err != nil {
		return NameSet{}, false, fmt.Errorf("failed to parse %q: %w", path, err)
	}
	defer tree.Close()

	names := make(map[string]bool)
	open := false
	complete := true

	root := tree.RootNode()
	for i := uint(0); i < root.NamedChildCount(); i++ {
		node := root.NamedChild(i)
		if node.Kind() != "export_statement" {
			continue
		}

		if stmt, ok := parseModuleStatement(node, src); ok {
			if !stmt.Star {
				for _, b := range stmt.Bindings {
					if b.Kind == KindReExport {
						names[localName(b)] = true
					}
				}
				continue
			}
			res := a.resolver.Resolve(path, stmt.Specifier)
			switch res.Kind {
			case resolver.Internal:
				inner, innerComplete, err := a.exportedNames(res.Path, visiting)
				if err != nil {
					a.logger.Debug("skipping star re-export", "file", path, "target", res.Path, "error", err)
					continue
				}
				complete = complete && innerComplete
				open = open || inner.Open
				for _, n := range inner.Names {
					// `export *` never forwards a default export
					if n != "default" {
						names[n] = true
					}
				}
			case resolver.External:
				open = true
			}
			continue
		}

		for _, n := range localExportNames(node, src) {
			names[n] = true
		}
	}

	set := NameSet{Open: open}
	for n := range names {
		set.Names = append(set.Names, n)
	}
	sort.Strings(set.Names)

	if complete {
		a.names.Add(path, set)
	}
	return set, complete, nil
}

func localName(b Binding) string {
	if b.Alias != "" {
		return b.Alias
	}
	return b.Name
}

// localExportNames returns the names exported by an export_statement
// without a source.
func localExportNames(node *ts.Node, src []byte) []string {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && !child.IsNamed() && child.Kind() == "default" {
			return []string{"default"}
		}
	}

	var out []string
	if clause := firstNamedChild(node, "export_clause"); clause != nil {
		for _, b := range exportClauseBindings(clause, src) {
			out = append(out, localName(b))
		}
		return out
	}

	if decl := node.ChildByFieldName("declaration"); decl != nil {
		out = append(out, declarationNames(decl, src)...)
	}
	return out
}

// declarationNames returns the bindings a declaration introduces.
func declarationNames(decl *ts.Node, src []byte) []string {
	kind := decl.Kind()
	switch {
	case declarationKinds[kind]:
		if name := decl.ChildByFieldName("name"); name != nil {
			return []string{identifierText(name, src)}
		}
	case kind == "lexical_declaration" || kind == "variable_declaration":
		var out []string
		for i := uint(0); i < decl.NamedChildCount(); i++ {
			child := decl.NamedChild(i)
			if child.Kind() == "variable_declarator" {
				if name := child.ChildByFieldName("name"); name != nil {
					out = append(out, patternNames(name, src)...)
				}
			}
		}
		return out
	case kind == "ambient_declaration":
		var out []string
		for i := uint(0); i < decl.NamedChildCount(); i++ {
			out = append(out, declarationNames(decl.NamedChild(i), src)...)
		}
		return out
	}
	return nil
}

// patternNames collects identifiers bound by a destructuring pattern.
func patternNames(node *ts.Node, src []byte) []string {
	switch node.Kind() {
	case "identifier", "shorthand_property_identifier_pattern":
		return []string{node.Utf8Text(src)}
	case "pair_pattern":
		if value := node.ChildByFieldName("value"); value != nil {
			return patternNames(value, src)
		}
	case "assignment_pattern", "object_assignment_pattern":
		if left := node.ChildByFieldName("left"); left != nil {
			return patternNames(left, src)
		}
	case "object_pattern", "array_pattern", "rest_pattern":
		var out []string
		for i := uint(0); i < node.NamedChildCount(); i++ {
			out = append(out, patternNames(node.NamedChild(i), src)...)
		}
		return out
	}
	return nil
}
