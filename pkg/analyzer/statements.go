package analyzer

import (
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// Binding is one name pulled in by a module statement, before resolution.
type Binding struct {
	Kind     ImportKind
	Name     string
	Alias    string
	TypeOnly bool
}

// ModuleStatement is an import or `export … from` statement as written.
type ModuleStatement struct {
	Span      Span
	IsExport  bool
	Specifier string
	Quote     byte
	TypeOnly  bool
	Bindings  []Binding
	Star      bool
	Namespace string
	Semicolon bool
}

// ParseStatements returns the top-level module statements under root in
// source order.
func ParseStatements(root *ts.Node, src []byte) []*ModuleStatement {
	var out []*ModuleStatement
	for i := uint(0); i < root.NamedChildCount(); i++ {
		if stmt, ok := parseModuleStatement(root.NamedChild(i), src); ok {
			out = append(out, stmt)
		}
	}
	return out
}

// ignoredTopLevel are nodes that never make a file a non-barrel.
var ignoredTopLevel = map[string]bool{
	"comment":         true,
	"hash_bang_line":  true,
	"empty_statement": true,
}

// isReExport reports whether node is an `export … from` statement.
func isReExport(node *ts.Node) bool {
	return node.Kind() == "export_statement" && node.ChildByFieldName("source") != nil
}

// parseModuleStatement reads an import_statement or a re-exporting
// export_statement. Other statements, and `import x = require()`, return false.
func parseModuleStatement(node *ts.Node, src []byte) (*ModuleStatement, bool) {
	kind := node.Kind()
	if kind != "import_statement" && kind != "export_statement" {
		return nil, false
	}
	source := node.ChildByFieldName("source")
	if source == nil || source.Kind() != "string" {
		return nil, false
	}
	spec, quote := stringContent(source, src)

	stmt := &ModuleStatement{
		Span:      Span{Start: node.StartByte(), End: node.EndByte()},
		IsExport:  kind == "export_statement",
		Specifier: spec,
		Quote:     quote,
		Semicolon: strings.HasSuffix(strings.TrimSpace(node.Utf8Text(src)), ";"),
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "type":
			if !child.IsNamed() {
				stmt.TypeOnly = true
			}
		case "*":
			if stmt.IsExport && !child.IsNamed() {
				stmt.Star = true
			}
		case "import_clause":
			stmt.Bindings = append(stmt.Bindings, importClauseBindings(child, src)...)
		case "namespace_export":
			stmt.Namespace = namespaceExportName(child, src)
		case "export_clause":
			stmt.Bindings = append(stmt.Bindings, exportClauseBindings(child, src)...)
		}
	}

	switch {
	case stmt.Namespace != "":
		stmt.Star = false
		stmt.Bindings = []Binding{{Kind: KindReExport, Name: "*", Alias: stmt.Namespace}}
	case stmt.Star:
		stmt.Bindings = []Binding{{Kind: KindReExport, Name: "*"}}
	case len(stmt.Bindings) == 0:
		stmt.Bindings = []Binding{{Kind: KindSideEffect}}
	}
	if stmt.TypeOnly {
		for i := range stmt.Bindings {
			stmt.Bindings[i].TypeOnly = true
		}
	}

	return stmt, true
}

func importClauseBindings(clause *ts.Node, src []byte) []Binding {
	var out []Binding
	for i := uint(0); i < clause.NamedChildCount(); i++ {
		child := clause.NamedChild(i)
		switch child.Kind() {
		case "identifier":
			out = append(out, Binding{Kind: KindDefault, Name: "default", Alias: child.Utf8Text(src)})
		case "namespace_import":
			if id := firstNamedChild(child, "identifier"); id != nil {
				out = append(out, Binding{Kind: KindNamespace, Name: "*", Alias: id.Utf8Text(src)})
			}
		case "named_imports":
			for j := uint(0); j < child.NamedChildCount(); j++ {
				spec := child.NamedChild(j)
				if spec.Kind() != "import_specifier" {
					continue
				}
				b := specifierBinding(spec, src)
				b.Kind = KindNamed
				if b.Alias != "" {
					b.Kind = KindAliased
				}
				out = append(out, b)
			}
		}
	}
	return out
}

func exportClauseBindings(clause *ts.Node, src []byte) []Binding {
	var out []Binding
	for i := uint(0); i < clause.NamedChildCount(); i++ {
		spec := clause.NamedChild(i)
		if spec.Kind() != "export_specifier" {
			continue
		}
		b := specifierBinding(spec, src)
		b.Kind = KindReExport
		out = append(out, b)
	}
	return out
}

// specifierBinding reads an import_specifier or export_specifier. An alias
// equal to the name is dropped.
func specifierBinding(spec *ts.Node, src []byte) Binding {
	var b Binding
	if name := spec.ChildByFieldName("name"); name != nil {
		b.Name = identifierText(name, src)
	}
	if alias := spec.ChildByFieldName("alias"); alias != nil {
		b.Alias = identifierText(alias, src)
	}
	if b.Alias == b.Name {
		b.Alias = ""
	}
	for i := uint(0); i < spec.ChildCount(); i++ {
		child := spec.Child(i)
		if child != nil && !child.IsNamed() && child.Kind() == "type" {
			b.TypeOnly = true
		}
	}
	return b
}

func namespaceExportName(node *ts.Node, src []byte) string {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child.Kind() == "identifier" || child.Kind() == "string" {
			return identifierText(child, src)
		}
	}
	return ""
}

// identifierText returns an identifier, or the content of a string used as
// a module export name (`export { "a-b" as c }`).
func identifierText(node *ts.Node, src []byte) string {
	if node.Kind() == "string" {
		s, _ := stringContent(node, src)
		return s
	}
	return node.Utf8Text(src)
}

// stringContent returns the text between the quotes of a string node and
// the quote character used.
func stringContent(node *ts.Node, src []byte) (string, byte) {
	text := node.Utf8Text(src)
	if len(text) < 2 {
		return "", '\''
	}
	return text[1 : len(text)-1], text[0]
}

func firstNamedChild(node *ts.Node, kind string) *ts.Node {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child.Kind() == kind {
			return child
		}
	}
	return nil
}
