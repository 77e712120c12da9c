package rewriter

import (
	"strings"
	"unicode"
)

// SynthOptions carries the style of the file being rewritten.
type SynthOptions struct {
	// Quote is the specifier quote character; zero means '\''
	Quote     byte
	Semicolon bool
}

// Synthesize renders item as a declaration importing from specifier.
// Statement-level `type` is used only when every binding is type-only;
// mixed bindings carry `type` individually.
func Synthesize(item *RewriteItem, specifier string, opts SynthOptions) string {
	q := opts.Quote
	if q == 0 {
		q = '\''
	}
	from := string(q) + specifier + string(q)

	var decl string
	switch item.Form {
	case FormImport:
		decl = "import " + importClause(item.Bindings, q) + " from " + from
	case FormExport:
		if allTypeOnly(item.Bindings) {
			decl = "export type " + namedList(item.Bindings, false, q) + " from " + from
		} else {
			decl = "export " + namedList(item.Bindings, true, q) + " from " + from
		}
	case FormNamespaceImport:
		decl = "import " + typeKeyword(item.TypeOnly) + "* as " + item.Namespace + " from " + from
	case FormNamespaceExport:
		decl = "export " + typeKeyword(item.TypeOnly) + "* as " + exportName(item.Namespace, q) + " from " + from
	case FormStarExport:
		decl = "export " + typeKeyword(item.TypeOnly) + "* from " + from
	case FormSideEffectImport:
		decl = "import " + from
	case FormSyntheticNamespace:
		decl = "const " + item.Namespace + " = " + objectLiteral(item.Bindings, q)
		if item.Exported {
			decl = "export " + decl
		}
	}

	if opts.Semicolon {
		decl += ";"
	}
	return decl
}

func importClause(bindings []Binding, q byte) string {
	var def *Binding
	var named []Binding
	for i, b := range bindings {
		if def == nil && b.Imported == "default" && b.Local != "" {
			def = &bindings[i]
			continue
		}
		named = append(named, b)
	}

	switch {
	case allTypeOnly(bindings) && (def == nil || len(named) == 0):
		if def != nil {
			return "type " + def.Local
		}
		return "type " + namedList(named, false, q)
	case allTypeOnly(bindings):
		// `import type D, { A }` is not allowed
		return "type " + namedList(append([]Binding{*def}, named...), false, q)
	case def != nil && def.TypeOnly:
		return namedList(append([]Binding{*def}, named...), true, q)
	case def == nil:
		return namedList(named, true, q)
	case len(named) == 0:
		return def.Local
	default:
		return def.Local + ", " + namedList(named, true, q)
	}
}

func namedList(bindings []Binding, inlineType bool, q byte) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		s := exportName(b.Imported, q)
		if b.Local != "" && b.Local != b.Imported {
			s += " as " + exportName(b.Local, q)
		}
		if inlineType && b.TypeOnly {
			s = "type " + s
		}
		parts = append(parts, s)
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

func objectLiteral(members []Binding, q byte) string {
	parts := make([]string, 0, len(members))
	for _, m := range members {
		if m.Local == "" || m.Local == m.Imported {
			parts = append(parts, m.Imported)
			continue
		}
		parts = append(parts, exportName(m.Imported, q)+": "+m.Local)
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

func allTypeOnly(bindings []Binding) bool {
	if len(bindings) == 0 {
		return false
	}
	for _, b := range bindings {
		if !b.TypeOnly {
			return false
		}
	}
	return true
}

func typeKeyword(typeOnly bool) string {
	if typeOnly {
		return "type "
	}
	return ""
}

// exportName quotes module export names that are not identifiers
// (`export { x as "a-b" }`).
func exportName(name string, q byte) string {
	if isIdentifier(name) {
		return name
	}
	return string(q) + name + string(q)
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || r == '$' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}
