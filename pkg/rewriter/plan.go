// Package rewriter turns imports that go through barrels into imports of the
// modules that define the bindings.
package rewriter

import (
	"sort"

	"github.com/webpro/unbarrelify/pkg/analyzer"
)

// Form selects the declaration a RewriteItem is rendered as.
type Form int

const (
	// FormImport is `import d, { a, b as c } from`
	FormImport Form = iota
	// FormExport is `export { a, b as c } from`
	FormExport
	// FormNamespaceImport is `import * as ns from`
	FormNamespaceImport
	// FormNamespaceExport is `export * as ns from`
	FormNamespaceExport
	// FormStarExport is `export * from`
	FormStarExport
	// FormSideEffectImport is `import "…"`
	FormSideEffectImport
	// FormSyntheticNamespace is `const ns = { a, b }` built from imports
	// rendered next to it
	FormSyntheticNamespace
)

func (f Form) String() string {
	switch f {
	case FormImport:
		return "import"
	case FormExport:
		return "export"
	case FormNamespaceImport:
		return "namespace-import"
	case FormNamespaceExport:
		return "namespace-export"
	case FormStarExport:
		return "star-export"
	case FormSideEffectImport:
		return "side-effect-import"
	case FormSyntheticNamespace:
		return "synthetic-namespace"
	default:
		return "unknown"
	}
}

// Binding is one name of an import or export declaration. Imported is the
// name in the target module; Local is the binding in the consumer (or the
// exported name for re-exports) and is empty when it equals Imported.
type Binding struct {
	Imported string
	Local    string
	TypeOnly bool
}

// LocalName returns the name the binding is known by.
func (b Binding) LocalName() string {
	if b.Local != "" {
		return b.Local
	}
	return b.Imported
}

// RewriteItem is one declaration replacing (part of) a statement.
type RewriteItem struct {
	Form     Form
	Target   string
	External bool
	Bindings []Binding
	// Namespace is the binding of namespace and synthetic forms
	Namespace string
	// TypeOnly marks namespace, star and side-effect forms as `type`
	TypeOnly bool
	// Exported makes a synthetic namespace `export const`
	Exported bool
	// Decoration and Barrel describe the specifier being replaced
	Decoration analyzer.Decoration
	Barrel     string
	// Semicolon is set when the replaced statement ended with one
	Semicolon bool
	Unsafe    bool
}

// Plan maps each statement span of one file to the declarations that
// replace it.
type Plan struct {
	spans []analyzer.Span
	items map[analyzer.Span][]*RewriteItem
}

// NewPlan creates an empty plan.
func NewPlan() *Plan {
	return &Plan{items: make(map[analyzer.Span][]*RewriteItem)}
}

// Add appends item to the replacements of span. Imports and exports of the
// same target at the same span accumulate into one declaration.
func (p *Plan) Add(span analyzer.Span, item *RewriteItem) {
	existing, ok := p.items[span]
	if !ok {
		p.spans = append(p.spans, span)
	}
	for _, e := range existing {
		if !mergeable(e, item) {
			continue
		}
		if e.Form == FormImport || e.Form == FormExport {
			for _, b := range item.Bindings {
				e.addBinding(b)
			}
		}
		e.Unsafe = e.Unsafe || item.Unsafe
		return
	}
	p.items[span] = append(existing, item)
}

// Remove marks span for deletion unless it already has replacements.
func (p *Plan) Remove(span analyzer.Span) {
	if _, ok := p.items[span]; ok {
		return
	}
	p.spans = append(p.spans, span)
	p.items[span] = nil
}

func mergeable(a, b *RewriteItem) bool {
	if a.Form != b.Form || a.Target != b.Target || a.External != b.External {
		return false
	}
	switch a.Form {
	case FormImport, FormExport:
		return true
	case FormStarExport, FormSideEffectImport:
		return a.TypeOnly == b.TypeOnly
	case FormNamespaceImport, FormNamespaceExport:
		return a.Namespace == b.Namespace && a.TypeOnly == b.TypeOnly
	default:
		return false
	}
}

func (it *RewriteItem) addBinding(b Binding) {
	for i, e := range it.Bindings {
		if e.Imported == b.Imported && e.LocalName() == b.LocalName() {
			// a value binding wins over a type-only duplicate
			it.Bindings[i].TypeOnly = e.TypeOnly && b.TypeOnly
			return
		}
	}
	it.Bindings = append(it.Bindings, b)
}

// Spans returns the rewritten spans in ascending order.
func (p *Plan) Spans() []analyzer.Span {
	out := append([]analyzer.Span(nil), p.spans...)
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// Items returns the replacements of span in insertion order.
func (p *Plan) Items(span analyzer.Span) []*RewriteItem {
	return p.items[span]
}

// Empty reports whether the plan rewrites nothing.
func (p *Plan) Empty() bool {
	return len(p.spans) == 0
}
