package analyzer

import "sort"

// Span is a statement's byte range in the file it was read from.
type Span struct {
	Start uint `json:"start"`
	End   uint `json:"end"`
}

// ImportKind discriminates ImportItem.
type ImportKind int

const (
	// KindNamed is `import { a }`
	KindNamed ImportKind = iota
	// KindDefault is `import a`
	KindDefault
	// KindNamespace is `import * as a`
	KindNamespace
	// KindAliased is `import { a as b }`, including `{ default as b }`
	KindAliased
	// KindReExport is any `export … from`
	KindReExport
	// KindSideEffect is `import "./a"`
	KindSideEffect
)

func (k ImportKind) String() string {
	switch k {
	case KindNamed:
		return "named"
	case KindDefault:
		return "default"
	case KindNamespace:
		return "namespace"
	case KindAliased:
		return "aliased"
	case KindReExport:
		return "re-export"
	case KindSideEffect:
		return "side-effect"
	default:
		return "unknown"
	}
}

// MarshalText lets kinds render as strings in JSON output.
func (k ImportKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Decoration is the specifier text around the resolvable path.
type Decoration struct {
	Prefix string `json:"prefix,omitempty"`
	Suffix string `json:"suffix,omitempty"`
	// Original is the full specifier as written
	Original string `json:"original"`
}

// ImportItem is one binding of an import or re-export statement.
//
// Name is the export being requested ("default" for default imports, "*"
// for namespace imports and star re-exports). Alias is the local binding
// for imports and the exported name for re-exports; it is empty when it
// equals Name.
type ImportItem struct {
	Kind       ImportKind `json:"kind"`
	Name       string     `json:"name"`
	Alias      string     `json:"alias,omitempty"`
	TypeOnly   bool       `json:"typeOnly,omitempty"`
	Span       Span       `json:"span"`
	Decoration Decoration `json:"decoration"`
	Target     string     `json:"target"`
	External   bool       `json:"external,omitempty"`
	// Namespace is set for `export * as ns from`
	Namespace string `json:"namespace,omitempty"`
	// StatementTypeOnly is set when the statement itself carries `type`
	StatementTypeOnly bool `json:"statementTypeOnly,omitempty"`
	Semicolon         bool `json:"semicolon,omitempty"`
}

// Local returns the name the binding is known by after the statement.
func (it ImportItem) Local() string {
	if it.Alias != "" {
		return it.Alias
	}
	return it.Name
}

// IsExport reports whether the item comes from an `export … from`.
func (it ImportItem) IsExport() bool {
	return it.Kind == KindReExport
}

// ImportMap holds the items of a file keyed by resolved target, in source
// order.
type ImportMap struct {
	targets []string
	items   map[string][]ImportItem
}

func newImportMap() *ImportMap {
	return &ImportMap{items: make(map[string][]ImportItem)}
}

func (m *ImportMap) add(item ImportItem) {
	if _, ok := m.items[item.Target]; !ok {
		m.targets = append(m.targets, item.Target)
	}
	m.items[item.Target] = append(m.items[item.Target], item)
}

// Targets returns resolved targets in first-seen order.
func (m *ImportMap) Targets() []string {
	return m.targets
}

// Items returns the items for target.
func (m *ImportMap) Items(target string) []ImportItem {
	return m.items[target]
}

// All returns every item ordered by statement position.
func (m *ImportMap) All() []ImportItem {
	var all []ImportItem
	for _, t := range m.targets {
		all = append(all, m.items[t]...)
	}
	sortItems(all)
	return all
}

// Len returns the number of items.
func (m *ImportMap) Len() int {
	n := 0
	for _, items := range m.items {
		n += len(items)
	}
	return n
}

// ExportEntry describes what a file re-exports from one target. Several
// statements naming the same target merge into one entry.
type ExportEntry struct {
	Target    string `json:"target"`
	External  bool   `json:"external,omitempty"`
	Specifier string `json:"specifier"`
	Spans     []Span `json:"spans"`
	// Names maps exported name to the name in Target
	Names map[string]string `json:"names,omitempty"`
	// TypeOnly holds exported names re-exported with `type`
	TypeOnly map[string]bool `json:"typeOnly,omitempty"`
	// Star means every name of Target is re-exported
	Star bool `json:"star,omitempty"`
	// StarTypeOnly is `export type * from`
	StarTypeOnly bool `json:"starTypeOnly,omitempty"`
	// Namespaces are the bindings of `export * as ns from`, in source order
	Namespaces []string `json:"namespaces,omitempty"`
}

// HasNamespace reports whether name is bound by `export * as name from`.
func (e *ExportEntry) HasNamespace(name string) bool {
	for _, ns := range e.Namespaces {
		if ns == name {
			return true
		}
	}
	return false
}

// Source returns the name in Target behind exported, if the entry lists it.
func (e *ExportEntry) Source(exported string) (string, bool) {
	src, ok := e.Names[exported]
	return src, ok
}

// AliasedDefaults returns exported names whose source is Target's default
// export (`export { default as X }`).
func (e *ExportEntry) AliasedDefaults() []string {
	var out []string
	for exported, src := range e.Names {
		if src == "default" && exported != "default" {
			out = append(out, exported)
		}
	}
	sort.Strings(out)
	return out
}

// ExportedAsDefault returns the source name re-exported as this file's
// default (`export { X as default }`).
func (e *ExportEntry) ExportedAsDefault() (string, bool) {
	src, ok := e.Names["default"]
	return src, ok
}

func (e *ExportEntry) merge(other *ExportEntry) {
	e.Spans = append(e.Spans, other.Spans...)
	for k, v := range other.Names {
		if e.Names == nil {
			e.Names = make(map[string]string)
		}
		e.Names[k] = v
	}
	for k := range other.TypeOnly {
		if e.TypeOnly == nil {
			e.TypeOnly = make(map[string]bool)
		}
		e.TypeOnly[k] = true
	}
	if other.Star {
		if e.Star {
			e.StarTypeOnly = e.StarTypeOnly && other.StarTypeOnly
		} else {
			e.StarTypeOnly = other.StarTypeOnly
		}
		e.Star = true
	}
	for _, ns := range other.Namespaces {
		if !e.HasNamespace(ns) {
			e.Namespaces = append(e.Namespaces, ns)
		}
	}
}

// ExportMap holds a file's re-export entries in source order.
type ExportMap struct {
	entries []*ExportEntry
	index   map[string]*ExportEntry
}

func newExportMap() *ExportMap {
	return &ExportMap{index: make(map[string]*ExportEntry)}
}

func (m *ExportMap) add(entry *ExportEntry) {
	if existing, ok := m.index[entry.Target]; ok {
		existing.merge(entry)
		return
	}
	m.index[entry.Target] = entry
	m.entries = append(m.entries, entry)
}

// Entries returns the entries in source order.
func (m *ExportMap) Entries() []*ExportEntry {
	return m.entries
}

// Get returns the entry for target.
func (m *ExportMap) Get(target string) (*ExportEntry, bool) {
	e, ok := m.index[target]
	return e, ok
}

// Len returns the number of entries.
func (m *ExportMap) Len() int {
	return len(m.entries)
}

// FileRecord is the analysis of one file. It is immutable once returned.
type FileRecord struct {
	Path     string
	IsBarrel bool
	// Forced is set when the file is a barrel only because it was force-included
	Forced bool
	// Script is false for component formats scanned as text
	Script  bool
	Exports *ExportMap
	Imports *ImportMap
	// DynamicImports are internal targets of import("…") calls
	DynamicImports []string
	// Quote is the quote character of the file's first import
	Quote  byte
	Source []byte
}

// Statements groups import items by statement span, in source order.
func (r *FileRecord) Statements() [][]ImportItem {
	var out [][]ImportItem
	var current []ImportItem
	for _, item := range r.Imports.All() {
		if len(current) > 0 && current[0].Span != item.Span {
			out = append(out, current)
			current = nil
		}
		current = append(current, item)
	}
	if len(current) > 0 {
		out = append(out, current)
	}
	return out
}

// Text returns the source text of span.
func (r *FileRecord) Text(span Span) string {
	if int(span.End) > len(r.Source) || span.Start > span.End {
		return ""
	}
	return string(r.Source[span.Start:span.End])
}

func sortItems(items []ImportItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Span.Start < items[j].Span.Start
	})
}
