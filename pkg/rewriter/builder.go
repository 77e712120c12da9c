package rewriter

import (
	"log/slog"
	"sort"

	"github.com/webpro/unbarrelify/pkg/analyzer"
	"github.com/webpro/unbarrelify/pkg/tracker"
)

// Options configures a Builder.
type Options struct {
	// UnsafeNamespace rewrites namespace imports of multi-module barrels
	// into synthetic objects
	UnsafeNamespace bool
}

// Untraceable is a binding no defining module could be found for.
type Untraceable struct {
	Barrel   string `json:"barrel"`
	Consumer string `json:"consumer"`
	Name     string `json:"name"`
}

// UnsafeRewrite is a namespace import replaced by a synthetic object.
type UnsafeRewrite struct {
	Consumer  string `json:"consumer"`
	Barrel    string `json:"barrel"`
	Namespace string `json:"namespace"`
}

// Traced is the module that defines a binding requested from a barrel.
type Traced struct {
	Target   string
	External bool
	// Name is the binding's name in Target
	Name     string
	TypeOnly bool
	// Namespace is set when the binding is Target's module namespace
	Namespace bool
}

// Result is the rewrite of one consumer file.
type Result struct {
	Plan *Plan
	// Barrels are the barrels the file imports from, in statement order
	Barrels []string
	// Rewritten are the Barrels every statement was moved off
	Rewritten   []string
	Untraceable []Untraceable
	Unsafe      []UnsafeRewrite
}

// Builder plans the rewrite of consumer files. Barrels met along the way
// are registered with the tracker, and each barrel that re-exports from
// another is recorded as that barrel's consumer.
type Builder struct {
	analyzer *analyzer.Analyzer
	tracker  *tracker.Tracker
	opts     Options
	logger   *slog.Logger
}

// NewBuilder creates a Builder. A nil logger uses slog.Default().
func NewBuilder(a *analyzer.Analyzer, t *tracker.Tracker, opts Options, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{analyzer: a, tracker: t, opts: opts, logger: logger}
}

// Build plans the rewrite of every statement of rec that targets a barrel.
// A statement is rewritten whole or not at all.
func (b *Builder) Build(rec *analyzer.FileRecord) *Result {
	res := &Result{Plan: NewPlan()}
	if !rec.Script {
		return res
	}

	failed := make(map[string]bool)
	for _, stmt := range rec.Statements() {
		first := stmt[0]
		if first.External {
			continue
		}
		brec, ok := b.barrel(first.Target)
		if !ok {
			continue
		}
		if !contains(res.Barrels, brec.Path) {
			res.Barrels = append(res.Barrels, brec.Path)
		}

		items, ok := b.rewriteStatement(rec.Path, brec, stmt, res)
		if !ok {
			failed[brec.Path] = true
			continue
		}
		if len(items) == 0 {
			res.Plan.Remove(first.Span)
			continue
		}
		for _, item := range items {
			item.Decoration = first.Decoration
			item.Barrel = brec.Path
			item.Semicolon = first.Semicolon
			res.Plan.Add(first.Span, item)
		}
	}

	for _, barrel := range res.Barrels {
		if !failed[barrel] {
			res.Rewritten = append(res.Rewritten, barrel)
		}
	}
	return res
}

func (b *Builder) rewriteStatement(consumer string, brec *analyzer.FileRecord, stmt []analyzer.ImportItem, res *Result) ([]*RewriteItem, bool) {
	untraceable := func(name string) {
		b.logger.Debug("untraceable binding", "barrel", brec.Path, "consumer", consumer, "name", name)
		res.Untraceable = append(res.Untraceable, Untraceable{Barrel: brec.Path, Consumer: consumer, Name: name})
	}

	var out []*RewriteItem
	ok := true
	for _, item := range stmt {
		items, itemOK := b.rewriteItem(consumer, brec, item, res, untraceable)
		if !itemOK {
			// keep going so every untraceable name of the statement is reported
			ok = false
			continue
		}
		out = append(out, items...)
	}
	if !ok {
		return nil, false
	}
	return out, true
}

func (b *Builder) rewriteItem(consumer string, brec *analyzer.FileRecord, item analyzer.ImportItem, res *Result, untraceable func(string)) ([]*RewriteItem, bool) {
	switch {
	case item.Kind == analyzer.KindSideEffect:
		return b.sideEffects(brec.Path, map[string]bool{}), true

	case item.Kind == analyzer.KindNamespace:
		return b.namespace(consumer, brec.Path, item.Alias, false, item.TypeOnly, res)

	case item.Kind == analyzer.KindReExport && item.Name == "*" && item.Namespace != "":
		return b.namespace(consumer, brec.Path, item.Namespace, true, item.TypeOnly, res)

	case item.Kind == analyzer.KindReExport && item.Name == "*":
		return b.expandStar(brec.Path, item.TypeOnly, map[string]bool{}, untraceable)
	}

	traced, ok := b.traceExport(brec.Path, item.Name, map[string]bool{})
	if !ok {
		untraceable(item.Name)
		return nil, false
	}

	local := item.Local()
	if traced.Namespace {
		form := FormNamespaceImport
		if item.IsExport() {
			form = FormNamespaceExport
		}
		return []*RewriteItem{{Form: form, Target: traced.Target, External: traced.External, Namespace: local, TypeOnly: item.TypeOnly}}, true
	}

	form := FormImport
	if item.IsExport() {
		form = FormExport
	}
	return []*RewriteItem{{
		Form:     form,
		Target:   traced.Target,
		External: traced.External,
		Bindings: []Binding{newBinding(traced.Name, local, item.TypeOnly || traced.TypeOnly)},
	}}, true
}

func newBinding(imported, local string, typeOnly bool) Binding {
	if local == imported {
		local = ""
	}
	return Binding{Imported: imported, Local: local, TypeOnly: typeOnly}
}

// barrel returns the record of path if it is a barrel, registering it.
func (b *Builder) barrel(path string) (*analyzer.FileRecord, bool) {
	rec, err := b.analyzer.Analyze(path)
	if err != nil || !rec.IsBarrel {
		return nil, false
	}
	if b.tracker.Register(path) {
		b.logger.Debug("barrel discovered", "file", path, "forced", rec.Forced)
	}
	return rec, true
}

// follow returns the record of target when it is a project barrel and
// records from as its consumer.
func (b *Builder) follow(from string, e *analyzer.ExportEntry) (*analyzer.FileRecord, bool) {
	if e.External {
		return nil, false
	}
	rec, ok := b.barrel(e.Target)
	if ok {
		b.tracker.AddConsumer(e.Target, from, true)
	}
	return rec, ok
}

// traceExport finds the module that defines name as exported by barrel.
// Explicit re-exports are checked before star re-exports; a star re-export
// of a package is only used when no project module exports the name.
func (b *Builder) traceExport(barrel, name string, visited map[string]bool) (Traced, bool) {
	if visited[barrel] {
		return Traced{}, false
	}
	visited[barrel] = true

	rec, ok := b.barrel(barrel)
	if !ok {
		return Traced{}, false
	}
	entries := rec.Exports.Entries()

	for _, e := range entries {
		if e.HasNamespace(name) {
			return b.traceNamespace(barrel, e)
		}
		src, ok := e.Source(name)
		if !ok {
			continue
		}
		typeOnly := e.TypeOnly[name]
		if _, isBarrel := b.follow(barrel, e); isBarrel {
			t, ok := b.traceExport(e.Target, src, visited)
			t.TypeOnly = t.TypeOnly || typeOnly
			return t, ok
		}
		return Traced{Target: e.Target, External: e.External, Name: src, TypeOnly: typeOnly}, true
	}

	// `export *` never forwards a default export
	if name == "default" {
		return Traced{}, false
	}

	var fallback *Traced
	for _, e := range entries {
		if !e.Star {
			continue
		}
		if e.External {
			if fallback == nil {
				fallback = &Traced{Target: e.Target, External: true, Name: name, TypeOnly: e.StarTypeOnly}
			}
			continue
		}
		if _, isBarrel := b.follow(barrel, e); isBarrel {
			if t, ok := b.traceExport(e.Target, name, visited); ok {
				t.TypeOnly = t.TypeOnly || e.StarTypeOnly
				return t, true
			}
			continue
		}
		set, err := b.analyzer.ExportedNames(e.Target)
		if err != nil {
			b.logger.Debug("failed to enumerate exports", "file", e.Target, "error", err)
			continue
		}
		if set.Has(name) {
			return Traced{Target: e.Target, Name: name, TypeOnly: e.StarTypeOnly}, true
		}
		if set.Open && fallback == nil {
			fallback = &Traced{Target: e.Target, Name: name, TypeOnly: e.StarTypeOnly}
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return Traced{}, false
}

// traceNamespace resolves the module behind `export * as ns from`.
func (b *Builder) traceNamespace(barrel string, e *analyzer.ExportEntry) (Traced, bool) {
	if _, isBarrel := b.follow(barrel, e); !isBarrel {
		return Traced{Target: e.Target, External: e.External, Namespace: true}, true
	}
	definer, ok := b.singleDefiner(e.Target, map[string]bool{})
	if !ok {
		return Traced{}, false
	}
	return Traced{Target: definer, Namespace: true}, true
}

// singleDefiner returns the one project module behind barrel when the
// barrel forwards nothing else: no packages, no renames and no nested
// namespaces.
func (b *Builder) singleDefiner(barrel string, visited map[string]bool) (string, bool) {
	if visited[barrel] {
		return "", false
	}
	visited[barrel] = true

	rec, ok := b.barrel(barrel)
	if !ok {
		return "", false
	}

	definer := ""
	for _, e := range rec.Exports.Entries() {
		if e.External || len(e.Namespaces) > 0 {
			return "", false
		}
		for exported, src := range e.Names {
			if exported != src {
				return "", false
			}
		}
		target := e.Target
		if _, isBarrel := b.follow(barrel, e); isBarrel {
			inner, ok := b.singleDefiner(e.Target, visited)
			if !ok {
				return "", false
			}
			target = inner
		}
		if definer != "" && definer != target {
			return "", false
		}
		definer = target
	}
	return definer, definer != ""
}

// namespace rewrites `import * as local` or `export * as local` of barrel.
func (b *Builder) namespace(consumer, barrel, local string, export, typeOnly bool, res *Result) ([]*RewriteItem, bool) {
	form := FormNamespaceImport
	if export {
		form = FormNamespaceExport
	}
	if definer, ok := b.singleDefiner(barrel, map[string]bool{}); ok {
		return []*RewriteItem{{Form: form, Target: definer, Namespace: local, TypeOnly: typeOnly}}, true
	}

	if !b.opts.UnsafeNamespace || typeOnly {
		b.logger.Debug("namespace import kept", "consumer", consumer, "barrel", barrel, "namespace", local)
		return nil, false
	}

	items, ok := b.syntheticNamespace(barrel, local, export)
	if !ok {
		b.logger.Debug("namespace import kept", "consumer", consumer, "barrel", barrel, "namespace", local)
		return nil, false
	}
	b.logger.Warn("namespace import replaced by object literal",
		"consumer", consumer, "barrel", barrel, "namespace", local)
	res.Unsafe = append(res.Unsafe, UnsafeRewrite{Consumer: consumer, Barrel: barrel, Namespace: local})
	return items, true
}

// syntheticNamespace imports every name barrel exports from its definers
// and binds them to an object literal. Types and values are not told
// apart, and imported names may collide with the consumer's own.
func (b *Builder) syntheticNamespace(barrel, local string, export bool) ([]*RewriteItem, bool) {
	set, err := b.analyzer.ExportedNames(barrel)
	if err != nil || set.Open || len(set.Names) == 0 {
		return nil, false
	}

	var imports []*RewriteItem
	byTarget := make(map[string]*RewriteItem)
	var namespaces []*RewriteItem
	synthetic := &RewriteItem{Form: FormSyntheticNamespace, Namespace: local, Exported: export, Unsafe: true}

	for _, name := range set.Names {
		traced, ok := b.traceExport(barrel, name, map[string]bool{})
		if !ok {
			return nil, false
		}
		ident := name
		if name == "default" {
			ident = local + "_default"
		}
		synthetic.Bindings = append(synthetic.Bindings, newBinding(name, ident, false))

		if traced.Namespace {
			namespaces = append(namespaces, &RewriteItem{
				Form: FormNamespaceImport, Target: traced.Target, External: traced.External, Namespace: ident, Unsafe: true,
			})
			continue
		}
		imp, ok := byTarget[traced.Target]
		if !ok {
			imp = &RewriteItem{Form: FormImport, Target: traced.Target, External: traced.External, Unsafe: true}
			byTarget[traced.Target] = imp
			imports = append(imports, imp)
		}
		imp.addBinding(newBinding(traced.Name, ident, false))
	}

	out := append(imports, namespaces...)
	return append(out, synthetic), true
}

// expandStar replaces `export * from barrel` with re-exports of what the
// barrel forwards. Named re-exports through nested barrels are traced;
// default exports are not forwarded.
func (b *Builder) expandStar(barrel string, typeOnly bool, visited map[string]bool, untraceable func(string)) ([]*RewriteItem, bool) {
	if visited[barrel] {
		return nil, true
	}
	visited[barrel] = true

	rec, ok := b.barrel(barrel)
	if !ok {
		return nil, false
	}

	var out []*RewriteItem
	for _, e := range rec.Exports.Entries() {
		_, isBarrel := b.follow(barrel, e)

		for _, ns := range e.Namespaces {
			t, ok := b.traceNamespace(barrel, e)
			if !ok {
				untraceable(ns)
				return nil, false
			}
			out = append(out, &RewriteItem{Form: FormNamespaceExport, Target: t.Target, External: t.External, Namespace: ns, TypeOnly: typeOnly})
		}

		if e.Star {
			starType := typeOnly || e.StarTypeOnly
			if isBarrel {
				inner, ok := b.expandStar(e.Target, starType, visited, untraceable)
				if !ok {
					return nil, false
				}
				out = append(out, inner...)
			} else {
				out = append(out, &RewriteItem{Form: FormStarExport, Target: e.Target, External: e.External, TypeOnly: starType})
			}
		}

		for _, exported := range sortedKeys(e.Names) {
			if exported == "default" {
				continue
			}
			src := e.Names[exported]
			bindType := typeOnly || e.TypeOnly[exported]
			if !isBarrel {
				out = append(out, &RewriteItem{Form: FormExport, Target: e.Target, External: e.External, Bindings: []Binding{newBinding(src, exported, bindType)}})
				continue
			}
			t, ok := b.traceExport(e.Target, src, map[string]bool{})
			if !ok {
				untraceable(exported)
				return nil, false
			}
			if t.Namespace {
				out = append(out, &RewriteItem{Form: FormNamespaceExport, Target: t.Target, External: t.External, Namespace: exported, TypeOnly: bindType})
				continue
			}
			out = append(out, &RewriteItem{Form: FormExport, Target: t.Target, External: t.External, Bindings: []Binding{newBinding(t.Name, exported, bindType || t.TypeOnly)}})
		}
	}
	return out, true
}

// sideEffects replaces `import "./barrel"` with imports of every module the
// barrel would evaluate, in order. Type-only re-exports evaluate nothing.
func (b *Builder) sideEffects(barrel string, visited map[string]bool) []*RewriteItem {
	if visited[barrel] {
		return nil
	}
	visited[barrel] = true

	rec, ok := b.barrel(barrel)
	if !ok {
		return nil
	}
	var out []*RewriteItem
	for _, e := range rec.Exports.Entries() {
		if typeOnlyEntry(e) {
			continue
		}
		if _, isBarrel := b.follow(barrel, e); isBarrel {
			out = append(out, b.sideEffects(e.Target, visited)...)
			continue
		}
		out = append(out, &RewriteItem{Form: FormSideEffectImport, Target: e.Target, External: e.External})
	}
	return out
}

func typeOnlyEntry(e *analyzer.ExportEntry) bool {
	if len(e.Namespaces) > 0 {
		return false
	}
	if e.Star && !e.StarTypeOnly {
		return false
	}
	for name := range e.Names {
		if !e.TypeOnly[name] {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
