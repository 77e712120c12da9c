package analyzer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webpro/unbarrelify/pkg/parser"
	"github.com/webpro/unbarrelify/pkg/parser/queries"
	"github.com/webpro/unbarrelify/pkg/resolver"
	"github.com/webpro/unbarrelify/pkg/util"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func tempRoot(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

func newTestAnalyzer(t *testing.T, opts Options) *Analyzer {
	t.Helper()
	logger := util.DiscardLogger()
	pm := parser.NewParserManager(logger)
	qm := queries.NewQueryManager(logger)
	t.Cleanup(func() {
		qm.Close()
		pm.Close()
	})
	return New(resolver.New(resolver.Options{}, logger), pm, qm, util.NewSourceReader(logger), opts, logger)
}

func TestBarrelClassification(t *testing.T) {
	root := tempRoot(t)
	writeFile(t, root, "a.ts", "export const a = 1;")
	writeFile(t, root, "b.ts", "export const b = 1;")

	tests := []struct {
		name    string
		content string
		barrel  bool
	}{
		{"named re-exports", "export { a } from './a';\nexport { b } from './b';\n", true},
		{"star re-export", "export * from './a';", true},
		{"namespace re-export", "export * as ns from './a';", true},
		{"type re-export", "export type { A } from './a';", true},
		{"comments and hashbang", "#!/usr/bin/env node\n// barrel\n/* docs */\nexport * from './a';\n;\n", true},
		{"empty file", "", false},
		{"only comments", "// nothing here\n", false},
		{"local export", "export * from './a';\nexport const c = 1;\n", false},
		{"import statement", "import { a } from './a';\nexport { a };\n", false},
		{"export list without source", "export {};", false},
		{"directive", "'use client';\nexport * from './a';\n", false},
		{"default export", "export * from './a';\nexport default 1;\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, root, "index.ts", tt.content)
			a := newTestAnalyzer(t, Options{})
			rec, err := a.Analyze(path)
			require.NoError(t, err)
			assert.Equal(t, tt.barrel, rec.IsBarrel)
			assert.False(t, rec.Forced)
		})
	}
}

func TestForceBarrel(t *testing.T) {
	root := tempRoot(t)
	writeFile(t, root, "a.ts", "export const a = 1;")
	path := writeFile(t, root, "mixed.ts", "export * from './a';\nexport const local = 2;\n")

	a := newTestAnalyzer(t, Options{ForceBarrel: func(p string) bool { return strings.HasSuffix(p, "mixed.ts") }})
	rec, err := a.Analyze(path)
	require.NoError(t, err)
	assert.True(t, rec.IsBarrel)
	assert.True(t, rec.Forced)
}

func TestExportMap(t *testing.T) {
	root := tempRoot(t)
	utils := writeFile(t, root, "utils.ts", "export const foo = 1; export const bar = 2;")
	source := writeFile(t, root, "source.ts", "export default function helper() {}")
	types := writeFile(t, root, "types.ts", "export interface T {}")
	ns := writeFile(t, root, "ns.ts", "export const x = 1;")
	barrel := writeFile(t, root, "index.ts", `export { foo, bar as baz } from './utils';
export { default as namedHelper } from "./source";
export type { T } from './types';
export * as space from './ns';
export * from 'some-package';
export { qux } from './utils';
`)

	a := newTestAnalyzer(t, Options{})
	rec, err := a.Analyze(barrel)
	require.NoError(t, err)
	require.True(t, rec.IsBarrel)
	assert.Equal(t, byte('\''), rec.Quote)
	assert.Empty(t, rec.DynamicImports)

	require.Equal(t, 5, rec.Exports.Len())
	entries := rec.Exports.Entries()
	assert.Equal(t, utils, entries[0].Target)
	assert.Equal(t, source, entries[1].Target)
	assert.Equal(t, types, entries[2].Target)
	assert.Equal(t, ns, entries[3].Target)
	assert.Equal(t, "some-package", entries[4].Target)

	u, ok := rec.Exports.Get(utils)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"foo": "foo", "baz": "bar", "qux": "qux"}, u.Names, "statements for one target merge")
	assert.Len(t, u.Spans, 2)
	assert.Equal(t, "./utils", u.Specifier)
	assert.False(t, u.Star)

	s, _ := rec.Exports.Get(source)
	assert.Equal(t, []string{"namedHelper"}, s.AliasedDefaults())
	_, isDefault := s.ExportedAsDefault()
	assert.False(t, isDefault)

	ty, _ := rec.Exports.Get(types)
	assert.True(t, ty.TypeOnly["T"])

	n, _ := rec.Exports.Get(ns)
	assert.Equal(t, []string{"space"}, n.Namespaces)
	assert.False(t, n.Star)

	ext, _ := rec.Exports.Get("some-package")
	assert.True(t, ext.External)
	assert.True(t, ext.Star)
	assert.Empty(t, ext.Names)
}

func TestExportMap_NamespacesMerge(t *testing.T) {
	root := tempRoot(t)
	x := writeFile(t, root, "x.ts", "export const v = 1;")
	barrel := writeFile(t, root, "index.ts", "export * as a from './x';\nexport * as b from './x';\nexport * as a from './x';\n")

	rec, err := newTestAnalyzer(t, Options{}).Analyze(barrel)
	require.NoError(t, err)
	require.Equal(t, 1, rec.Exports.Len())

	e, ok := rec.Exports.Get(x)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, e.Namespaces)
	assert.True(t, e.HasNamespace("b"))
	assert.False(t, e.HasNamespace("v"))
	assert.Len(t, e.Spans, 3)
}

func TestExportedAsDefault(t *testing.T) {
	root := tempRoot(t)
	writeFile(t, root, "impl.ts", "export const impl = 1;")
	barrel := writeFile(t, root, "index.ts", "export { impl as default } from './impl';")

	rec, err := newTestAnalyzer(t, Options{}).Analyze(barrel)
	require.NoError(t, err)
	entry := rec.Exports.Entries()[0]
	src, ok := entry.ExportedAsDefault()
	require.True(t, ok)
	assert.Equal(t, "impl", src)
	assert.Empty(t, entry.AliasedDefaults())
}

func TestImportMap(t *testing.T) {
	root := tempRoot(t)
	barrel := writeFile(t, root, "lib/index.ts", "export * from './a';")
	writeFile(t, root, "lib/a.ts", "export const a = 1;")
	consumer := writeFile(t, root, "consumer.ts", `import def, { a, b as c, type T, default as d } from "./lib";
import * as lib from "./lib/index";
import type { U } from './lib'
import './lib?side';
import React from 'react';
export { a as reA } from './lib';
export * from './lib';
export * as all from './lib';
const x = 1;
`)

	a := newTestAnalyzer(t, Options{})
	rec, err := a.Analyze(consumer)
	require.NoError(t, err)
	assert.False(t, rec.IsBarrel)
	assert.Equal(t, byte('"'), rec.Quote, "quote of the first import")
	assert.Equal(t, []string{barrel, "react"}, rec.Imports.Targets())

	items := rec.Imports.Items(barrel)
	require.Len(t, items, 11)

	assert.Equal(t, KindDefault, items[0].Kind)
	assert.Equal(t, "default", items[0].Name)
	assert.Equal(t, "def", items[0].Alias)
	assert.Equal(t, "def", items[0].Local())
	assert.True(t, items[0].Semicolon)
	assert.Equal(t, "./lib", items[0].Decoration.Original)

	assert.Equal(t, KindNamed, items[1].Kind)
	assert.Equal(t, "a", items[1].Name)
	assert.Empty(t, items[1].Alias)

	assert.Equal(t, KindAliased, items[2].Kind)
	assert.Equal(t, "b", items[2].Name)
	assert.Equal(t, "c", items[2].Alias)

	assert.Equal(t, KindNamed, items[3].Kind)
	assert.True(t, items[3].TypeOnly)
	assert.False(t, items[3].StatementTypeOnly)

	assert.Equal(t, KindAliased, items[4].Kind)
	assert.Equal(t, "default", items[4].Name)
	assert.Equal(t, "d", items[4].Alias)

	for i := 0; i < 5; i++ {
		assert.Equal(t, items[0].Span, items[i].Span, "one statement, one span")
	}

	assert.Equal(t, KindNamespace, items[5].Kind)
	assert.Equal(t, "*", items[5].Name)
	assert.Equal(t, "lib", items[5].Alias)

	assert.Equal(t, KindNamed, items[6].Kind)
	assert.True(t, items[6].TypeOnly)
	assert.True(t, items[6].StatementTypeOnly)
	assert.False(t, items[6].Semicolon)

	assert.Equal(t, KindSideEffect, items[7].Kind)
	assert.Equal(t, "?side", items[7].Decoration.Suffix)

	assert.Equal(t, KindReExport, items[8].Kind)
	assert.Equal(t, "a", items[8].Name)
	assert.Equal(t, "reA", items[8].Alias)
	assert.True(t, items[8].IsExport())

	assert.Equal(t, KindReExport, items[9].Kind)
	assert.Equal(t, "*", items[9].Name)
	assert.Empty(t, items[9].Namespace)

	assert.Equal(t, "*", items[10].Name)
	assert.Equal(t, "all", items[10].Namespace)

	react := rec.Imports.Items("react")
	require.Len(t, react, 1)
	assert.True(t, react[0].External)

	stmts := rec.Statements()
	require.Len(t, stmts, 8)
	assert.Len(t, stmts[0], 5)
	assert.Equal(t, `import def, { a, b as c, type T, default as d } from "./lib";`, rec.Text(stmts[0][0].Span))
}

func TestImportMap_UnresolvedRelativeIsSkipped(t *testing.T) {
	root := tempRoot(t)
	consumer := writeFile(t, root, "consumer.ts", "import { a } from './missing';\nimport { b } from 'pkg';\n")

	rec, err := newTestAnalyzer(t, Options{}).Analyze(consumer)
	require.NoError(t, err)
	assert.Equal(t, []string{"pkg"}, rec.Imports.Targets())
}

func TestDynamicImports(t *testing.T) {
	root := tempRoot(t)
	lazy := writeFile(t, root, "lazy/index.ts", "export * from './page';")
	writeFile(t, root, "lazy/page.ts", "export const page = 1;")
	other := writeFile(t, root, "other.ts", "export const o = 1;")
	consumer := writeFile(t, root, "app.tsx", `const Page = React.lazy(() => import('./lazy'));
const again = () => import("./lazy/index");
import('./other.js');
import('some-package');
export const App = () => <Page />;
`)

	a := newTestAnalyzer(t, Options{})
	rec, err := a.Analyze(consumer)
	require.NoError(t, err)
	assert.Equal(t, []string{lazy, other}, rec.DynamicImports)

	barrel, err := a.Analyze(writeFile(t, root, "barrel.ts", "export * from './lazy';"))
	require.NoError(t, err)
	assert.True(t, barrel.IsBarrel)
	assert.Empty(t, barrel.DynamicImports)
}

func TestAnalyze_Cached(t *testing.T) {
	root := tempRoot(t)
	path := writeFile(t, root, "a.ts", "export const a = 1;")

	a := newTestAnalyzer(t, Options{})
	first, err := a.Analyze(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("export * from './b';"), 0644))
	second, err := a.Analyze(path)
	require.NoError(t, err)
	assert.Same(t, first, second, "records are not re-read within a run")
}

func TestAnalyze_Errors(t *testing.T) {
	root := tempRoot(t)
	a := newTestAnalyzer(t, Options{})

	_, err := a.Analyze(filepath.Join(root, "missing.ts"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.ts")

	_, err = a.Analyze(writeFile(t, root, "styles.css", "a {}"))
	assert.ErrorIs(t, err, ErrUnsupported)

	// failures are cached for the run
	require.NoError(t, os.WriteFile(filepath.Join(root, "missing.ts"), []byte("export const a = 1;"), 0644))
	_, err = a.Analyze(filepath.Join(root, "missing.ts"))
	assert.Error(t, err)
}

func TestExportedNames(t *testing.T) {
	root := tempRoot(t)
	writeFile(t, root, "deep.ts", "export const deep = 1;\nexport default 'd';\n")
	writeFile(t, root, "mid.ts", "export * from './deep';\nexport function mid() {}\n")
	path := writeFile(t, root, "definer.ts", `export const a = 1, b = 2;
export let { c, d: e, f = 3, ...rest } = obj;
export const [g, h = x] = arr;
export function fn() {}
export function* gen() {}
export class Klass {}
export abstract class Abstract {}
export interface Iface {}
export type Alias = string;
export enum Color { Red }
export declare const declared: number;
export namespace Space {}
const local = 1, other = 2;
export { local, other as renamed };
export default class {}
export * from './mid';
export * as nsExport from './deep';
export { deep as reexported } from './deep';
export * from 'external-pkg';
`)

	a := newTestAnalyzer(t, Options{})
	set, err := a.ExportedNames(path)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Abstract", "Alias", "Color", "Iface", "Klass", "Space",
		"a", "b", "c", "declared", "deep", "default", "e", "f", "fn", "g", "gen", "h",
		"local", "mid", "nsExport", "reexported", "renamed", "rest",
	}, set.Names)
	assert.True(t, set.Open)
	assert.True(t, set.Has("deep"))
	assert.False(t, set.Has("x"))
	assert.False(t, set.Has("obj"))

	mid, err := a.ExportedNames(filepath.Join(root, "mid.ts"))
	require.NoError(t, err)
	assert.Equal(t, []string{"deep", "mid"}, mid.Names, "star re-exports skip default")
	assert.False(t, mid.Open)
}

func TestExportedNames_Cycle(t *testing.T) {
	root := tempRoot(t)
	a1 := writeFile(t, root, "a.ts", "export * from './b';\nexport const a = 1;\n")
	b1 := writeFile(t, root, "b.ts", "export * from './a';\nexport const b = 1;\n")

	an := newTestAnalyzer(t, Options{})
	set, err := an.ExportedNames(a1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, set.Names)

	set, err = an.ExportedNames(b1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, set.Names)
}

func TestNonScriptConsumer(t *testing.T) {
	root := tempRoot(t)
	barrel := writeFile(t, root, "components/index.ts", "export * from './Button';")
	writeFile(t, root, "components/Button.ts", "export const Button = 1;")
	lazy := writeFile(t, root, "lazy.ts", "export const lazy = 1;")
	vue := writeFile(t, root, "App.vue", `<template><Button /></template>
<script setup lang="ts">
import { Button } from './components'
import type { Props } from "./components/index";
const Lazy = defineAsyncComponent(() => import('./lazy'))
</script>
`)

	a := newTestAnalyzer(t, Options{})
	rec, err := a.Analyze(vue)
	require.NoError(t, err)
	assert.False(t, rec.Script)
	assert.False(t, rec.IsBarrel)
	assert.Equal(t, []string{barrel}, rec.Imports.Targets())
	assert.Len(t, rec.Imports.Items(barrel), 2)
	assert.Equal(t, []string{lazy}, rec.DynamicImports)
}

func TestImportKindString(t *testing.T) {
	text, err := KindAliased.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "aliased", string(text))
	assert.Equal(t, "re-export", KindReExport.String())
	assert.Equal(t, "unknown", ImportKind(42).String())
}
