package analyzer

import (
	"fmt"
	"regexp"

	"github.com/webpro/unbarrelify/pkg/resolver"
)

var (
	// staticImportRe matches `import … from "x"`, `import "x"` and
	// `export … from "x"` inside component files (script blocks, frontmatter, MDX).
	staticImportRe = regexp.MustCompile(`(?m)(?:^|[;\s{}])(?:import|export)\s+(?:type\s+)?(?:[\w*{}\s,$]+?\s+from\s+)?["']([^"'\n]+)["']`)
	// dynamicImportRe matches `import("x")` with a literal argument.
	dynamicImportRe = regexp.MustCompile(`\bimport\s*\(\s*["']([^"'\n]+)["']\s*\)`)
)

// analyzeNonScript scans a .vue/.svelte/.astro/.mdx file for specifiers.
// The record lists what the file consumes; it is never a barrel and is
// never rewritten.
func (a *Analyzer) analyzeNonScript(path string) (*FileRecord, error) {
	src, err := a.reader.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}

	rec := &FileRecord{
		Path:    path,
		Script:  false,
		Exports: newExportMap(),
		Imports: newImportMap(),
		Quote:   '\'',
		Source:  src,
	}

	for _, m := range staticImportRe.FindAllSubmatchIndex(src, -1) {
		raw := string(src[m[2]:m[3]])
		res := a.resolver.Resolve(path, raw)
		if res.Kind == resolver.NotFound {
			continue
		}
		spec := resolver.ParseSpecifier(raw)
		rec.Imports.add(ImportItem{
			Kind:       KindSideEffect,
			Span:       Span{Start: uint(m[0]), End: uint(m[1])},
			Decoration: Decoration{Prefix: spec.Prefix, Suffix: spec.Suffix, Original: raw},
			Target:     res.Key(),
			External:   res.Kind == resolver.External,
		})
	}

	for _, m := range dynamicImportRe.FindAllSubmatchIndex(src, -1) {
		a.addDynamicImport(rec, string(src[m[2]:m[3]]))
	}

	return rec, nil
}
