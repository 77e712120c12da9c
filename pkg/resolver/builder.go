package resolver

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ExtMode selects the extension convention of built specifiers.
type ExtMode string

const (
	// ExtAuto follows the original specifier, then the target's own extension
	ExtAuto ExtMode = ""
	// ExtNone drops script extensions
	ExtNone ExtMode = "none"
	// ExtJS writes the emitted JavaScript extension (.ts → .js, .mts → .mjs)
	ExtJS ExtMode = "js"
	// ExtTS writes the TypeScript source extension
	ExtTS ExtMode = "ts"
)

// ParseExtMode validates a --ext value.
func ParseExtMode(s string) (ExtMode, error) {
	switch ExtMode(strings.ToLower(s)) {
	case ExtAuto, "auto":
		return ExtAuto, nil
	case ExtNone:
		return ExtNone, nil
	case ExtJS:
		return ExtJS, nil
	case ExtTS:
		return ExtTS, nil
	default:
		return ExtAuto, fmt.Errorf("invalid extension mode %q (want none, js or ts)", s)
	}
}

// BuildOptions describes the specifier being replaced.
type BuildOptions struct {
	// Ext overrides the extension convention
	Ext ExtMode
	// Original is the path portion of the specifier being replaced
	Original string
	// OriginalTarget is the file Original resolved to
	OriginalTarget string
}

// BuildSpecifier returns the specifier path for importing to from from.
// The result carries no decoration; callers reattach it.
func (r *Resolver) BuildSpecifier(from, to string, opts BuildOptions) string {
	target := applyExtension(to, opts.Ext, opts.Original)

	if IsBare(opts.Original) {
		if spec, ok := r.aliasSpecifier(target, opts); ok {
			return spec
		}
		if spec, ok := inferAliasSpecifier(target, opts); ok {
			return spec
		}
	}

	fromDir := filepath.Dir(r.Realpath(from))
	rel, err := filepath.Rel(fromDir, target)
	if err != nil {
		return filepath.ToSlash(target)
	}
	rel = filepath.ToSlash(rel)
	if !strings.HasPrefix(rel, "../") {
		rel = "./" + rel
	}
	return rel
}

// aliasSpecifier re-derives a configured alias for target when the original
// specifier was written against one.
func (r *Resolver) aliasSpecifier(target string, opts BuildOptions) (string, bool) {
	if r.aliases == nil {
		return "", false
	}
	if m, ok := r.aliases.MappingFor(opts.Original); ok {
		return m.Reverse(target)
	}
	if base := r.aliases.BaseURL; base != "" && opts.OriginalTarget != "" && isUnder(opts.OriginalTarget, base) && isUnder(target, base) {
		rel, err := filepath.Rel(base, target)
		if err == nil {
			return filepath.ToSlash(rel), true
		}
	}
	return "", false
}

// inferAliasSpecifier handles aliases declared outside tsconfig (bundler
// config). The trailing segments shared by the original specifier and its
// resolved file locate the alias root; target must sit under that root.
//
//	"@/components/Button" → /repo/src/components/Button.tsx gives "@" = /repo/src
func inferAliasSpecifier(target string, opts BuildOptions) (string, bool) {
	if opts.OriginalTarget == "" {
		return "", false
	}
	resolved := stripKnownExtension(opts.OriginalTarget)
	if filepath.Base(resolved) == "index" && !strings.HasSuffix(opts.Original, "/index") {
		resolved = filepath.Dir(resolved)
	}

	specSegs := strings.Split(stripKnownExtension(opts.Original), "/")
	pathSegs := strings.Split(filepath.ToSlash(resolved), "/")

	k := 0
	for k < len(specSegs) && k < len(pathSegs) && specSegs[len(specSegs)-1-k] == pathSegs[len(pathSegs)-1-k] {
		k++
	}
	if k == 0 || k == len(specSegs) {
		return "", false
	}

	root := filepath.FromSlash(strings.Join(pathSegs[:len(pathSegs)-k], "/"))
	if root == "" || !isUnder(target, root) {
		return "", false
	}
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return "", false
	}
	prefix := strings.Join(specSegs[:len(specSegs)-k], "/")
	return prefix + "/" + filepath.ToSlash(rel), true
}

// applyExtension rewrites the extension of path per mode. Precedence: an
// explicit mode, then the convention of original, then the file's own.
func applyExtension(path string, mode ExtMode, original string) string {
	if mode == ExtAuto {
		mode = inferExtMode(original)
	}

	stem, ext := splitExtension(path)
	if ext == ".json" {
		return path
	}
	switch mode {
	case ExtNone:
		return stem
	case ExtJS:
		return stem + emittedExtension(ext)
	case ExtTS:
		if isDeclarationExt(ext) {
			return stem + emittedExtension(ext)
		}
		return path
	default:
		// natural: declaration files are imported without their suffix
		if isDeclarationExt(ext) {
			return stem
		}
		return path
	}
}

// inferExtMode reads the convention off the original specifier. An empty
// original yields ExtAuto, which applyExtension treats as natural.
func inferExtMode(original string) ExtMode {
	if original == "" {
		return ExtAuto
	}
	_, ext := splitExtension(original)
	switch ext {
	case "":
		return ExtNone
	case ".js", ".jsx", ".mjs", ".cjs":
		return ExtJS
	case ".ts", ".tsx", ".mts", ".cts":
		return ExtTS
	default:
		return ExtAuto
	}
}

var knownExtensions = []string{".d.mts", ".d.cts", ".d.ts", ".tsx", ".ts", ".mts", ".cts", ".jsx", ".js", ".mjs", ".cjs", ".json"}

// splitExtension splits off a known script extension. Unknown extensions
// ("./button.styles") are part of the stem.
func splitExtension(path string) (string, string) {
	lower := strings.ToLower(path)
	for _, ext := range knownExtensions {
		if strings.HasSuffix(lower, ext) && len(path) > len(ext) {
			return path[:len(path)-len(ext)], ext
		}
	}
	return path, ""
}

func stripKnownExtension(path string) string {
	stem, _ := splitExtension(path)
	return stem
}

func emittedExtension(ext string) string {
	switch ext {
	case ".mts", ".mjs", ".d.mts":
		return ".mjs"
	case ".cts", ".cjs", ".d.cts":
		return ".cjs"
	case ".jsx":
		return ".jsx"
	default:
		return ".js"
	}
}

func isDeclarationExt(ext string) bool {
	return ext == ".d.ts" || ext == ".d.mts" || ext == ".d.cts"
}

func isUnder(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
