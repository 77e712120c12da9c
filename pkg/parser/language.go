package parser

import (
	"path/filepath"
	"strings"
)

// Language represents a grammar the parser manager can load.
type Language int

const (
	// LanguageTypeScript covers .ts, .mts, .cts, .d.ts and .tsx
	LanguageTypeScript Language = iota
	// LanguageJavaScript covers .js, .jsx, .mjs and .cjs
	LanguageJavaScript
	// LanguageUnknown is anything else
	LanguageUnknown
)

// String returns the string representation of the language.
func (l Language) String() string {
	switch l {
	case LanguageTypeScript:
		return "typescript"
	case LanguageJavaScript:
		return "javascript"
	default:
		return "unknown"
	}
}

// ScriptExtensions lists the extensions of files the engine parses and rewrites.
var ScriptExtensions = []string{".ts", ".tsx", ".mts", ".cts", ".js", ".jsx", ".mjs", ".cjs"}

// NonScriptExtensions lists component formats whose imports are scanned as
// text. They can consume a barrel but are never rewritten.
var NonScriptExtensions = []string{".vue", ".svelte", ".astro", ".mdx"}

// DetectLanguage detects the grammar from a file path.
func DetectLanguage(filePath string) Language {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".ts", ".mts", ".cts", ".tsx":
		return LanguageTypeScript
	case ".js", ".jsx", ".mjs", ".cjs":
		return LanguageJavaScript
	default:
		return LanguageUnknown
	}
}

// IsTSXFile reports whether the TSX variant of the TypeScript grammar applies.
func IsTSXFile(filePath string) bool {
	return strings.ToLower(filepath.Ext(filePath)) == ".tsx"
}

// IsScript reports whether the file is parsed with tree-sitter.
func IsScript(filePath string) bool {
	return DetectLanguage(filePath) != LanguageUnknown
}

// IsNonScript reports whether the file is a component format scanned as text.
func IsNonScript(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	for _, e := range NonScriptExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// IsDeclarationFile reports whether the file is a TypeScript declaration file.
func IsDeclarationFile(filePath string) bool {
	base := strings.ToLower(filepath.Base(filePath))
	return strings.HasSuffix(base, ".d.ts") || strings.HasSuffix(base, ".d.mts") || strings.HasSuffix(base, ".d.cts")
}
