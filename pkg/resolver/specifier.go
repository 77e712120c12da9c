package resolver

import (
	"path/filepath"
	"strings"
)

// Specifier is an import string split into its bundler decoration and the
// path portion that takes part in resolution.
//
//	"raw-loader!./styles.css?inline#x" → Prefix "raw-loader!", Path "./styles.css", Suffix "?inline#x"
type Specifier struct {
	Prefix string
	Path   string
	Suffix string
}

// ParseSpecifier splits raw. The loader prefix ends at the last "!"; the
// suffix starts at the first "?" or "#" after it. A leading "#" is a Node
// subpath import and stays part of the path.
func ParseSpecifier(raw string) Specifier {
	var s Specifier
	rest := raw
	if i := strings.LastIndex(rest, "!"); i >= 0 {
		s.Prefix = rest[:i+1]
		rest = rest[i+1:]
	}

	start := 0
	if strings.HasPrefix(rest, "#") {
		start = 1
	}
	if i := strings.IndexAny(rest[start:], "?#"); i >= 0 {
		s.Path = rest[:start+i]
		s.Suffix = rest[start+i:]
	} else {
		s.Path = rest
	}
	return s
}

// String reassembles the specifier.
func (s Specifier) String() string {
	return s.Prefix + s.Path + s.Suffix
}

// WithPath returns a copy carrying the same decoration around path.
func (s Specifier) WithPath(path string) string {
	return s.Prefix + path + s.Suffix
}

// IsRelative reports whether p starts with "./" or "../" (or is "." / "..").
func IsRelative(p string) bool {
	return p == "." || p == ".." || strings.HasPrefix(p, "./") || strings.HasPrefix(p, "../")
}

// IsBare reports whether p is neither relative nor absolute.
func IsBare(p string) bool {
	return p != "" && !IsRelative(p) && !filepath.IsAbs(p) && !strings.HasPrefix(p, "/")
}

// PackageName returns the package part of a bare specifier:
// "@scope/pkg/sub" → "@scope/pkg", "lodash/fp" → "lodash".
func PackageName(p string) string {
	parts := strings.Split(p, "/")
	if strings.HasPrefix(p, "@") && len(parts) > 1 {
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}
