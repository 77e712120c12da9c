package engine

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultInclude selects every script and scanned component file.
var DefaultInclude = []string{"**/*.{ts,tsx,mts,cts,js,jsx,mjs,cjs,vue,svelte,astro,mdx}"}

// DefaultExclude skips dependency and build output directories.
var DefaultExclude = []string{"**/node_modules", "**/.git", "**/dist", "**/build", "**/coverage"}

// DiscoverFiles walks rootDir applying include/exclude globs, which are
// matched against slash-separated paths relative to rootDir. Returns a
// sorted slice of absolute file paths for deterministic output.
func DiscoverFiles(rootDir string, include, exclude []string) ([]string, error) {
	if err := validatePatterns("exclude", exclude); err != nil {
		return nil, err
	}
	if err := validatePatterns("include", include); err != nil {
		return nil, err
	}

	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}

	var files []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Continue walking on errors.
		}
		if path == absRoot {
			return nil
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			relPath = path
		}
		relPath = filepath.ToSlash(relPath)

		if matchAny(exclude, relPath) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if len(include) > 0 && !matchAny(include, relPath) {
			return nil
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

func validatePatterns(kind string, patterns []string) error {
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid %s pattern: %s", kind, pattern)
		}
	}
	return nil
}

func matchAny(patterns []string, relPath string) bool {
	for _, pattern := range patterns {
		if m, _ := doublestar.PathMatch(pattern, relPath); m {
			return true
		}
	}
	return false
}

// globMatcher returns a predicate matching absolute paths under root
// against patterns. Nil patterns match nothing.
func globMatcher(root string, patterns []string) func(string) bool {
	if len(patterns) == 0 {
		return func(string) bool { return false }
	}
	return func(path string) bool {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return false
		}
		return matchAny(patterns, filepath.ToSlash(rel))
	}
}
