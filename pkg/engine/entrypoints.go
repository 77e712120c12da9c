package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/webpro/unbarrelify/pkg/resolver"
)

// manifestFields are the package.json fields naming public modules.
var manifestFields = []string{"main", "module", "types", "typings", "browser"}

type manifest map[string]json.RawMessage

// PackageEntryPoints returns the files root's package.json exposes through
// main, module, types, typings, browser and exports. Targets that do not
// resolve to a project file are ignored. A missing package.json yields nil.
func PackageEntryPoints(root string, res *resolver.Resolver) ([]string, error) {
	manifestPath := filepath.Join(root, "package.json")
	data, err := os.ReadFile(manifestPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", manifestPath, err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", manifestPath, err)
	}

	var targets []string
	for _, field := range manifestFields {
		var s string
		if raw, ok := m[field]; ok && json.Unmarshal(raw, &s) == nil {
			targets = append(targets, s)
		}
	}
	if raw, ok := m["exports"]; ok {
		targets = append(targets, exportTargets(raw)...)
	}

	seen := make(map[string]bool)
	var out []string
	for _, target := range targets {
		spec := "./" + path.Clean(target)
		r := res.Resolve(manifestPath, spec)
		if r.Kind != resolver.Internal || seen[r.Path] {
			continue
		}
		seen[r.Path] = true
		out = append(out, r.Path)
	}
	sort.Strings(out)
	return out, nil
}

// exportTargets collects the file targets of an exports field: a string,
// an array, or nested subpath/condition objects. Wildcard subpaths are
// skipped.
func exportTargets(raw json.RawMessage) []string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if s == "" || containsWildcard(s) {
			return nil
		}
		return []string{s}
	}

	var list []json.RawMessage
	if json.Unmarshal(raw, &list) == nil {
		var out []string
		for _, item := range list {
			out = append(out, exportTargets(item)...)
		}
		return out
	}

	var obj map[string]json.RawMessage
	if json.Unmarshal(raw, &obj) == nil {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var out []string
		for _, k := range keys {
			if containsWildcard(k) {
				continue
			}
			out = append(out, exportTargets(obj[k])...)
		}
		return out
	}
	return nil
}

func containsWildcard(s string) bool {
	return strings.Contains(s, "*")
}
