// Package alias loads path alias tables from tsconfig.json / jsconfig.json.
package alias

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tailscale/hujson"
)

// ConfigNames are the files searched for, nearest directory first.
var ConfigNames = []string{"tsconfig.json", "jsconfig.json"}

const maxExtendsDepth = 16

// Mapping is one compilerOptions.paths entry. Targets are absolute and may
// contain a single "*" like the pattern.
type Mapping struct {
	Pattern string
	Targets []string
}

// Config is a resolved alias table.
type Config struct {
	// Path of the config file the table was loaded from
	Path string
	// BaseURL is absolute, empty when unset
	BaseURL string
	// Mappings are ordered by prefix length, longest first
	Mappings []Mapping
}

type tsconfigFile struct {
	Extends         json.RawMessage `json:"extends"`
	CompilerOptions struct {
		BaseURL *string             `json:"baseUrl"`
		Paths   map[string][]string `json:"paths"`
	} `json:"compilerOptions"`
}

// Find walks up from dir and returns the nearest config file, or "".
func Find(dir string) string {
	current := dir
	for {
		for _, name := range ConfigNames {
			candidate := filepath.Join(current, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate
			}
		}
		parent := filepath.Dir(current)
		if parent == current {
			return ""
		}
		current = parent
	}
}

// Load finds the nearest config from dir upward and loads it. It returns
// nil and no error when no config exists.
func Load(dir string) (*Config, error) {
	path := Find(dir)
	if path == "" {
		return nil, nil
	}
	return LoadFile(path)
}

// LoadFile loads a config file, following "extends" chains.
func LoadFile(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", path, err)
	}

	chain, err := loadChain(abs, map[string]bool{}, 0)
	if err != nil {
		return nil, err
	}

	var (
		baseURL  string
		paths    map[string][]string
		pathsDir string
	)
	// parents first so that children override
	for i := len(chain) - 1; i >= 0; i-- {
		level := chain[i]
		dir := filepath.Dir(level.path)
		if level.file.CompilerOptions.BaseURL != nil {
			baseURL = filepath.Join(dir, *level.file.CompilerOptions.BaseURL)
		}
		if level.file.CompilerOptions.Paths != nil {
			paths = level.file.CompilerOptions.Paths
			pathsDir = dir
		}
	}

	cfg := &Config{Path: abs, BaseURL: baseURL}
	targetBase := pathsDir
	if baseURL != "" {
		targetBase = baseURL
	}
	for pattern, targets := range paths {
		m := Mapping{Pattern: pattern}
		for _, target := range targets {
			if filepath.IsAbs(target) {
				m.Targets = append(m.Targets, filepath.Clean(target))
				continue
			}
			m.Targets = append(m.Targets, joinPattern(targetBase, target))
		}
		if len(m.Targets) > 0 {
			cfg.Mappings = append(cfg.Mappings, m)
		}
	}
	sort.Slice(cfg.Mappings, func(i, j int) bool {
		pi, pj := prefixOf(cfg.Mappings[i].Pattern), prefixOf(cfg.Mappings[j].Pattern)
		if len(pi) != len(pj) {
			return len(pi) > len(pj)
		}
		return cfg.Mappings[i].Pattern < cfg.Mappings[j].Pattern
	})

	return cfg, nil
}

type chainLevel struct {
	path string
	file tsconfigFile
}

func loadChain(path string, seen map[string]bool, depth int) ([]chainLevel, error) {
	if depth > maxExtendsDepth {
		return nil, fmt.Errorf("tsconfig extends chain too deep at %q", path)
	}
	if seen[path] {
		return nil, fmt.Errorf("tsconfig extends cycle at %q", path)
	}
	seen[path] = true

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}

	std, err := StripJSONC(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %q: %w", path, err)
	}
	var file tsconfigFile
	if err := json.Unmarshal(std, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %q: %w", path, err)
	}

	chain := []chainLevel{{path: path, file: file}}
	for _, ext := range extendsList(file.Extends) {
		parent, ok := resolveExtends(filepath.Dir(path), ext)
		if !ok {
			// unresolvable package extends only lose inherited aliases
			continue
		}
		parents, err := loadChain(parent, seen, depth+1)
		if err != nil {
			return nil, err
		}
		chain = append(chain, parents...)
	}
	return chain, nil
}

// extendsList accepts both the string and the array form.
func extendsList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		// later entries win, so they are visited first
		for i, j := 0, len(many)-1; i < j; i, j = i+1, j-1 {
			many[i], many[j] = many[j], many[i]
		}
		return many
	}
	return nil
}

func resolveExtends(dir, ext string) (string, bool) {
	var candidates []string
	if strings.HasPrefix(ext, ".") || filepath.IsAbs(ext) {
		base := ext
		if !filepath.IsAbs(base) {
			base = filepath.Join(dir, ext)
		}
		candidates = append(candidates, base, base+".json")
	} else {
		for current := dir; ; {
			base := filepath.Join(current, "node_modules", ext)
			candidates = append(candidates, base, base+".json", filepath.Join(base, "tsconfig.json"))
			parent := filepath.Dir(current)
			if parent == current {
				break
			}
			current = parent
		}
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, true
		}
	}
	return "", false
}

func joinPattern(base, target string) string {
	star := strings.Index(target, "*")
	if star < 0 {
		return filepath.Join(base, target)
	}
	head := filepath.Join(base, target[:star])
	if strings.HasSuffix(target[:star], "/") {
		head += string(filepath.Separator)
	}
	return head + target[star:]
}

func prefixOf(pattern string) string {
	if i := strings.Index(pattern, "*"); i >= 0 {
		return pattern[:i]
	}
	return pattern
}

// Match returns the substitution for "*" if pattern matches spec.
func Match(pattern, spec string) (string, bool) {
	star := strings.Index(pattern, "*")
	if star < 0 {
		return "", pattern == spec
	}
	prefix, suffix := pattern[:star], pattern[star+1:]
	if len(spec) < len(prefix)+len(suffix) || !strings.HasPrefix(spec, prefix) || !strings.HasSuffix(spec, suffix) {
		return "", false
	}
	return spec[len(prefix) : len(spec)-len(suffix)], true
}

// Candidates lists the absolute base paths spec may refer to, in lookup
// order: matching paths entries first, then baseUrl.
func (c *Config) Candidates(spec string) []string {
	if c == nil {
		return nil
	}
	var out []string
	for _, m := range c.Mappings {
		star, ok := Match(m.Pattern, spec)
		if !ok {
			continue
		}
		for _, target := range m.Targets {
			out = append(out, strings.Replace(target, "*", star, 1))
		}
	}
	if c.BaseURL != "" {
		out = append(out, filepath.Join(c.BaseURL, spec))
	}
	return out
}

// MappingFor returns the paths entry spec was written against.
func (c *Config) MappingFor(spec string) (*Mapping, bool) {
	if c == nil {
		return nil, false
	}
	for i := range c.Mappings {
		if _, ok := Match(c.Mappings[i].Pattern, spec); ok {
			return &c.Mappings[i], true
		}
	}
	return nil, false
}

// Reverse rewrites target (an absolute path, extension already applied) as
// a specifier of mapping m. It fails when target is not under any of the
// mapping's target directories.
func (m *Mapping) Reverse(target string) (string, bool) {
	patternStar := strings.Index(m.Pattern, "*")
	for _, t := range m.Targets {
		star := strings.Index(t, "*")
		if star < 0 || patternStar < 0 {
			continue
		}
		prefix, suffix := t[:star], t[star+1:]
		if suffix != "" || !strings.HasPrefix(target, prefix) || len(target) == len(prefix) {
			continue
		}
		rest := filepath.ToSlash(target[len(prefix):])
		return m.Pattern[:patternStar] + rest + m.Pattern[patternStar+1:], true
	}
	return "", false
}

// ErrNoConfig is returned by MustLoad when no config file exists.
var ErrNoConfig = errors.New("no tsconfig.json or jsconfig.json found")

// MustLoad is Load for callers that require a config (e.g. an explicit
// --tsconfig flag pointing at a directory).
func MustLoad(dir string) (*Config, error) {
	cfg, err := Load(dir)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoConfig)
	}
	return cfg, nil
}

// StripJSONC turns tsconfig's JSON-with-comments into standard JSON:
// comments become whitespace and trailing commas are dropped.
func StripJSONC(data []byte) ([]byte, error) {
	return hujson.Standardize(data)
}
