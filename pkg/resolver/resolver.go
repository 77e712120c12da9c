// Package resolver maps import specifiers to files and builds specifiers
// pointing back at them.
package resolver

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/webpro/unbarrelify/pkg/resolver/alias"
)

// Kind discriminates a Resolution.
type Kind int

const (
	// NotFound is a relative or absolute specifier that matched no file
	NotFound Kind = iota
	// Internal is a project file
	Internal
	// External is a package, kept as its cleaned specifier
	External
)

func (k Kind) String() string {
	switch k {
	case Internal:
		return "internal"
	case External:
		return "external"
	default:
		return "not-found"
	}
}

// Resolution is the result of Resolve. Path is set for Internal,
// Specifier for External.
type Resolution struct {
	Kind      Kind
	Path      string
	Specifier string
}

// Key returns the identity used in import and export maps.
func (r Resolution) Key() string {
	if r.Kind == External {
		return r.Specifier
	}
	return r.Path
}

// Extensions are probed in this order when a specifier has no extension.
var Extensions = []string{".ts", ".tsx", ".mts", ".cts", ".d.ts", ".js", ".jsx", ".mjs", ".cjs", ".json"}

// esmSubstitutes maps an emitted extension to the sources that produce it,
// so "./a.js" finds a.ts.
var esmSubstitutes = map[string][]string{
	".js":  {".ts", ".tsx", ".d.ts"},
	".jsx": {".tsx"},
	".mjs": {".mts", ".d.mts"},
	".cjs": {".cts", ".d.cts"},
}

const defaultCacheSize = 8192

// Options configures a Resolver.
type Options struct {
	// Aliases is the tsconfig alias table; nil disables alias resolution
	Aliases *alias.Config
	// CacheSize bounds each lookup cache; zero selects a default
	CacheSize int
}

// Resolver resolves specifiers for one run. Its caches assume files do not
// move while the run is in progress.
type Resolver struct {
	aliases *alias.Config
	logger  *slog.Logger

	resolutions *lru.Cache[string, Resolution]
	realpaths   *lru.Cache[string, string]
	stats       *lru.Cache[string, fileKind]
}

type fileKind int

const (
	kindMissing fileKind = iota
	kindFile
	kindDir
)

// New creates a Resolver. A nil logger uses slog.Default().
func New(opts Options, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	size := opts.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}

	// lru.New only fails for non-positive sizes
	resolutions, _ := lru.New[string, Resolution](size)
	realpaths, _ := lru.New[string, string](size)
	stats, _ := lru.New[string, fileKind](size)

	return &Resolver{
		aliases:     opts.Aliases,
		logger:      logger,
		resolutions: resolutions,
		realpaths:   realpaths,
		stats:       stats,
	}
}

// Aliases returns the alias table, possibly nil.
func (r *Resolver) Aliases() *alias.Config {
	return r.aliases
}

// Resolve maps raw, as written in from, to a Resolution. Decoration is
// stripped before lookup.
func (r *Resolver) Resolve(from, raw string) Resolution {
	spec := ParseSpecifier(raw).Path
	if spec == "" {
		return Resolution{Kind: NotFound}
	}

	dir := filepath.Dir(from)
	cacheKey := dir + "\x00" + spec
	if res, ok := r.resolutions.Get(cacheKey); ok {
		return res
	}

	res := r.resolve(dir, spec)
	r.resolutions.Add(cacheKey, res)
	return res
}

func (r *Resolver) resolve(dir, spec string) Resolution {
	if IsRelative(spec) || filepath.IsAbs(spec) {
		base := spec
		if !filepath.IsAbs(base) {
			base = filepath.Join(dir, spec)
		}
		if found, ok := r.probe(base); ok {
			return r.classify(found, spec)
		}
		return Resolution{Kind: NotFound}
	}

	for _, candidate := range r.aliases.Candidates(spec) {
		if found, ok := r.probe(candidate); ok {
			return r.classify(found, spec)
		}
	}

	if real, ok := r.resolvePackage(dir, spec); ok {
		return Resolution{Kind: Internal, Path: real}
	}
	if r.inNodeModules(dir, spec) {
		return Resolution{Kind: External, Specifier: spec}
	}

	r.logger.Debug("unresolved bare specifier treated as external", "specifier", spec, "dir", dir)
	return Resolution{Kind: External, Specifier: spec}
}

// classify turns a found file into a Resolution. Anything inside a
// node_modules directory is a package, even when reached through an alias.
func (r *Resolver) classify(found, spec string) Resolution {
	real := r.Realpath(found)
	if isDependencyPath(real) || isDependencyPath(found) {
		return Resolution{Kind: External, Specifier: spec}
	}
	return Resolution{Kind: Internal, Path: real}
}

// inNodeModules reports whether a package directory for spec exists in any
// node_modules directory from dir upward. Workspace packages symlinked into
// node_modules resolve to their real location and count as internal.
func (r *Resolver) inNodeModules(dir, spec string) bool {
	pkg := PackageName(spec)
	for current := dir; ; {
		candidate := filepath.Join(current, "node_modules", pkg)
		if r.stat(candidate) == kindDir {
			return true
		}
		parent := filepath.Dir(current)
		if parent == current {
			return false
		}
		current = parent
	}
}

// resolvePackage follows a bare specifier into node_modules from dir upward
// and reports whether it lands back inside the project (a linked workspace
// package).
func (r *Resolver) resolvePackage(dir, spec string) (string, bool) {
	for current := dir; ; {
		base := filepath.Join(current, "node_modules", spec)
		if found, ok := r.probe(base); ok {
			real := r.Realpath(found)
			if !isDependencyPath(real) {
				return real, true
			}
			return "", false
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", false
		}
		current = parent
	}
}

// probe finds the file base refers to: the exact file, a TS source for an
// emitted extension, base plus a known extension, or an index file.
func (r *Resolver) probe(base string) (string, bool) {
	if r.stat(base) == kindFile {
		return base, true
	}

	ext := filepath.Ext(base)
	if subs, ok := esmSubstitutes[ext]; ok {
		stem := strings.TrimSuffix(base, ext)
		for _, sub := range subs {
			if r.stat(stem+sub) == kindFile {
				return stem + sub, true
			}
		}
	}

	for _, e := range Extensions {
		if r.stat(base+e) == kindFile {
			return base + e, true
		}
	}

	if r.stat(base) == kindDir {
		for _, e := range Extensions {
			index := filepath.Join(base, "index"+e)
			if r.stat(index) == kindFile {
				return index, true
			}
		}
	}
	return "", false
}

func (r *Resolver) stat(path string) fileKind {
	if k, ok := r.stats.Get(path); ok {
		return k
	}
	k := kindMissing
	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			k = kindDir
		} else {
			k = kindFile
		}
	}
	r.stats.Add(path, k)
	return k
}

// Realpath resolves symlinks, falling back to the cleaned path.
func (r *Resolver) Realpath(path string) string {
	if real, ok := r.realpaths.Get(path); ok {
		return real
	}
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		real = filepath.Clean(path)
	}
	if abs, err := filepath.Abs(real); err == nil {
		real = abs
	}
	r.realpaths.Add(path, real)
	return real
}

func isDependencyPath(path string) bool {
	slashed := filepath.ToSlash(path)
	return strings.Contains(slashed, "/node_modules/")
}
