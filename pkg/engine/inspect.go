package engine

import (
	"fmt"
	"path/filepath"

	"github.com/webpro/unbarrelify/pkg/analyzer"
	"github.com/webpro/unbarrelify/pkg/parser"
	"github.com/webpro/unbarrelify/pkg/parser/queries"
	"github.com/webpro/unbarrelify/pkg/resolver"
	"github.com/webpro/unbarrelify/pkg/util"
)

// Inspection is the analysis of a single file.
type Inspection struct {
	Path           string                  `json:"path"`
	IsBarrel       bool                    `json:"isBarrel"`
	Forced         bool                    `json:"forced,omitempty"`
	Script         bool                    `json:"script"`
	Exports        []*analyzer.ExportEntry `json:"exports"`
	Imports        []analyzer.ImportItem   `json:"imports"`
	DynamicImports []string                `json:"dynamicImports"`
	ExportedNames  *analyzer.NameSet       `json:"exportedNames,omitempty"`
}

// Inspect analyzes path on its own. Aliases and forced barrels come from
// the engine options; without a Root the file's directory is used.
func (e *Engine) Inspect(path string) (*Inspection, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	if abs, err = filepath.EvalSymlinks(abs); err != nil {
		return nil, fmt.Errorf("invalid file %q: %w", path, err)
	}

	root := filepath.Dir(abs)
	if e.opts.Root != "" {
		if root, err = filepath.Abs(e.opts.Root); err != nil {
			return nil, fmt.Errorf("failed to resolve root path: %w", err)
		}
		if real, err := filepath.EvalSymlinks(root); err == nil {
			root = real
		}
	}

	aliases, err := e.loadAliases(root)
	if err != nil {
		return nil, err
	}
	res := resolver.New(resolver.Options{Aliases: aliases, CacheSize: e.opts.CacheSize}, e.logger)
	pm := parser.NewParserManagerWithPoolSize(e.logger, util.ParserPoolSize(e.opts.ParserPoolSize))
	defer pm.Close()
	qm := queries.NewQueryManager(e.logger)
	defer qm.Close()

	a := analyzer.New(res, pm, qm, e.opts.FileSystem, analyzer.Options{ForceBarrel: globMatcher(root, e.opts.Barrels)}, e.logger)
	rec, err := a.Analyze(abs)
	if err != nil {
		return nil, err
	}

	out := &Inspection{
		Path:           rec.Path,
		IsBarrel:       rec.IsBarrel,
		Forced:         rec.Forced,
		Script:         rec.Script,
		Exports:        rec.Exports.Entries(),
		Imports:        rec.Imports.All(),
		DynamicImports: rec.DynamicImports,
	}
	if out.Exports == nil {
		out.Exports = []*analyzer.ExportEntry{}
	}
	if out.Imports == nil {
		out.Imports = []analyzer.ImportItem{}
	}
	if out.DynamicImports == nil {
		out.DynamicImports = []string{}
	}
	if rec.Script {
		names, err := a.ExportedNames(abs)
		if err != nil {
			return nil, err
		}
		out.ExportedNames = &names
	}
	return out, nil
}
