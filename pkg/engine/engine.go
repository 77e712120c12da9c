// Package engine runs barrel removal over a project.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/webpro/unbarrelify/pkg/analyzer"
	"github.com/webpro/unbarrelify/pkg/parser"
	"github.com/webpro/unbarrelify/pkg/parser/queries"
	"github.com/webpro/unbarrelify/pkg/report"
	"github.com/webpro/unbarrelify/pkg/resolver"
	"github.com/webpro/unbarrelify/pkg/resolver/alias"
	"github.com/webpro/unbarrelify/pkg/rewriter"
	"github.com/webpro/unbarrelify/pkg/tracker"
	"github.com/webpro/unbarrelify/pkg/util"
)

// ErrNoFiles is returned when discovery finds nothing to process.
var ErrNoFiles = errors.New("no source files found")

// Options configures a run. Glob patterns are relative to Root.
type Options struct {
	Root   string
	DryRun bool
	Ext    resolver.ExtMode
	// UnsafeNamespace rewrites namespace imports of multi-module barrels
	UnsafeNamespace bool
	// Include and Exclude default to DefaultInclude and DefaultExclude when nil
	Include []string
	Exclude []string
	// Skip barrels are kept and their own re-exports rewritten
	Skip []string
	// EntryPoints are kept like Skip; package.json entries are added
	EntryPoints []string
	// Barrels are treated as barrels whatever their content
	Barrels []string
	// TSConfig is a tsconfig/jsconfig file or a directory holding one;
	// empty searches upward from Root
	TSConfig string
	// Organize merges duplicate imports in modified files
	Organize       bool
	ParserPoolSize int
	CacheSize      int
	// FileSystem defaults to an mmap-backed util.SourceReader
	FileSystem util.FileSystem
}

// Engine runs barrel removal. Each Run builds its own caches, so an Engine
// may be reused across runs but not concurrently.
type Engine struct {
	opts   Options
	logger *slog.Logger
}

// New creates an Engine. A nil logger uses slog.Default().
func New(opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Include == nil {
		opts.Include = DefaultInclude
	}
	if opts.Exclude == nil {
		opts.Exclude = DefaultExclude
	}
	if opts.FileSystem == nil {
		opts.FileSystem = util.NewSourceReader(logger)
	}
	return &Engine{opts: opts, logger: logger}
}

// run holds the per-run collaborators.
type run struct {
	opts     Options
	root     string
	logger   *slog.Logger
	fs       util.FileSystem
	resolver *resolver.Resolver
	parsers  *parser.ParserManager
	queries  *queries.QueryManager
	analyzer *analyzer.Analyzer
	tracker  *tracker.Tracker
	report   *report.Report

	files       map[string]bool
	skip        func(string) bool
	entry       func(string) bool
	entryPoints map[string]bool
}

// Run discovers files, rewrites consumers, deletes barrels left without
// consumers and reports. Per-file failures are collected in the report;
// only a bad root, a bad glob or an empty file list fail the run. Files are
// written as they are rewritten and barrels deleted at the end, unless
// DryRun is set.
func (e *Engine) Run(ctx context.Context) (*report.Report, error) {
	totalStart := time.Now()

	r, files, err := e.setup()
	if err != nil {
		return nil, err
	}
	defer r.close()

	rep := r.report
	logger := r.logger

	phaseStart := time.Now()
	records := r.analyzeAll(ctx, files)
	if err := ctx.Err(); err != nil {
		return rep, err
	}
	rep.Timing("analyze", time.Since(phaseStart).Milliseconds())
	logger.Info("analysis complete", "files", len(records), "barrels", len(r.tracker.Barrels()), "ms", time.Since(phaseStart).Milliseconds())

	phaseStart = time.Now()
	r.recordConsumers(records)
	rep.Timing("consumers", time.Since(phaseStart).Milliseconds())

	phaseStart = time.Now()
	if err := r.rewriteAll(ctx, records); err != nil {
		return rep, err
	}
	rep.Timing("rewrite", time.Since(phaseStart).Milliseconds())
	logger.Info("rewrite complete", "modified", len(rep.Modified), "ms", time.Since(phaseStart).Milliseconds())

	phaseStart = time.Now()
	r.classifyAndDelete()
	rep.Timing("delete", time.Since(phaseStart).Milliseconds())

	rep.Stats.Files = len(files)
	rep.Stats.Barrels = len(r.tracker.Barrels())
	rep.Timing("total", time.Since(totalStart).Milliseconds())
	rep.Sort()

	logger.Info("run complete",
		"modified", len(rep.Modified), "deleted", len(rep.Deleted), "preserved", len(rep.Preserved),
		"errors", len(rep.Errors), "ms", time.Since(totalStart).Milliseconds())
	return rep, nil
}

func (e *Engine) setup() (*run, []string, error) {
	root, err := filepath.Abs(e.opts.Root)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve root path: %w", err)
	}
	if root, err = filepath.EvalSymlinks(root); err != nil {
		return nil, nil, fmt.Errorf("invalid root %q: %w", e.opts.Root, err)
	}
	for kind, patterns := range map[string][]string{"skip": e.opts.Skip, "entry": e.opts.EntryPoints, "barrel": e.opts.Barrels} {
		if err := validatePatterns(kind, patterns); err != nil {
			return nil, nil, err
		}
	}

	rep := report.New(root, e.opts.DryRun)
	logger := e.logger.With("run", rep.RunID)

	discoveryStart := time.Now()
	files, err := DiscoverFiles(root, e.opts.Include, e.opts.Exclude)
	if err != nil {
		return nil, nil, fmt.Errorf("discovery failed: %w", err)
	}
	rep.Timing("discovery", time.Since(discoveryStart).Milliseconds())
	logger.Info("discovery complete", "files", len(files), "ms", time.Since(discoveryStart).Milliseconds())
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("%s: %w", root, ErrNoFiles)
	}

	aliases, err := e.loadAliases(root)
	if err != nil {
		return nil, nil, err
	}

	res := resolver.New(resolver.Options{Aliases: aliases, CacheSize: e.opts.CacheSize}, logger)
	pm := parser.NewParserManagerWithPoolSize(logger, util.ParserPoolSize(e.opts.ParserPoolSize))
	qm := queries.NewQueryManager(logger)

	r := &run{
		opts:        e.opts,
		root:        root,
		logger:      logger,
		fs:          e.opts.FileSystem,
		resolver:    res,
		parsers:     pm,
		queries:     qm,
		tracker:     tracker.New(),
		report:      rep,
		files:       make(map[string]bool, len(files)),
		skip:        globMatcher(root, e.opts.Skip),
		entryPoints: make(map[string]bool),
	}

	pkgEntries, err := PackageEntryPoints(root, res)
	if err != nil {
		logger.Warn("ignoring package.json entry points", "error", err)
	}
	for _, p := range pkgEntries {
		r.entryPoints[p] = true
	}
	entryGlobs := globMatcher(root, e.opts.EntryPoints)
	r.entry = func(p string) bool { return r.entryPoints[p] || entryGlobs(p) }

	force := globMatcher(root, e.opts.Barrels)
	r.analyzer = analyzer.New(res, pm, qm, r.fs, analyzer.Options{ForceBarrel: force, NameCacheSize: e.opts.CacheSize}, logger)

	real := make([]string, 0, len(files))
	for _, f := range files {
		p := res.Realpath(f)
		if !r.files[p] {
			r.files[p] = true
			real = append(real, p)
		}
	}
	return r, real, nil
}

// loadAliases reads the explicit tsconfig, or the nearest one above root.
// A broken config found by searching is logged and ignored.
func (e *Engine) loadAliases(root string) (*alias.Config, error) {
	if e.opts.TSConfig == "" {
		cfg, err := alias.Load(root)
		if err != nil {
			e.logger.Warn("ignoring unreadable tsconfig", "error", err)
			return nil, nil
		}
		return cfg, nil
	}

	info, err := os.Stat(e.opts.TSConfig)
	if err != nil {
		return nil, fmt.Errorf("invalid tsconfig %q: %w", e.opts.TSConfig, err)
	}
	if info.IsDir() {
		return alias.MustLoad(e.opts.TSConfig)
	}
	return alias.LoadFile(e.opts.TSConfig)
}

func (r *run) close() {
	r.queries.Close()
	r.parsers.Close()
}

// analyzeAll parses every file on a worker pool. Barrels are registered and
// errors recorded in discovery order so reports stay deterministic.
func (r *run) analyzeAll(ctx context.Context, files []string) []*analyzer.FileRecord {
	results := analyzeParallel(ctx, files, util.ParserPoolSize(r.opts.ParserPoolSize), r.analyzer, r.logger)

	records := make([]*analyzer.FileRecord, 0, len(results))
	for _, res := range results {
		f := files[res.index]
		if errors.Is(res.err, analyzer.ErrUnsupported) {
			continue
		}
		if res.err != nil {
			r.logger.Warn("skipping file", "file", f, "error", res.err)
			r.report.AddError(f, "analyze", res.err)
			continue
		}
		records = append(records, res.rec)
		if res.rec.IsBarrel && r.tracker.Register(f) {
			r.logger.Debug("barrel discovered", "file", f, "forced", res.rec.Forced)
		}
	}
	return records
}

// recordConsumers registers every barrel a discovered file imports from,
// statically or dynamically. Barrels re-exporting barrels become their
// consumers here too.
func (r *run) recordConsumers(records []*analyzer.FileRecord) {
	consumers := 0
	for _, rec := range records {
		isConsumer := false
		for _, target := range rec.Imports.Targets() {
			items := rec.Imports.Items(target)
			if len(items) == 0 || items[0].External || !r.isBarrel(target) {
				continue
			}
			r.tracker.AddConsumer(target, rec.Path, rec.Script)
			isConsumer = true
		}
		for _, target := range rec.DynamicImports {
			if r.isBarrel(target) {
				r.tracker.AddDynamicConsumer(target, rec.Path)
				isConsumer = true
			}
		}
		if isConsumer {
			consumers++
		}
	}
	r.report.Stats.Consumers = consumers
}

func (r *run) isBarrel(path string) bool {
	rec, err := r.analyzer.Analyze(path)
	if err != nil || !rec.IsBarrel {
		return false
	}
	if r.tracker.Register(path) {
		r.logger.Debug("barrel discovered", "file", path, "forced", rec.Forced)
	}
	return true
}

func (r *run) rewriteAll(ctx context.Context, records []*analyzer.FileRecord) error {
	builder := rewriter.NewBuilder(r.analyzer, r.tracker, rewriter.Options{UnsafeNamespace: r.opts.UnsafeNamespace}, r.logger)

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !rec.Script {
			continue
		}
		// barrels that will be deleted are not worth rewriting
		if rec.IsBarrel && !r.skip(rec.Path) && !r.entry(rec.Path) {
			continue
		}

		result := builder.Build(rec)
		for _, u := range result.Untraceable {
			r.report.Untraceable = append(r.report.Untraceable, report.Untraceable(u))
		}
		for _, u := range result.Unsafe {
			r.report.Unsafe = append(r.report.Unsafe, report.Unsafe(u))
		}
		if result.Plan.Empty() {
			continue
		}

		out, edits := rewriter.Apply(rec.Source, result.Plan, rewriter.Specifiers(r.resolver, rec.Path, r.opts.Ext), rec.Quote)
		if r.opts.Organize {
			organized, err := rewriter.OrganizeImports(out, rec.Path, r.parsers)
			if err != nil {
				r.logger.Warn("skipping import organization", "file", rec.Path, "error", err)
			} else {
				out = organized
			}
		}

		if !bytes.Equal(out, rec.Source) {
			if !r.opts.DryRun {
				if err := r.fs.WriteFile(rec.Path, out); err != nil {
					r.logger.Error("failed to write file", "file", rec.Path, "error", err)
					r.report.AddError(rec.Path, "write", err)
					continue
				}
			}
			r.report.Modified = append(r.report.Modified, rec.Path)
			for _, e := range edits {
				if err := r.report.ConsiderExample(rec.Path, e.Before, e.After); err != nil {
					r.logger.Debug("no diff example", "file", rec.Path, "error", err)
				}
			}
		}

		for _, barrel := range result.Rewritten {
			r.tracker.MarkRewritten(barrel, rec.Path)
		}
	}
	return nil
}

// classifyAndDelete deletes every barrel the tracker clears. Deletion runs
// after all rewriting so no consumer is left pointing at a missing file.
func (r *run) classifyAndDelete() {
	cls := r.tracker.Classify(tracker.ClassifyOptions{
		InScope:    func(p string) bool { return r.files[p] },
		Skip:       r.skip,
		EntryPoint: r.entry,
	})

	for _, p := range cls.Deleted {
		if !r.opts.DryRun {
			if err := r.fs.Remove(p); err != nil {
				r.logger.Error("failed to delete barrel", "file", p, "error", err)
				r.report.AddError(p, "delete", err)
				continue
			}
		}
		r.report.Deleted = append(r.report.Deleted, p)
	}
	for _, p := range cls.Preserved {
		r.report.Preserved = append(r.report.Preserved, report.Preserved{
			Path:      p.Path,
			Reason:    string(p.Reason),
			Consumers: p.Consumers,
		})
	}
}
