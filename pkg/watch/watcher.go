// Package watch re-plans barrel removal whenever project sources change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/webpro/unbarrelify/pkg/engine"
	"github.com/webpro/unbarrelify/pkg/report"
)

// DefaultDebounce groups bursts of editor saves into one run.
const DefaultDebounce = 200 * time.Millisecond

// ReportFunc receives the outcome of every completed run. Runs superseded
// by a newer change are not reported.
type ReportFunc func(*report.Report, error)

// Options configures a Watcher. Engine.DryRun is always forced on.
type Options struct {
	Engine   engine.Options
	Debounce time.Duration
}

// Watcher watches a project tree and re-runs a dry-run engine after
// changes settle.
//
//	w, err := watch.New(opts, func(rep *report.Report, err error) { ... }, logger)
//	if err != nil {
//	    return err
//	}
//	if err := w.Start(ctx); err != nil {
//	    return err
//	}
//	defer w.Stop()
type Watcher struct {
	watcher  *fsnotify.Watcher
	opts     Options
	root     string
	include  []string
	exclude  []string
	onReport ReportFunc
	logger   *slog.Logger

	// debouncing and run cancellation
	timer  *time.Timer
	ctx    context.Context
	cancel context.CancelFunc
	runs   int

	runMu    sync.Mutex
	stopChan chan struct{}
	started  bool
	stopped  bool
	mu       sync.Mutex
}

// New creates a Watcher for opts.Engine.Root. A nil logger uses
// slog.Default().
func New(opts Options, onReport ReportFunc, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if onReport == nil {
		onReport = func(*report.Report, error) {}
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	opts.Engine.DryRun = true

	root, err := filepath.Abs(opts.Engine.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}
	if root, err = filepath.EvalSymlinks(root); err != nil {
		return nil, fmt.Errorf("invalid root %q: %w", opts.Engine.Root, err)
	}
	opts.Engine.Root = root

	include := opts.Engine.Include
	if include == nil {
		include = engine.DefaultInclude
	}
	exclude := opts.Engine.Exclude
	if exclude == nil {
		exclude = engine.DefaultExclude
	}
	for _, p := range append(append([]string{}, include...), exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid watch pattern: %s", p)
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		watcher:  fw,
		opts:     opts,
		root:     root,
		include:  include,
		exclude:  exclude,
		onReport: onReport,
		logger:   logger,
		stopChan: make(chan struct{}),
	}, nil
}

// Start adds watches for every non-excluded directory, schedules an initial
// run and processes events in the background until ctx is done or Stop is
// called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return fmt.Errorf("watcher already stopped")
	}
	if w.started {
		w.mu.Unlock()
		return fmt.Errorf("watcher already started")
	}
	w.started = true
	w.ctx = ctx
	w.mu.Unlock()

	if err := w.addTree(w.root); err != nil {
		return err
	}

	w.logger.Info("watching", "root", w.root, "debounceMs", w.opts.Debounce.Milliseconds())

	go w.eventLoop(ctx)
	w.schedule()
	return nil
}

// Stop cancels any pending or running plan and releases the watches. It
// waits for an in-flight run to return. Safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	close(w.stopChan)
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if w.cancel != nil {
		w.cancel()
	}
	w.mu.Unlock()

	err := w.watcher.Close()

	w.runMu.Lock()
	w.runMu.Unlock()

	w.logger.Info("watcher stopped")
	return err
}

func (w *Watcher) addTree(dir string) error {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Continue on error
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.ignored(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set up watches: %w", err)
	}
	return nil
}

func (w *Watcher) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return

		case <-w.stopChan:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	if w.ignored(path) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.logger.Debug("watching new directory", "path", path)
			if err := w.addTree(path); err != nil {
				w.logger.Warn("failed to watch directory", "path", path, "error", err)
			}
			w.schedule()
			return
		}
	}
	if !w.relevant(path) {
		return
	}
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	w.logger.Debug("file event", "op", event.Op.String(), "file", path)
	w.schedule()
}

// schedule (re)starts the debounce timer. Only the last event in a burst
// triggers a run.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.opts.Debounce, w.run)
}

// run plans against the current tree. A newer run cancels the one in
// flight.
func (w *Watcher) run() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	if w.cancel != nil {
		w.cancel()
	}
	ctx, cancel := context.WithCancel(w.ctx)
	w.cancel = cancel
	w.mu.Unlock()
	defer cancel()

	w.runMu.Lock()
	defer w.runMu.Unlock()
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	rep, err := engine.New(w.opts.Engine, w.logger).Run(ctx)
	if errors.Is(err, context.Canceled) {
		w.logger.Debug("run superseded")
		return
	}

	w.mu.Lock()
	w.runs++
	w.mu.Unlock()
	w.logger.Info("re-planned", "ms", time.Since(start).Milliseconds())
	w.onReport(rep, err)
}

// ignored reports whether path or any directory above it (below the root)
// matches an exclude pattern.
func (w *Watcher) ignored(path string) bool {
	rel, ok := w.rel(path)
	if !ok {
		return true
	}
	segments := strings.Split(rel, "/")
	for i := range segments {
		prefix := strings.Join(segments[:i+1], "/")
		for _, pattern := range w.exclude {
			if m, _ := doublestar.PathMatch(pattern, prefix); m {
				return true
			}
		}
	}
	return false
}

// relevant reports whether path is a file the engine would discover, or a
// project config that changes resolution.
func (w *Watcher) relevant(path string) bool {
	switch base := filepath.Base(path); {
	case base == "package.json", strings.HasPrefix(base, "tsconfig") && strings.HasSuffix(base, ".json"),
		strings.HasPrefix(base, "jsconfig") && strings.HasSuffix(base, ".json"):
		return true
	}
	rel, ok := w.rel(path)
	if !ok {
		return false
	}
	for _, pattern := range w.include {
		if m, _ := doublestar.PathMatch(pattern, rel); m {
			return true
		}
	}
	return false
}

func (w *Watcher) rel(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	if rel == "." {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// GetStats returns watcher statistics.
func (w *Watcher) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Stats{
		Runs:      w.runs,
		IsRunning: w.started && !w.stopped,
	}
}

// Stats contains watcher statistics.
type Stats struct {
	Runs      int
	IsRunning bool
}
