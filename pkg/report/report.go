// Package report holds the outcome of a run and renders it.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pmezard/go-difflib/difflib"
)

// Preserved is a barrel that was kept, with the consumers that keep it.
type Preserved struct {
	Path      string   `json:"path"`
	Reason    string   `json:"reason"`
	Consumers []string `json:"consumers"`
}

// Untraceable is a binding whose defining module was not found.
type Untraceable struct {
	Barrel   string `json:"barrel"`
	Consumer string `json:"consumer"`
	Name     string `json:"name"`
}

// Unsafe is a namespace import replaced by a synthetic object.
type Unsafe struct {
	Consumer  string `json:"consumer"`
	Barrel    string `json:"barrel"`
	Namespace string `json:"namespace"`
}

// FileError is a failure confined to one file.
type FileError struct {
	Path    string `json:"path"`
	Op      string `json:"op"`
	Message string `json:"message"`
}

// Example is the rewritten statement with the largest diff: the original
// statement text and the declarations that replaced it.
type Example struct {
	Path   string `json:"path"`
	Before string `json:"before"`
	After  string `json:"after"`
	Diff   string `json:"diff"`

	changed int
}

// Stats counts what a run looked at.
type Stats struct {
	Files     int              `json:"files"`
	Barrels   int              `json:"barrels"`
	Consumers int              `json:"consumers"`
	TimingsMS map[string]int64 `json:"timingsMs,omitempty"`
}

// Report is the outcome of one run. Paths are absolute.
type Report struct {
	RunID       string        `json:"runId"`
	Root        string        `json:"root"`
	DryRun      bool          `json:"dryRun"`
	Modified    []string      `json:"modified"`
	Deleted     []string      `json:"deleted"`
	Preserved   []Preserved   `json:"preserved"`
	Untraceable []Untraceable `json:"untraceable"`
	Unsafe      []Unsafe      `json:"unsafe"`
	Errors      []FileError   `json:"errors"`
	Example     *Example      `json:"example,omitempty"`
	Stats       Stats         `json:"stats"`
}

// New creates an empty report with a fresh run id.
func New(root string, dryRun bool) *Report {
	return &Report{
		RunID:       uuid.NewString(),
		Root:        root,
		DryRun:      dryRun,
		Modified:    []string{},
		Deleted:     []string{},
		Preserved:   []Preserved{},
		Untraceable: []Untraceable{},
		Unsafe:      []Unsafe{},
		Errors:      []FileError{},
		Stats:       Stats{TimingsMS: make(map[string]int64)},
	}
}

// AddError records a per-file failure.
func (r *Report) AddError(path, op string, err error) {
	r.Errors = append(r.Errors, FileError{Path: path, Op: op, Message: err.Error()})
}

// Timing records how long a phase took.
func (r *Report) Timing(phase string, ms int64) {
	r.Stats.TimingsMS[phase] = ms
}

// ConsiderExample keeps the statement rewrite in path as the example if its
// diff touches more lines than the current one.
func (r *Report) ConsiderExample(path, before, after string) error {
	diff, changed, err := Diff(r.rel(path), before, after)
	if err != nil {
		return err
	}
	if changed == 0 || (r.Example != nil && changed <= r.Example.changed) {
		return nil
	}
	r.Example = &Example{Path: path, Before: before, After: after, Diff: diff, changed: changed}
	return nil
}

// Diff returns a unified diff of before and after and the number of
// changed lines.
func Diff(name, before, after string) (string, int, error) {
	a := difflib.SplitLines(before)
	b := difflib.SplitLines(after)
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        a,
		B:        b,
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  2,
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to diff %s: %w", name, err)
	}

	changed := 0
	for _, group := range difflib.NewMatcher(a, b).GetOpCodes() {
		if group.Tag == 'e' {
			continue
		}
		changed += max(group.I2-group.I1, group.J2-group.J1)
	}
	return text, changed, nil
}

// Changed reports whether the run modified or deleted anything.
func (r *Report) Changed() bool {
	return len(r.Modified) > 0 || len(r.Deleted) > 0
}

// Failed is the check-mode verdict: anything to change fails.
func (r *Report) Failed() bool {
	return r.Changed()
}

// Sort orders every list by path so output is stable.
func (r *Report) Sort() {
	sort.Strings(r.Modified)
	sort.Strings(r.Deleted)
	sort.SliceStable(r.Preserved, func(i, j int) bool { return r.Preserved[i].Path < r.Preserved[j].Path })
	sort.SliceStable(r.Untraceable, func(i, j int) bool {
		a, b := r.Untraceable[i], r.Untraceable[j]
		if a.Consumer != b.Consumer {
			return a.Consumer < b.Consumer
		}
		if a.Barrel != b.Barrel {
			return a.Barrel < b.Barrel
		}
		return a.Name < b.Name
	})
	sort.SliceStable(r.Unsafe, func(i, j int) bool { return r.Unsafe[i].Consumer < r.Unsafe[j].Consumer })
	sort.SliceStable(r.Errors, func(i, j int) bool { return r.Errors[i].Path < r.Errors[j].Path })
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// WriteHuman writes a summary with paths relative to the root.
func (r *Report) WriteHuman(w io.Writer) error {
	var b strings.Builder

	verb := func(done, planned string) string {
		if r.DryRun {
			return planned
		}
		return done
	}

	fmt.Fprintf(&b, "%s %s\n", verb("Modified", "Would modify"), plural(len(r.Modified), "file"))
	for _, p := range r.Modified {
		fmt.Fprintf(&b, "  %s\n", r.rel(p))
	}
	fmt.Fprintf(&b, "%s %s\n", verb("Deleted", "Would delete"), plural(len(r.Deleted), "barrel"))
	for _, p := range r.Deleted {
		fmt.Fprintf(&b, "  %s\n", r.rel(p))
	}

	if len(r.Preserved) > 0 {
		fmt.Fprintf(&b, "Preserved %s\n", plural(len(r.Preserved), "barrel"))
		for _, p := range r.Preserved {
			fmt.Fprintf(&b, "  %s (%s): %s\n", r.rel(p.Path), p.Reason, strings.Join(r.relAll(p.Consumers), ", "))
		}
	}
	if len(r.Untraceable) > 0 {
		fmt.Fprintf(&b, "Untraceable %s\n", plural(len(r.Untraceable), "binding"))
		for _, u := range r.Untraceable {
			fmt.Fprintf(&b, "  %s: %s from %s\n", r.rel(u.Consumer), u.Name, r.rel(u.Barrel))
		}
	}
	if len(r.Unsafe) > 0 {
		fmt.Fprintf(&b, "Unsafe namespace %s\n", plural(len(r.Unsafe), "rewrite"))
		for _, u := range r.Unsafe {
			fmt.Fprintf(&b, "  %s: %s from %s\n", r.rel(u.Consumer), u.Namespace, r.rel(u.Barrel))
		}
	}
	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "%s\n", plural(len(r.Errors), "error"))
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "  %s: %s: %s\n", r.rel(e.Path), e.Op, e.Message)
		}
	}
	if r.Example != nil {
		fmt.Fprintf(&b, "\nExample (%s):\n%s", r.rel(r.Example.Path), r.Example.Diff)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Report) rel(path string) string {
	if r.Root == "" || !filepath.IsAbs(path) {
		return path
	}
	rel, err := filepath.Rel(r.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

func (r *Report) relAll(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = r.rel(p)
	}
	return out
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
