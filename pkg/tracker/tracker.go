// Package tracker keeps the run's barrel registry and decides which barrels
// can be deleted.
package tracker

import (
	"sort"
	"sync"
)

// Reason explains why a barrel survives.
type Reason string

const (
	ReasonDynamicImport   Reason = "dynamic-import"
	ReasonSkip            Reason = "skip"
	ReasonNonTSImport     Reason = "non-ts-import"
	ReasonNamespaceImport Reason = "namespace-import"
)

// state is the bookkeeping for one barrel.
type state struct {
	consumers []string
	script    map[string]bool
	rewritten map[string]bool
	dynamic   []string
}

func newState() *state {
	return &state{
		script:    make(map[string]bool),
		rewritten: make(map[string]bool),
	}
}

// Tracker records barrels, their consumers and which consumers no longer
// reference them. All methods are idempotent.
type Tracker struct {
	mu      sync.Mutex
	barrels map[string]*state
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{barrels: make(map[string]*state)}
}

// Register adds path as a barrel. It returns true the first time.
func (t *Tracker) Register(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.barrels[path]; ok {
		return false
	}
	t.barrels[path] = newState()
	return true
}

// IsBarrel reports whether path is registered.
func (t *Tracker) IsBarrel(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.barrels[path]
	return ok
}

// AddConsumer records that consumer statically imports from barrel.
// script is false for component files that can never be rewritten.
func (t *Tracker) AddConsumer(barrel, consumer string, script bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.get(barrel)
	if _, ok := s.script[consumer]; !ok {
		s.consumers = append(s.consumers, consumer)
		s.script[consumer] = script
		return
	}
	// a consumer seen as non-script once stays non-script
	s.script[consumer] = s.script[consumer] && script
}

// MarkRewritten records that consumer no longer references barrel.
func (t *Tracker) MarkRewritten(barrel, consumer string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.get(barrel).rewritten[consumer] = true
}

// AddDynamicConsumer records an import("…") of barrel.
func (t *Tracker) AddDynamicConsumer(barrel, consumer string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.get(barrel)
	for _, c := range s.dynamic {
		if c == consumer {
			return
		}
	}
	s.dynamic = append(s.dynamic, consumer)
}

func (t *Tracker) get(barrel string) *state {
	s, ok := t.barrels[barrel]
	if !ok {
		s = newState()
		t.barrels[barrel] = s
	}
	return s
}

// Barrels returns the registered barrels, sorted.
func (t *Tracker) Barrels() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.barrels))
	for b := range t.barrels {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

// Consumers returns the static consumers of barrel in discovery order.
func (t *Tracker) Consumers(barrel string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.barrels[barrel]; ok {
		return append([]string(nil), s.consumers...)
	}
	return nil
}

// IsRewritten reports whether consumer was marked rewritten for barrel.
func (t *Tracker) IsRewritten(barrel, consumer string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.barrels[barrel]; ok {
		return s.rewritten[consumer]
	}
	return false
}

// ClassifyOptions carries the run configuration classification needs.
// Nil funcs mean "always true" for InScope and "never" for the others.
type ClassifyOptions struct {
	InScope    func(path string) bool
	Skip       func(path string) bool
	EntryPoint func(path string) bool
}

// Preserved is a surviving barrel with one reason.
type Preserved struct {
	Path      string   `json:"path"`
	Reason    Reason   `json:"reason"`
	Consumers []string `json:"consumers"`
}

// Classification is the final verdict over all in-scope barrels.
type Classification struct {
	Deleted   []string    `json:"deleted"`
	Preserved []Preserved `json:"preserved"`
}

// Classify decides which barrels can be deleted. A barrel is a candidate
// when it has no dynamic consumers, is neither skipped nor an entry point,
// and every consumer either was rewritten or is itself a candidate. The
// candidate set grows until a pass adds nothing.
func (t *Tracker) Classify(opts ClassifyOptions) Classification {
	t.mu.Lock()
	defer t.mu.Unlock()

	inScope := opts.InScope
	if inScope == nil {
		inScope = func(string) bool { return true }
	}
	skipped := func(p string) bool {
		return (opts.Skip != nil && opts.Skip(p)) || (opts.EntryPoint != nil && opts.EntryPoint(p))
	}

	barrels := make([]string, 0, len(t.barrels))
	for b := range t.barrels {
		barrels = append(barrels, b)
	}
	sort.Strings(barrels)

	candidates := make(map[string]bool)
	for changed := true; changed; {
		changed = false
		for _, b := range barrels {
			if candidates[b] {
				continue
			}
			s := t.barrels[b]
			if !inScope(b) || len(s.dynamic) > 0 || skipped(b) {
				continue
			}
			resolved := true
			for _, c := range s.consumers {
				if !s.rewritten[c] && !candidates[c] {
					resolved = false
					break
				}
			}
			if resolved {
				candidates[b] = true
				changed = true
			}
		}
	}

	var result Classification
	for _, b := range barrels {
		if !inScope(b) {
			continue
		}
		if candidates[b] {
			result.Deleted = append(result.Deleted, b)
			continue
		}

		s := t.barrels[b]
		switch {
		case len(s.dynamic) > 0:
			result.Preserved = append(result.Preserved, Preserved{Path: b, Reason: ReasonDynamicImport, Consumers: sorted(s.dynamic)})
		case skipped(b):
			result.Preserved = append(result.Preserved, Preserved{Path: b, Reason: ReasonSkip, Consumers: sorted(s.consumers)})
		default:
			var nonScript, script []string
			for _, c := range s.consumers {
				if s.rewritten[c] || candidates[c] {
					continue
				}
				if s.script[c] {
					script = append(script, c)
				} else {
					nonScript = append(nonScript, c)
				}
			}
			if len(nonScript) > 0 {
				result.Preserved = append(result.Preserved, Preserved{Path: b, Reason: ReasonNonTSImport, Consumers: sorted(nonScript)})
			}
			if len(script) > 0 {
				result.Preserved = append(result.Preserved, Preserved{Path: b, Reason: ReasonNamespaceImport, Consumers: sorted(script)})
			}
		}
	}
	return result
}

func sorted(in []string) []string {
	out := append([]string{}, in...)
	sort.Strings(out)
	return out
}
