// Package registry implements C1: in-memory indexes of prompts, gates,
// methodologies, and styles, rebuilt wholesale on file-change events and
// swapped atomically so readers never observe a half-populated set (§5).
// Grounded on pkg/kernel/schema/loader.go's LoadToolFile, generalized from
// one resource kind to four.
package registry

import (
	"sync/atomic"

	"github.com/prompt-forge/gert-prompt/internal/core"
)

// Snapshot is one fully-built, immutable view of all four resource kinds.
type Snapshot struct {
	Prompts       map[string]*core.Prompt
	Gates         map[string]*core.Gate
	Methodologies map[string]*core.Methodology
	Styles        map[string]*core.Style

	// LoadErrors records per-file parse failures (§4.11): the file is
	// excluded but the rest of the snapshot still builds.
	LoadErrors []LoadError
}

// LoadError is one file's parse failure during a (re)load.
type LoadError struct {
	Path string
	Err  error
}

// NewSnapshot returns an empty, ready-to-populate snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Prompts:       make(map[string]*core.Prompt),
		Gates:         make(map[string]*core.Gate),
		Methodologies: make(map[string]*core.Methodology),
		Styles:        make(map[string]*core.Style),
	}
}

// Registry holds the live snapshot behind an atomic pointer. Writers (the
// hot-reload coordinator) call Swap; readers call Current and hold the
// returned snapshot for the duration of one request (§5).
type Registry struct {
	v atomic.Pointer[Snapshot]
}

// New constructs a registry seeded with an empty snapshot.
func New() *Registry {
	r := &Registry{}
	r.v.Store(NewSnapshot())
	return r
}

// Current returns the live snapshot.
func (r *Registry) Current() *Snapshot { return r.v.Load() }

// Swap atomically replaces the live snapshot. The new snapshot must already
// be fully built — this is the sole publication point (§4.11).
func (r *Registry) Swap(s *Snapshot) { r.v.Store(s) }

// Prompt looks up a prompt by id in the current snapshot.
func (r *Registry) Prompt(id string) (*core.Prompt, bool) {
	p, ok := r.Current().Prompts[id]
	return p, ok
}

// Gate looks up a gate by id in the current snapshot.
func (r *Registry) Gate(id string) (*core.Gate, bool) {
	g, ok := r.Current().Gates[id]
	return g, ok
}

// Methodology looks up a methodology by id (case-insensitive per §4.1) in
// the current snapshot. Callers normalize the id before calling this.
func (r *Registry) Methodology(id string) (*core.Methodology, bool) {
	m, ok := r.Current().Methodologies[id]
	return m, ok
}

// Style looks up a style by id in the current snapshot.
func (r *Registry) Style(id string) (*core.Style, bool) {
	s, ok := r.Current().Styles[id]
	return s, ok
}

// HasPrompt reports whether id names a known prompt (satisfies parser.Lookup).
func (r *Registry) HasPrompt(id string) bool {
	_, ok := r.Current().Prompts[id]
	return ok
}

// HasMethodology reports whether id (already lower-cased) names a known
// methodology (satisfies parser.Lookup).
func (r *Registry) HasMethodology(id string) bool {
	_, ok := r.Current().Methodologies[id]
	return ok
}

// HasStyle reports whether id names a known style (satisfies parser.Lookup).
func (r *Registry) HasStyle(id string) bool {
	_, ok := r.Current().Styles[id]
	return ok
}

// ListPrompts returns a stable-ish slice of all prompts (order not contractual).
func (r *Registry) ListPrompts() []*core.Prompt {
	snap := r.Current()
	out := make([]*core.Prompt, 0, len(snap.Prompts))
	for _, p := range snap.Prompts {
		out = append(out, p)
	}
	return out
}

// ListGates returns all gates in the current snapshot.
func (r *Registry) ListGates() []*core.Gate {
	snap := r.Current()
	out := make([]*core.Gate, 0, len(snap.Gates))
	for _, g := range snap.Gates {
		out = append(out, g)
	}
	return out
}

// ListMethodologies returns all methodologies in the current snapshot.
func (r *Registry) ListMethodologies() []*core.Methodology {
	snap := r.Current()
	out := make([]*core.Methodology, 0, len(snap.Methodologies))
	for _, m := range snap.Methodologies {
		out = append(out, m)
	}
	return out
}
