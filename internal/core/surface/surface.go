// Package surface implements C12: read-only views over the live
// registries, active sessions, and metrics, plus a non-blocking listener
// channel for registry-changed / session-updated events.
//
// Grounded on the teacher's atomic-pointer snapshot reads (pkg/ecosystem/
// mcp/server.go's resource-list handlers) generalized to a dedicated
// read-side package, and on codenerd's MangleWatcherStats for the
// "counters exposed read-only via a getter" texture.
package surface

import (
	"sync"

	"github.com/prompt-forge/gert-prompt/internal/core/registry"
	"github.com/prompt-forge/gert-prompt/internal/core/session"
)

// EventKind is the kind of notification carried on the listener channel.
type EventKind string

const (
	EventRegistryChanged EventKind = "registry-changed"
	EventSessionUpdated  EventKind = "session-updated"
)

// Event is one notification.
type Event struct {
	Kind    EventKind
	ChainID string // set for EventSessionUpdated
}

const listenerBufferSize = 64

// Surface exposes read-only views and a drop-oldest-on-full notification
// channel. Every method is safe to call from any concurrent context; none
// mutate shared state.
type Surface struct {
	reg   *registry.Registry
	store *session.Store

	mu        sync.Mutex
	listeners []chan Event
}

// New constructs a surface over the given registry and session store.
func New(reg *registry.Registry, store *session.Store) *Surface {
	return &Surface{reg: reg, store: store}
}

// Listen registers a new listener channel; it is the caller's
// responsibility to drain it. Buffered so normal consumption never blocks
// the publisher; when full, the oldest pending event is dropped (§5
// backpressure rule).
func (s *Surface) Listen() <-chan Event {
	ch := make(chan Event, listenerBufferSize)
	s.mu.Lock()
	s.listeners = append(s.listeners, ch)
	s.mu.Unlock()
	return ch
}

// publish fans an event out to every listener, dropping the oldest queued
// event on a full channel rather than blocking.
func (s *Surface) publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.listeners {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

// NotifyRegistryChanged implements reload.Notifier.
func (s *Surface) NotifyRegistryChanged() { s.publish(Event{Kind: EventRegistryChanged}) }

// NotifySessionUpdated publishes a session-updated event for chainID.
func (s *Surface) NotifySessionUpdated(chainID string) {
	s.publish(Event{Kind: EventSessionUpdated, ChainID: chainID})
}

// ListPromptSummaries returns a compact view for the `resource://prompt/`
// list resource.
type PromptSummary struct {
	ID, Name, Category string
	IsChain            bool
}

func (s *Surface) ListPromptSummaries() []PromptSummary {
	prompts := s.reg.ListPrompts()
	out := make([]PromptSummary, 0, len(prompts))
	for _, p := range prompts {
		out = append(out, PromptSummary{ID: p.ID, Name: p.Name, Category: p.Category, IsChain: p.IsChain()})
	}
	return out
}

// GateSummary is the compact view for `resource://gate/`.
type GateSummary struct {
	ID, Name string
	Type     string
	Severity string
}

func (s *Surface) ListGateSummaries() []GateSummary {
	gates := s.reg.ListGates()
	out := make([]GateSummary, 0, len(gates))
	for _, g := range gates {
		out = append(out, GateSummary{ID: g.ID, Name: g.Name, Type: string(g.Type), Severity: string(g.Severity)})
	}
	return out
}

// MethodologySummary is the compact view for `resource://methodology/`.
type MethodologySummary struct {
	ID, Name string
	Enabled  bool
}

func (s *Surface) ListMethodologySummaries() []MethodologySummary {
	ms := s.reg.ListMethodologies()
	out := make([]MethodologySummary, 0, len(ms))
	for _, m := range ms {
		out = append(out, MethodologySummary{ID: m.ID, Name: m.Name, Enabled: m.Enabled})
	}
	return out
}

// Session reads one session's current state for `resource://session/{chainId}`.
// Returns (view, false) if no such session exists.
func (s *Surface) Session(chainID string) (SessionView, bool) {
	sess, ok := s.store.Peek(chainID)
	if !ok {
		return SessionView{}, false
	}
	return SessionView{
		ChainID:     sess.ChainID,
		State:       string(sess.State),
		CurrentStep: sess.CurrentStep,
		TotalSteps:  sess.TotalSteps,
	}, true
}

// SessionView is the read-only projection of a ChainSession's progress.
type SessionView struct {
	ChainID     string
	State       string
	CurrentStep int
	TotalSteps  int
}

// ListSessions returns a view of every session currently on disk, for the
// `resource://session/` list resource.
func (s *Surface) ListSessions() ([]SessionView, error) {
	ids, err := s.store.ListIDs()
	if err != nil {
		return nil, err
	}
	out := make([]SessionView, 0, len(ids))
	for _, id := range ids {
		if v, ok := s.Session(id); ok {
			out = append(out, v)
		}
	}
	return out, nil
}
