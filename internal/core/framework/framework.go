// Package framework implements C5: resolves a single methodology id (or
// none) per call, from the highest-priority applicable source, cached for
// the lifetime of one ExecutionContext.
//
// Grounded on pkg/kernel/governance/governance.go's Evaluate/MostRestrictive
// priority-chain pattern, narrowed from "most restrictive contract wins" to
// "first applicable source wins" since frameworks are first-match rather
// than most-restrictive.
package framework

import "strings"

// Modifier mirrors the parsed `%clean`/`%lean`/`%guided`/`%judge` command
// modifiers relevant to framework selection.
type Modifier string

const (
	ModNone   Modifier = ""
	ModClean  Modifier = "clean"
	ModLean   Modifier = "lean"
	ModGuided Modifier = "guided"
	ModJudge  Modifier = "judge"
)

// Lookup reports whether a lower-cased id names a registered methodology.
type Lookup interface {
	HasMethodology(id string) bool
}

// Decision is the resolved outcome of one framework-selection call.
type Decision struct {
	MethodologyID string // empty means "none"
	Source        string
}

// Resolve implements the priority chain (highest first): %clean/%lean ⇒
// none; @OPERATOR; judgeSelection (client-provided from a judge phase);
// globalActive; built-in default (none).
func Resolve(mod Modifier, operatorName string, judgeSelection string, globalActive string, lookup Lookup) Decision {
	if mod == ModClean || mod == ModLean {
		return Decision{Source: "modifier_suppressed"}
	}
	if operatorName != "" {
		id := strings.ToLower(operatorName)
		if lookup.HasMethodology(id) {
			return Decision{MethodologyID: id, Source: "operator"}
		}
	}
	if judgeSelection != "" {
		id := strings.ToLower(judgeSelection)
		if lookup.HasMethodology(id) {
			return Decision{MethodologyID: id, Source: "judge_selection"}
		}
	}
	if globalActive != "" {
		id := strings.ToLower(globalActive)
		if lookup.HasMethodology(id) {
			return Decision{MethodologyID: id, Source: "global_active"}
		}
	}
	return Decision{Source: "system_default"}
}

// Cache memoizes one Decision per call (ExecutionContext-scoped); never
// shared across requests.
type Cache struct {
	decision *Decision
}

// Get returns the cached decision, computing and storing it on first call.
func (c *Cache) Get(compute func() Decision) Decision {
	if c.decision == nil {
		d := compute()
		c.decision = &d
	}
	return *c.decision
}

// Invalidate clears the cache (config reload or session reset).
func (c *Cache) Invalidate() { c.decision = nil }
