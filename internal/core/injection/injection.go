// Package injection implements C4: per-call enable/frequency resolution
// for the three injection types (system-prompt, gate-guidance,
// style-guidance), across a seven-level priority chain, with matcher
// expressions compiled and run via expr-lang/expr.
//
// Grounded on pkg/runtime/engine.go's evalCondition (expr.Compile +
// expr.Env + expr.AsBool, one-shot condition evaluation against a small
// environment map), reused here for step-matcher rules instead of runbook
// step conditions.
package injection

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
)

// Type is one of the three injection kinds.
type Type string

const (
	TypeSystemPrompt  Type = "system-prompt"
	TypeGateGuidance  Type = "gate-guidance"
	TypeStyleGuidance Type = "style-guidance"
)

// Target controls where guidance of a given type may appear.
type Target string

const (
	TargetBoth  Target = "both"
	TargetSteps Target = "steps"
	TargetGates Target = "gates"
)

// Frequency controls how often injection fires across a chain's steps.
type Frequency struct {
	Mode     string // "always" | "every" | "first-only" | "never"
	Interval int    // for "every"
}

// Matches reports whether the current step satisfies this frequency.
func (f Frequency) Matches(step int) bool {
	switch f.Mode {
	case "always":
		return true
	case "never":
		return false
	case "first-only":
		return step == 1
	case "every":
		if f.Interval <= 0 {
			return false
		}
		return (step-1)%f.Interval == 0
	default:
		return true
	}
}

// Modifier mirrors the command modifier affecting injection per §4.3.
type Modifier string

const (
	ModNone   Modifier = ""
	ModClean  Modifier = "clean"
	ModLean   Modifier = "lean"
	ModGuided Modifier = "guided"
	ModJudge  Modifier = "judge"
)

// Rule is one configuration-sourced matcher for priority levels 3-5.
type Rule struct {
	Expr      string // an expr-lang boolean expression evaluated against Env
	Enabled   bool
	Frequency Frequency
}

// Env is the environment a Rule's matcher expression is evaluated against.
// matches exposes its fields to the expression under lower-camel-case names
// (step, parity, position, previousOutcome, gateStatus, chainID), together
// with the chainGlob helper function.
type Env struct {
	Step            int
	Parity          string // "odd" | "even"
	Position        string // "first" | "last" | "middle"
	PreviousOutcome string // "success" | "failure"
	GateStatus      map[string]bool
	ChainID         string
}

// matches compiles and evaluates r.Expr against env. A gate-status
// predicate like `gateStatus["gate-X-passed"]` or a chain-id glob helper
// `chainGlob(chainID, "prefix-*")` are both ordinary expr-lang expressions
// over Env's fields, so no bespoke matcher DSL is needed beyond exposing a
// glob helper function.
func (r Rule) matches(env Env) (bool, error) {
	if strings.TrimSpace(r.Expr) == "" {
		return true, nil
	}
	vm := map[string]any{
		"step":            env.Step,
		"parity":          env.Parity,
		"position":        env.Position,
		"previousOutcome": env.PreviousOutcome,
		"gateStatus":      env.GateStatus,
		"chainID":         env.ChainID,
		"chainGlob":       chainGlob,
	}
	program, err := expr.Compile(r.Expr, expr.Env(vm), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("compile injection matcher %q: %w", r.Expr, err)
	}
	out, err := expr.Run(program, vm)
	if err != nil {
		return false, fmt.Errorf("eval injection matcher %q: %w", r.Expr, err)
	}
	b, _ := out.(bool)
	return b, nil
}

// chainGlob matches id against a pattern supporting a single leading
// and/or trailing "*" wildcard, or an exact match with none.
func chainGlob(id, pattern string) bool {
	switch {
	case pattern == "*":
		return true
	case strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") && len(pattern) > 1:
		return strings.Contains(id, pattern[1:len(pattern)-1])
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(id, pattern[1:])
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(id, pattern[:len(pattern)-1])
	default:
		return id == pattern
	}
}

// Sources bundles the configuration inputs for priority levels 2-6 for one
// injection Type. Level 1 (the command modifier) and level 7 (the built-in
// default) are handled directly by Resolve.
type Sources struct {
	RuntimeOverride *bool // level 2: session/chain override store
	StepRule        *Rule // level 3
	ChainRule       *Rule // level 4
	CategoryRule    *Rule // level 5
	GlobalDefault   *bool // level 6
	GlobalFrequency Frequency
}

// Decision is the resolved outcome for one injection type at one call.
type Decision struct {
	Enabled   bool
	Frequency Frequency
	ShouldRun bool // Enabled && Frequency.Matches(step)
	Source    string
}

func systemDefault(t Type) (bool, Frequency) {
	switch t {
	case TypeStyleGuidance:
		return true, Frequency{Mode: "first-only"}
	default:
		return true, Frequency{Mode: "always"}
	}
}

// Resolve implements the full §4.3 priority chain for one injection type.
func Resolve(t Type, mod Modifier, src Sources, env Env) Decision {
	if mod == ModClean {
		return Decision{Source: "modifier_clean"}
	}
	if mod == ModLean && (t == TypeSystemPrompt || t == TypeStyleGuidance) {
		return Decision{Source: "modifier_lean"}
	}
	if mod == ModGuided && t == TypeSystemPrompt {
		return Decision{Enabled: true, Frequency: Frequency{Mode: "always"}, ShouldRun: true, Source: "modifier_guided"}
	}

	if src.RuntimeOverride != nil {
		freq := src.GlobalFrequency
		return finalize(*src.RuntimeOverride, freq, env.Step, "runtime_override")
	}

	for _, candidate := range []struct {
		rule   *Rule
		source string
	}{
		{src.StepRule, "step_rule"},
		{src.ChainRule, "chain_rule"},
		{src.CategoryRule, "category_rule"},
	} {
		if candidate.rule == nil {
			continue
		}
		ok, err := candidate.rule.matches(env)
		if err != nil || !ok {
			continue
		}
		return finalize(candidate.rule.Enabled, candidate.rule.Frequency, env.Step, candidate.source)
	}

	if src.GlobalDefault != nil {
		return finalize(*src.GlobalDefault, src.GlobalFrequency, env.Step, "global_default")
	}

	enabled, freq := systemDefault(t)
	return finalize(enabled, freq, env.Step, "system_default")
}

func finalize(enabled bool, freq Frequency, step int, source string) Decision {
	return Decision{
		Enabled:   enabled,
		Frequency: freq,
		ShouldRun: enabled && freq.Matches(step),
		Source:    source,
	}
}

// Cache memoizes one Decision per (injection-type, call), invalidated
// explicitly on config reload or session reset (§4.3).
type Cache struct {
	decisions map[Type]Decision
}

func NewCache() *Cache { return &Cache{decisions: make(map[Type]Decision)} }

func (c *Cache) Get(t Type, compute func() Decision) Decision {
	if d, ok := c.decisions[t]; ok {
		return d
	}
	d := compute()
	c.decisions[t] = d
	return d
}

func (c *Cache) Invalidate() { c.decisions = make(map[Type]Decision) }
