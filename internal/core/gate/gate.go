// Package gate implements C6: builds an enforcement plan for an outgoing
// step's accumulated gates, and classifies a returned verdict string
// against the five ordered patterns in the spec, mutating session pending-
// review state accordingly.
//
// Grounded on pkg/kernel/governance/governance.go's Contract.Risk/Evaluate/
// MostRestrictive (priority-ordered classification with a most-restrictive-
// wins tiebreak), adapted from "contract risk levels" to "gate enforcement
// modes," and on pkg/kernel/executor/executor.go's output-classification
// regexes for the verdict-pattern matching style.
package gate

import (
	"regexp"
	"strings"

	"github.com/prompt-forge/gert-prompt/internal/core"
)

// Plan is the enforcement plan produced for one outgoing step.
type Plan struct {
	Criteria        []string // embedded gate criteria text for the outgoing prompt
	RetryBudget     int
	VerdictRequired bool // true when any accumulated gate is blocking
}

// BuildPlan accumulates criteria and mandatory-ness from the resolved gate
// set for one step. The retry budget is defaultMaxAttempts; individual
// gates do not change it.
func BuildPlan(gates []*core.Gate, defaultMaxAttempts int) Plan {
	var plan Plan
	plan.RetryBudget = defaultMaxAttempts
	for _, g := range gates {
		mode := g.ResolvedEnforcement()
		plan.Criteria = append(plan.Criteria, g.Criteria...)
		if mode == core.EnforceBlocking {
			plan.VerdictRequired = true
		}
	}
	return plan
}

// VerdictClass is the classification tier of a matched verdict pattern.
type VerdictClass string

const (
	ClassPrimary  VerdictClass = "primary"
	ClassHigh     VerdictClass = "high"
	ClassMedium   VerdictClass = "medium"
	ClassFallback VerdictClass = "fallback"
)

// VerdictSource identifies where the verdict string originated. Only
// "gate_verdict" may use the minimal fallback pattern (#5); a user-reply
// channel may not, to prevent prompt-injection verdict forgery.
type VerdictSource string

const (
	SourceGateVerdict VerdictSource = "gate_verdict"
	SourceUserReply   VerdictSource = "user_reply"
)

// Verdict is a successfully parsed verdict string.
type Verdict struct {
	Passed    bool
	Rationale string
	Class     VerdictClass
}

type pattern struct {
	re          *regexp.Regexp
	class       VerdictClass
	gateOnlySrc bool
}

var patterns = []pattern{
	{regexp.MustCompile(`(?is)GATE_REVIEW:\s*(PASS|FAIL)\s*-\s*(.+)`), ClassPrimary, false},
	{regexp.MustCompile(`(?is)GATE_REVIEW:\s*(PASS|FAIL)\s*:\s*(.+)`), ClassHigh, false},
	{regexp.MustCompile(`(?is)GATE\s+(PASS|FAIL)\s*-\s*(.+)`), ClassHigh, false},
	{regexp.MustCompile(`(?is)GATE\s+(PASS|FAIL)\s*:\s*(.+)`), ClassMedium, false},
	{regexp.MustCompile(`(?is)^(PASS|FAIL)\s*-\s*(.+)`), ClassFallback, true},
}

// ParseVerdict tries the five ordered patterns, first match wins. A match
// with an empty (after trimming) rationale is rejected as no match at all.
func ParseVerdict(s string, source VerdictSource) (*Verdict, error) {
	s = strings.TrimSpace(s)
	for _, p := range patterns {
		if p.gateOnlySrc && source != SourceGateVerdict {
			continue
		}
		m := p.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		rationale := strings.TrimSpace(m[2])
		if rationale == "" {
			continue
		}
		return &Verdict{
			Passed:    strings.EqualFold(m[1], "PASS"),
			Rationale: rationale,
			Class:     p.class,
		}, nil
	}
	return nil, core.NewError(core.ErrVerdictFormat, "unparseable_verdict", "gate_verdict did not match any recognized pattern", nil)
}

// Outcome is the result of applying a parsed verdict to a pending review.
type Outcome string

const (
	OutcomeAdvance   Outcome = "advance"   // PASS, or advisory/informational FAIL
	OutcomeRetry     Outcome = "retry"     // blocking FAIL, attempts remain
	OutcomeExhausted Outcome = "exhausted" // blocking FAIL, attempts exhausted
)

// Apply mutates pending per the verdict and enforcement mode, returning
// the resulting outcome. Does not touch session.State directly — callers
// (C7/C8) translate Outcome into a session-state transition.
func Apply(pending *core.PendingGateReview, v *Verdict, mode core.EnforcementMode) Outcome {
	pending.History = append(pending.History, core.AttemptRecord{
		Attempt:   pending.AttemptCount + 1,
		Verdict:   string(v.Class),
		Passed:    v.Passed,
		Rationale: v.Rationale,
	})

	if v.Passed {
		return OutcomeAdvance
	}

	switch mode {
	case core.EnforceBlocking:
		pending.AttemptCount++
		if pending.Exhausted() {
			return OutcomeExhausted
		}
		return OutcomeRetry
	case core.EnforceAdvisory:
		return OutcomeAdvance
	default: // informational
		return OutcomeAdvance
	}
}

// UserAction is a client-supplied resolution for an awaiting_user_choice session.
type UserAction string

const (
	ActionRetry UserAction = "retry"
	ActionSkip  UserAction = "skip"
	ActionAbort UserAction = "abort"
)

// ApplyUserAction validates and applies a user action to a pending review,
// returning the resulting outcome ("retry", "advance", or "terminated").
func ApplyUserAction(pending *core.PendingGateReview, action UserAction) (string, error) {
	switch action {
	case ActionRetry:
		pending.AttemptCount = 0
		return "retry", nil
	case ActionSkip:
		return "advance", nil
	case ActionAbort:
		return "terminated", nil
	default:
		return "", core.NewError(core.ErrInternal, "unknown_user_action", "unrecognized user action: "+string(action), nil)
	}
}
