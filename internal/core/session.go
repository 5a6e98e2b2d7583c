package core

import "time"

// SessionState is the discrete state a chain session occupies; every active
// session is in exactly one of these per spec §3.2.
type SessionState string

const (
	StateReadyForStep      SessionState = "ready_for_step"
	StatePendingReview     SessionState = "pending_gate_review"
	StateAwaitingUserChoice SessionState = "awaiting_user_choice"
	StateComplete          SessionState = "complete"
	StateTerminated        SessionState = "terminated"
)

// StepRecord captures one executed (or placeholder) chain step.
type StepRecord struct {
	Index       int       `json:"index"`
	RenderedPrompt string `json:"rendered_prompt"`
	Output      string    `json:"output"`
	Timestamp   time.Time `json:"timestamp"`
	Placeholder bool      `json:"placeholder"`
}

// AttemptRecord is one entry in a pending review's retry history.
type AttemptRecord struct {
	Attempt   int       `json:"attempt"`
	Verdict   string    `json:"verdict"`
	Passed    bool      `json:"passed"`
	Rationale string    `json:"rationale"`
	Timestamp time.Time `json:"timestamp"`
}

// PendingGateReview is created when a step completes with gates attached.
type PendingGateReview struct {
	PromptText   string          `json:"prompt_text"`
	GateIDs      []string        `json:"gate_ids"`
	AttemptCount int             `json:"attempt_count"`
	MaxAttempts  int             `json:"max_attempts"`
	CreatedAt    time.Time       `json:"created_at"`
	RetryHints   []string        `json:"retry_hints,omitempty"`
	History      []AttemptRecord `json:"history,omitempty"`
}

// Exhausted reports whether the review has consumed its attempt budget.
func (p *PendingGateReview) Exhausted() bool {
	return p.AttemptCount >= p.MaxAttempts
}

// ChainSession is the persisted state of one chain's execution across calls.
type ChainSession struct {
	ChainID          string            `json:"chain_id"`
	Command          string            `json:"command"`
	PromptID         string            `json:"prompt_id"`
	TotalSteps       int               `json:"total_steps"`
	CurrentStep      int               `json:"current_step"`
	Steps            []StepRecord      `json:"steps"`
	State            SessionState      `json:"state"`
	Pending          *PendingGateReview `json:"pending,omitempty"`
	RetryCount       int               `json:"retry_count"`
	MaxRetries       int               `json:"max_retries"`
	StartTime        time.Time         `json:"start_time"`
	LastActivity     time.Time         `json:"last_activity"`
	OriginalArgs     map[string]string `json:"original_args"`

	// Version envelope for the persisted form (§6.4).
	SchemaVersion int `json:"schema_version"`
}

// CurrentSchemaVersion is the latest persisted-envelope version this build
// writes. Older versions are read-only upgraded to this on next write.
const CurrentSchemaVersion = 1

// StepOutput returns the captured output of step n (1-indexed), or "" if it
// hasn't run yet or is still a placeholder.
func (s *ChainSession) StepOutput(n int) string {
	for _, rec := range s.Steps {
		if rec.Index == n && !rec.Placeholder {
			return rec.Output
		}
	}
	return ""
}

// PreviousStepOutput returns the last captured non-placeholder output.
func (s *ChainSession) PreviousStepOutput() string {
	for i := len(s.Steps) - 1; i >= 0; i-- {
		if !s.Steps[i].Placeholder {
			return s.Steps[i].Output
		}
	}
	return ""
}

// RecordStep writes (or overwrites a placeholder for) step n. Per §4.7, a
// real output never overwrites another real output.
func (s *ChainSession) RecordStep(n int, output string, placeholder bool) {
	for i := range s.Steps {
		if s.Steps[i].Index == n {
			if !s.Steps[i].Placeholder && !placeholder {
				// Real output already captured; a second real write is a bug
				// in the caller, but we still must not silently corrupt state.
				return
			}
			s.Steps[i] = StepRecord{Index: n, RenderedPrompt: s.Steps[i].RenderedPrompt, Output: output, Timestamp: time.Now(), Placeholder: placeholder}
			return
		}
	}
	s.Steps = append(s.Steps, StepRecord{Index: n, Output: output, Timestamp: time.Now(), Placeholder: placeholder})
}

// ---------------------------------------------------------------------------
// Execution Context
// ---------------------------------------------------------------------------

// InjectionDecision is the resolved enabled/frequency pair for one injection type.
type InjectionDecision struct {
	Enabled   bool
	Frequency string // "always" | "every" | "first-only" | "never"
	Target    string // "both" | "steps" | "gates"
}

// ExecutionContext is per-request scratch space, created at request arrival
// and destroyed at response emission (§3.3). Stages mutate it in place;
// nothing is threaded through return values (Design Notes §9).
type ExecutionContext struct {
	RequestID string

	// Populated by normalize/parse/resolve.
	RawCommand string
	ResidualArgs string
	Prompts    []*Prompt // resolved prompt(s); chain prompts resolve referenced steps lazily
	Args       map[string]string

	// Populated by plan.
	Methodology *Methodology
	GateAcc     *GateAccumulator
	Injections  map[string]InjectionDecision // keyed by injection type name

	// Populated by enhance/execute.
	RenderedPrompt string
	Session        *ChainSession
	IsNewSession   bool

	// Populated by response-capture.
	IncomingVerdict string
	VerdictSource   string // "gate_verdict" | "user_reply"

	Diag *DiagnosticAccumulator

	// Request fields (see §6.1).
	ForceRestart  bool
	ExecutionMode string // "auto" | "single" | "chain"
	UserAction    string // retry | skip | abort, when awaiting_user_choice
}

// NewExecutionContext creates a fresh, empty context.
func NewExecutionContext(requestID string) *ExecutionContext {
	return &ExecutionContext{
		RequestID:  requestID,
		Args:       make(map[string]string),
		Injections: make(map[string]InjectionDecision),
		Diag:       &DiagnosticAccumulator{},
		GateAcc:    NewGateAccumulator(),
	}
}
