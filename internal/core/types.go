// Package core holds the domain types shared across the prompt-execution
// core's components (C1-C12 of the design). Subpackages (registry, parser,
// injection, gate, session, pipeline, ...) depend on these types rather than
// on each other, the way pkg/kernel/schema anchors pkg/kernel/engine,
// pkg/kernel/governance, and pkg/kernel/executor in the teacher repo.
package core

import "time"

// ---------------------------------------------------------------------------
// Prompt / Chain Step
// ---------------------------------------------------------------------------

// Argument describes one named argument a prompt accepts.
type Argument struct {
	Name        string `yaml:"name" json:"name"`
	Required    bool   `yaml:"required,omitempty" json:"required,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Default     string `yaml:"default,omitempty" json:"default,omitempty"`
}

// StepRefMapping maps a referenced chain step's inputs/outputs to the
// enclosing chain's variable names.
type StepRefMapping struct {
	Inputs  map[string]string `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Outputs map[string]string `yaml:"outputs,omitempty" json:"outputs,omitempty"`
}

// ChainStep is one step of a chain prompt. Exactly one of Instructions
// (embedded) or PromptID (referenced) is set.
type ChainStep struct {
	Index        int             `yaml:"-" json:"index"`
	Instructions string          `yaml:"instructions,omitempty" json:"instructions,omitempty"`
	RequiredOutput string        `yaml:"required_output,omitempty" json:"required_output,omitempty"`
	PromptID     string          `yaml:"prompt_id,omitempty" json:"prompt_id,omitempty"`
	Mapping      *StepRefMapping `yaml:"mapping,omitempty" json:"mapping,omitempty"`
}

// Referenced reports whether this step delegates to another prompt.
func (s ChainStep) Referenced() bool { return s.PromptID != "" }

// Prompt is a single-prompt or chain-prompt registry entry.
type Prompt struct {
	ID                   string      `yaml:"id" json:"id"`
	Name                 string      `yaml:"name" json:"name"`
	Category             string      `yaml:"category,omitempty" json:"category,omitempty"`
	Description          string      `yaml:"description,omitempty" json:"description,omitempty"`
	Arguments            []Argument  `yaml:"arguments,omitempty" json:"arguments,omitempty"`
	UserMessageTemplate  string      `yaml:"user_message_template" json:"user_message_template"`
	SystemMessageTemplate string     `yaml:"system_message_template,omitempty" json:"system_message_template,omitempty"`
	Chain                []ChainStep `yaml:"chain,omitempty" json:"chain,omitempty"`
}

// IsChain reports whether this prompt is a chain prompt.
func (p *Prompt) IsChain() bool { return len(p.Chain) > 0 }

// TotalSteps returns 1 for a single prompt, or the chain length.
func (p *Prompt) TotalSteps() int {
	if p.IsChain() {
		return len(p.Chain)
	}
	return 1
}

// ---------------------------------------------------------------------------
// Gate
// ---------------------------------------------------------------------------

// GateType classifies what a gate does.
type GateType string

const (
	GateValidation  GateType = "validation"
	GateGuidance    GateType = "guidance"
	GateVerification GateType = "verification"
)

// Severity drives the default enforcement mode of a gate.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// EnforcementMode governs how a failing verdict is handled.
type EnforcementMode string

const (
	EnforceBlocking      EnforcementMode = "blocking"
	EnforceAdvisory      EnforcementMode = "advisory"
	EnforceInformational EnforcementMode = "informational"
)

// DefaultEnforcement returns the enforcement mode implied by severity alone,
// per spec §3.1: critical/high default to blocking, others to advisory.
func (s Severity) DefaultEnforcement() EnforcementMode {
	switch s {
	case SeverityCritical, SeverityHigh:
		return EnforceBlocking
	default:
		return EnforceAdvisory
	}
}

// Gate is a registry entry describing a verification/validation criterion set.
type Gate struct {
	ID          string          `yaml:"id" json:"id"`
	Name        string          `yaml:"name" json:"name"`
	Type        GateType        `yaml:"type" json:"type"`
	Severity    Severity        `yaml:"severity" json:"severity"`
	Criteria    []string        `yaml:"criteria" json:"criteria"`
	Guidance    string          `yaml:"guidance,omitempty" json:"guidance,omitempty"`
	Enforcement EnforcementMode `yaml:"enforcement,omitempty" json:"enforcement,omitempty"`

	// Verification-only fields (§4.10).
	VerifyCommand string `yaml:"verify_command,omitempty" json:"verify_command,omitempty"`
	VerifyTimeout int    `yaml:"verify_timeout,omitempty" json:"verify_timeout,omitempty"`
	VerifyMax     int    `yaml:"verify_max,omitempty" json:"verify_max,omitempty"`
	VerifyLoop    bool   `yaml:"verify_loop,omitempty" json:"verify_loop,omitempty"`
}

// ResolvedEnforcement returns the gate's explicit enforcement mode, or the
// severity default when unset.
func (g *Gate) ResolvedEnforcement() EnforcementMode {
	if g.Enforcement != "" {
		return g.Enforcement
	}
	return g.Severity.DefaultEnforcement()
}

// ---------------------------------------------------------------------------
// Methodology
// ---------------------------------------------------------------------------

// Methodology is a structured reasoning template injected into prompts.
type Methodology struct {
	ID                    string   `yaml:"id" json:"id"`
	Name                  string   `yaml:"name" json:"name"`
	SystemPromptGuidance  string   `yaml:"system_prompt_guidance" json:"system_prompt_guidance"`
	Phases                []string `yaml:"phases" json:"phases"`
	Gates                 []string `yaml:"gates" json:"gates"`
	RecommendedStyle      string   `yaml:"recommended_style,omitempty" json:"recommended_style,omitempty"`
	Priority              int      `yaml:"priority,omitempty" json:"priority,omitempty"`
	Enabled               bool     `yaml:"enabled" json:"enabled"`
}

// CompletenessScore approximates the "≥80% from guidance+phases+gates" rule
// in spec §3.1: each of the three core fields contributes equally, plus a
// smaller share for style/name metadata.
func (m *Methodology) CompletenessScore() float64 {
	var score float64
	const coreWeight = 0.8 / 3
	if m.SystemPromptGuidance != "" {
		score += coreWeight
	}
	if len(m.Phases) > 0 {
		score += coreWeight
	}
	if len(m.Gates) > 0 {
		score += coreWeight
	}
	if m.RecommendedStyle != "" {
		score += 0.1
	}
	if m.Name != "" {
		score += 0.1
	}
	return score
}

// Valid reports whether a methodology meets the minimum-completeness bar
// (system-prompt-guidance, phases, and gates all non-empty).
func (m *Methodology) Valid() bool {
	return m.SystemPromptGuidance != "" && len(m.Phases) > 0 && len(m.Gates) > 0
}

// Style is a lightweight named response-style overlay.
type Style struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Guidance    string `yaml:"guidance" json:"guidance"`
}

// ---------------------------------------------------------------------------
// Diagnostics / Accumulators
// ---------------------------------------------------------------------------

// DiagnosticLevel is the severity of a diagnostic entry.
type DiagnosticLevel string

const (
	LevelDebug   DiagnosticLevel = "debug"
	LevelInfo    DiagnosticLevel = "info"
	LevelWarning DiagnosticLevel = "warning"
	LevelError   DiagnosticLevel = "error"
)

// DiagnosticEntry is a single record appended to the diagnostic accumulator.
type DiagnosticEntry struct {
	Level     DiagnosticLevel `json:"level"`
	Stage     string          `json:"stage"`
	Message   string          `json:"message"`
	Context   map[string]any  `json:"context,omitempty"`
	ErrorCode string          `json:"error_code,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// GateSourceKind names the seven labeled gate-contribution sources (§4.5).
type GateSourceKind string

const (
	SourceInlineOperator    GateSourceKind = "inline_operator"
	SourceClientSelected    GateSourceKind = "client_selected"
	SourceRequestTemporary  GateSourceKind = "request_temporary"
	SourcePromptConfig      GateSourceKind = "prompt_config"
	SourceChainConfig       GateSourceKind = "chain_config"
	SourceMethodologyDerived GateSourceKind = "methodology_derived"
	SourceRegistryDefault   GateSourceKind = "registry_default"
)

// SourcePriority returns the fixed numeric priority for a gate source per §4.5.
func SourcePriority(k GateSourceKind) int {
	switch k {
	case SourceInlineOperator:
		return 100
	case SourceClientSelected:
		return 90
	case SourceRequestTemporary:
		return 80
	case SourcePromptConfig:
		return 60
	case SourceChainConfig:
		return 50
	case SourceMethodologyDerived:
		return 40
	case SourceRegistryDefault:
		return 20
	default:
		return 0
	}
}

// GateContribution is one (gate, source) pairing seen by the gate accumulator.
type GateContribution struct {
	Gate   *Gate
	Source GateSourceKind
}
