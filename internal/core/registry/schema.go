package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	jsv6 "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/prompt-forge/gert-prompt/internal/core"
)

// compiledSchemas lazily generates (invopop/jsonschema) and compiles
// (santhosh-tekuri/jsonschema/v6) one schema per resource kind, mirroring
// the `gert/schema` tool operation's "export gert JSON Schema" behavior in
// the teacher repo, but used here to validate rather than merely export.
var (
	schemaOnce sync.Once
	promptSchema, gateSchema, methodologySchema *jsv6.Schema
	schemaErr error
)

func ensureSchemas() error {
	schemaOnce.Do(func() {
		promptSchema, schemaErr = compileFor(core.Prompt{})
		if schemaErr != nil {
			return
		}
		gateSchema, schemaErr = compileFor(core.Gate{})
		if schemaErr != nil {
			return
		}
		methodologySchema, schemaErr = compileFor(core.Methodology{})
	})
	return schemaErr
}

func compileFor(v any) (*jsv6.Schema, error) {
	reflector := &jsonschema.Reflector{ExpandedStruct: true}
	raw := reflector.Reflect(v)
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal generated schema: %w", err)
	}

	compiler := jsv6.NewCompiler()
	const resource = "inline.json"
	unmarshalled, err := jsv6.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal generated schema: %w", err)
	}
	if err := compiler.AddResource(resource, unmarshalled); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return compiler.Compile(resource)
}

func validateAgainst(schema *jsv6.Schema, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal for validation: %w", err)
	}
	inst, err := jsv6.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("unmarshal for validation: %w", err)
	}
	return schema.Validate(inst)
}

// ExportSchema renders the generated JSON Schema for one resource kind
// ("prompt", "gate", or "methodology"), for the `gert-prompt schema export`
// CLI subcommand — the same reflector compileFor uses internally, exposed
// uncompiled for human/tooling consumption, mirroring the teacher's
// `gert/schema` tool operation.
func ExportSchema(kind string) ([]byte, error) {
	var v any
	switch kind {
	case "prompt":
		v = core.Prompt{}
	case "gate":
		v = core.Gate{}
	case "methodology":
		v = core.Methodology{}
	default:
		return nil, fmt.Errorf("unknown schema kind %q (want prompt, gate, or methodology)", kind)
	}
	reflector := &jsonschema.Reflector{ExpandedStruct: true}
	return json.MarshalIndent(reflector.Reflect(v), "", "  ")
}

// ValidatePrompt checks structural validity and required-field presence.
func ValidatePrompt(p *core.Prompt) error {
	if p.ID == "" {
		return fmt.Errorf("prompt missing id")
	}
	if p.UserMessageTemplate == "" && len(p.Chain) == 0 {
		return fmt.Errorf("prompt %q: must have a user_message_template or a chain", p.ID)
	}
	if err := ensureSchemas(); err != nil {
		return err
	}
	if err := validateAgainst(promptSchema, p); err != nil {
		return fmt.Errorf("prompt %q: schema: %w", p.ID, err)
	}
	return nil
}

// ValidateGate checks structural validity of a gate descriptor.
func ValidateGate(g *core.Gate) error {
	if g.ID == "" {
		return fmt.Errorf("gate missing id")
	}
	switch g.Type {
	case core.GateValidation, core.GateGuidance, core.GateVerification:
	default:
		return fmt.Errorf("gate %q: invalid type %q", g.ID, g.Type)
	}
	switch g.Severity {
	case core.SeverityCritical, core.SeverityHigh, core.SeverityMedium, core.SeverityLow:
	default:
		return fmt.Errorf("gate %q: invalid severity %q", g.ID, g.Severity)
	}
	if g.Type == core.GateVerification && g.VerifyCommand == "" {
		return fmt.Errorf("gate %q: verification gate missing verify_command", g.ID)
	}
	if err := ensureSchemas(); err != nil {
		return err
	}
	if err := validateAgainst(gateSchema, g); err != nil {
		return fmt.Errorf("gate %q: schema: %w", g.ID, err)
	}
	return nil
}

// ValidateMethodology checks a methodology's id and its JSON Schema only.
// It does not check completeness (guidance, phases, and gates all
// non-empty): a partial methodology passes, and the loader admits an
// already-persisted partial one as it is. ValidateMethodologyCreation adds
// the completeness check for the creation path.
func ValidateMethodology(m *core.Methodology) error {
	if m.ID == "" {
		return fmt.Errorf("methodology missing id")
	}
	if err := ensureSchemas(); err != nil {
		return err
	}
	if err := validateAgainst(methodologySchema, m); err != nil {
		return fmt.Errorf("methodology %q: schema: %w", m.ID, err)
	}
	return nil
}

// ValidateMethodologyCreation enforces the completeness bar when a client
// requests creation of a new methodology (§3.1), distinct from the looser
// load-time check above which still admits legacy partial entries read-only.
func ValidateMethodologyCreation(m *core.Methodology) error {
	if err := ValidateMethodology(m); err != nil {
		return err
	}
	if !m.Valid() {
		return fmt.Errorf("methodology %q: incomplete (needs system-prompt-guidance, phases, and gates), completeness=%.2f", m.ID, m.CompletenessScore())
	}
	return nil
}
