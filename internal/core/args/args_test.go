package args

import (
	"testing"

	"github.com/prompt-forge/gert-prompt/internal/core"
)

func promptWith(required bool, def string) *core.Prompt {
	return &core.Prompt{
		ID: "p",
		Arguments: []core.Argument{
			{Name: "topic", Required: required, Default: def},
		},
	}
}

func TestResolve_KeyValue(t *testing.T) {
	out, err := Resolve(promptWith(true, ""), `topic="space travel"`, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["topic"] != "space travel" {
		t.Errorf("topic = %q", out["topic"])
	}
}

func TestResolve_JSONObject(t *testing.T) {
	out, err := Resolve(promptWith(true, ""), `{"topic": "oceans"}`, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["topic"] != "oceans" {
		t.Errorf("topic = %q", out["topic"])
	}
}

func TestResolve_Positional(t *testing.T) {
	out, err := Resolve(promptWith(true, ""), "oceans", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["topic"] != "oceans" {
		t.Errorf("topic = %q", out["topic"])
	}
}

func TestResolve_MissingRequiredFails(t *testing.T) {
	_, err := Resolve(promptWith(true, ""), "", nil, nil)
	cerr, ok := err.(*core.Error)
	if !ok || cerr.Kind != core.ErrArgument {
		t.Fatalf("err = %v", err)
	}
}

func TestResolve_DefaultFillsOptional(t *testing.T) {
	out, err := Resolve(promptWith(false, "general"), "", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["topic"] != "general" {
		t.Errorf("topic = %q", out["topic"])
	}
}

func TestResolve_ChainContextPreviousOutput(t *testing.T) {
	p := &core.Prompt{ID: "p", Arguments: []core.Argument{{Name: "previous_step_output", Required: true}}}
	out, err := Resolve(p, "", nil, &ChainContext{PreviousStepOutput: "result text"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["previous_step_output"] != "result text" {
		t.Errorf("value = %q", out["previous_step_output"])
	}
}

func TestResolve_StepNResult(t *testing.T) {
	p := &core.Prompt{ID: "p", Arguments: []core.Argument{{Name: "step2_result", Required: true}}}
	out, err := Resolve(p, "", nil, &ChainContext{StepResults: map[int]string{2: "step two output"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["step2_result"] != "step two output" {
		t.Errorf("value = %q", out["step2_result"])
	}
}

func TestResolve_InputMappingOverridesRawName(t *testing.T) {
	p := &core.Prompt{ID: "p", Arguments: []core.Argument{{Name: "destination", Required: true}}}
	out, err := Resolve(p, `source="value"`, map[string]string{"source": "destination"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["destination"] != "value" {
		t.Errorf("destination = %q", out["destination"])
	}
}
