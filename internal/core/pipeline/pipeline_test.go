package pipeline

import (
	"context"
	"testing"

	"github.com/prompt-forge/gert-prompt/internal/core"
	"github.com/prompt-forge/gert-prompt/internal/core/registry"
	"github.com/prompt-forge/gert-prompt/internal/core/runtimeconfig"
	"github.com/prompt-forge/gert-prompt/internal/core/session"
)

func testOrchestrator(t *testing.T) (*Orchestrator, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	snap := registry.NewSnapshot()
	snap.Prompts["review"] = &core.Prompt{
		ID:                  "review",
		Name:                "review",
		UserMessageTemplate: "Review {{arg0}}",
		Arguments:           []core.Argument{{Name: "arg0"}},
	}
	snap.Gates["blocking_gate"] = &core.Gate{
		ID: "blocking_gate", Name: "blocking", Type: core.GateValidation,
		Severity: core.SeverityCritical, Criteria: []string{"must cite sources"},
	}
	reg.Swap(snap)

	store, err := session.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	o := New(Deps{
		Registry:           reg,
		Sessions:           store,
		Runtime:            runtimeconfig.New(),
		DefaultMaxAttempts: 3,
	})
	return o, reg
}

func TestHandle_NewExecution_HappyPath(t *testing.T) {
	o, _ := testOrchestrator(t)
	resp := o.Handle(context.Background(), core.Request{Command: ">>review hello world"})

	if resp.IsError {
		t.Fatalf("unexpected error response: %+v", resp)
	}
	if resp.ChainID == "" {
		t.Fatalf("expected a generated chain id")
	}
	if resp.RenderedPrompt == "" {
		t.Fatalf("expected a rendered prompt")
	}
	if resp.CurrentStep != 1 {
		t.Errorf("current step = %d, want 1", resp.CurrentStep)
	}
}

func TestHandle_UnknownPrompt_TerminalError(t *testing.T) {
	o, _ := testOrchestrator(t)
	// The parser itself rejects an unrecognized >>id before an operator is
	// ever built, so this surfaces as a parse error rather than reaching
	// resolve's own (registry-race-guard) unknown-prompt check.
	resp := o.Handle(context.Background(), core.Request{Command: ">>does_not_exist hi"})

	if !resp.IsError {
		t.Fatalf("expected an error response")
	}
	if resp.ErrorCode != string(core.ErrParse) {
		t.Errorf("error code = %q, want %q", resp.ErrorCode, core.ErrParse)
	}
}

func TestHandle_MissingCommandAndChainID(t *testing.T) {
	o, _ := testOrchestrator(t)
	resp := o.Handle(context.Background(), core.Request{})

	if !resp.IsError {
		t.Fatalf("expected an error response")
	}
	if resp.ErrorCode != string(core.ErrArgument) {
		t.Errorf("error code = %q, want %q", resp.ErrorCode, core.ErrArgument)
	}
}

func TestHandle_Resume_ValidVerdictAdvances(t *testing.T) {
	o, _ := testOrchestrator(t)
	first := o.Handle(context.Background(), core.Request{Command: ">>review hello :: blocking_gate"})
	if first.IsError {
		t.Fatalf("setup: unexpected error response: %+v", first)
	}
	if first.Structured.GateValidation == nil || !first.Structured.GateValidation.RetryRequired {
		t.Fatalf("setup: expected a pending blocking gate, got %+v", first.Structured)
	}

	resp := o.Handle(context.Background(), core.Request{
		ChainID:     first.ChainID,
		GateVerdict: "GATE_REVIEW: PASS - cites sources correctly",
	})

	if resp.IsError {
		t.Fatalf("unexpected error response: %+v", resp)
	}
	if resp.Structured.GateValidation == nil || !resp.Structured.GateValidation.Passed {
		t.Errorf("expected the gate to be reported passed, got %+v", resp.Structured.GateValidation)
	}
}

func TestHandle_Resume_UnparseableVerdictStaysPending(t *testing.T) {
	o, _ := testOrchestrator(t)
	first := o.Handle(context.Background(), core.Request{Command: ">>review hello :: blocking_gate"})
	if first.IsError {
		t.Fatalf("setup: unexpected error response: %+v", first)
	}

	resp := o.Handle(context.Background(), core.Request{
		ChainID:     first.ChainID,
		GateVerdict: "not a recognized verdict at all",
	})

	if resp.IsError {
		t.Fatalf("unparseable verdict is non-terminal, should not error the response: %+v", resp)
	}
	if resp.Structured.GateValidation == nil || !resp.Structured.GateValidation.RetryRequired {
		t.Errorf("expected the session to remain pending review, got %+v", resp.Structured.GateValidation)
	}
}

func TestHandle_UnknownChainID(t *testing.T) {
	o, _ := testOrchestrator(t)
	resp := o.Handle(context.Background(), core.Request{ChainID: "chain-doesnotexist"})

	if !resp.IsError {
		t.Fatalf("expected an error response")
	}
	if resp.ErrorCode != string(core.ErrSession) {
		t.Errorf("error code = %q, want %q", resp.ErrorCode, core.ErrSession)
	}
}

func TestHandle_ContextCancelled(t *testing.T) {
	o, _ := testOrchestrator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp := o.Handle(ctx, core.Request{Command: ">>review hello"})
	if resp.IsError {
		t.Fatalf("cancellation response should not be an error response: %+v", resp)
	}
	if resp.ErrorCode != string(core.ErrCancelled) {
		t.Errorf("error code = %q, want %q", resp.ErrorCode, core.ErrCancelled)
	}
}
