package mcpserver

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/prompt-forge/gert-prompt/internal/core/pipeline"
	"github.com/prompt-forge/gert-prompt/internal/core/registry"
	"github.com/prompt-forge/gert-prompt/internal/core/reload"
	"github.com/prompt-forge/gert-prompt/internal/core/runtimeconfig"
	"github.com/prompt-forge/gert-prompt/internal/core/session"
	"github.com/prompt-forge/gert-prompt/internal/core/surface"
)

func testHandlers(t *testing.T) *handlers {
	t.Helper()
	promptsDir := t.TempDir()
	gatesDir := t.TempDir()
	methodologiesDir := t.TempDir()

	reg := registry.New()
	store, err := session.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	surf := surface.New(reg, store)
	runtime := runtimeconfig.New()

	coord, err := reload.New(promptsDir, gatesDir, methodologiesDir, 10*time.Millisecond, reg, surf, nil)
	if err != nil {
		t.Fatalf("reload.New: %v", err)
	}
	if err := coord.Start(context.Background()); err != nil {
		t.Fatalf("coord.Start: %v", err)
	}
	t.Cleanup(coord.Stop)

	orch := pipeline.New(pipeline.Deps{
		Registry:           reg,
		Sessions:           store,
		Runtime:            runtime,
		DefaultMaxAttempts: 3,
	})

	return &handlers{deps: Deps{
		Orchestrator:     orch,
		Registry:         reg,
		Surface:          surf,
		Runtime:          runtime,
		Reload:           coord,
		PromptsDir:       promptsDir,
		GatesDir:         gatesDir,
		MethodologiesDir: methodologiesDir,
	}}
}

func callReq(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func TestHandleResourceCreate_PromptRoundTrip(t *testing.T) {
	h := testHandlers(t)

	payload := "id: greet\nname: greet\nuser_message_template: \"Say hi to {{name}}\"\narguments:\n  - name: name\n"
	result, err := h.handleResourceCreate(context.Background(), callReq(map[string]any{
		"kind":         "prompt",
		"payload_yaml": payload,
	}))
	if err != nil {
		t.Fatalf("handleResourceCreate: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error result: %+v", result.Content)
	}

	if _, ok := h.deps.Registry.Prompt("greet"); !ok {
		t.Fatal("expected prompt 'greet' to be visible in the registry after create + reload")
	}

	readResult, err := h.handleResourceRead(context.Background(), callReq(map[string]any{
		"kind": "prompt",
		"id":   "greet",
	}))
	if err != nil {
		t.Fatalf("handleResourceRead: %v", err)
	}
	if readResult.IsError {
		t.Fatalf("expected success reading back 'greet', got error: %+v", readResult.Content)
	}
}

func TestHandleResourceCreate_InvalidPromptRejected(t *testing.T) {
	h := testHandlers(t)

	result, err := h.handleResourceCreate(context.Background(), callReq(map[string]any{
		"kind":         "prompt",
		"payload_yaml": "id: broken\n", // no user_message_template and no chain
	}))
	if err != nil {
		t.Fatalf("handleResourceCreate: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected validation failure for a prompt missing its template")
	}
	if _, ok := h.deps.Registry.Prompt("broken"); ok {
		t.Fatal("an invalid prompt must never reach the registry")
	}
}

func TestHandleResourceDelete_UnknownID(t *testing.T) {
	h := testHandlers(t)

	result, err := h.handleResourceDelete(context.Background(), callReq(map[string]any{
		"kind": "prompt",
		"id":   "does-not-exist",
	}))
	if err != nil {
		t.Fatalf("handleResourceDelete: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error deleting an unknown prompt")
	}
}

func TestHandleSystemControl_ActivateMethodology(t *testing.T) {
	h := testHandlers(t)

	result, err := h.handleSystemControl(context.Background(), callReq(map[string]any{
		"action":         "activate_methodology",
		"methodology_id": "tdd",
	}))
	if err != nil {
		t.Fatalf("handleSystemControl: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got: %+v", result.Content)
	}
	if got := h.deps.Runtime.ActiveMethodology(); got != "tdd" {
		t.Fatalf("ActiveMethodology() = %q, want %q", got, "tdd")
	}
}

func TestHandleSystemControl_SetAndClearInjectionOverride(t *testing.T) {
	h := testHandlers(t)

	if _, err := h.handleSystemControl(context.Background(), callReq(map[string]any{
		"action":         "set_injection_override",
		"injection_type": "gate-guidance",
		"enabled":        false,
	})); err != nil {
		t.Fatalf("set override: %v", err)
	}
	if ov := h.deps.Runtime.InjectionOverride("gate-guidance", time.Now()); ov == nil || *ov != false {
		t.Fatalf("expected override false, got %v", ov)
	}

	if _, err := h.handleSystemControl(context.Background(), callReq(map[string]any{
		"action":         "clear_injection_override",
		"injection_type": "gate-guidance",
	})); err != nil {
		t.Fatalf("clear override: %v", err)
	}
	if ov := h.deps.Runtime.InjectionOverride("gate-guidance", time.Now()); ov != nil {
		t.Fatal("expected override cleared")
	}
}

func TestHandleExecute_MissingCommandAndChainID(t *testing.T) {
	h := testHandlers(t)

	result, err := h.handleExecute(context.Background(), callReq(map[string]any{}))
	if err != nil {
		t.Fatalf("handleExecute: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error when neither command nor chain_id is present")
	}
}
