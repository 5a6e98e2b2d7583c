package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/prompt-forge/gert-prompt/internal/core"
	"github.com/prompt-forge/gert-prompt/internal/core/injection"
)

// handlers closes over Deps; every tool/resource handler hangs off it.
type handlers struct {
	deps Deps
}

// handleExecute implements the "execute" tool — the primary Execute
// operation of §6.1. The request shape is flattened into individual
// mcp-go properties rather than one nested object, since mcp.WithObject's
// schema support is coarser than this request's validation needs; gates
// and temporary_gates arrive as JSON-encoded strings instead.
func (h *handlers) handleExecute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	r := core.Request{
		Command:       stringArg(args, "command"),
		ChainID:       stringArg(args, "chain_id"),
		UserResponse:  stringArg(args, "user_response"),
		GateVerdict:   stringArg(args, "gate_verdict"),
		ForceRestart:  boolArg(args, "force_restart"),
		ExecutionMode: stringArg(args, "execution_mode"),
		GateScope:     stringArg(args, "gate_scope"),
	}

	if raw := stringArg(args, "gates_json"); raw != "" {
		var gates []string
		if err := json.Unmarshal([]byte(raw), &gates); err != nil {
			return errorResult(fmt.Sprintf("gates_json: %s", err)), nil
		}
		r.Gates = gates
	}
	if raw := stringArg(args, "temporary_gates_json"); raw != "" {
		var gates []*core.Gate
		if err := json.Unmarshal([]byte(raw), &gates); err != nil {
			return errorResult(fmt.Sprintf("temporary_gates_json: %s", err)), nil
		}
		r.TemporaryGates = gates
	}

	if r.Command == "" && r.ChainID == "" {
		return errorResult("either command or chain_id is required"), nil
	}

	resp := h.deps.Orchestrator.Handle(ctx, r)
	return executeResult(resp), nil
}

// handleMethodologySwitch implements the methodology-only "switch" verb of
// §6.1's resource operations. It shares its effect with system_control's
// activate_methodology action — both ultimately call SetActiveMethodology.
func (h *handlers) handleMethodologySwitch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	id := stringArg(args, "id")
	h.deps.Runtime.SetActiveMethodology(id)
	if id == "" {
		return textResult("active methodology cleared"), nil
	}
	return textResult(fmt.Sprintf("active methodology set to %q", id)), nil
}

// handleSystemControl implements the four system-control actions:
// activate_methodology, set/clear_injection_override, and reload_registry.
func (h *handlers) handleSystemControl(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	action := stringArg(args, "action")

	switch action {
	case "activate_methodology":
		id := stringArg(args, "methodology_id")
		h.deps.Runtime.SetActiveMethodology(id)
		return textResult(fmt.Sprintf("active methodology set to %q", id)), nil

	case "set_injection_override":
		t, err := parseInjectionType(stringArg(args, "injection_type"))
		if err != nil {
			return errorResult(err.Error()), nil
		}
		enabled := boolArg(args, "enabled")
		var ttl time.Duration
		if n, ok := args["ttl_seconds"].(float64); ok && n > 0 {
			ttl = time.Duration(n) * time.Second
		}
		h.deps.Runtime.SetInjectionOverride(t, enabled, ttl, time.Now())
		return textResult(fmt.Sprintf("injection override set: %s=%v", t, enabled)), nil

	case "clear_injection_override":
		t, err := parseInjectionType(stringArg(args, "injection_type"))
		if err != nil {
			return errorResult(err.Error()), nil
		}
		h.deps.Runtime.ClearInjectionOverride(t)
		return textResult(fmt.Sprintf("injection override cleared: %s", t)), nil

	case "reload_registry":
		h.deps.Reload.TriggerReload()
		return textResult("registry reloaded"), nil

	default:
		return errorResult(fmt.Sprintf("unknown system_control action %q", action)), nil
	}
}

func parseInjectionType(s string) (injection.Type, error) {
	switch injection.Type(s) {
	case injection.TypeSystemPrompt, injection.TypeGateGuidance, injection.TypeStyleGuidance:
		return injection.Type(s), nil
	default:
		return "", fmt.Errorf("unknown injection_type %q", s)
	}
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func boolArg(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

// executeResult renders a Response the way the teacher's HandleExec renders
// an engine.Result: a single JSON blob carrying every field the caller
// needs, with IsError mirrored onto the tool result.
func executeResult(resp *core.Response) *mcp.CallToolResult {
	payload := map[string]any{
		"renderedPrompt": resp.RenderedPrompt,
		"progressFooter": resp.ProgressFooter,
		"structured":     resp.Structured,
		"chainId":        resp.ChainID,
		"currentStep":    resp.CurrentStep,
		"isError":        resp.IsError,
	}
	if resp.IsError {
		payload["errorCode"] = resp.ErrorCode
		payload["errorReason"] = resp.ErrorReason
	}
	if len(resp.Diagnostics) > 0 {
		payload["diagnostics"] = resp.Diagnostics
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("marshal response: %s", err))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: resp.IsError,
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent(text)}}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent(msg)}, IsError: true}
}
