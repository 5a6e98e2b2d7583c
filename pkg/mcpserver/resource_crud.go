package mcpserver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"gopkg.in/yaml.v3"

	"github.com/prompt-forge/gert-prompt/internal/core"
	"github.com/prompt-forge/gert-prompt/internal/core/registry"
	"github.com/prompt-forge/gert-prompt/internal/core/surface"
)

// handleResourceList implements the "list" verb of §6.1's resource
// operations, rendered the way §6.2 specifies list resources: a compact
// one-line-per-entry plain-text summary.
func (h *handlers) handleResourceList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	switch stringArg(req.GetArguments(), "kind") {
	case "prompt":
		return textResult(formatPromptList(h.deps.Surface.ListPromptSummaries())), nil
	case "gate":
		return textResult(formatGateList(h.deps.Surface.ListGateSummaries())), nil
	case "methodology":
		return textResult(formatMethodologyList(h.deps.Surface.ListMethodologySummaries())), nil
	default:
		return errorResult("kind must be one of prompt, gate, methodology"), nil
	}
}

// handleResourceRead implements the "read" verb, plus the "inspect" verb for
// sessions (kind=session, id=chainId).
func (h *handlers) handleResourceRead(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	id := stringArg(args, "id")

	switch stringArg(args, "kind") {
	case "prompt":
		p, ok := h.deps.Registry.Prompt(id)
		if !ok {
			return errorResult(fmt.Sprintf("no such prompt %q", id)), nil
		}
		return yamlResult(p)
	case "gate":
		g, ok := h.deps.Registry.Gate(id)
		if !ok {
			return errorResult(fmt.Sprintf("no such gate %q", id)), nil
		}
		return yamlResult(g)
	case "methodology":
		m, ok := h.deps.Registry.Methodology(strings.ToLower(id))
		if !ok {
			return errorResult(fmt.Sprintf("no such methodology %q", id)), nil
		}
		return yamlResult(m)
	case "session":
		view, ok := h.deps.Surface.Session(id)
		if !ok {
			return errorResult(fmt.Sprintf("no such session %q", id)), nil
		}
		return yamlResult(view)
	default:
		return errorResult("kind must be one of prompt, gate, methodology, session"), nil
	}
}

// handleResourceCreate implements the "create" verb: validate, write to the
// file tree the hot-reload coordinator watches, then force a synchronous
// reload so the new resource is visible to the very next Execute call.
func (h *handlers) handleResourceCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	kind, payload := stringArg(args, "kind"), stringArg(args, "payload_yaml")

	id, err := h.writeResource(kind, payload, false)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	h.deps.Reload.TriggerReload()
	return textResult(fmt.Sprintf("created %s %q", kind, id)), nil
}

// handleResourceUpdate implements the "update" verb: same validation and
// persistence path as create, but requires the id already exist.
func (h *handlers) handleResourceUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	kind, id, payload := stringArg(args, "kind"), stringArg(args, "id"), stringArg(args, "payload_yaml")

	if !h.resourceExists(kind, id) {
		return errorResult(fmt.Sprintf("no such %s %q", kind, id)), nil
	}
	written, err := h.writeResource(kind, payload, true)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if written != id {
		return errorResult(fmt.Sprintf("payload id %q does not match target id %q", written, id)), nil
	}
	h.deps.Reload.TriggerReload()
	return textResult(fmt.Sprintf("updated %s %q", kind, id)), nil
}

// handleResourceDelete implements the "delete" verb.
func (h *handlers) handleResourceDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	kind, id := stringArg(args, "kind"), stringArg(args, "id")

	if !h.resourceExists(kind, id) {
		return errorResult(fmt.Sprintf("no such %s %q", kind, id)), nil
	}

	var err error
	switch kind {
	case "prompt":
		err = os.Remove(filepath.Join(h.deps.PromptsDir, id+".yaml"))
	case "gate":
		err = os.RemoveAll(filepath.Join(h.deps.GatesDir, id))
	case "methodology":
		err = os.Remove(filepath.Join(h.deps.MethodologiesDir, id+".yaml"))
	default:
		return errorResult("kind must be one of prompt, gate, methodology"), nil
	}
	if err != nil {
		return errorResult(err.Error()), nil
	}
	h.deps.Reload.TriggerReload()
	return textResult(fmt.Sprintf("deleted %s %q", kind, id)), nil
}

func (h *handlers) resourceExists(kind, id string) bool {
	reg := h.deps.Registry
	switch kind {
	case "prompt":
		_, ok := reg.Prompt(id)
		return ok
	case "gate":
		_, ok := reg.Gate(id)
		return ok
	case "methodology":
		_, ok := reg.Methodology(strings.ToLower(id))
		return ok
	default:
		return false
	}
}

// writeResource parses payload as the kind's descriptor type, validates it
// (the stricter creation check for methodologies), and writes it to the
// directory tree loader.LoadAll reads from (§6.5). It returns the
// descriptor's own id so callers can cross-check it against a target id on
// update.
func (h *handlers) writeResource(kind, payload string, isUpdate bool) (string, error) {
	switch kind {
	case "prompt":
		var p core.Prompt
		if err := yaml.Unmarshal([]byte(payload), &p); err != nil {
			return "", fmt.Errorf("parse prompt yaml: %w", err)
		}
		if err := registry.ValidatePrompt(&p); err != nil {
			return "", err
		}
		data, err := yaml.Marshal(&p)
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(filepath.Join(h.deps.PromptsDir, p.ID+".yaml"), data, 0o644); err != nil {
			return "", err
		}
		return p.ID, nil

	case "gate":
		var g core.Gate
		if err := yaml.Unmarshal([]byte(payload), &g); err != nil {
			return "", fmt.Errorf("parse gate yaml: %w", err)
		}
		if err := registry.ValidateGate(&g); err != nil {
			return "", err
		}
		dir := filepath.Join(h.deps.GatesDir, g.ID)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
		guidance := g.Guidance
		g.Guidance = "" // guidance.md is the source of truth once split out
		data, err := yaml.Marshal(&g)
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(filepath.Join(dir, "gate.yaml"), data, 0o644); err != nil {
			return "", err
		}
		if guidance != "" {
			if err := os.WriteFile(filepath.Join(dir, "guidance.md"), []byte(guidance), 0o644); err != nil {
				return "", err
			}
		}
		return g.ID, nil

	case "methodology":
		var m core.Methodology
		if err := yaml.Unmarshal([]byte(payload), &m); err != nil {
			return "", fmt.Errorf("parse methodology yaml: %w", err)
		}
		if !isUpdate {
			if err := registry.ValidateMethodologyCreation(&m); err != nil {
				return "", err
			}
		} else if err := registry.ValidateMethodology(&m); err != nil {
			return "", err
		}
		data, err := yaml.Marshal(&m)
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(filepath.Join(h.deps.MethodologiesDir, strings.ToLower(m.ID)+".yaml"), data, 0o644); err != nil {
			return "", err
		}
		return strings.ToLower(m.ID), nil

	default:
		return "", fmt.Errorf("kind must be one of prompt, gate, methodology")
	}
}

func yamlResult(v any) (*mcp.CallToolResult, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return errorResult(fmt.Sprintf("marshal: %s", err)), nil
	}
	return textResult(string(data)), nil
}

func formatPromptList(summaries []surface.PromptSummary) string {
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })
	var b strings.Builder
	for _, p := range summaries {
		kind := "single"
		if p.IsChain {
			kind = "chain"
		}
		fmt.Fprintf(&b, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Category, kind)
	}
	return b.String()
}

func formatGateList(summaries []surface.GateSummary) string {
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })
	var b strings.Builder
	for _, g := range summaries {
		fmt.Fprintf(&b, "%s\t%s\t%s\t%s\n", g.ID, g.Name, g.Type, g.Severity)
	}
	return b.String()
}

func formatMethodologyList(summaries []surface.MethodologySummary) string {
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })
	var b strings.Builder
	for _, m := range summaries {
		fmt.Fprintf(&b, "%s\t%s\tenabled=%v\n", m.ID, m.Name, m.Enabled)
	}
	return b.String()
}
