// Package mcpserver wires C1-C12 onto the Model Context Protocol transport
// (spec §6): one Execute tool over the pipeline orchestrator, a set of
// resource-management tools covering create/update/delete for prompts,
// gates, and methodologies, a system-control tool, and a read-only
// resource:// surface for the twelve published URI patterns.
//
// Grounded on pkg/ecosystem/mcp/server.go's NewServer (one mcp.NewTool +
// s.AddTool call per operation) and handlers.go's request/response shape,
// generalized from gert's four runbook-oriented tools to this domain's
// Execute/resource/system-control surface, with the read-only resource://
// tree added via server.AddResourceTemplate since the teacher never
// published MCP resources, only tools.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/prompt-forge/gert-prompt/internal/core/pipeline"
	"github.com/prompt-forge/gert-prompt/internal/core/registry"
	"github.com/prompt-forge/gert-prompt/internal/core/reload"
	"github.com/prompt-forge/gert-prompt/internal/core/runtimeconfig"
	"github.com/prompt-forge/gert-prompt/internal/core/surface"
)

// Deps bundles the collaborators the MCP surface needs. One Deps is built at
// process startup; every tool/resource handler closes over it.
type Deps struct {
	Orchestrator *pipeline.Orchestrator
	Registry     *registry.Registry
	Surface      *surface.Surface
	Runtime      *runtimeconfig.Store
	Reload       *reload.Coordinator

	PromptsDir       string
	GatesDir         string
	MethodologiesDir string
}

// NewServer constructs an MCP server with the full client tool surface
// (spec §6.1) and resource:// tree (spec §6.2) registered.
func NewServer(version string, deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"gert-prompt",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, true),
	)

	h := &handlers{deps: deps}

	s.AddTool(
		mcp.NewTool("execute",
			mcp.WithDescription("Run a symbolic command or resume an in-flight chain through the prompt-execution pipeline"),
			mcp.WithString("command", mcp.Description("A symbolic command line, e.g. '>>review some-file.go'")),
			mcp.WithString("chain_id", mcp.Description("Chain id of an in-flight session to resume, e.g. 'chain-abc12345'")),
			mcp.WithString("user_response", mcp.Description("Free-form response being resumed into the chain")),
			mcp.WithString("gate_verdict", mcp.Description("A verdict line matching 'GATE_REVIEW: PASS|FAIL - reason'")),
			mcp.WithBoolean("force_restart", mcp.Description("Discard an existing session for this chain id and start fresh")),
			mcp.WithString("execution_mode", mcp.Enum("auto", "single", "chain"), mcp.Description("Execution mode; defaults to auto")),
			mcp.WithString("gates_json", mcp.Description("JSON array of gate ids to force-include for this call")),
			mcp.WithString("temporary_gates_json", mcp.Description("JSON array of inline gate descriptors scoped to this call")),
			mcp.WithString("gate_scope", mcp.Enum("execution", "session", "chain", "step"), mcp.Description("Scope the gates/temporary_gates apply to")),
		),
		h.handleExecute,
	)

	s.AddTool(
		mcp.NewTool("resource_list",
			mcp.WithDescription("List prompts, gates, or methodologies currently in the registry"),
			mcp.WithString("kind", mcp.Required(), mcp.Enum("prompt", "gate", "methodology"), mcp.Description("Resource kind to list")),
		),
		h.handleResourceList,
	)

	s.AddTool(
		mcp.NewTool("resource_read",
			mcp.WithDescription("Read one prompt, gate, or methodology by id, or inspect a session by chain id"),
			mcp.WithString("kind", mcp.Required(), mcp.Enum("prompt", "gate", "methodology", "session"), mcp.Description("Resource kind")),
			mcp.WithString("id", mcp.Required(), mcp.Description("Resource id, or chain id when kind is session")),
		),
		h.handleResourceRead,
	)

	s.AddTool(
		mcp.NewTool("resource_create",
			mcp.WithDescription("Create a new prompt, gate, or methodology and persist it to the registry's file tree"),
			mcp.WithString("kind", mcp.Required(), mcp.Enum("prompt", "gate", "methodology"), mcp.Description("Resource kind")),
			mcp.WithString("payload_yaml", mcp.Required(), mcp.Description("The resource descriptor, YAML-encoded per its registry schema")),
		),
		h.handleResourceCreate,
	)

	s.AddTool(
		mcp.NewTool("resource_update",
			mcp.WithDescription("Replace an existing prompt, gate, or methodology's descriptor"),
			mcp.WithString("kind", mcp.Required(), mcp.Enum("prompt", "gate", "methodology"), mcp.Description("Resource kind")),
			mcp.WithString("id", mcp.Required(), mcp.Description("Resource id to replace")),
			mcp.WithString("payload_yaml", mcp.Required(), mcp.Description("The full replacement descriptor, YAML-encoded")),
		),
		h.handleResourceUpdate,
	)

	s.AddTool(
		mcp.NewTool("resource_delete",
			mcp.WithDescription("Delete a prompt, gate, or methodology from the registry's file tree"),
			mcp.WithString("kind", mcp.Required(), mcp.Enum("prompt", "gate", "methodology"), mcp.Description("Resource kind")),
			mcp.WithString("id", mcp.Required(), mcp.Description("Resource id to delete")),
		),
		h.handleResourceDelete,
	)

	s.AddTool(
		mcp.NewTool("methodology_switch",
			mcp.WithDescription("Switch the globally active methodology (methodology-only resource operation, §6.1)"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Methodology id to activate; empty clears the active methodology")),
		),
		h.handleMethodologySwitch,
	)

	s.AddTool(
		mcp.NewTool("system_control",
			mcp.WithDescription("Activate a methodology, set or clear a runtime injection override, or force an immediate registry reload"),
			mcp.WithString("action", mcp.Required(),
				mcp.Enum("activate_methodology", "set_injection_override", "clear_injection_override", "reload_registry"),
				mcp.Description("System-control action to perform")),
			mcp.WithString("methodology_id", mcp.Description("Required for activate_methodology")),
			mcp.WithString("injection_type", mcp.Enum("system-prompt", "gate-guidance", "style-guidance"),
				mcp.Description("Required for set_injection_override/clear_injection_override")),
			mcp.WithBoolean("enabled", mcp.Description("Required for set_injection_override")),
			mcp.WithNumber("ttl_seconds", mcp.Description("Optional expiry for set_injection_override; 0 means no expiry")),
		),
		h.handleSystemControl,
	)

	registerResources(s, h)

	return s
}
