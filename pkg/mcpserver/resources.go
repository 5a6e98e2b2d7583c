package mcpserver

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"gopkg.in/yaml.v3"
)

// registerResources publishes the twelve read-only resource:// URIs of
// §6.2. List resources (no {id}) are static (server.AddResource); singular
// and sub-resources are templates keyed by id (server.AddResourceTemplate),
// since the teacher never published MCP resources — this tree is grounded
// directly on spec §6.2's URI table instead.
func registerResources(s *server.MCPServer, h *handlers) {
	s.AddResource(
		mcp.NewResource("resource://prompt/", "prompts", mcp.WithMIMEType("text/plain")),
		func(ctx context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			return textContents("resource://prompt/", formatPromptList(h.deps.Surface.ListPromptSummaries())), nil
		},
	)
	s.AddResourceTemplate(
		mcp.NewResourceTemplate("resource://prompt/{id}", "prompt", mcp.WithTemplateMIMEType("text/yaml")),
		func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			id := idFromURI(req.Params.URI, "resource://prompt/")
			p, ok := h.deps.Registry.Prompt(id)
			if !ok {
				return nil, fmt.Errorf("no such prompt %q", id)
			}
			data, err := yaml.Marshal(p)
			if err != nil {
				return nil, err
			}
			return textContents(req.Params.URI, string(data)), nil
		},
	)
	s.AddResourceTemplate(
		mcp.NewResourceTemplate("resource://prompt/{id}/template", "prompt template", mcp.WithTemplateMIMEType("text/plain")),
		func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			id := idFromURI(strings.TrimSuffix(req.Params.URI, "/template"), "resource://prompt/")
			p, ok := h.deps.Registry.Prompt(id)
			if !ok {
				return nil, fmt.Errorf("no such prompt %q", id)
			}
			return textContents(req.Params.URI, p.UserMessageTemplate), nil
		},
	)

	s.AddResource(
		mcp.NewResource("resource://gate/", "gates", mcp.WithMIMEType("text/plain")),
		func(ctx context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			return textContents("resource://gate/", formatGateList(h.deps.Surface.ListGateSummaries())), nil
		},
	)
	s.AddResourceTemplate(
		mcp.NewResourceTemplate("resource://gate/{id}", "gate", mcp.WithTemplateMIMEType("text/yaml")),
		func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			id := idFromURI(req.Params.URI, "resource://gate/")
			g, ok := h.deps.Registry.Gate(id)
			if !ok {
				return nil, fmt.Errorf("no such gate %q", id)
			}
			data, err := yaml.Marshal(g)
			if err != nil {
				return nil, err
			}
			return textContents(req.Params.URI, string(data)), nil
		},
	)
	s.AddResourceTemplate(
		mcp.NewResourceTemplate("resource://gate/{id}/guidance", "gate guidance", mcp.WithTemplateMIMEType("text/plain")),
		func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			id := idFromURI(strings.TrimSuffix(req.Params.URI, "/guidance"), "resource://gate/")
			g, ok := h.deps.Registry.Gate(id)
			if !ok {
				return nil, fmt.Errorf("no such gate %q", id)
			}
			return textContents(req.Params.URI, g.Guidance), nil
		},
	)

	s.AddResource(
		mcp.NewResource("resource://methodology/", "methodologies", mcp.WithMIMEType("text/plain")),
		func(ctx context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			return textContents("resource://methodology/", formatMethodologyList(h.deps.Surface.ListMethodologySummaries())), nil
		},
	)
	s.AddResourceTemplate(
		mcp.NewResourceTemplate("resource://methodology/{id}", "methodology", mcp.WithTemplateMIMEType("text/yaml")),
		func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			id := idFromURI(req.Params.URI, "resource://methodology/")
			m, ok := h.deps.Registry.Methodology(strings.ToLower(id))
			if !ok {
				return nil, fmt.Errorf("no such methodology %q", id)
			}
			data, err := yaml.Marshal(m)
			if err != nil {
				return nil, err
			}
			return textContents(req.Params.URI, string(data)), nil
		},
	)
	s.AddResourceTemplate(
		mcp.NewResourceTemplate("resource://methodology/{id}/system-prompt", "methodology system prompt", mcp.WithTemplateMIMEType("text/plain")),
		func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			id := idFromURI(strings.TrimSuffix(req.Params.URI, "/system-prompt"), "resource://methodology/")
			m, ok := h.deps.Registry.Methodology(strings.ToLower(id))
			if !ok {
				return nil, fmt.Errorf("no such methodology %q", id)
			}
			return textContents(req.Params.URI, m.SystemPromptGuidance), nil
		},
	)

	s.AddResource(
		mcp.NewResource("resource://session/", "sessions", mcp.WithMIMEType("text/plain")),
		func(ctx context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			sessions, err := h.deps.Surface.ListSessions()
			if err != nil {
				return nil, err
			}
			var b strings.Builder
			for _, v := range sessions {
				fmt.Fprintf(&b, "%s\t%s\tstep %d/%d\n", v.ChainID, v.State, v.CurrentStep, v.TotalSteps)
			}
			return textContents("resource://session/", b.String()), nil
		},
	)
	s.AddResourceTemplate(
		mcp.NewResourceTemplate("resource://session/{chainId}", "session", mcp.WithTemplateMIMEType("text/plain")),
		func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			id := idFromURI(req.Params.URI, "resource://session/")
			v, ok := h.deps.Surface.Session(id)
			if !ok {
				return nil, fmt.Errorf("no such session %q", id)
			}
			text := fmt.Sprintf("Chain ID: %s\nState: %s\nStep: %d/%d\n", v.ChainID, v.State, v.CurrentStep, v.TotalSteps)
			return textContents(req.Params.URI, text), nil
		},
	)

	s.AddResource(
		mcp.NewResource("resource://metrics/pipeline", "pipeline metrics", mcp.WithMIMEType("text/plain")),
		func(ctx context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			text, err := gatherMetricsText()
			if err != nil {
				return nil, err
			}
			return textContents("resource://metrics/pipeline", text), nil
		},
	)
}

// idFromURI strips a fixed prefix to recover the {id} segment of a resource
// template URI.
func idFromURI(uri, prefix string) string {
	return strings.TrimPrefix(uri, prefix)
}

func textContents(uri, text string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: uri, MIMEType: "text/plain", Text: text},
	}
}

// gatherMetricsText renders the default prometheus registry (the one
// promauto.New* collectors in internal/core/metrics register to) in the
// standard text exposition format, for `resource://metrics/pipeline`.
func gatherMetricsText() (string, error) {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}
