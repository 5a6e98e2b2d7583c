// Package main provides the gert-prompt binary: the cobra CLI entrypoint
// that wires C1-C12 together and exposes serve/validate/schema subcommands,
// grounded on cmd/gert-mcp/main.go (the serve subcommand's MCP transport)
// and cmd/gert/main.go (the multi-subcommand root layout).
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/prompt-forge/gert-prompt/internal/config"
	"github.com/prompt-forge/gert-prompt/internal/core"
	"github.com/prompt-forge/gert-prompt/internal/core/pipeline"
	"github.com/prompt-forge/gert-prompt/internal/core/registry"
	"github.com/prompt-forge/gert-prompt/internal/core/reload"
	"github.com/prompt-forge/gert-prompt/internal/core/runtimeconfig"
	"github.com/prompt-forge/gert-prompt/internal/core/session"
	"github.com/prompt-forge/gert-prompt/internal/core/surface"
	"github.com/prompt-forge/gert-prompt/internal/logging"
	"github.com/prompt-forge/gert-prompt/pkg/mcpserver"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gert-prompt",
	Short: "Programmable prompt-execution core",
	Long:  "gert-prompt — a governed, hot-reloadable MCP server that turns prompts, gates, and methodologies into a single Execute surface for AI agents.",
}

// --- serve ---

var (
	serveConfigPath       string
	servePromptsDir       string
	serveGatesDir         string
	serveMethodologiesDir string
	serveSessionsDir      string
	serveDebug            bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server over stdio",
	Long: `Start the gert-prompt MCP server, communicating over stdin/stdout.
Registers the Execute tool, resource CRUD tools, system-control tool, and
the read-only resource:// tree, then watches the resource directories for
changes.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	log, err := logging.New(serveDebug)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	for _, dir := range []string{servePromptsDir, serveGatesDir, serveMethodologiesDir, serveSessionsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	reg := registry.New()
	store, err := session.NewStore(serveSessionsDir)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	surf := surface.New(reg, store)
	rtStore := runtimeconfig.New()

	debounce := time.Duration(cfg.HotReload.DebounceMS) * time.Millisecond
	coord, err := reload.New(servePromptsDir, serveGatesDir, serveMethodologiesDir, debounce, reg, surf, log)
	if err != nil {
		return fmt.Errorf("build reload coordinator: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := coord.Start(ctx); err != nil {
		return fmt.Errorf("start reload coordinator: %w", err)
	}
	defer coord.Stop()

	orch := pipeline.New(pipeline.Deps{
		Registry:           reg,
		Sessions:           store,
		Runtime:            rtStore,
		Log:                log,
		DefaultMaxAttempts: cfg.Gates.DefaultMaxAttempts,
		IdleExpiry:         time.Duration(cfg.Sessions.IdleExpirySeconds) * time.Second,
	})

	mcpSrv := mcpserver.NewServer(version, mcpserver.Deps{
		Orchestrator:     orch,
		Registry:         reg,
		Surface:          surf,
		Runtime:          rtStore,
		Reload:           coord,
		PromptsDir:       servePromptsDir,
		GatesDir:         serveGatesDir,
		MethodologiesDir: serveMethodologiesDir,
	})

	log.Info("gert-prompt serving over stdio", zap.String("version", version))

	if err := server.ServeStdio(mcpSrv); err != nil {
		return fmt.Errorf("serve stdio: %w", err)
	}
	return nil
}

// --- validate ---

var validateKind string

var validateCmd = &cobra.Command{
	Use:   "validate [file.yaml]",
	Short: "Validate a prompt, gate, or methodology descriptor file",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	switch validateKind {
	case "prompt":
		var p core.Prompt
		if err := yaml.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if err := registry.ValidatePrompt(&p); err != nil {
			return err
		}
		fmt.Printf("✓ prompt %q is valid (%d argument(s))\n", p.ID, len(p.Arguments))
	case "gate":
		var g core.Gate
		if err := yaml.Unmarshal(data, &g); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if err := registry.ValidateGate(&g); err != nil {
			return err
		}
		fmt.Printf("✓ gate %q is valid (type=%s, severity=%s)\n", g.ID, g.Type, g.Severity)
	case "methodology":
		var m core.Methodology
		if err := yaml.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if err := registry.ValidateMethodology(&m); err != nil {
			return err
		}
		fmt.Printf("✓ methodology %q is valid (completeness=%.2f)\n", m.ID, m.CompletenessScore())
	default:
		return fmt.Errorf("--kind must be one of prompt, gate, methodology (got %q)", validateKind)
	}
	return nil
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Schema operations",
}

var schemaExportKind string

var schemaExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the JSON Schema for a resource kind to stdout",
	RunE:  runSchemaExport,
}

func runSchemaExport(cmd *cobra.Command, args []string) error {
	data, err := registry.ExportSchema(schemaExportKind)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gert-prompt %s (build: %s)\n", version, commit)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "gert-prompt.yaml", "Path to the config YAML file")
	serveCmd.Flags().StringVar(&servePromptsDir, "prompts-dir", "data/prompts", "Directory of prompt descriptor YAML files")
	serveCmd.Flags().StringVar(&serveGatesDir, "gates-dir", "data/gates", "Directory of gate descriptor YAML files")
	serveCmd.Flags().StringVar(&serveMethodologiesDir, "methodologies-dir", "data/methodologies", "Directory of methodology (and style) descriptor YAML files")
	serveCmd.Flags().StringVar(&serveSessionsDir, "sessions-dir", "data/sessions", "Directory for persisted chain session state")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug-level, human-readable logging")

	validateCmd.Flags().StringVar(&validateKind, "kind", "", "Resource kind: prompt, gate, or methodology (required)")
	validateCmd.MarkFlagRequired("kind")

	schemaExportCmd.Flags().StringVar(&schemaExportKind, "kind", "", "Resource kind: prompt, gate, or methodology (required)")
	schemaExportCmd.MarkFlagRequired("kind")
	schemaCmd.AddCommand(schemaExportCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(versionCmd)
}
