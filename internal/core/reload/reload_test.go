package reload

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prompt-forge/gert-prompt/internal/core/registry"
)

type countingNotifier struct{ n int }

func (c *countingNotifier) NotifyRegistryChanged() { c.n++ }

func TestCoordinator_StartLoadsInitialSnapshot(t *testing.T) {
	root := t.TempDir()
	promptsDir := filepath.Join(root, "prompts")
	gatesDir := filepath.Join(root, "gates")
	methodologiesDir := filepath.Join(root, "methodologies")
	for _, d := range []string{promptsDir, gatesDir, methodologiesDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(promptsDir, "summarize.yaml"), []byte(
		"id: summarize\nname: Summarize\nuser_message_template: \"Summarize {{topic}}\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	reg := registry.New()
	notifier := &countingNotifier{}
	coord, err := New(promptsDir, gatesDir, methodologiesDir, 50*time.Millisecond, reg, notifier, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := coord.Start(t.Context()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer coord.Stop()

	if _, ok := reg.Prompt("summarize"); !ok {
		t.Fatal("expected summarize prompt to be loaded on Start")
	}
}

func TestCoordinator_TriggerReloadPicksUpNewFiles(t *testing.T) {
	root := t.TempDir()
	promptsDir := filepath.Join(root, "prompts")
	gatesDir := filepath.Join(root, "gates")
	methodologiesDir := filepath.Join(root, "methodologies")
	for _, d := range []string{promptsDir, gatesDir, methodologiesDir} {
		_ = os.MkdirAll(d, 0o755)
	}

	reg := registry.New()
	coord, err := New(promptsDir, gatesDir, methodologiesDir, 50*time.Millisecond, reg, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := coord.Start(t.Context()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer coord.Stop()

	if _, ok := reg.Prompt("later"); ok {
		t.Fatal("expected no prompts before write")
	}

	if err := os.WriteFile(filepath.Join(promptsDir, "later.yaml"), []byte(
		"id: later\nname: Later\nuser_message_template: \"Do {{x}}\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	coord.TriggerReload()

	if _, ok := reg.Prompt("later"); !ok {
		t.Fatal("expected later prompt to be loaded after TriggerReload")
	}
}
