package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/prompt-forge/gert-prompt/internal/core"
)

// LoadAll rebuilds a complete snapshot from the three directory trees
// (§6.5): prompts, gates (one subdirectory per gate), methodologies. Styles
// live alongside methodologies as `style-*.yaml` files for simplicity, since
// spec.md does not mandate a fourth tree. A parse error on any one file is
// recorded and that file excluded; the rest of the tree still loads (§4.11).
func LoadAll(promptsDir, gatesDir, methodologiesDir string) *Snapshot {
	snap := NewSnapshot()

	for id, p := range loadPrompts(promptsDir, &snap.LoadErrors) {
		snap.Prompts[id] = p
	}
	for id, g := range loadGates(gatesDir, &snap.LoadErrors) {
		snap.Gates[id] = g
	}
	for id, m := range loadMethodologies(methodologiesDir, &snap.LoadErrors) {
		snap.Methodologies[id] = m
	}
	for id, s := range loadStyles(methodologiesDir, &snap.LoadErrors) {
		snap.Styles[id] = s
	}
	return snap
}

func yamlFiles(dir string) []string {
	var out []string
	entries, err := os.ReadDir(dir)
	if err != nil {
		return out
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			out = append(out, filepath.Join(dir, name))
		}
	}
	return out
}

func loadPrompts(dir string, errs *[]LoadError) map[string]*core.Prompt {
	out := make(map[string]*core.Prompt)
	for _, path := range yamlFiles(dir) {
		var p core.Prompt
		if err := readYAML(path, &p); err != nil {
			*errs = append(*errs, LoadError{Path: path, Err: err})
			continue
		}
		if err := ValidatePrompt(&p); err != nil {
			*errs = append(*errs, LoadError{Path: path, Err: err})
			continue
		}
		for i := range p.Chain {
			p.Chain[i].Index = i + 1
		}
		out[p.ID] = &p
	}
	return out
}

// loadGates walks one subdirectory per gate, each containing a `gate.yaml`
// descriptor plus an optional `guidance.md` body (§6.5).
func loadGates(dir string, errs *[]LoadError) map[string]*core.Gate {
	out := make(map[string]*core.Gate)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return out
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sub := filepath.Join(dir, e.Name())
		descriptor := firstExisting(filepath.Join(sub, "gate.yaml"), filepath.Join(sub, "gate.yml"))
		if descriptor == "" {
			continue
		}
		var g core.Gate
		if err := readYAML(descriptor, &g); err != nil {
			*errs = append(*errs, LoadError{Path: descriptor, Err: err})
			continue
		}
		if guidance := firstExisting(filepath.Join(sub, "guidance.md")); guidance != "" {
			if body, err := os.ReadFile(guidance); err == nil {
				g.Guidance = string(body)
			}
		}
		if err := ValidateGate(&g); err != nil {
			*errs = append(*errs, LoadError{Path: descriptor, Err: err})
			continue
		}
		out[g.ID] = &g
	}
	return out
}

func loadMethodologies(dir string, errs *[]LoadError) map[string]*core.Methodology {
	out := make(map[string]*core.Methodology)
	for _, path := range yamlFiles(dir) {
		if strings.HasPrefix(filepath.Base(path), "style-") {
			continue
		}
		var m core.Methodology
		if err := readYAML(path, &m); err != nil {
			*errs = append(*errs, LoadError{Path: path, Err: err})
			continue
		}
		if err := ValidateMethodology(&m); err != nil {
			*errs = append(*errs, LoadError{Path: path, Err: err})
			continue
		}
		out[strings.ToLower(m.ID)] = &m
	}
	return out
}

func loadStyles(dir string, errs *[]LoadError) map[string]*core.Style {
	out := make(map[string]*core.Style)
	for _, path := range yamlFiles(dir) {
		if !strings.HasPrefix(filepath.Base(path), "style-") {
			continue
		}
		var s core.Style
		if err := readYAML(path, &s); err != nil {
			*errs = append(*errs, LoadError{Path: path, Err: err})
			continue
		}
		out[s.ID] = &s
	}
	return out
}

func firstExisting(candidates ...string) string {
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
