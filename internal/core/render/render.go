// Package render implements C9: expands `{{name}}` references against a
// scoped variable map, with unknown-variable diagnostics and chain-context
// resolution (previous_step_output, stepN_result). Idempotent and
// side-effect-free except for diagnostic emission.
//
// Grounded on pkg/kernel/eval/eval.go's Resolve/ResolveMap template-
// variable scanning — the teacher resolves `{{ .x }}` against a Go-
// template-flavored env; this renderer keeps the same linear-scan
// replacement style but for the simpler `{{name}}` (no dot, no pipeline)
// placeholder grammar this spec defines.
package render

import (
	"regexp"

	"github.com/prompt-forge/gert-prompt/internal/core"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Vars is the scoped variable map a template renders against.
type Vars map[string]string

// Render expands every `{{name}}` in tmpl against vars, appending a
// warning diagnostic for each unresolved name (rendered as empty string).
func Render(tmpl string, vars Vars, diag *core.DiagnosticAccumulator, stage string) string {
	return placeholderRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		m := placeholderRe.FindStringSubmatch(match)
		name := m[1]
		if v, ok := vars[name]; ok {
			return v
		}
		if diag != nil {
			diag.Append(core.LevelWarning, stage, "unknown template variable: "+name, nil)
		}
		return ""
	})
}

// ScopeFor builds the variable map for one step of one session, layering
// explicit args over chain-context derived values.
func ScopeFor(args map[string]string, sess *core.ChainSession) Vars {
	vars := make(Vars, len(args)+2)
	for k, v := range args {
		vars[k] = v
	}
	if sess != nil {
		vars["previous_step_output"] = sess.PreviousStepOutput()
		for _, rec := range sess.Steps {
			if !rec.Placeholder {
				vars[stepResultKey(rec.Index)] = rec.Output
			}
		}
	}
	return vars
}

func stepResultKey(n int) string {
	return "step" + itoa(n) + "_result"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	return string(b)
}
