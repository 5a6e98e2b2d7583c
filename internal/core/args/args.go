// Package args implements C3: turns a prompt plus residual argument text
// into a name→value mapping, filling gaps from prompt defaults, chain
// context, and a whitelisted set of environment variables.
//
// Grounded on pkg/kernel/eval/eval.go's Resolve/ResolveMap (the teacher's
// own layered-lookup resolver for runbook step inputs), generalized from
// "inputs + constants + prior step outputs" to "key=value / JSON /
// positional + prompt defaults / chain context / env whitelist."
package args

import (
	"encoding/json"
	"os"
	"regexp"
	"strings"

	"github.com/prompt-forge/gert-prompt/internal/core"
)

// EnvWhitelist is the small set of process environment variables the
// processor is permitted to consult when filling a missing argument.
var EnvWhitelist = []string{"USER", "HOME", "LANG", "PWD"}

var kvRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)=(.*)$`)

// ChainContext supplies the per-step outputs an argument may resolve
// against (`previous_step_output`, `stepN_result`).
type ChainContext struct {
	PreviousStepOutput string
	StepResults        map[int]string // 1-indexed
}

// Resolve produces the final argument map for one prompt invocation.
// residual is the free text captured by the parser for this prompt
// reference; mapping, when non-nil, is the chain step's declared
// input-mapping table (overrides raw name matching).
func Resolve(p *core.Prompt, residual string, mapping map[string]string, chainCtx *ChainContext) (map[string]string, error) {
	raw, err := parseShape(residual)
	if err != nil {
		return nil, core.NewError(core.ErrArgument, "argument_parse", err.Error(), err)
	}

	if len(mapping) > 0 {
		raw = applyMapping(raw, mapping)
	}

	// Positional binding: a lone value with no `=` and no JSON object binds
	// to the first required argument still unresolved.
	if v, ok := raw["__positional__"]; ok {
		for _, a := range p.Arguments {
			if a.Required {
				if _, already := raw[a.Name]; !already {
					raw[a.Name] = v
				}
				break
			}
		}
	}

	out := make(map[string]string, len(p.Arguments))
	for _, a := range p.Arguments {
		if v, ok := raw[a.Name]; ok {
			out[a.Name] = v
			continue
		}
		if v, ok := fromChainContext(a.Name, chainCtx); ok {
			out[a.Name] = v
			continue
		}
		if v, ok := a.Default, a.Default != ""; ok {
			out[a.Name] = v
			continue
		}
		if v, ok := fromEnv(a.Name); ok {
			out[a.Name] = v
			continue
		}
		if a.Required {
			return nil, core.NewError(core.ErrArgument, "missing_required_argument",
				"missing required argument: "+a.Name, nil)
		}
	}

	return out, nil
}

// parseShape detects and decodes one of the three argument shapes: JSON
// object, key=value pairs, or a single positional value.
func parseShape(residual string) (map[string]string, error) {
	residual = strings.TrimSpace(residual)
	out := map[string]string{}
	if residual == "" {
		return out, nil
	}

	if strings.HasPrefix(residual, "{") {
		var generic map[string]any
		if err := json.Unmarshal([]byte(residual), &generic); err != nil {
			return nil, err
		}
		for k, v := range generic {
			out[k] = toText(v)
		}
		return out, nil
	}

	words := splitRespectingQuotes(residual)
	matchedAny := false
	for _, w := range words {
		if m := kvRe.FindStringSubmatch(w); m != nil {
			out[m[1]] = unquote(m[2])
			matchedAny = true
		}
	}
	if matchedAny {
		return out, nil
	}

	out["__positional__"] = unquote(residual)
	return out, nil
}

func toText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// splitRespectingQuotes is a small word splitter tolerant of quoted values
// inside key=value pairs (e.g. `language="Rust style"`).
func splitRespectingQuotes(s string) []string {
	var out []string
	var cur strings.Builder
	inQuote := rune(0)
	for _, r := range s {
		switch {
		case inQuote != 0:
			cur.WriteRune(r)
			if r == inQuote {
				inQuote = 0
			}
		case r == '\'' || r == '"':
			inQuote = r
			cur.WriteRune(r)
		case r == ' ' || r == '\t':
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func applyMapping(raw map[string]string, mapping map[string]string) map[string]string {
	mapped := make(map[string]string, len(raw))
	for k, v := range raw {
		if dest, ok := mapping[k]; ok {
			mapped[dest] = v
		} else {
			mapped[k] = v
		}
	}
	return mapped
}

func fromChainContext(name string, ctx *ChainContext) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if name == "previous_step_output" {
		return ctx.PreviousStepOutput, ctx.PreviousStepOutput != ""
	}
	if n, ok := stepResultIndex(name); ok {
		v, exists := ctx.StepResults[n]
		return v, exists
	}
	return "", false
}

var stepResultRe = regexp.MustCompile(`^step(\d+)_result$`)

func stepResultIndex(name string) (int, bool) {
	m := stepResultRe.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n := 0
	for _, c := range m[1] {
		n = n*10 + int(c-'0')
	}
	return n, true
}

func fromEnv(name string) (string, bool) {
	for _, allowed := range EnvWhitelist {
		if strings.EqualFold(allowed, name) {
			v, ok := os.LookupEnv(allowed)
			return v, ok
		}
	}
	return "", false
}
