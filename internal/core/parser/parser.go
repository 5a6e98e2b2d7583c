// Package parser implements C2: tokenizes a symbolic command string into an
// ordered OperatorList plus a residual argument suffix. Pure and restartable
// per spec §4.1 — no dependency on mutable state, only on a read-only
// Lookup snapshot of known prompt/methodology/style ids.
//
// The hand-rolled scanner mirrors the teacher's own small-DSL parsing style
// (schema.ParseNext's two-shape hand parse in pkg/kernel/schema/types.go) —
// nothing in the retrieved pack reaches for a parser-generator or combinator
// library for a DSL this size.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Lookup answers existence questions the parser needs to disambiguate
// @NAME / #style / >>id tokens, without importing the registry package
// directly (keeping parser a leaf dependency).
type Lookup interface {
	HasPrompt(id string) bool
	HasMethodology(id string) bool // id is already lower-cased by the caller
	HasStyle(id string) bool
}

// OperatorKind enumerates the operator token kinds recognized by §4.1.
type OperatorKind string

const (
	OpPromptRef  OperatorKind = "prompt_ref"
	OpChainArrow OperatorKind = "chain_arrow"
	OpRepeat     OperatorKind = "repeat"
	OpFramework  OperatorKind = "framework"
	OpGate       OperatorKind = "gate"
	OpVerifyGate OperatorKind = "verify_gate"
	OpModifier   OperatorKind = "modifier"
	OpStyle      OperatorKind = "style"
)

// VerifySpec is the parsed form of `:: verify:"cmd" [timeout:N] [loop:true] [max:N]`.
type VerifySpec struct {
	Command string
	Timeout int
	Loop    bool
	Max     int
}

// Operator is one token of the parsed command.
type Operator struct {
	Kind     OperatorKind
	PromptID string // OpPromptRef
	RepeatN  int    // OpRepeat
	Name     string // OpFramework / OpModifier / OpStyle
	GateText string // OpGate: free text (quoted) or a gate id (bare)
	GateIsID bool   // OpGate: true when GateText is an id reference, not free text
	Verify   *VerifySpec
	ArgText  string // words trailing this operator, bound to it (PromptRef only)
}

// OperatorList is the parser's primary output.
type OperatorList []Operator

// ParseResult is the full parser output: the operator stream plus the
// residual argument suffix (the tail bound to the last prompt reference).
type ParseResult struct {
	Operators OperatorList
	Residual  string
}

// ParseError reports command malformation per §4.1/§7.
type ParseError struct {
	Kind     string
	Position int
	Token    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error (%s) at position %d: %q", e.Kind, e.Position, e.Token)
}

var identifierRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Parse tokenizes and structures a command string. Deterministic and
// side-effect free: identical (input, lookup-snapshot) always yields an
// identical result (§8).
func Parse(input string, lookup Lookup) (*ParseResult, error) {
	tokens, err := scan(input)
	if err != nil {
		return nil, err
	}

	var ops OperatorList
	lastPromptRef := -1

	appendArg := func(word string) {
		if lastPromptRef < 0 {
			return
		}
		if ops[lastPromptRef].ArgText == "" {
			ops[lastPromptRef].ArgText = word
		} else {
			ops[lastPromptRef].ArgText += " " + word
		}
	}

	i := 0
	for i < len(tokens) {
		tok := tokens[i]
		raw := tok.Raw

		switch {
		case !tok.Quoted && raw == "-->":
			ops = append(ops, Operator{Kind: OpChainArrow})
			i++

		case !tok.Quoted && strings.HasPrefix(raw, ">>"):
			id := raw[2:]
			if !identifierRe.MatchString(id) {
				return nil, &ParseError{Kind: "malformed_prompt_ref", Position: i, Token: raw}
			}
			if !lookup.HasPrompt(id) {
				return nil, &ParseError{Kind: "unknown_prompt", Position: i, Token: id}
			}
			ops = append(ops, Operator{Kind: OpPromptRef, PromptID: id})
			lastPromptRef = len(ops) - 1
			i++

		case !tok.Quoted && raw == "*":
			if i+1 >= len(tokens) || tokens[i+1].Quoted {
				return nil, &ParseError{Kind: "malformed_repeat", Position: i, Token: raw}
			}
			n, convErr := strconv.Atoi(tokens[i+1].Raw)
			if convErr != nil || n < 2 || n > 20 {
				return nil, &ParseError{Kind: "malformed_repeat", Position: i, Token: tokens[i+1].Raw}
			}
			ops = append(ops, Operator{Kind: OpRepeat, RepeatN: n})
			i += 2

		case !tok.Quoted && len(raw) > 1 && raw[0] == '@':
			name := raw[1:]
			if lookup.HasMethodology(strings.ToLower(name)) {
				ops = append(ops, Operator{Kind: OpFramework, Name: name})
			} else {
				appendArg(raw)
			}
			i++

		case !tok.Quoted && len(raw) > 1 && raw[0] == '#':
			name := raw[1:]
			if lookup.HasStyle(strings.ToLower(name)) {
				ops = append(ops, Operator{Kind: OpStyle, Name: name})
			} else {
				appendArg(raw)
			}
			i++

		case !tok.Quoted && raw == "::":
			consumed, op, gateErr := parseGate(tokens, i)
			if gateErr != nil {
				return nil, gateErr
			}
			ops = append(ops, op)
			i += consumed

		case !tok.Quoted && len(raw) > 1 && raw[0] == '%':
			ops = append(ops, Operator{Kind: OpModifier, Name: raw[1:]})
			i++

		case !tok.Quoted && i > 0 && tokens[i-1].Raw == "-->" && !tokens[i-1].Quoted &&
			!strings.ContainsAny(raw, "=\"'") && identifierRe.MatchString(raw):
			// Sugar observed in spec §8 scenario 2: a bareword immediately
			// after `-->` with no `>>` prefix is an implicit prompt reference.
			if !lookup.HasPrompt(raw) {
				return nil, &ParseError{Kind: "unknown_prompt", Position: i, Token: raw}
			}
			ops = append(ops, Operator{Kind: OpPromptRef, PromptID: raw})
			lastPromptRef = len(ops) - 1
			i++

		default:
			word := raw
			if tok.Quoted {
				word = stripQuotes(raw)
			}
			appendArg(word)
			i++
		}
	}

	residual := ""
	if lastPromptRef >= 0 {
		residual = ops[lastPromptRef].ArgText
	}
	return &ParseResult{Operators: ops, Residual: residual}, nil
}

var verifyRe = regexp.MustCompile(`(?i)^verify:"(.*)"$`)
var verifyModRe = regexp.MustCompile(`(?i)^(timeout|loop|max):(\S+)$`)

// parseGate parses the operator(s) starting at tokens[i] == "::" and returns
// how many tokens were consumed plus the resulting Operator.
func parseGate(tokens []token, i int) (int, Operator, error) {
	if i+1 >= len(tokens) {
		return 0, Operator{}, &ParseError{Kind: "malformed_gate", Position: i, Token: "::"}
	}
	next := tokens[i+1]

	if !next.Quoted && verifyRe.MatchString(next.Raw) {
		m := verifyRe.FindStringSubmatch(next.Raw)
		spec := &VerifySpec{Command: m[1]}
		j := i + 2
		for j < len(tokens) && !tokens[j].Quoted && verifyModRe.MatchString(tokens[j].Raw) {
			mm := verifyModRe.FindStringSubmatch(tokens[j].Raw)
			switch strings.ToLower(mm[1]) {
			case "timeout":
				n, err := strconv.Atoi(mm[2])
				if err != nil {
					return 0, Operator{}, &ParseError{Kind: "malformed_verify", Position: j, Token: tokens[j].Raw}
				}
				spec.Timeout = n
			case "loop":
				spec.Loop = strings.EqualFold(mm[2], "true")
			case "max":
				n, err := strconv.Atoi(mm[2])
				if err != nil {
					return 0, Operator{}, &ParseError{Kind: "malformed_verify", Position: j, Token: tokens[j].Raw}
				}
				spec.Max = n
			}
			j++
		}
		return j - i, Operator{Kind: OpVerifyGate, Verify: spec}, nil
	}

	if next.Quoted {
		return 2, Operator{Kind: OpGate, GateText: stripQuotes(next.Raw), GateIsID: false}, nil
	}
	return 2, Operator{Kind: OpGate, GateText: next.Raw, GateIsID: true}, nil
}

func stripQuotes(raw string) string {
	if len(raw) >= 2 {
		first, last := raw[0], raw[len(raw)-1]
		if (first == '\'' || first == '"') && first == last {
			return raw[1 : len(raw)-1]
		}
	}
	return raw
}

// Serialize reconstructs a command string from an operator list, the
// inverse used by the round-trip property in §8.
func Serialize(ops OperatorList) string {
	var b strings.Builder
	write := func(s string) {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s)
	}
	for _, op := range ops {
		switch op.Kind {
		case OpPromptRef:
			write(">>" + op.PromptID)
			if op.ArgText != "" {
				write(op.ArgText)
			}
		case OpChainArrow:
			write("-->")
		case OpRepeat:
			write("* " + strconv.Itoa(op.RepeatN))
		case OpFramework:
			write("@" + op.Name)
		case OpStyle:
			write("#" + op.Name)
		case OpModifier:
			write("%" + op.Name)
		case OpGate:
			if op.GateIsID {
				write(":: " + op.GateText)
			} else {
				write(":: '" + op.GateText + "'")
			}
		case OpVerifyGate:
			write(fmt.Sprintf(":: verify:%q", op.Verify.Command))
			if op.Verify.Timeout != 0 {
				write(fmt.Sprintf("timeout:%d", op.Verify.Timeout))
			}
			if op.Verify.Loop {
				write("loop:true")
			}
			if op.Verify.Max != 0 {
				write(fmt.Sprintf("max:%d", op.Verify.Max))
			}
		}
	}
	return b.String()
}
