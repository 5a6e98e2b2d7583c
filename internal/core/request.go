package core

import "regexp"

// Request is the external-facing Execute call shape (spec §6.1). Either
// Command or ChainID must be set; the rest disambiguate a resume call from
// a fresh one and carry request-scoped gate/session overrides.
type Request struct {
	Command        string
	ChainID        string
	UserResponse   string
	GateVerdict    string
	ForceRestart   bool
	ExecutionMode  string // "auto" | "single" | "chain"; "" treated as "auto"
	Gates          []string
	TemporaryGates []*Gate
	GateScope      string // "execution" | "session" | "chain" | "step"
}

var chainIDPattern = regexp.MustCompile(`^chain-[a-z0-9][a-z0-9-]*$`)

// ValidChainID reports whether id matches the required chain-id grammar.
func ValidChainID(id string) bool { return chainIDPattern.MatchString(id) }

var executionModes = map[string]bool{"auto": true, "single": true, "chain": true}

// ValidExecutionMode reports whether mode is one of the enumerated values,
// with "" treated as valid (it defaults to "auto" downstream).
func ValidExecutionMode(mode string) bool {
	return mode == "" || executionModes[mode]
}

var gateScopes = map[string]bool{"execution": true, "session": true, "chain": true, "step": true}

// ValidGateScope reports whether scope is one of the enumerated values,
// with "" treated as valid (no scoped override requested).
func ValidGateScope(scope string) bool {
	return scope == "" || gateScopes[scope]
}
