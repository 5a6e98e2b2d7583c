// Package logging wraps go.uber.org/zap the way cmd/nerd/main.go does in
// the codenerd example: a single production logger, switched to debug level
// by a flag, passed down rather than constructed ad hoc per package.
package logging

import "go.uber.org/zap"

// New builds the process-wide logger. debug=true lowers the level and
// switches to a development encoder (human-readable, stack traces on warn+).
func New(debug bool) (*zap.Logger, error) {
	if debug {
		cfg := zap.NewDevelopmentConfig()
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	return cfg.Build()
}

// Stage returns a child logger scoped to one pipeline stage, attaching the
// chain id when known so a session's log lines can be grepped together.
func Stage(base *zap.Logger, stage, chainID string) *zap.Logger {
	fields := []zap.Field{zap.String("stage", stage)}
	if chainID != "" {
		fields = append(fields, zap.String("chain_id", chainID))
	}
	return base.With(fields...)
}
