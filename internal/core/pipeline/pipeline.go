// Package pipeline implements C8: the fixed eight-stage orchestration that
// turns one Execute request into one Response, threading a single
// *core.ExecutionContext through normalize, parse, resolve, plan, enhance,
// execute, response-capture, and finalize.
//
// Grounded on pkg/kernel/engine/engine.go's executeSteps/executeStep
// (sequential dispatch over a fixed step list, per-step timing, a result
// type that either continues or terminates the run) generalized from a
// runbook's variable-length, branching step list to this domain's fixed,
// unconditional eight-stage contract.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prompt-forge/gert-prompt/internal/core"
	"github.com/prompt-forge/gert-prompt/internal/core/gate"
	"github.com/prompt-forge/gert-prompt/internal/core/metrics"
	"github.com/prompt-forge/gert-prompt/internal/core/parser"
	"github.com/prompt-forge/gert-prompt/internal/core/registry"
	"github.com/prompt-forge/gert-prompt/internal/core/runtimeconfig"
	"github.com/prompt-forge/gert-prompt/internal/core/session"
)

// Deps bundles the collaborators every stage needs. One Deps is built at
// process startup and shared by every request; nothing in it is request-
// scoped (that lives in reqState).
type Deps struct {
	Registry            *registry.Registry
	Sessions            *session.Store
	Runtime             *runtimeconfig.Store
	Log                 *zap.Logger
	DefaultMaxAttempts  int
	VerifyMaxTimeoutSec int
	SoftTimeout         time.Duration // per-stage soft timeout (§5); 0 disables the warning
	IdleExpiry          time.Duration
}

// reqState is the per-request scratch space the eight stages mutate in
// place. ec is the cross-component ExecutionContext (core.ExecutionContext)
// that C3-C7/C9/C10 consume directly; the fields alongside it are pipeline-
// internal bookkeeping that those components have no need to see.
type reqState struct {
	ec          *core.ExecutionContext
	req         core.Request
	ops         parser.OperatorList
	resume      bool // true ⇒ classified as resume-existing-chain
	resp        *core.Response
	now         time.Time
	plan        gate.Plan
}

// stage is one named pipeline phase (spec §4.8). A non-nil error from fn
// terminates the run unless it is a non-terminal *core.Error (§7), in which
// case it's recorded as a diagnostic and the orchestrator continues.
type stage struct {
	name string
	fn   func(o *Orchestrator, ctx context.Context, st *reqState) error
}

// Orchestrator runs the fixed eight-stage pipeline over one request at a time.
type Orchestrator struct {
	deps   Deps
	stages []stage
}

// New constructs an orchestrator wired to deps, with the canonical stage
// order (§4.8): normalize, parse, resolve, plan, enhance, execute,
// response-capture, finalize.
func New(deps Deps) *Orchestrator {
	return &Orchestrator{
		deps: deps,
		stages: []stage{
			{"normalize", (*Orchestrator).normalize},
			{"parse", (*Orchestrator).parse},
			{"resolve", (*Orchestrator).resolve},
			{"plan", (*Orchestrator).plan},
			{"enhance", (*Orchestrator).enhance},
			{"execute", (*Orchestrator).execute},
			{"response-capture", (*Orchestrator).responseCapture},
			{"finalize", (*Orchestrator).finalize},
		},
	}
}

// Handle runs req through the full pipeline and always returns a
// well-formed *core.Response (never nil), per §7's user-visible failure
// contract.
func (o *Orchestrator) Handle(ctx context.Context, req core.Request) *core.Response {
	ec := core.NewExecutionContext("req-" + uuid.New().String()[:8])
	st := &reqState{ec: ec, req: req, now: time.Now()}

	for _, s := range o.stages {
		if ctx.Err() != nil {
			return o.cancelledResponse(st)
		}

		start := time.Now()
		err := s.fn(o, ctx, st)
		elapsed := time.Since(start)
		metrics.RecordStage(s.name, elapsed)
		if o.deps.SoftTimeout > 0 && elapsed > o.deps.SoftTimeout {
			ec.Diag.Append(core.LevelWarning, s.name,
				fmt.Sprintf("stage exceeded soft timeout: %s > %s", elapsed, o.deps.SoftTimeout), nil)
		}

		if err != nil {
			if resp := o.handleStageError(s.name, err, st); resp != nil {
				return resp
			}
			// Non-terminal: already recorded, keep going.
		}

		if st.resp != nil {
			break // an early-exit stage already produced a terminal response
		}
	}

	if st.resp == nil {
		// Every stage ran clean without building a response; finalize
		// should always have set one. Guard against a latent bug rather
		// than return nil to the caller.
		st.resp = &core.Response{IsError: true, ErrorCode: string(core.ErrInternal), ErrorReason: "pipeline completed without a response"}
	}
	metrics.RecordRequest(requestOutcome(st.resp))
	return st.resp
}

func requestOutcome(resp *core.Response) string {
	switch {
	case resp.ErrorCode == string(core.ErrCancelled):
		return "cancelled"
	case resp.IsError:
		return "error"
	default:
		return "ok"
	}
}

// handleStageError classifies err (wrapping it as InternalError if it
// isn't already a *core.Error), records it, and returns a terminal
// response if the kind is non-recoverable. Returns nil to mean "continue."
func (o *Orchestrator) handleStageError(stageName string, err error, st *reqState) *core.Response {
	var cerr *core.Error
	if !errors.As(err, &cerr) {
		cerr = core.NewError(core.ErrInternal, "internal_error", err.Error(), err)
	}
	st.ec.Diag.AppendError(stageName, cerr.Message, cerr.Code, nil)
	if o.deps.Log != nil {
		o.deps.Log.Warn("pipeline stage error",
			zap.String("stage", stageName), zap.String("kind", string(cerr.Kind)), zap.Error(cerr))
	}
	if !cerr.Terminal() {
		return nil
	}
	return o.errorResponse(st, cerr)
}

func (o *Orchestrator) errorResponse(st *reqState, cerr *core.Error) *core.Response {
	resp := &core.Response{
		IsError:     true,
		ErrorCode:   string(cerr.Kind),
		ErrorReason: cerr.Message,
		Diagnostics: st.ec.Diag.Entries("", ""),
	}
	if st.ec.Session != nil {
		resp.ChainID = st.ec.Session.ChainID
		resp.CurrentStep = st.ec.Session.CurrentStep
	} else {
		resp.ChainID = st.req.ChainID
	}
	st.resp = resp
	return resp
}

func (o *Orchestrator) cancelledResponse(st *reqState) *core.Response {
	st.ec.Diag.Append(core.LevelInfo, "cancelled", "request cancelled by transport", nil)
	return &core.Response{IsError: false, ErrorCode: string(core.ErrCancelled)}
}
