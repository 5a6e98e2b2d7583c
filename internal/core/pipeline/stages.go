package pipeline

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/prompt-forge/gert-prompt/internal/core"
	"github.com/prompt-forge/gert-prompt/internal/core/args"
	"github.com/prompt-forge/gert-prompt/internal/core/framework"
	"github.com/prompt-forge/gert-prompt/internal/core/gate"
	"github.com/prompt-forge/gert-prompt/internal/core/injection"
	"github.com/prompt-forge/gert-prompt/internal/core/metrics"
	"github.com/prompt-forge/gert-prompt/internal/core/parser"
	"github.com/prompt-forge/gert-prompt/internal/core/render"
)

// ---------------------------------------------------------------------------
// normalize
// ---------------------------------------------------------------------------

func (o *Orchestrator) normalize(ctx context.Context, st *reqState) error {
	req := st.req
	req.Command = strings.TrimSpace(req.Command)
	req.ChainID = strings.TrimSpace(req.ChainID)
	req.UserResponse = strings.TrimSpace(req.UserResponse)
	req.GateVerdict = strings.TrimSpace(req.GateVerdict)

	if req.Command == "" && req.ChainID == "" {
		return core.NewError(core.ErrArgument, "missing_command_or_chain_id",
			"either command or chain_id must be present", nil)
	}
	if req.ChainID != "" && !core.ValidChainID(req.ChainID) {
		return core.NewError(core.ErrSession, "malformed_chain_id", "chain_id does not match required pattern", nil)
	}
	if req.ForceRestart && req.ChainID != "" && req.Command == "" {
		return core.NewError(core.ErrSession, "conflicting_restart", "force_restart requires a new command, not a bare chain_id", nil)
	}
	if !core.ValidExecutionMode(req.ExecutionMode) {
		return core.NewError(core.ErrArgument, "invalid_execution_mode", "execution_mode must be auto, single, or chain", nil)
	}
	if req.ExecutionMode == "" {
		req.ExecutionMode = "auto"
	}
	if !core.ValidGateScope(req.GateScope) {
		return core.NewError(core.ErrArgument, "invalid_gate_scope", "gate_scope must be execution, session, chain, or step", nil)
	}

	st.req = req
	st.resume = req.ChainID != "" && !req.ForceRestart && req.Command == ""

	st.ec.RawCommand = req.Command
	st.ec.ForceRestart = req.ForceRestart
	st.ec.ExecutionMode = req.ExecutionMode
	st.ec.UserAction = req.UserResponse

	switch {
	case req.GateVerdict != "":
		st.ec.IncomingVerdict = req.GateVerdict
		st.ec.VerdictSource = string(gate.SourceGateVerdict)
	case req.UserResponse != "":
		st.ec.IncomingVerdict = req.UserResponse
		st.ec.VerdictSource = string(gate.SourceUserReply)
	}
	return nil
}

// ---------------------------------------------------------------------------
// parse
// ---------------------------------------------------------------------------

func (o *Orchestrator) parse(ctx context.Context, st *reqState) error {
	if st.resume {
		return nil // a resume call carries no command text to parse
	}
	result, err := parser.Parse(st.ec.RawCommand, o.deps.Registry)
	if err != nil {
		return core.NewError(core.ErrParse, "command_parse_error", err.Error(), err)
	}
	st.ops = result.Operators
	st.ec.ResidualArgs = result.Residual
	return nil
}

// ---------------------------------------------------------------------------
// resolve
// ---------------------------------------------------------------------------

func (o *Orchestrator) resolve(ctx context.Context, st *reqState) error {
	ec := st.ec

	if st.resume {
		sess, ok := o.deps.Sessions.Peek(st.req.ChainID)
		if !ok {
			return core.NewError(core.ErrSession, "unknown_chain_id", "no session for chain_id "+st.req.ChainID, nil)
		}
		ec.Session = sess
		ec.IsNewSession = false
		if p, ok := o.deps.Registry.Prompt(sess.PromptID); ok {
			ec.Prompts = []*core.Prompt{p}
		}
		return nil
	}

	var primary *core.Prompt
	for _, op := range st.ops {
		switch op.Kind {
		case parser.OpPromptRef:
			p, ok := o.deps.Registry.Prompt(op.PromptID)
			if !ok {
				return core.NewError(core.ErrUnknownPrompt, "unknown_prompt", "no prompt registered for id "+op.PromptID, nil)
			}
			ec.Prompts = append(ec.Prompts, p)
			if primary == nil {
				primary = p
			}
			residual := op.ArgText
			chainCtx := &args.ChainContext{}
			resolved, aerr := args.Resolve(p, residual, nil, chainCtx)
			if aerr != nil {
				return aerr
			}
			if primary == p {
				ec.Args = resolved
			}
		case parser.OpGate:
			if op.GateIsID {
				if g, ok := o.deps.Registry.Gate(op.GateText); ok {
					ec.GateAcc.Add(g, core.SourceInlineOperator)
				}
			} else {
				ec.GateAcc.Add(&core.Gate{ID: "inline-" + uuid.New().String()[:8], Name: "inline gate", Type: core.GateGuidance,
					Severity: core.SeverityMedium, Criteria: []string{op.GateText}}, core.SourceInlineOperator)
			}
		case parser.OpVerifyGate:
			ec.GateAcc.Add(&core.Gate{
				ID: "verify-" + uuid.New().String()[:8], Name: "inline verification", Type: core.GateVerification,
				Severity: core.SeverityHigh, Criteria: []string{op.Verify.Command},
				VerifyCommand: op.Verify.Command, VerifyTimeout: op.Verify.Timeout,
				VerifyMax: op.Verify.Max, VerifyLoop: op.Verify.Loop,
			}, core.SourceInlineOperator)
		}
	}

	if primary == nil {
		return core.NewError(core.ErrArgument, "no_prompt_reference", "command did not reference any prompt", nil)
	}

	for _, id := range st.req.Gates {
		if g, ok := o.deps.Registry.Gate(id); ok {
			ec.GateAcc.Add(g, core.SourceClientSelected)
		}
	}
	for _, g := range st.req.TemporaryGates {
		ec.GateAcc.Add(g, core.SourceRequestTemporary)
	}

	return nil
}

// ---------------------------------------------------------------------------
// plan
// ---------------------------------------------------------------------------

func (o *Orchestrator) plan(ctx context.Context, st *reqState) error {
	ec := st.ec
	if st.resume {
		return nil // nothing to re-plan; the original plan's gate ids live on Session.Pending
	}

	var operatorFramework, operatorStyle, modRaw string
	for _, op := range st.ops {
		switch op.Kind {
		case parser.OpFramework:
			operatorFramework = op.Name
		case parser.OpStyle:
			operatorStyle = op.Name
		case parser.OpModifier:
			modRaw = op.Name
		}
	}
	mod := framework.Modifier(modRaw)
	injMod := injection.Modifier(modRaw)

	decision := framework.Resolve(mod, operatorFramework, "", o.deps.Runtime.ActiveMethodology(), o.deps.Registry)
	if decision.MethodologyID != "" {
		if m, ok := o.deps.Registry.Methodology(decision.MethodologyID); ok {
			ec.Methodology = m
		}
	}

	env := injection.Env{Step: 1, Parity: "odd", Position: "first", ChainID: st.req.ChainID}
	for _, t := range []injection.Type{injection.TypeSystemPrompt, injection.TypeGateGuidance, injection.TypeStyleGuidance} {
		src := injection.Sources{RuntimeOverride: o.deps.Runtime.InjectionOverride(t, st.now)}
		d := injection.Resolve(t, injMod, src, env)
		ec.Injections[string(t)] = core.InjectionDecision{Enabled: d.Enabled, Frequency: d.Frequency.Mode, Target: "both"}
	}

	if operatorStyle != "" {
		// Style selection is recorded in a separate "__style_name__" map
		// entry whose Frequency field carries the operator's style name; the
		// enhance stage reads that name and looks the style up in the registry.
		ec.Injections["__style_name__"] = core.InjectionDecision{Frequency: operatorStyle}
	}

	st.plan = gate.BuildPlan(gatesOf(ec.GateAcc.Gates()), o.deps.DefaultMaxAttempts)
	return nil
}

func gatesOf(contribs []core.GateContribution) []*core.Gate {
	out := make([]*core.Gate, 0, len(contribs))
	for _, c := range contribs {
		out = append(out, c.Gate)
	}
	return out
}

func strictestEnforcement(gates []*core.Gate) core.EnforcementMode {
	mode := core.EnforceInformational
	for _, g := range gates {
		switch g.ResolvedEnforcement() {
		case core.EnforceBlocking:
			return core.EnforceBlocking
		case core.EnforceAdvisory:
			mode = core.EnforceAdvisory
		}
	}
	return mode
}

// ---------------------------------------------------------------------------
// enhance
// ---------------------------------------------------------------------------

func (o *Orchestrator) enhance(ctx context.Context, st *reqState) error {
	if st.resume {
		return nil
	}
	ec := st.ec
	primary := ec.Prompts[0]

	tmpl, args2 := o.stepTemplate(ec, primary, 1)
	body := render.Render(tmpl, render.ScopeFor(args2, nil), ec.Diag, "enhance")

	var blocks []string
	if ec.Methodology != nil && ec.Injections[string(injection.TypeSystemPrompt)].Enabled {
		blocks = append(blocks, render.Render(ec.Methodology.SystemPromptGuidance, render.ScopeFor(args2, nil), ec.Diag, "enhance"))
	}
	if ec.Injections[string(injection.TypeGateGuidance)].Enabled {
		for _, c := range ec.GateAcc.Gates() {
			if c.Gate.Guidance != "" {
				blocks = append(blocks, c.Gate.Guidance)
			}
		}
	}
	if styleName := ec.Injections["__style_name__"].Frequency; styleName != "" && ec.Injections[string(injection.TypeStyleGuidance)].Enabled {
		if s, ok := o.deps.Registry.Style(strings.ToLower(styleName)); ok {
			blocks = append(blocks, s.Guidance)
		}
	}

	rendered := body
	if len(blocks) > 0 {
		rendered = strings.Join(append([]string{body}, blocks...), "\n\n")
	}
	ec.RenderedPrompt = rendered
	return nil
}

// stepTemplate resolves the raw (pre-render) template text and argument map
// for step N (1-indexed) of prompt p. Called from enhance, before execute
// has created/loaded the session, so ec.Session may still be nil.
func (o *Orchestrator) stepTemplate(ec *core.ExecutionContext, p *core.Prompt, stepN int) (string, map[string]string) {
	if !p.IsChain() {
		return p.UserMessageTemplate, ec.Args
	}
	step := p.Chain[stepN-1]
	if !step.Referenced() {
		return step.Instructions, ec.Args
	}
	ref, ok := o.deps.Registry.Prompt(step.PromptID)
	if !ok {
		return step.Instructions, ec.Args
	}
	mapping := map[string]string{}
	if step.Mapping != nil {
		mapping = step.Mapping.Inputs
	}
	var prevOutput string
	if ec.Session != nil {
		prevOutput = ec.Session.PreviousStepOutput()
	}
	resolved, err := args.Resolve(ref, "", mapping, &args.ChainContext{PreviousStepOutput: prevOutput})
	if err != nil {
		return ref.UserMessageTemplate, ec.Args
	}
	return ref.UserMessageTemplate, resolved
}

// ---------------------------------------------------------------------------
// execute
// ---------------------------------------------------------------------------

func (o *Orchestrator) execute(ctx context.Context, st *reqState) error {
	ec := st.ec
	if st.resume {
		return nil
	}

	chainID := st.req.ChainID
	if chainID == "" {
		chainID = "chain-" + uuid.New().String()[:8]
	}
	primary := ec.Prompts[0]

	sess, err := o.deps.Sessions.WithSession(chainID, func(existing *core.ChainSession) (*core.ChainSession, error) {
		s := &core.ChainSession{
			ChainID: chainID, Command: st.req.Command, PromptID: primary.ID,
			TotalSteps: primary.TotalSteps(), CurrentStep: 1,
			State: core.StateReadyForStep, StartTime: st.now, LastActivity: st.now,
			OriginalArgs: ec.Args,
		}
		s.RecordStep(1, ec.RenderedPrompt, true)
		if st.plan.VerdictRequired {
			s.State = core.StatePendingReview
			s.Pending = &core.PendingGateReview{
				PromptText: ec.RenderedPrompt, GateIDs: gateIDs(ec.GateAcc.Gates()),
				MaxAttempts: st.plan.RetryBudget, CreatedAt: st.now, RetryHints: st.plan.Criteria,
			}
		}
		return s, nil
	})
	if err != nil {
		return err
	}
	metrics.RecordSessionTransition(string(sess.State))
	ec.Session = sess
	ec.IsNewSession = true
	return nil
}

func gateIDs(contribs []core.GateContribution) []string {
	out := make([]string, 0, len(contribs))
	for _, c := range contribs {
		out = append(out, c.Gate.ID)
	}
	return out
}

// ---------------------------------------------------------------------------
// response-capture
// ---------------------------------------------------------------------------

func (o *Orchestrator) responseCapture(ctx context.Context, st *reqState) error {
	if !st.resume {
		return nil
	}
	ec := st.ec
	chainID := ec.Session.ChainID

	sess, err := o.deps.Sessions.WithSession(chainID, func(sess *core.ChainSession) (*core.ChainSession, error) {
		if sess == nil {
			return nil, core.NewError(core.ErrSession, "session_vanished", "session removed concurrently", nil)
		}
		sess.LastActivity = st.now

		switch sess.State {
		case core.StateAwaitingUserChoice:
			action, aerr := gate.ApplyUserAction(sess.Pending, gate.UserAction(ec.UserAction))
			if aerr != nil {
				return nil, aerr
			}
			switch action {
			case "retry":
				sess.State = core.StatePendingReview
				metrics.RecordSessionTransition(string(core.StatePendingReview))
			case "advance":
				advanceStep(sess, ec.IncomingVerdict)
			case "terminated":
				sess.State = core.StateTerminated
				metrics.RecordSessionTransition(string(core.StateTerminated))
			}
			return sess, nil

		case core.StatePendingReview:
			v, verr := gate.ParseVerdict(ec.IncomingVerdict, gate.VerdictSource(ec.VerdictSource))
			if verr != nil {
				ec.Diag.Append(core.LevelWarning, "response-capture", "unparseable gate verdict, remaining pending_review", nil)
				return sess, nil
			}
			outcome := gate.Apply(sess.Pending, v, o.pendingEnforcement(sess.Pending))
			metrics.RecordGateVerdict(string(outcome))
			switch outcome {
			case gate.OutcomeAdvance:
				advanceStep(sess, ec.IncomingVerdict)
			case gate.OutcomeRetry:
				// stays pending_review; AttemptCount already incremented by Apply
			case gate.OutcomeExhausted:
				sess.State = core.StateAwaitingUserChoice
				metrics.RecordSessionTransition(string(core.StateAwaitingUserChoice))
			}
			return sess, nil

		default: // ready_for_step: no gate was pending, the caller is just reporting the step's output
			advanceStep(sess, ec.IncomingVerdict)
			return sess, nil
		}
	})
	if err != nil {
		return err
	}
	ec.Session = sess
	return nil
}

// pendingEnforcement recomputes the strictest enforcement mode across a
// pending review's gate ids by looking them back up in the registry — the
// mode itself isn't persisted on PendingGateReview, only the ids are (§6.4
// keeps the envelope minimal), so a resume call reconstructs it instead of
// carrying a redundant field forward.
func (o *Orchestrator) pendingEnforcement(pending *core.PendingGateReview) core.EnforcementMode {
	var gates []*core.Gate
	for _, id := range pending.GateIDs {
		if g, ok := o.deps.Registry.Gate(id); ok {
			gates = append(gates, g)
		}
	}
	return strictestEnforcement(gates)
}

// advanceStep records the real output for the current step and moves the
// session to its next state per §4.7/§3.2.
func advanceStep(sess *core.ChainSession, output string) {
	sess.RecordStep(sess.CurrentStep, output, false)
	sess.Pending = nil
	if sess.CurrentStep >= sess.TotalSteps {
		sess.State = core.StateComplete
		metrics.RecordSessionTransition(string(core.StateComplete))
		return
	}
	sess.CurrentStep++
	sess.State = core.StateReadyForStep
	metrics.RecordSessionTransition(string(core.StateReadyForStep))
}

// ---------------------------------------------------------------------------
// finalize
// ---------------------------------------------------------------------------

func (o *Orchestrator) finalize(ctx context.Context, st *reqState) error {
	ec := st.ec
	resp := &core.Response{
		RenderedPrompt: ec.RenderedPrompt,
		Diagnostics:    ec.Diag.Entries("", ""),
	}
	if ec.Session != nil {
		resp.ChainID = ec.Session.ChainID
		resp.CurrentStep = ec.Session.CurrentStep
		resp.ProgressFooter = progressFooter(ec.Session)
		resp.Structured.ChainProgress = &core.ChainProgress{CurrentStep: ec.Session.CurrentStep, TotalSteps: ec.Session.TotalSteps}
		if ec.Session.Pending != nil {
			gv := &core.GateCheckResult{
				Passed:        false,
				RetryRequired: ec.Session.State == core.StatePendingReview,
				FailedGates:   ec.Session.Pending.GateIDs,
				RetryHints:    ec.Session.Pending.RetryHints,
			}
			resp.Structured.GateValidation = gv
		} else if st.resume {
			resp.Structured.GateValidation = &core.GateCheckResult{Passed: true}
		}
	}
	resp.IsError = ec.Diag.HasErrors()
	st.resp = resp
	return nil
}

func progressFooter(sess *core.ChainSession) string {
	return "Chain ID: " + sess.ChainID + " | Step " + itoa(sess.CurrentStep) + "/" + itoa(sess.TotalSteps) + " | " + string(sess.State)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	if neg {
		return "-" + string(b)
	}
	return string(b)
}
