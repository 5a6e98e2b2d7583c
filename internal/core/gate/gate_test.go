package gate

import (
	"testing"

	"github.com/prompt-forge/gert-prompt/internal/core"
)

func TestParseVerdict_PrimaryPattern(t *testing.T) {
	v, err := ParseVerdict("GATE_REVIEW: PASS - all criteria satisfied", SourceUserReply)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.Passed || v.Class != ClassPrimary || v.Rationale != "all criteria satisfied" {
		t.Errorf("verdict = %+v", v)
	}
}

func TestParseVerdict_FallbackRejectedFromUserReply(t *testing.T) {
	_, err := ParseVerdict("PASS - looks good", SourceUserReply)
	if err == nil {
		t.Fatal("expected error, fallback pattern must not be accepted from user_reply")
	}
}

func TestParseVerdict_FallbackAcceptedFromGateVerdict(t *testing.T) {
	v, err := ParseVerdict("FAIL - missing citation", SourceGateVerdict)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Passed || v.Class != ClassFallback {
		t.Errorf("verdict = %+v", v)
	}
}

func TestParseVerdict_EmptyRationaleRejected(t *testing.T) {
	_, err := ParseVerdict("GATE_REVIEW: PASS - ", SourceUserReply)
	if err == nil {
		t.Fatal("expected error for empty rationale")
	}
}

func TestParseVerdict_CaseInsensitive(t *testing.T) {
	v, err := ParseVerdict("gate_review: fail : needs work", SourceUserReply)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Passed || v.Class != ClassHigh {
		t.Errorf("verdict = %+v", v)
	}
}

func TestApply_BlockingFailRetriesUntilExhausted(t *testing.T) {
	pending := &core.PendingGateReview{MaxAttempts: 2}
	v := &Verdict{Passed: false, Rationale: "no"}

	out := Apply(pending, v, core.EnforceBlocking)
	if out != OutcomeRetry || pending.AttemptCount != 1 {
		t.Fatalf("first fail: out=%v attempts=%d", out, pending.AttemptCount)
	}

	out = Apply(pending, v, core.EnforceBlocking)
	if out != OutcomeExhausted || pending.AttemptCount != 2 {
		t.Fatalf("second fail: out=%v attempts=%d", out, pending.AttemptCount)
	}
}

func TestApply_AdvisoryFailAdvances(t *testing.T) {
	pending := &core.PendingGateReview{MaxAttempts: 3}
	v := &Verdict{Passed: false, Rationale: "minor issue"}
	if out := Apply(pending, v, core.EnforceAdvisory); out != OutcomeAdvance {
		t.Errorf("out = %v", out)
	}
}

func TestApply_PassAlwaysAdvances(t *testing.T) {
	pending := &core.PendingGateReview{MaxAttempts: 1, AttemptCount: 0}
	v := &Verdict{Passed: true, Rationale: "good"}
	if out := Apply(pending, v, core.EnforceBlocking); out != OutcomeAdvance {
		t.Errorf("out = %v", out)
	}
}

func TestApplyUserAction_RetryResetsAttempts(t *testing.T) {
	pending := &core.PendingGateReview{AttemptCount: 5}
	out, err := ApplyUserAction(pending, ActionRetry)
	if err != nil || out != "retry" || pending.AttemptCount != 0 {
		t.Fatalf("out=%v err=%v attempts=%d", out, err, pending.AttemptCount)
	}
}

func TestApplyUserAction_UnknownRejected(t *testing.T) {
	_, err := ApplyUserAction(&core.PendingGateReview{}, UserAction("bogus"))
	if err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestBuildPlan_BlockingWhenAnyGateBlocking(t *testing.T) {
	gates := []*core.Gate{
		{ID: "g1", Severity: core.SeverityLow, Criteria: []string{"be concise"}},
		{ID: "g2", Severity: core.SeverityCritical, Criteria: []string{"cite sources"}},
	}
	plan := BuildPlan(gates, 3)
	if !plan.VerdictRequired {
		t.Error("expected VerdictRequired = true")
	}
	if len(plan.Criteria) != 2 {
		t.Errorf("criteria = %v", plan.Criteria)
	}
}
