package injection

import "testing"

func TestResolve_CleanSuppressesAll(t *testing.T) {
	d := Resolve(TypeSystemPrompt, ModClean, Sources{}, Env{Step: 1})
	if d.ShouldRun {
		t.Errorf("decision = %+v", d)
	}
}

func TestResolve_LeanSuppressesSystemAndStyleNotGate(t *testing.T) {
	d := Resolve(TypeSystemPrompt, ModLean, Sources{}, Env{Step: 1})
	if d.ShouldRun {
		t.Errorf("system prompt should be suppressed: %+v", d)
	}
	d2 := Resolve(TypeGateGuidance, ModLean, Sources{}, Env{Step: 1})
	if !d2.ShouldRun {
		t.Errorf("gate guidance should be unaffected by %%lean: %+v", d2)
	}
}

func TestResolve_RuntimeOverrideBeatsRules(t *testing.T) {
	off := false
	stepRule := &Rule{Expr: "step == 1", Enabled: true, Frequency: Frequency{Mode: "always"}}
	d := Resolve(TypeSystemPrompt, ModNone, Sources{RuntimeOverride: &off, StepRule: stepRule}, Env{Step: 1})
	if d.ShouldRun || d.Source != "runtime_override" {
		t.Errorf("decision = %+v", d)
	}
}

func TestResolve_StepRuleMatchesExpression(t *testing.T) {
	rule := &Rule{Expr: "parity == \"odd\"", Enabled: true, Frequency: Frequency{Mode: "always"}}
	d := Resolve(TypeGateGuidance, ModNone, Sources{StepRule: rule}, Env{Step: 3, Parity: "odd"})
	if !d.ShouldRun || d.Source != "step_rule" {
		t.Errorf("decision = %+v", d)
	}
}

func TestResolve_ChainGlobMatcher(t *testing.T) {
	rule := &Rule{Expr: `chainGlob(chainID, "release-*")`, Enabled: true, Frequency: Frequency{Mode: "always"}}
	d := Resolve(TypeGateGuidance, ModNone, Sources{ChainRule: rule}, Env{ChainID: "release-42", Step: 1})
	if !d.ShouldRun {
		t.Errorf("decision = %+v", d)
	}
}

func TestResolve_SystemDefaultStyleIsFirstOnly(t *testing.T) {
	d := Resolve(TypeStyleGuidance, ModNone, Sources{}, Env{Step: 1})
	if !d.ShouldRun {
		t.Fatalf("step 1 should run: %+v", d)
	}
	d2 := Resolve(TypeStyleGuidance, ModNone, Sources{}, Env{Step: 2})
	if d2.ShouldRun {
		t.Errorf("step 2 should not run for first-only: %+v", d2)
	}
}

func TestFrequency_Every(t *testing.T) {
	f := Frequency{Mode: "every", Interval: 3}
	want := map[int]bool{1: true, 2: false, 3: false, 4: true}
	for step, expect := range want {
		if got := f.Matches(step); got != expect {
			t.Errorf("step %d: got %v, want %v", step, got, expect)
		}
	}
}

func TestCache_MemoizesPerType(t *testing.T) {
	c := NewCache()
	calls := 0
	compute := func() Decision { calls++; return Decision{ShouldRun: true} }
	c.Get(TypeSystemPrompt, compute)
	c.Get(TypeSystemPrompt, compute)
	c.Get(TypeGateGuidance, compute)
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	c.Invalidate()
	c.Get(TypeSystemPrompt, compute)
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}
