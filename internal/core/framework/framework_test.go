package framework

import "testing"

type fakeLookup map[string]bool

func (f fakeLookup) HasMethodology(id string) bool { return f[id] }

func TestResolve_CleanSuppressesAll(t *testing.T) {
	d := Resolve(ModClean, "careful", "judged", "global", fakeLookup{"careful": true, "judged": true, "global": true})
	if d.MethodologyID != "" || d.Source != "modifier_suppressed" {
		t.Errorf("decision = %+v", d)
	}
}

func TestResolve_OperatorWins(t *testing.T) {
	d := Resolve(ModNone, "CAREFUL", "", "other", fakeLookup{"careful": true, "other": true})
	if d.MethodologyID != "careful" || d.Source != "operator" {
		t.Errorf("decision = %+v", d)
	}
}

func TestResolve_UnknownOperatorFallsThrough(t *testing.T) {
	d := Resolve(ModNone, "bogus", "", "global", fakeLookup{"global": true})
	if d.MethodologyID != "global" || d.Source != "global_active" {
		t.Errorf("decision = %+v", d)
	}
}

func TestResolve_DefaultsToNone(t *testing.T) {
	d := Resolve(ModNone, "", "", "", fakeLookup{})
	if d.MethodologyID != "" || d.Source != "system_default" {
		t.Errorf("decision = %+v", d)
	}
}

func TestCache_MemoizesAndInvalidates(t *testing.T) {
	var c Cache
	calls := 0
	compute := func() Decision { calls++; return Decision{MethodologyID: "x"} }
	c.Get(compute)
	c.Get(compute)
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	c.Invalidate()
	c.Get(compute)
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}
