package prove

import (
	"testing"
	"time"

	"github.com/policyproof/policyproof/internal/domain/policy"
	"github.com/policyproof/policyproof/internal/domain/simulate"
	"github.com/policyproof/policyproof/internal/domain/trace"
)

func mkTrace(id string, isError bool, attrs map[string]trace.Value) trace.Trace {
	return trace.New(id, time.Second, nil, nil, nil, isError, attrs, 1)
}

func validFallbackPolicy(t *testing.T, budget int, keepErrors bool) policy.Policy {
	t.Helper()
	rules := []policy.Rule{
		{Name: "fallback", Match: policy.Tautology{}, Action: policy.Drop(), Priority: 0},
	}
	if keepErrors {
		rules = append([]policy.Rule{
			{Name: "keep-errors", Match: policy.FieldCompare{Field: "error", Op: policy.OpEq, Value: trace.Bool(true)}, Action: policy.Keep(), Priority: 10},
		}, rules...)
	}
	p, err := policy.New(1, "p", budget, rules)
	if err != nil {
		t.Fatalf("policy.New: %v", err)
	}
	return p
}

func TestProve_ApprovesCleanPolicy(t *testing.T) {
	t.Parallel()

	p := validFallbackPolicy(t, 100, true)
	corpus := trace.NewCorpus([]trace.Trace{mkTrace("t1", true, nil), mkTrace("t2", false, nil)})
	sim := simulate.Simulate(p, corpus)

	verdict := Prove(p, corpus, sim, Options{})
	if verdict.Status == Rejected {
		t.Fatalf("expected non-rejected verdict, got rejected: %+v", verdict.Checks)
	}
}

func TestProve_RejectsMissingFallback(t *testing.T) {
	t.Parallel()

	p, err := policy.New(1, "p", 100, []policy.Rule{
		{Name: "r1", Match: policy.FieldCompare{Field: "x", Op: policy.OpExists}, Action: policy.Keep(), Priority: 0},
	})
	if err != nil {
		t.Fatalf("policy.New: %v", err)
	}
	corpus := trace.NewCorpus(nil)
	sim := simulate.Simulate(p, corpus)

	verdict := Prove(p, corpus, sim, Options{})
	if verdict.Status != Rejected {
		t.Errorf("Status = %v, want Rejected", verdict.Status)
	}
}

func TestProve_RejectsFallbackNotAtLowestPriority(t *testing.T) {
	t.Parallel()

	p, err := policy.New(1, "p", 100, []policy.Rule{
		{Name: "fallback", Match: policy.Tautology{}, Action: policy.Drop(), Priority: 10},
		{Name: "r1", Match: policy.FieldCompare{Field: "x", Op: policy.OpExists}, Action: policy.Keep(), Priority: 0},
	})
	if err != nil {
		t.Fatalf("policy.New: %v", err)
	}
	corpus := trace.NewCorpus(nil)
	sim := simulate.Simulate(p, corpus)

	verdict := Prove(p, corpus, sim, Options{})
	if verdict.Status != Rejected {
		t.Errorf("Status = %v, want Rejected", verdict.Status)
	}
}

func TestProve_RejectsDroppedErrorTrace(t *testing.T) {
	t.Parallel()

	p := validFallbackPolicy(t, 100, false)
	corpus := trace.NewCorpus([]trace.Trace{mkTrace("t1", true, nil)})
	sim := simulate.Simulate(p, corpus)

	verdict := Prove(p, corpus, sim, Options{})
	if verdict.Status != Rejected {
		t.Errorf("Status = %v, want Rejected", verdict.Status)
	}
	found := false
	for _, c := range verdict.Checks {
		if c.ID == "error-coverage" && !c.Passed {
			found = true
		}
	}
	if !found {
		t.Error("expected a failing error-coverage check")
	}
}

func TestProve_RejectsDroppedMustKeepTrace(t *testing.T) {
	t.Parallel()

	p := validFallbackPolicy(t, 100, false)
	corpus := trace.NewCorpus([]trace.Trace{
		mkTrace("t1", false, map[string]trace.Value{"must_keep": trace.Bool(true)}),
	})
	sim := simulate.Simulate(p, corpus)

	verdict := Prove(p, corpus, sim, Options{})
	if verdict.Status != Rejected {
		t.Errorf("Status = %v, want Rejected", verdict.Status)
	}
}

func TestProve_RejectsBudgetOverrun(t *testing.T) {
	t.Parallel()

	p, err := policy.New(1, "p", 1, []policy.Rule{
		{Name: "keep-all", Match: policy.Tautology{}, Action: policy.Keep(), Priority: 0},
	})
	if err != nil {
		t.Fatalf("policy.New: %v", err)
	}
	corpus := trace.NewCorpus([]trace.Trace{mkTrace("t1", false, nil), mkTrace("t2", false, nil), mkTrace("t3", false, nil)})
	sim := simulate.Simulate(p, corpus)

	verdict := Prove(p, corpus, sim, Options{})
	if verdict.Status != Rejected {
		t.Errorf("Status = %v, want Rejected", verdict.Status)
	}
}

func TestProve_WarnsOnHighCardinalityKeepField(t *testing.T) {
	t.Parallel()

	rules := []policy.Rule{
		{Name: "keep-by-user", Match: policy.FieldCompare{Field: "user.id", Op: policy.OpExists}, Action: policy.Keep(), Priority: 10},
		{Name: "fallback", Match: policy.Tautology{}, Action: policy.Keep(), Priority: 0},
	}
	p, err := policy.New(1, "p", 1000, rules)
	if err != nil {
		t.Fatalf("policy.New: %v", err)
	}

	var traces []trace.Trace
	for i := 0; i < 5; i++ {
		traces = append(traces, trace.New(
			string(rune('a'+i)), time.Second, nil, nil, nil, false,
			map[string]trace.Value{"user.id": trace.Int(int64(i))}, 1))
	}
	corpus := trace.NewCorpus(traces)
	sim := simulate.Simulate(p, corpus)

	verdict := Prove(p, corpus, sim, Options{CardinalityWarnThreshold: 3})
	if verdict.Status != ApprovedWithWarnings {
		t.Errorf("Status = %v, want ApprovedWithWarnings", verdict.Status)
	}
}

func TestProve_PriorityGapsIsInfoOnly(t *testing.T) {
	t.Parallel()

	p, err := policy.New(1, "p", 100, []policy.Rule{
		{Name: "r1", Match: policy.FieldCompare{Field: "x", Op: policy.OpExists}, Action: policy.Keep(), Priority: 90},
		{Name: "fallback", Match: policy.Tautology{}, Action: policy.Keep(), Priority: 0},
	})
	if err != nil {
		t.Fatalf("policy.New: %v", err)
	}
	corpus := trace.NewCorpus(nil)
	sim := simulate.Simulate(p, corpus)

	verdict := Prove(p, corpus, sim, Options{})
	// Priority gap exists (90 -> 0) but it's Info severity, so it must not
	// by itself downgrade the verdict below Approved.
	if verdict.Status != Approved {
		t.Errorf("Status = %v, want Approved: an Info-only gap must not downgrade the verdict", verdict.Status)
	}
}
