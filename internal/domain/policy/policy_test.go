package policy

import (
	"errors"
	"testing"
	"time"

	"github.com/policyproof/policyproof/internal/apperr"
	"github.com/policyproof/policyproof/internal/domain/trace"
)

func mkRule(name string, priority int, action Action) Rule {
	return Rule{Name: name, Match: Tautology{}, Action: action, Priority: priority}
}

func TestNewSample_NormalizesDegenerateRates(t *testing.T) {
	t.Parallel()

	if got := NewSample(1.0); got.Kind != ActionKeep {
		t.Errorf("NewSample(1.0).Kind = %v, want ActionKeep", got.Kind)
	}
	if got := NewSample(0.0); got.Kind != ActionDrop {
		t.Errorf("NewSample(0.0).Kind = %v, want ActionDrop", got.Kind)
	}
	if got := NewSample(0.5); got.Kind != ActionSample || got.Rate != 0.5 {
		t.Errorf("NewSample(0.5) = %+v, want ActionSample rate 0.5", got)
	}
}

func TestAction_String(t *testing.T) {
	t.Parallel()

	if Keep().String() != "keep" {
		t.Error("Keep().String() != \"keep\"")
	}
	if Drop().String() != "drop" {
		t.Error("Drop().String() != \"drop\"")
	}
	if got := NewSample(0.25).String(); got != "sample(0.25)" {
		t.Errorf("NewSample(0.25).String() = %q, want sample(0.25)", got)
	}
}

func TestNew_RejectsInvalidPolicies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		version int
		pname   string
		budget  int
		rules   []Rule
	}{
		{"zero version", 0, "p", 100, nil},
		{"empty name", 1, "", 100, nil},
		{"negative budget", 1, "p", -1, nil},
		{"duplicate rule name", 1, "p", 100, []Rule{mkRule("r1", 0, Keep()), mkRule("r1", 1, Keep())}},
		{"priority out of range", 1, "p", 100, []Rule{{Name: "r1", Match: Tautology{}, Action: Keep(), Priority: 101}}},
		{"sample rate out of range", 1, "p", 100, []Rule{{Name: "r1", Match: Tautology{}, Action: Action{Kind: ActionSample, Rate: 1.5}, Priority: 0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.version, tt.pname, tt.budget, tt.rules)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			var verr *apperr.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("error = %v, want *apperr.ValidationError", err)
			}
		})
	}
}

func TestNew_AcceptsValidPolicy(t *testing.T) {
	t.Parallel()

	p, err := New(1, "prod", 100, []Rule{mkRule("fallback", 0, Keep())})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "prod" {
		t.Errorf("Name = %q, want prod", p.Name)
	}
}

func TestPolicy_EvaluationOrder(t *testing.T) {
	t.Parallel()

	p := Policy{Rules: []Rule{
		mkRule("low", 0, Drop()),
		mkRule("high", 50, Keep()),
		mkRule("mid-a", 25, Keep()),
		mkRule("mid-b", 25, Drop()),
	}}

	order := p.EvaluationOrder()
	want := []string{"high", "mid-a", "mid-b", "low"}
	for i, name := range want {
		if order[i].Name != name {
			t.Errorf("EvaluationOrder()[%d].Name = %q, want %q", i, order[i].Name, name)
		}
	}
}

func TestPolicy_SerializationOrder_TiesBrokenByName(t *testing.T) {
	t.Parallel()

	p := Policy{Rules: []Rule{
		mkRule("zeta", 10, Keep()),
		mkRule("alpha", 10, Drop()),
	}}

	order := p.SerializationOrder()
	if order[0].Name != "alpha" || order[1].Name != "zeta" {
		t.Errorf("SerializationOrder() = [%s, %s], want [alpha, zeta]", order[0].Name, order[1].Name)
	}
}

func TestPolicy_Evaluate_FirstMatchWins(t *testing.T) {
	t.Parallel()

	p := Policy{Rules: []Rule{
		{Name: "errors", Match: FieldCompare{Field: "error", Op: OpEq, Value: trace.Bool(true)}, Action: Keep(), Priority: 10},
		{Name: "fallback", Match: Tautology{}, Action: Drop(), Priority: 0},
	}}

	errTrace := trace.New("t1", time.Second, nil, nil, nil, true, nil, 1)
	decision := p.Evaluate(errTrace)
	if decision.RuleName != "errors" || decision.Action.Kind != ActionKeep {
		t.Errorf("Evaluate(error trace) = %+v, want rule errors/keep", decision)
	}

	okTrace := trace.New("t2", time.Second, nil, nil, nil, false, nil, 1)
	decision2 := p.Evaluate(okTrace)
	if decision2.RuleName != "fallback" || decision2.Action.Kind != ActionDrop {
		t.Errorf("Evaluate(ok trace) = %+v, want rule fallback/drop", decision2)
	}
}

func TestPolicy_Evaluate_FailsClosedWithNoRules(t *testing.T) {
	t.Parallel()

	p := Policy{}
	decision := p.Evaluate(trace.New("t1", time.Second, nil, nil, nil, false, nil, 1))
	if decision.RuleName != NoMatchRuleName || decision.Action.Kind != ActionDrop {
		t.Errorf("Evaluate() with no rules = %+v, want NoMatchRuleName/drop", decision)
	}
}

func TestPolicy_HasFallback(t *testing.T) {
	t.Parallel()

	withFallback := Policy{Rules: []Rule{mkRule("fb", 0, Keep())}}
	if !withFallback.HasFallback() {
		t.Error("expected HasFallback() = true")
	}

	without := Policy{Rules: []Rule{
		{Name: "r1", Match: FieldCompare{Field: "x", Op: OpExists}, Action: Keep(), Priority: 0},
	}}
	if without.HasFallback() {
		t.Error("expected HasFallback() = false")
	}
}
