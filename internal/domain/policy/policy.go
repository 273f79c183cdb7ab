// Package policy implements the typed sampling-policy model and
// match-expression engine (C2): Policy, Rule, MatchExpr, Action, and the
// total Evaluate operation. Nothing in this package performs I/O, reads
// the clock, or uses randomness; it is a pure model evaluated against
// trace.Trace values.
package policy

import (
	"fmt"
	"sort"

	"github.com/policyproof/policyproof/internal/apperr"
	"github.com/policyproof/policyproof/internal/domain/trace"
)

// ActionKind identifies the concrete variant of an Action.
type ActionKind int

const (
	ActionKeep ActionKind = iota
	ActionDrop
	ActionSample
)

// Action is the outcome a matched rule prescribes: Keep, Drop, or Sample
// at a given rate. NewSample normalizes Sample{rate: 1.0} to Keep and
// Sample{rate: 0.0} to Drop on construction, so the simpler form is the
// only one ever observed downstream.
type Action struct {
	Kind ActionKind
	Rate float64
}

// Keep constructs a Keep action.
func Keep() Action { return Action{Kind: ActionKeep} }

// Drop constructs a Drop action.
func Drop() Action { return Action{Kind: ActionDrop} }

// NewSample constructs a Sample action, normalizing degenerate rates to
// Keep/Drop per the Action invariant in the data model.
func NewSample(rate float64) Action {
	switch rate {
	case 1.0:
		return Keep()
	case 0.0:
		return Drop()
	default:
		return Action{Kind: ActionSample, Rate: rate}
	}
}

func (a Action) String() string {
	switch a.Kind {
	case ActionKeep:
		return "keep"
	case ActionDrop:
		return "drop"
	case ActionSample:
		return fmt.Sprintf("sample(%g)", a.Rate)
	default:
		return "unknown"
	}
}

// Decision is the result of evaluating a Policy against a single Trace:
// the matched rule's action, and the name of the rule that produced it
// ("<none>" when no rule matched, the fail-closed Drop path).
type Decision struct {
	Action   Action
	RuleName string
}

// NoMatchRuleName is the synthetic rule name SimulationResult uses to key
// traces that no rule matched (the fail-closed Drop path).
const NoMatchRuleName = "<none>"

// Rule is one entry in a Policy's ordered rule set.
type Rule struct {
	Name        string
	Description string
	Match       MatchExpr
	Action      Action
	// Priority determines evaluation order, descending; ties are broken
	// by source order (the index within Policy.Rules as constructed).
	Priority int
}

// Policy is the typed, immutable sampling policy: a positive version, a
// non-empty name, a non-negative per-second budget, and an ordered rule
// set in source order as parsed or constructed.
type Policy struct {
	Version         int
	Name            string
	BudgetPerSecond int
	Rules           []Rule
}

// New constructs a Policy and validates it eagerly, per the "validate in
// the constructor" design note for dynamically-checked invariants: rule
// names unique, priorities in [0, 100], sample rates in [0, 1], version
// positive, name non-empty, budget non-negative. It does NOT require a
// fallback rule to be present — that is the prover's fallback-rule check
// (C6), not a construction-time error, so that a policy missing its
// fallback can still be built, simulated, and rejected with a structured
// verdict instead of failing to construct at all.
func New(version int, name string, budgetPerSecond int, rules []Rule) (Policy, error) {
	p := Policy{Version: version, Name: name, BudgetPerSecond: budgetPerSecond, Rules: rules}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate checks the structural invariants New enforces, exposed
// separately so callers that build a Policy through other means (the
// codec, the harness's policy generator) can validate after the fact.
func (p Policy) Validate() error {
	if p.Version <= 0 {
		return &apperr.ValidationError{Path: "version", Reason: "must be a positive integer"}
	}
	if p.Name == "" {
		return &apperr.ValidationError{Path: "name", Reason: "must be non-empty"}
	}
	if p.BudgetPerSecond < 0 {
		return &apperr.ValidationError{Path: "budget_per_second", Reason: "must be non-negative"}
	}
	seen := make(map[string]struct{}, len(p.Rules))
	for i, r := range p.Rules {
		path := fmt.Sprintf("rules[%d]", i)
		if r.Name == "" {
			return &apperr.ValidationError{Path: path + ".name", Reason: "must be non-empty"}
		}
		if _, dup := seen[r.Name]; dup {
			return &apperr.ValidationError{Path: path + ".name", Reason: fmt.Sprintf("duplicate rule name %q", r.Name)}
		}
		seen[r.Name] = struct{}{}
		if r.Priority < 0 || r.Priority > 100 {
			return &apperr.ValidationError{Path: path + ".priority", Reason: "must be in [0, 100]"}
		}
		if r.Action.Kind == ActionSample && (r.Action.Rate < 0.0 || r.Action.Rate > 1.0) {
			return &apperr.ValidationError{Path: path + ".action.rate", Reason: "must be in [0.0, 1.0]"}
		}
	}
	return nil
}

// EvaluationOrder returns the rules sorted by (-priority, source_index):
// priority descending, ties broken by construction order. The sort is
// stable, so equal-priority rules keep their Policy.Rules relative
// order.
func (p Policy) EvaluationOrder() []Rule {
	ordered := make([]Rule, len(p.Rules))
	copy(ordered, p.Rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})
	return ordered
}

// SerializationOrder returns the rules sorted by (-priority, name): the
// canonical order the C1 codec serializes in, distinct from
// EvaluationOrder's source-order tiebreak.
func (p Policy) SerializationOrder() []Rule {
	ordered := make([]Rule, len(p.Rules))
	copy(ordered, p.Rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].Name < ordered[j].Name
	})
	return ordered
}

// Evaluate implements Policy::evaluate(trace) -> Decision from spec
// §4.2: try rules in EvaluationOrder, return the first match's action;
// if none matches, fail closed to Drop under the synthetic rule name
// NoMatchRuleName. This is total: it always terminates (bounded by
// len(Rules)) and always returns a Decision, satisfying P3.
func (p Policy) Evaluate(t trace.Trace) Decision {
	for _, r := range p.EvaluationOrder() {
		if r.Match.Evaluate(t) {
			return Decision{Action: r.Action, RuleName: r.Name}
		}
	}
	return Decision{Action: Drop(), RuleName: NoMatchRuleName}
}

// HasFallback reports whether the policy has at least one rule whose
// match is exactly Tautology{}. Used by the prover's fallback-rule
// check and by P8's fallback-monotonicity property.
func (p Policy) HasFallback() bool {
	for _, r := range p.Rules {
		if _, ok := r.Match.(Tautology); ok {
			return true
		}
	}
	return false
}
