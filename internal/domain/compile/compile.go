// Package compile implements the compiler (C7): a pure mapping from a
// Policy to an external rules document plus its SHA-256 lockfile. The
// compiler never runs on a Rejected verdict, never touches the clock or
// network, and is byte-deterministic for a given policy (P5).
package compile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/policyproof/policyproof/internal/apperr"
	"github.com/policyproof/policyproof/internal/domain/policy"
	"github.com/policyproof/policyproof/internal/domain/prove"
)

// Document is the downstream rules document: a YAML schema shaped after
// a Refinery-class tail-sampling proxy's rule-based sampler. The core
// commits only to determinism and canonical ordering — the exact key
// names are this repo's own choice, documented here rather than
// dictated by any single downstream target.
type Document struct {
	RulesVersion int                      `yaml:"rulesVersion"`
	Samplers     map[string]SamplerConfig `yaml:"samplers"`
}

// SamplerConfig wraps the rule-based sampler for one named sampler
// scope. policyproof emits a single scope named after the policy.
type SamplerConfig struct {
	RuleBased RuleBasedSampler `yaml:"ruleBased"`
}

// RuleBasedSampler holds the ordered list of compiled rules.
type RuleBasedSampler struct {
	Rules []CompiledRule `yaml:"rules"`
}

// CompiledRule is one Policy Rule lowered to the downstream format.
// Fields are declared in alphabetical order so the marshaled YAML keys
// are sorted within each rule, per spec §4.6's canonical-output
// contract.
type CompiledRule struct {
	Condition  *Condition `yaml:"condition,omitempty"`
	Drop       bool       `yaml:"drop,omitempty"`
	Name       string     `yaml:"name"`
	SampleRate int        `yaml:"sampleRate,omitempty"`
}

// Condition is the recursive lowering of a policy.MatchExpr: a leaf
// field/operator/value triple, or an All/Any/Not combinator mirroring
// And/Or/Not. A nil *Condition (as used by CompiledRule.Condition)
// denotes Tautology — the rule matches unconditionally.
type Condition struct {
	All      []Condition `yaml:"all,omitempty"`
	Any      []Condition `yaml:"any,omitempty"`
	Field    string      `yaml:"field,omitempty"`
	Not      *Condition  `yaml:"not,omitempty"`
	Operator string      `yaml:"operator,omitempty"`
	Value    any         `yaml:"value,omitempty"`
}

// Result bundles the compiled document with its canonical bytes and
// lockfile hash, so callers never need to re-marshal to recover either.
type Result struct {
	Document     Document
	CanonicalYAML []byte
	SHA256        string // hex-encoded
}

// Compile implements C7's contract: it refuses to run when verdict is
// prove.Rejected, and otherwise produces a canonical, deterministic
// rules document plus its SHA-256 lockfile hash.
func Compile(p policy.Policy, verdict prove.Verdict) (Result, error) {
	if verdict.Status == prove.Rejected {
		violations := make([]apperr.CheckViolation, 0, len(verdict.Checks))
		for _, c := range verdict.Checks {
			if c.Passed {
				continue
			}
			violations = append(violations, apperr.CheckViolation{
				ID: c.ID, Severity: c.Severity.String(), Message: c.Message,
			})
		}
		return Result{}, &apperr.ProverRejection{Violations: violations}
	}

	doc := Document{
		RulesVersion: p.Version,
		Samplers: map[string]SamplerConfig{
			p.Name: {RuleBased: RuleBasedSampler{Rules: lowerRules(p)}},
		},
	}

	canonical, err := yaml.Marshal(doc)
	if err != nil {
		return Result{}, &apperr.Internal{Context: "marshal compiled rules document", Cause: err}
	}

	sum := sha256.Sum256(canonical)
	return Result{
		Document:      doc,
		CanonicalYAML: canonical,
		SHA256:        hex.EncodeToString(sum[:]),
	}, nil
}

// lowerRules emits rules in the same priority order as evaluation
// (Policy.EvaluationOrder), per spec §4.6's canonical-output contract.
func lowerRules(p policy.Policy) []CompiledRule {
	ordered := p.EvaluationOrder()
	rules := make([]CompiledRule, 0, len(ordered))
	for _, r := range ordered {
		rules = append(rules, lowerRule(r))
	}
	return rules
}

func lowerRule(r policy.Rule) CompiledRule {
	cr := CompiledRule{Name: r.Name}
	if _, isTautology := r.Match.(policy.Tautology); !isTautology {
		cond := lowerMatch(r.Match)
		cr.Condition = &cond
	}

	switch r.Action.Kind {
	case policy.ActionKeep:
		cr.SampleRate = 1
	case policy.ActionDrop:
		cr.Drop = true
	case policy.ActionSample:
		cr.SampleRate = sampleRateToN(r.Action.Rate)
	}
	return cr
}

// sampleRateToN converts a [0,1] keep-probability to the downstream
// "1 in N" integer convention Refinery-class samplers use, rounding to
// the nearest integer. This loses precision for rates whose reciprocal
// isn't a whole number; spec §4.6 commits only to a documented,
// deterministic mapping, not to exact precision preservation.
func sampleRateToN(rate float64) int {
	if rate <= 0 {
		return 1
	}
	n := int(1.0/rate + 0.5)
	if n < 1 {
		n = 1
	}
	return n
}

func lowerMatch(m policy.MatchExpr) Condition {
	switch e := m.(type) {
	case policy.Tautology:
		return Condition{}
	case policy.FieldCompare:
		return Condition{Field: e.Field, Operator: lowerOp(e.Op), Value: lowerValue(e)}
	case policy.And:
		return Condition{All: lowerList(e.Operands)}
	case policy.Or:
		return Condition{Any: lowerList(e.Operands)}
	case policy.Not:
		inner := lowerMatch(e.Operand)
		return Condition{Not: &inner}
	default:
		return Condition{}
	}
}

func lowerList(operands []policy.MatchExpr) []Condition {
	out := make([]Condition, len(operands))
	for i, op := range operands {
		out[i] = lowerMatch(op)
	}
	return out
}

func lowerOp(op policy.CompareOp) string {
	switch op {
	case policy.OpEq:
		return "equals"
	case policy.OpNeq:
		return "not-equals"
	case policy.OpGt:
		return "greater-than"
	case policy.OpGte:
		return "greater-than-or-equals"
	case policy.OpLt:
		return "less-than"
	case policy.OpLte:
		return "less-than-or-equals"
	case policy.OpGlob:
		return "matches"
	case policy.OpContains:
		return "contains"
	case policy.OpExists:
		return "exists"
	default:
		return fmt.Sprintf("unknown(%d)", op)
	}
}

func lowerValue(e policy.FieldCompare) any {
	if e.Op == policy.OpExists {
		return nil
	}
	v := e.Value
	if s, ok := v.AsString(); ok {
		return s
	}
	if d, ok := v.AsDuration(); ok {
		return int64(d)
	}
	if i, ok := v.AsInt(); ok {
		return i
	}
	if f, ok := v.AsFloat(); ok {
		return f
	}
	if b, ok := v.AsBool(); ok {
		return b
	}
	return nil
}
