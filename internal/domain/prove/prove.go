// Package prove implements the prover (C6): a fixed suite of safety
// checks over (policy, corpus, simulation) producing a Verdict. Every
// check is a pure function of its inputs — no I/O, no clock (P6).
package prove

import (
	"fmt"
	"sort"

	"github.com/policyproof/policyproof/internal/domain/policy"
	"github.com/policyproof/policyproof/internal/domain/simulate"
	"github.com/policyproof/policyproof/internal/domain/trace"
)

// Severity classifies a CheckResult's impact on the aggregated Verdict.
type Severity int

const (
	Info Severity = iota
	Warning
	Critical
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// CheckResult is the outcome of one fixed check.
type CheckResult struct {
	ID       string
	Severity Severity
	Passed   bool
	Message  string
}

// Status is the aggregated verdict over all checks.
type Status int

const (
	Approved Status = iota
	ApprovedWithWarnings
	Rejected
)

func (s Status) String() string {
	switch s {
	case Approved:
		return "approved"
	case ApprovedWithWarnings:
		return "approved_with_warnings"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Verdict is the prover's structured output.
type Verdict struct {
	Status Status
	Checks []CheckResult
}

// DefaultCardinalityWarnThreshold is the default value for the
// cardinality-safety check, per spec §4.5.
const DefaultCardinalityWarnThreshold = 10_000

// Options configures the thresholds the fixed check suite uses. Zero
// value Options uses DefaultCardinalityWarnThreshold.
type Options struct {
	CardinalityWarnThreshold int
}

func (o Options) threshold() int {
	if o.CardinalityWarnThreshold <= 0 {
		return DefaultCardinalityWarnThreshold
	}
	return o.CardinalityWarnThreshold
}

// Prove runs the fixed check suite over (p, corpus, sim) and aggregates
// a Verdict: any Critical failure rejects; otherwise any Warning failure
// approves with warnings; else approves outright.
func Prove(p policy.Policy, corpus trace.Corpus, sim simulate.Result, opts Options) Verdict {
	checks := []CheckResult{
		checkFallbackRule(p),
		checkErrorCoverage(p, corpus),
		checkMustKeepCoverage(p, corpus),
		checkBudgetCompliance(p, sim),
		checkCardinalitySafety(p, corpus, opts.threshold()),
		checkRuleOverlap(p, corpus),
		checkPriorityGaps(p),
	}

	status := Approved
	for _, c := range checks {
		if c.Passed {
			continue
		}
		switch c.Severity {
		case Critical:
			status = Rejected
		case Warning:
			if status != Rejected {
				status = ApprovedWithWarnings
			}
		}
	}

	return Verdict{Status: status, Checks: checks}
}

func checkFallbackRule(p policy.Policy) CheckResult {
	fallbacks := 0
	lowestPriority := true
	ordered := p.EvaluationOrder()
	for i, r := range ordered {
		if _, ok := r.Match.(policy.Tautology); ok {
			fallbacks++
			if i != len(ordered)-1 {
				lowestPriority = false
			}
		}
	}
	passed := fallbacks == 1 && lowestPriority
	msg := "exactly one fallback rule at the lowest priority"
	if !passed {
		msg = fmt.Sprintf("found %d tautology rule(s); fallback must be exactly one, at the lowest priority", fallbacks)
	}
	return CheckResult{ID: "fallback-rule", Severity: Critical, Passed: passed, Message: msg}
}

func checkErrorCoverage(p policy.Policy, corpus trace.Corpus) CheckResult {
	var violations []string
	for _, t := range corpus.Traces() {
		if !t.IsError {
			continue
		}
		d := p.Evaluate(t)
		if d.Action.Kind != policy.ActionKeep {
			violations = append(violations, t.TraceID)
		}
	}
	if len(violations) == 0 {
		return CheckResult{ID: "error-coverage", Severity: Critical, Passed: true, Message: "every error trace is kept"}
	}
	return CheckResult{ID: "error-coverage", Severity: Critical, Passed: false,
		Message: fmt.Sprintf("%d error trace(s) not kept, e.g. %s", len(violations), violations[0])}
}

func checkMustKeepCoverage(p policy.Policy, corpus trace.Corpus) CheckResult {
	var violations []string
	for _, t := range corpus.Traces() {
		v, ok := t.Lookup("must_keep")
		if !ok {
			continue
		}
		b, ok := v.AsBool()
		if !ok || !b {
			continue
		}
		d := p.Evaluate(t)
		if d.Action.Kind != policy.ActionKeep {
			violations = append(violations, t.TraceID)
		}
	}
	if len(violations) == 0 {
		return CheckResult{ID: "must-keep-coverage", Severity: Critical, Passed: true, Message: "every must_keep trace is kept"}
	}
	return CheckResult{ID: "must-keep-coverage", Severity: Critical, Passed: false,
		Message: fmt.Sprintf("%d must_keep trace(s) not kept, e.g. %s", len(violations), violations[0])}
}

// checkBudgetCompliance implements the budget-compliance check under the
// documented resolution of spec §9's open question: Trace carries no
// timestamp field in this implementation, so the corpus time window is
// always unknown. Rather than compute a fraction-of-budget ratio (which
// can never exceed 1 and so can never fail), the corpus is assumed to
// represent a single one-second window — projected throughput is simply
// TotalKept, compared directly against BudgetPerSecond.
func checkBudgetCompliance(p policy.Policy, sim simulate.Result) CheckResult {
	passed := sim.TotalKept <= p.BudgetPerSecond
	msg := fmt.Sprintf("projected throughput %d/s within budget %d/s", sim.TotalKept, p.BudgetPerSecond)
	if !passed {
		msg = fmt.Sprintf("projected throughput %d/s exceeds budget %d/s", sim.TotalKept, p.BudgetPerSecond)
	}
	return CheckResult{ID: "budget-compliance", Severity: Critical, Passed: passed, Message: msg}
}

func checkCardinalitySafety(p policy.Policy, corpus trace.Corpus, threshold int) CheckResult {
	fields := map[string]struct{}{}
	for _, r := range p.Rules {
		if r.Action.Kind != policy.ActionKeep {
			continue
		}
		collectFields(r.Match, fields)
	}

	var offending []string
	for field := range fields {
		if corpus.FieldCardinality(field) >= threshold {
			offending = append(offending, field)
		}
	}
	sort.Strings(offending)

	if len(offending) == 0 {
		return CheckResult{ID: "cardinality-safety", Severity: Warning, Passed: true, Message: "no keep-rule field exceeds the cardinality threshold"}
	}
	return CheckResult{ID: "cardinality-safety", Severity: Warning, Passed: false,
		Message: fmt.Sprintf("field(s) %v referenced by a keep rule have cardinality >= %d", offending, threshold)}
}

func collectFields(m policy.MatchExpr, out map[string]struct{}) {
	switch e := m.(type) {
	case policy.FieldCompare:
		out[e.Field] = struct{}{}
	case policy.And:
		for _, op := range e.Operands {
			collectFields(op, out)
		}
	case policy.Or:
		for _, op := range e.Operands {
			collectFields(op, out)
		}
	case policy.Not:
		collectFields(e.Operand, out)
	}
}

// checkRuleOverlap flags traces matched by more than one rule with
// differing action kinds — shadowing that priority resolves correctly
// at evaluation time, but that a policy author likely did not intend.
func checkRuleOverlap(p policy.Policy, corpus trace.Corpus) CheckResult {
	ordered := p.EvaluationOrder()
	overlapping := 0
	for _, t := range corpus.Traces() {
		var matchedKinds []policy.ActionKind
		for _, r := range ordered {
			if r.Match.Evaluate(t) {
				matchedKinds = append(matchedKinds, r.Action.Kind)
			}
		}
		if len(matchedKinds) < 2 {
			continue
		}
		first := matchedKinds[0]
		for _, k := range matchedKinds[1:] {
			if k != first {
				overlapping++
				break
			}
		}
	}
	if overlapping == 0 {
		return CheckResult{ID: "rule-overlap", Severity: Warning, Passed: true, Message: "no conflicting rule overlap detected"}
	}
	return CheckResult{ID: "rule-overlap", Severity: Warning, Passed: false,
		Message: fmt.Sprintf("%d trace(s) matched by multiple rules with conflicting actions", overlapping)}
}

func checkPriorityGaps(p policy.Policy) CheckResult {
	seen := map[int]struct{}{}
	for _, r := range p.Rules {
		seen[r.Priority] = struct{}{}
	}
	priorities := make([]int, 0, len(seen))
	for pr := range seen {
		priorities = append(priorities, pr)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(priorities)))

	var gaps []string
	for i := 1; i < len(priorities); i++ {
		if priorities[i-1]-priorities[i] > 1 {
			gaps = append(gaps, fmt.Sprintf("%d..%d", priorities[i], priorities[i-1]))
		}
	}
	if len(gaps) == 0 {
		return CheckResult{ID: "priority-gaps", Severity: Info, Passed: true, Message: "priorities are contiguous"}
	}
	return CheckResult{ID: "priority-gaps", Severity: Info, Passed: false,
		Message: fmt.Sprintf("priority gaps: %v", gaps)}
}
