// Package policydiff computes a structural diff between two parsed
// policies: rules added, removed, reordered, or changed in action. It is
// pure computation over two policy.Policy values — no file I/O, no
// text-format concerns (those belong to policytext).
package policydiff

import (
	"strconv"

	"github.com/policyproof/policyproof/internal/domain/policy"
)

// ChangeKind classifies one rule-level difference between two policies.
type ChangeKind int

const (
	Added ChangeKind = iota
	Removed
	PriorityChanged
	ActionChanged
	MatchChanged
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case PriorityChanged:
		return "priority-changed"
	case ActionChanged:
		return "action-changed"
	case MatchChanged:
		return "match-changed"
	default:
		return "unknown"
	}
}

// Change describes one rule-level difference, named by the rule it
// concerns (rules are matched by name across the two policies).
type Change struct {
	Kind    ChangeKind
	Rule    string
	Before  string // human-readable prior state, empty for Added
	After   string // human-readable new state, empty for Removed
}

// Diff compares two policies rule-by-rule (matched by name) and a
// top-level summary of budget/version changes. Rules present in both
// policies are compared for priority, action, and match changes; rules
// present in only one are reported as Added/Removed.
type Diff struct {
	VersionChanged bool
	BudgetChanged  bool
	Changes        []Change
}

// Compute returns the structural diff from before to after.
func Compute(before, after policy.Policy) Diff {
	d := Diff{
		VersionChanged: before.Version != after.Version,
		BudgetChanged:  before.BudgetPerSecond != after.BudgetPerSecond,
	}

	beforeByName := make(map[string]policy.Rule, len(before.Rules))
	for _, r := range before.Rules {
		beforeByName[r.Name] = r
	}
	afterByName := make(map[string]policy.Rule, len(after.Rules))
	for _, r := range after.Rules {
		afterByName[r.Name] = r
	}

	for _, br := range before.SerializationOrder() {
		ar, ok := afterByName[br.Name]
		if !ok {
			d.Changes = append(d.Changes, Change{Kind: Removed, Rule: br.Name, Before: describe(br)})
			continue
		}
		if br.Priority != ar.Priority {
			d.Changes = append(d.Changes, Change{Kind: PriorityChanged, Rule: br.Name, Before: describe(br), After: describe(ar)})
		}
		if br.Action.String() != ar.Action.String() {
			d.Changes = append(d.Changes, Change{Kind: ActionChanged, Rule: br.Name, Before: describe(br), After: describe(ar)})
		}
		if br.Match.String() != ar.Match.String() {
			d.Changes = append(d.Changes, Change{Kind: MatchChanged, Rule: br.Name, Before: describe(br), After: describe(ar)})
		}
	}
	for _, ar := range after.SerializationOrder() {
		if _, ok := beforeByName[ar.Name]; !ok {
			d.Changes = append(d.Changes, Change{Kind: Added, Rule: ar.Name, After: describe(ar)})
		}
	}

	return d
}

// Empty reports whether the diff carries no changes at all.
func (d Diff) Empty() bool {
	return !d.VersionChanged && !d.BudgetChanged && len(d.Changes) == 0
}

func describe(r policy.Rule) string {
	return r.Match.String() + " -> " + r.Action.String() + " (priority " + strconv.Itoa(r.Priority) + ")"
}
