package policy

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/policyproof/policyproof/internal/domain/trace"
)

// CompareOp is the comparison operator carried by a FieldCompare leaf.
type CompareOp int

const (
	OpEq CompareOp = iota
	OpNeq
	OpGt
	OpGte
	OpLt
	OpLte
	OpGlob
	OpContains
	OpExists
)

// String renders the operator the way it appears in policy text.
func (op CompareOp) String() string {
	switch op {
	case OpEq:
		return "=="
	case OpNeq:
		return "!="
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	case OpGlob:
		return "~"
	case OpContains:
		return "contains"
	case OpExists:
		return "exists"
	default:
		return "?"
	}
}

// MatchExpr is the match-expression AST: a tagged sum type (Tautology,
// FieldCompare, And, Or, Not) with boxed children, matching spec §9's
// "recursive match-expression AST" design note. Evaluate is a total,
// side-effect-free recursive walk: it never panics and always returns a
// bool, satisfying P3 (evaluation totality).
type MatchExpr interface {
	// Evaluate reports whether t satisfies this expression.
	Evaluate(t trace.Trace) bool
	// String renders the canonical surface syntax for this expression,
	// used by the C1 serializer.
	String() string
}

// Tautology matches every trace. Exactly one Tautology-matched rule, at
// the lowest priority, is required as a policy's fallback.
type Tautology struct{}

func (Tautology) Evaluate(trace.Trace) bool { return true }
func (Tautology) String() string            { return "true" }

// FieldCompare compares a dotted field path against a literal value using
// op. Field lookups go through trace.Trace.Lookup, so the fixed summary
// fields and free-form attributes are addressed uniformly.
type FieldCompare struct {
	Field string
	Op    CompareOp
	Value trace.Value
}

// Evaluate implements the fail-safe missing-field semantics from spec
// §4.2: a missing field makes `exists` false and every comparison false,
// except `!=`, which is true (a keep-rule filtering on "not X" should
// still match a trace where the field in question is entirely absent).
func (e FieldCompare) Evaluate(t trace.Trace) bool {
	v, ok := t.Lookup(e.Field)
	if !ok {
		switch e.Op {
		case OpExists:
			return false
		case OpNeq:
			return true
		default:
			return false
		}
	}

	switch e.Op {
	case OpExists:
		return true
	case OpEq:
		return v.Equal(e.Value)
	case OpNeq:
		return !v.Equal(e.Value)
	case OpGt, OpGte, OpLt, OpLte:
		cmp, comparable := v.Compare(e.Value)
		if !comparable {
			return false
		}
		switch e.Op {
		case OpGt:
			return cmp > 0
		case OpGte:
			return cmp >= 0
		case OpLt:
			return cmp < 0
		case OpLte:
			return cmp <= 0
		}
		return false
	case OpGlob:
		vs, vok := v.AsString()
		ps, pok := e.Value.AsString()
		if !vok || !pok {
			return false
		}
		matched, err := filepath.Match(ps, vs)
		return err == nil && matched
	case OpContains:
		vs, vok := v.AsString()
		ps, pok := e.Value.AsString()
		if !vok || !pok {
			return false
		}
		return strings.Contains(vs, ps)
	default:
		return false
	}
}

func (e FieldCompare) String() string {
	if e.Op == OpExists {
		return e.Field + " exists"
	}
	return e.Field + " " + e.Op.String() + " " + quoteValue(e.Value)
}

// quoteValue renders a literal the way the match-expression sub-parser
// expects to read it back: string literals (including the glob and
// contains operands, which are always strings) are double-quoted with
// embedded quotes and backslashes escaped, since the lexer only
// recognizes TokString inside quotes and would otherwise re-read a bare
// string as an identifier. Durations are written in milliseconds
// ("90000ms") and floats in plain decimal notation, the forms the lexer
// reads back; ints and true/false use their own literal syntax unquoted.
func quoteValue(v trace.Value) string {
	if d, ok := v.AsDuration(); ok {
		return strconv.FormatFloat(float64(d)/float64(time.Millisecond), 'f', -1, 64) + "ms"
	}
	if v.Kind == trace.KindFloat {
		f, _ := v.AsFloat()
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s, ok := v.AsString()
	if !ok {
		return v.String()
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// And is the conjunction of its operands. An empty And evaluates true
// (vacuous truth), matching the fold identity used by the match-expr
// simplifier.
type And struct{ Operands []MatchExpr }

func (e And) Evaluate(t trace.Trace) bool {
	for _, op := range e.Operands {
		if !op.Evaluate(t) {
			return false
		}
	}
	return true
}

func (e And) String() string {
	return joinOperands(e.Operands, "&&")
}

// Or is the disjunction of its operands. An empty Or evaluates false.
type Or struct{ Operands []MatchExpr }

func (e Or) Evaluate(t trace.Trace) bool {
	for _, op := range e.Operands {
		if op.Evaluate(t) {
			return true
		}
	}
	return false
}

func (e Or) String() string {
	return joinOperands(e.Operands, "||")
}

// Not negates its operand.
type Not struct{ Operand MatchExpr }

func (e Not) Evaluate(t trace.Trace) bool {
	return !e.Operand.Evaluate(t)
}

func (e Not) String() string {
	return "!(" + e.Operand.String() + ")"
}

func joinOperands(operands []MatchExpr, sep string) string {
	parts := make([]string, len(operands))
	for i, op := range operands {
		parts[i] = "(" + op.String() + ")"
	}
	return strings.Join(parts, " "+sep+" ")
}
