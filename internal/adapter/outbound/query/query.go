// Package query implements the `explain --where` ad-hoc filter: a CEL
// expression evaluated against each row of a simulation report. This is
// the only place cel-go is used in this repository — it plays no part
// in C2's match engine, which is a hand-rolled AST per spec §9.
package query

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// Row is one per-trace line of an explain report, exposed to a --where
// expression by field name.
type Row struct {
	TraceID  string
	Rule     string
	Kept     bool
	Service  string
	Status   int64
	Duration int64 // nanoseconds
}

func (r Row) asCELInput() map[string]any {
	return map[string]any{
		"trace_id": r.TraceID,
		"rule":     r.Rule,
		"kept":     r.Kept,
		"service":  r.Service,
		"status":   r.Status,
		"duration": r.Duration,
	}
}

// Filter compiles expr once and evaluates it against every row,
// returning the subset for which it evaluates true.
func Filter(expr string, rows []Row) ([]Row, error) {
	if expr == "" {
		return rows, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("trace_id", cel.StringType),
		cel.Variable("rule", cel.StringType),
		cel.Variable("kept", cel.BoolType),
		cel.Variable("service", cel.StringType),
		cel.Variable("status", cel.IntType),
		cel.Variable("duration", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("build query environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile --where expression: %w", issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build --where program: %w", err)
	}

	var out []Row
	for _, row := range rows {
		val, _, err := prg.Eval(row.asCELInput())
		if err != nil {
			return nil, fmt.Errorf("evaluate --where expression for trace %s: %w", row.TraceID, err)
		}
		b, ok := val.Value().(bool)
		if !ok {
			return nil, fmt.Errorf("--where expression must evaluate to a bool, got %T", val.Value())
		}
		if b {
			out = append(out, row)
		}
	}
	return out, nil
}
