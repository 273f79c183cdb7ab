package policy

import (
	"testing"
	"time"

	"github.com/policyproof/policyproof/internal/domain/trace"
)

func traceWithAttrs(attrs map[string]trace.Value) trace.Trace {
	return trace.New("t1", time.Second, nil, nil, nil, false, attrs, 1)
}

func TestFieldCompare_MissingFieldSemantics(t *testing.T) {
	t.Parallel()

	tr := traceWithAttrs(nil)

	tests := []struct {
		op   CompareOp
		want bool
	}{
		{OpExists, false},
		{OpNeq, true},
		{OpEq, false},
		{OpGt, false},
		{OpGlob, false},
		{OpContains, false},
	}

	for _, tt := range tests {
		e := FieldCompare{Field: "missing.path", Op: tt.op, Value: trace.String("x")}
		if got := e.Evaluate(tr); got != tt.want {
			t.Errorf("FieldCompare{Op:%v} on missing field = %v, want %v", tt.op, got, tt.want)
		}
	}
}

func TestFieldCompare_Eq(t *testing.T) {
	t.Parallel()

	tr := traceWithAttrs(map[string]trace.Value{"region": trace.String("us-east")})
	e := FieldCompare{Field: "region", Op: OpEq, Value: trace.String("us-east")}
	if !e.Evaluate(tr) {
		t.Error("expected eq match")
	}
	e2 := FieldCompare{Field: "region", Op: OpEq, Value: trace.String("eu-west")}
	if e2.Evaluate(tr) {
		t.Error("expected eq mismatch")
	}
}

func TestFieldCompare_Ordering(t *testing.T) {
	t.Parallel()

	tr := traceWithAttrs(map[string]trace.Value{"retries": trace.Int(3)})

	tests := []struct {
		op   CompareOp
		val  trace.Value
		want bool
	}{
		{OpGt, trace.Int(2), true},
		{OpGt, trace.Int(3), false},
		{OpGte, trace.Int(3), true},
		{OpLt, trace.Int(4), true},
		{OpLte, trace.Int(3), true},
	}
	for _, tt := range tests {
		e := FieldCompare{Field: "retries", Op: tt.op, Value: tt.val}
		if got := e.Evaluate(tr); got != tt.want {
			t.Errorf("retries %v %v = %v, want %v", tt.op, tt.val, got, tt.want)
		}
	}
}

func TestFieldCompare_OrderingNotComparable(t *testing.T) {
	t.Parallel()

	tr := traceWithAttrs(map[string]trace.Value{"flag": trace.Bool(true)})
	e := FieldCompare{Field: "flag", Op: OpGt, Value: trace.Bool(false)}
	if e.Evaluate(tr) {
		t.Error("bool ordering should never match")
	}
}

func TestFieldCompare_Glob(t *testing.T) {
	t.Parallel()

	tr := traceWithAttrs(map[string]trace.Value{"path": trace.String("/api/v1/users")})
	e := FieldCompare{Field: "path", Op: OpGlob, Value: trace.String("/api/v1/*")}
	if !e.Evaluate(tr) {
		t.Error("expected glob match")
	}
	e2 := FieldCompare{Field: "path", Op: OpGlob, Value: trace.String("/api/v2/*")}
	if e2.Evaluate(tr) {
		t.Error("expected glob mismatch")
	}
}

func TestFieldCompare_Contains(t *testing.T) {
	t.Parallel()

	tr := traceWithAttrs(map[string]trace.Value{"message": trace.String("connection refused")})
	e := FieldCompare{Field: "message", Op: OpContains, Value: trace.String("refused")}
	if !e.Evaluate(tr) {
		t.Error("expected contains match")
	}
}

func TestFieldCompare_Exists(t *testing.T) {
	t.Parallel()

	tr := traceWithAttrs(map[string]trace.Value{"region": trace.String("us-east")})
	if !(FieldCompare{Field: "region", Op: OpExists}).Evaluate(tr) {
		t.Error("expected exists=true")
	}
	if (FieldCompare{Field: "missing", Op: OpExists}).Evaluate(tr) {
		t.Error("expected exists=false")
	}
}

func TestAndOr_EmptyIdentities(t *testing.T) {
	t.Parallel()

	tr := traceWithAttrs(nil)
	if !(And{}).Evaluate(tr) {
		t.Error("empty And should be vacuously true")
	}
	if (Or{}).Evaluate(tr) {
		t.Error("empty Or should be false")
	}
}

func TestAnd_ShortCircuits(t *testing.T) {
	t.Parallel()

	tr := traceWithAttrs(map[string]trace.Value{"a": trace.Int(1)})
	expr := And{Operands: []MatchExpr{
		FieldCompare{Field: "a", Op: OpEq, Value: trace.Int(1)},
		FieldCompare{Field: "a", Op: OpEq, Value: trace.Int(2)},
	}}
	if expr.Evaluate(tr) {
		t.Error("And with a false operand should be false")
	}
}

func TestOr_MatchesAny(t *testing.T) {
	t.Parallel()

	tr := traceWithAttrs(map[string]trace.Value{"a": trace.Int(1)})
	expr := Or{Operands: []MatchExpr{
		FieldCompare{Field: "a", Op: OpEq, Value: trace.Int(99)},
		FieldCompare{Field: "a", Op: OpEq, Value: trace.Int(1)},
	}}
	if !expr.Evaluate(tr) {
		t.Error("Or with a true operand should be true")
	}
}

func TestNot_Negates(t *testing.T) {
	t.Parallel()

	tr := traceWithAttrs(nil)
	if (Not{Operand: Tautology{}}).Evaluate(tr) {
		t.Error("Not{Tautology} should be false")
	}
}

func TestTautology_AlwaysMatches(t *testing.T) {
	t.Parallel()

	if !(Tautology{}).Evaluate(traceWithAttrs(nil)) {
		t.Error("Tautology should always match")
	}
}

func TestMatchExpr_String(t *testing.T) {
	t.Parallel()

	expr := And{Operands: []MatchExpr{
		FieldCompare{Field: "region", Op: OpEq, Value: trace.String("us-east")},
		Not{Operand: FieldCompare{Field: "error", Op: OpExists}},
	}}
	want := `(region == "us-east") && (!(error exists))`
	if got := expr.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestFieldCompare_String_QuotesStringLiteralsAndEscapesQuotes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		expr FieldCompare
		want string
	}{
		{"plain string", FieldCompare{Field: "service.name", Op: OpEq, Value: trace.String("api")}, `service.name == "api"`},
		{"glob", FieldCompare{Field: "endpoint", Op: OpGlob, Value: trace.String("*/health")}, `endpoint ~ "*/health"`},
		{"contains", FieldCompare{Field: "service.name", Op: OpContains, Value: trace.String("check")}, `service.name contains "check"`},
		{"embedded quote", FieldCompare{Field: "a", Op: OpEq, Value: trace.String(`say "hi"`)}, `a == "say \"hi\""`},
		{"embedded backslash", FieldCompare{Field: "a", Op: OpEq, Value: trace.String(`C:\path`)}, `a == "C:\\path"`},
		{"non-string value unquoted", FieldCompare{Field: "status", Op: OpGt, Value: trace.Int(500)}, "status > 500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.expr.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
