package trace

import (
	"fmt"
	"time"
)

// Kind identifies the concrete type held by a Value.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindDuration
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindDuration:
		return "duration"
	default:
		return "unknown"
	}
}

// Value is a typed scalar: the field-path lookup result for a Trace and
// the literal type produced by the match-expression parser. Exactly one
// of the typed accessors is meaningful, selected by Kind.
type Value struct {
	Kind Kind
	str  string
	i    int64
	f    float64
	b    bool
	d    time.Duration
}

func String(s string) Value   { return Value{Kind: KindString, str: s} }
func Int(i int64) Value       { return Value{Kind: KindInt, i: i} }
func Float(f float64) Value   { return Value{Kind: KindFloat, f: f} }
func Bool(b bool) Value       { return Value{Kind: KindBool, b: b} }
func Duration(d time.Duration) Value { return Value{Kind: KindDuration, d: d} }

func (v Value) AsString() (string, bool) {
	if v.Kind != KindString {
		return "", false
	}
	return v.str, true
}

func (v Value) AsInt() (int64, bool) {
	if v.Kind != KindInt {
		return 0, false
	}
	return v.i, true
}

func (v Value) AsFloat() (float64, bool) {
	switch v.Kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

func (v Value) AsBool() (bool, bool) {
	if v.Kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) AsDuration() (time.Duration, bool) {
	if v.Kind != KindDuration {
		return 0, false
	}
	return v.d, true
}

// String renders the value the way it would appear in serialized policy
// text or a human-readable report.
func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.str
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindDuration:
		return v.d.String()
	default:
		return ""
	}
}

// Equal reports exact equality: byte-exact for strings, numeric for
// int/float (promoting int to float only when the other operand is
// float), exact for duration and bool. Mismatched kinds are never equal
// except int/float cross-comparison.
func (v Value) Equal(other Value) bool {
	if v.Kind == other.Kind {
		switch v.Kind {
		case KindString:
			return v.str == other.str
		case KindInt:
			return v.i == other.i
		case KindFloat:
			return v.f == other.f
		case KindBool:
			return v.b == other.b
		case KindDuration:
			return v.d == other.d
		}
	}
	if vf, ok := v.AsFloat(); ok {
		if of, ok := other.AsFloat(); ok && (v.Kind == KindFloat || other.Kind == KindFloat) {
			return vf == of
		}
	}
	return false
}

// Compare returns -1, 0, 1 for v <, ==, > other. ok is false when the two
// values are not ordinally comparable (mismatched kinds other than
// int/float promotion).
func (v Value) Compare(other Value) (cmp int, ok bool) {
	if v.Kind == KindDuration && other.Kind == KindDuration {
		switch {
		case v.d < other.d:
			return -1, true
		case v.d > other.d:
			return 1, true
		default:
			return 0, true
		}
	}
	if v.Kind == KindString && other.Kind == KindString {
		switch {
		case v.str < other.str:
			return -1, true
		case v.str > other.str:
			return 1, true
		default:
			return 0, true
		}
	}
	if (v.Kind == KindInt || v.Kind == KindFloat) && (other.Kind == KindInt || other.Kind == KindFloat) {
		vf, _ := v.AsFloat()
		of, _ := other.AsFloat()
		switch {
		case vf < of:
			return -1, true
		case vf > of:
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}
