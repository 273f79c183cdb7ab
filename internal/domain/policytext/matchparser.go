package policytext

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/policyproof/policyproof/internal/apperr"
	"github.com/policyproof/policyproof/internal/domain/policy"
	"github.com/policyproof/policyproof/internal/domain/trace"
)

// matchParser is a recursive-descent parser over the match-expression
// column's infix surface syntax:
//
//	Expr   := Or
//	Or     := And (("||" | OR) And)*
//	And    := Unary (("&&" | AND) Unary)*
//	Unary  := ("!" | NOT) Unary | Primary
//	Primary:= "(" Expr ")" | "true" | FieldCompare
//	FieldCompare := ident ("exists" | CompareOp Literal)
//
// producing a policy.MatchExpr tree by a single recursive walk, per spec
// §9's "tagged sum type with boxed children" design note.
type matchParser struct {
	lex  *Lexer
	tok  Token
	line int // line of the owning row, for ParseError reporting
}

func parseMatchExpr(text string, line int) (policy.MatchExpr, error) {
	p := &matchParser{lex: NewLexer(text), line: line}
	p.advance()
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.Type != TokEOF {
		return nil, p.errorf("unexpected trailing token %q", p.tok.Value)
	}
	return expr, nil
}

func (p *matchParser) advance() {
	p.tok = p.lex.Next()
}

func (p *matchParser) errorf(format string, args ...interface{}) error {
	return &apperr.ParseError{Line: p.line, Column: p.tok.Column, Reason: fmt.Sprintf(format, args...)}
}

func (p *matchParser) parseOr() (policy.MatchExpr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	operands := []policy.MatchExpr{left}
	for p.tok.Type == TokOr {
		p.advance()
		next, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		operands = append(operands, next)
	}
	if len(operands) == 1 {
		return operands[0], nil
	}
	return policy.Or{Operands: operands}, nil
}

func (p *matchParser) parseAnd() (policy.MatchExpr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	operands := []policy.MatchExpr{left}
	for p.tok.Type == TokAnd {
		p.advance()
		next, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		operands = append(operands, next)
	}
	if len(operands) == 1 {
		return operands[0], nil
	}
	return policy.And{Operands: operands}, nil
}

func (p *matchParser) parseUnary() (policy.MatchExpr, error) {
	if p.tok.Type == TokNot {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return policy.Not{Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *matchParser) parsePrimary() (policy.MatchExpr, error) {
	switch p.tok.Type {
	case TokLParen:
		p.advance()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.tok.Type != TokRParen {
			return nil, p.errorf("expected ')'")
		}
		p.advance()
		return expr, nil
	case TokBool:
		if p.tok.Value == "true" {
			p.advance()
			return policy.Tautology{}, nil
		}
		return nil, p.errorf("'false' is not a valid standalone match expression")
	case TokIdent:
		return p.parseFieldCompare()
	default:
		return nil, p.errorf("expected field path, '(', or 'true', found %q", p.tok.Value)
	}
}

func (p *matchParser) parseFieldCompare() (policy.MatchExpr, error) {
	field := p.tok.Value
	p.advance()

	if p.tok.Type == TokExists {
		p.advance()
		return policy.FieldCompare{Field: field, Op: policy.OpExists}, nil
	}

	op, ok := compareOpFor(p.tok.Type)
	if !ok {
		return nil, p.errorf("expected comparison operator or 'exists' after field %q, found %q", field, p.tok.Value)
	}
	p.advance()

	value, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	return policy.FieldCompare{Field: field, Op: op, Value: value}, nil
}

func compareOpFor(t TokenType) (policy.CompareOp, bool) {
	switch t {
	case TokEq:
		return policy.OpEq, true
	case TokNeq:
		return policy.OpNeq, true
	case TokGt:
		return policy.OpGt, true
	case TokGte:
		return policy.OpGte, true
	case TokLt:
		return policy.OpLt, true
	case TokLte:
		return policy.OpLte, true
	case TokGlob:
		return policy.OpGlob, true
	case TokContains:
		return policy.OpContains, true
	default:
		return 0, false
	}
}

func (p *matchParser) parseLiteral() (trace.Value, error) {
	switch p.tok.Type {
	case TokString:
		v := trace.String(p.tok.Value)
		p.advance()
		return v, nil
	case TokNumber:
		text := p.tok.Value
		p.advance()
		if strings.Contains(text, ".") {
			f, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return trace.Value{}, p.errorf("invalid number %q", text)
			}
			return trace.Float(f), nil
		}
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return trace.Value{}, p.errorf("invalid number %q", text)
		}
		return trace.Int(i), nil
	case TokDuration:
		text := p.tok.Value
		p.advance()
		d, err := parseDurationLiteral(text)
		if err != nil {
			return trace.Value{}, p.errorf("%v", err)
		}
		return trace.Duration(d), nil
	case TokBool:
		b := p.tok.Value == "true"
		p.advance()
		return trace.Bool(b), nil
	default:
		return trace.Value{}, p.errorf("expected a literal value, found %q", p.tok.Value)
	}
}

// parseDurationLiteral normalizes an "ms" or "s" suffixed duration
// literal to nanoseconds, per spec §3.
func parseDurationLiteral(text string) (time.Duration, error) {
	switch {
	case strings.HasSuffix(text, "ms"):
		n, err := strconv.ParseFloat(strings.TrimSuffix(text, "ms"), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", text)
		}
		return time.Duration(n * float64(time.Millisecond)), nil
	case strings.HasSuffix(text, "s"):
		n, err := strconv.ParseFloat(strings.TrimSuffix(text, "s"), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", text)
		}
		return time.Duration(n * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("invalid duration %q", text)
	}
}
