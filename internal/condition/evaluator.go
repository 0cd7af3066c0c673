package condition

import (
	"fmt"
	"strings"
)

// EvalContext provides data for expression evaluation.
type EvalContext interface {
	Resolve(path []string) (interface{}, bool)
}

// Vars is an EvalContext over a flat name → value map. Nested maps are
// walked for dotted paths.
type Vars map[string]interface{}

// Resolve implements EvalContext.
func (v Vars) Resolve(path []string) (interface{}, bool) {
	if len(path) == 0 {
		return nil, false
	}
	val, ok := v[path[0]]
	if !ok {
		return nil, false
	}
	if len(path) == 1 {
		return val, true
	}
	sub, ok := val.(map[string]interface{})
	if !ok {
		return nil, false
	}
	return Vars(sub).Resolve(path[1:])
}

// Evaluate walks the AST and returns true/false or an error.
func Evaluate(expr Expr, ctx EvalContext) (bool, error) {
	switch e := expr.(type) {
	case *BinaryExpr:
		return evalBinary(e, ctx)
	case *NotExpr:
		v, err := Evaluate(e.Expr, ctx)
		if err != nil {
			return false, err
		}
		return !v, nil
	case *ComparisonExpr:
		return evalComparison(e, ctx)
	case *TruthExpr:
		v, err := EvaluateValue(e.Operand, ctx)
		if err != nil {
			return false, err
		}
		return truthy(v), nil
	default:
		return false, fmt.Errorf("unknown expr type %T", expr)
	}
}

// EvaluateValue computes the value of an operand.
func EvaluateValue(op Operand, ctx EvalContext) (interface{}, error) {
	switch o := op.(type) {
	case *LiteralOperand:
		return o.Value, nil
	case *FieldOperand:
		val, ok := ctx.Resolve(o.Path)
		if !ok {
			return nil, fmt.Errorf("field %q not found", strings.Join(o.Path, "."))
		}
		return val, nil
	case *ArithOperand:
		left, err := EvaluateValue(o.Left, ctx)
		if err != nil {
			return nil, err
		}
		right, err := EvaluateValue(o.Right, ctx)
		if err != nil {
			return nil, err
		}
		return arithmetic(o.Op, left, right)
	default:
		return nil, fmt.Errorf("unknown operand type %T", op)
	}
}

func evalBinary(e *BinaryExpr, ctx EvalContext) (bool, error) {
	left, err := Evaluate(e.Left, ctx)
	if err != nil {
		return false, err
	}
	switch strings.ToUpper(e.Op) {
	case "AND":
		if !left {
			return false, nil // short-circuit
		}
		return Evaluate(e.Right, ctx)
	case "OR":
		if left {
			return true, nil // short-circuit
		}
		return Evaluate(e.Right, ctx)
	default:
		return false, fmt.Errorf("unknown binary op %q", e.Op)
	}
}

func evalComparison(e *ComparisonExpr, ctx EvalContext) (bool, error) {
	left, err := EvaluateValue(e.Left, ctx)
	if err != nil {
		return false, err
	}
	right, err := EvaluateValue(e.Right, ctx)
	if err != nil {
		return false, err
	}
	return compare(e.Op, left, right)
}

// Predicate is a compiled boolean expression bound to its source text.
type Predicate struct {
	Source string
	expr   Expr
}

// Compile parses a boolean expression once for repeated evaluation.
func Compile(src string) (*Predicate, error) {
	expr, err := Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", src, err)
	}
	return &Predicate{Source: src, expr: expr}, nil
}

// Eval evaluates the predicate against vars.
func (p *Predicate) Eval(vars Vars) (bool, error) {
	return Evaluate(p.expr, vars)
}

// Formula is a compiled arithmetic expression bound to its source text.
type Formula struct {
	Source string
	op     Operand
}

// CompileFormula parses an arithmetic expression once for repeated evaluation.
func CompileFormula(src string) (*Formula, error) {
	op, err := ParseValue(src)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", src, err)
	}
	return &Formula{Source: src, op: op}, nil
}

// Eval evaluates the formula against vars.
func (f *Formula) Eval(vars Vars) (interface{}, error) {
	return EvaluateValue(f.op, vars)
}
