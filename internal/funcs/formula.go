package funcs

import (
	"context"
	"fmt"
	"slices"

	"github.com/gyaneshwarpardhi/dispatch/internal/condition"
)

// Formula is a function computing an arithmetic expression over its named
// inputs, for example "a * b + 1".
type Formula struct {
	formula *condition.Formula
	inputs  []string
}

// NewFormula compiles expr. Every field the expression reads must be one of
// inputs.
func NewFormula(expr string, inputs []string) (*Formula, error) {
	f, err := condition.CompileFormula(expr)
	if err != nil {
		return nil, fmt.Errorf("formula: %w", err)
	}
	fields, err := condition.Fields(expr)
	if err != nil {
		return nil, fmt.Errorf("formula: %w", err)
	}
	for _, name := range fields {
		if !slices.Contains(inputs, name) {
			return nil, fmt.Errorf("formula %q: %q is not an input", expr, name)
		}
	}
	return &Formula{formula: f, inputs: slices.Clone(inputs)}, nil
}

func (f *Formula) Call(_ context.Context, args []any) ([]any, error) {
	vars := make(condition.Vars, len(f.inputs))
	for i, name := range f.inputs {
		if i < len(args) {
			vars[name] = args[i]
		}
	}
	v, err := f.formula.Eval(vars)
	if err != nil {
		return nil, fmt.Errorf("formula %q: %w", f.formula.Source, err)
	}
	return []any{v}, nil
}

func (f *Formula) Name() string          { return "formula" }
func (f *Formula) Expression() string    { return f.formula.Source }
func (f *Formula) Arity() (min, max int) { return len(f.inputs), len(f.inputs) }
