package funcs

import (
	"context"
	"fmt"

	"github.com/gyaneshwarpardhi/dispatch/internal/condition"
)

// builtin is a named callable with a fixed arity range. Max is -1 for
// variadic builtins.
type builtin struct {
	name   string
	lo, hi int
	fn     func(args []any) ([]any, error)
}

func (b *builtin) Call(_ context.Context, args []any) ([]any, error) {
	if len(args) < b.lo || (b.hi >= 0 && len(args) > b.hi) {
		return nil, fmt.Errorf("%s: %d arguments, want %d..%d", b.name, len(args), b.lo, b.hi)
	}
	return b.fn(args)
}

func (b *builtin) Name() string          { return b.name }
func (b *builtin) Arity() (min, max int) { return b.lo, b.hi }

func builtins() []*builtin {
	return []*builtin{
		{name: "max", lo: 1, hi: -1, fn: pick(func(c, best float64) bool { return c > best })},
		{name: "min", lo: 1, hi: -1, fn: pick(func(c, best float64) bool { return c < best })},
		{name: "sum", lo: 1, hi: -1, fn: sum},
		{name: "identity", lo: 1, hi: 1, fn: func(args []any) ([]any, error) { return args[:1], nil }},
		{name: "bypass", lo: 1, hi: -1, fn: func(args []any) ([]any, error) { return append([]any(nil), args...), nil }},
		{name: "replicate", lo: 2, hi: 2, fn: replicate},
		{name: "summation", lo: 1, hi: 1, fn: summation},
	}
}

// pick returns the argument preferred by better, keeping its original type.
func pick(better func(c, best float64) bool) func(args []any) ([]any, error) {
	return func(args []any) ([]any, error) {
		bestIdx := -1
		var best float64
		for i, a := range args {
			f, ok := condition.ToFloat64(a)
			if !ok {
				return nil, fmt.Errorf("argument %d: %T is not numeric", i, a)
			}
			if bestIdx < 0 || better(f, best) {
				bestIdx, best = i, f
			}
		}
		return []any{args[bestIdx]}, nil
	}
}

func sum(args []any) ([]any, error) {
	total, err := add(args)
	if err != nil {
		return nil, err
	}
	return []any{total}, nil
}

// summation adds up the elements of a single list argument.
func summation(args []any) ([]any, error) {
	list, ok := args[0].([]any)
	if !ok {
		return nil, fmt.Errorf("summation: %T is not a list", args[0])
	}
	return sum(list)
}

func add(args []any) (float64, error) {
	var total float64
	for i, a := range args {
		f, ok := condition.ToFloat64(a)
		if !ok {
			return 0, fmt.Errorf("argument %d: %T is not numeric", i, a)
		}
		total += f
	}
	return total, nil
}

// replicate returns n copies of v.
func replicate(args []any) ([]any, error) {
	n, ok := condition.ToFloat64(args[1])
	if !ok || n < 0 || n != float64(int(n)) {
		return nil, fmt.Errorf("replicate: count %v is not a non-negative integer", args[1])
	}
	out := make([]any, int(n))
	for i := range out {
		out[i] = args[0]
	}
	return out, nil
}
