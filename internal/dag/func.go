package dag

import (
	"context"
	"reflect"

	"github.com/gyaneshwarpardhi/dispatch/internal/condition"
)

// Func is a node callable: ordered argument values in, ordered results out.
type Func interface {
	Call(ctx context.Context, args []any) ([]any, error)
}

// FuncOf adapts an ordinary function to Func.
type FuncOf func(ctx context.Context, args []any) ([]any, error)

// Call implements Func.
func (f FuncOf) Call(ctx context.Context, args []any) ([]any, error) { return f(ctx, args) }

// Fn adapts a single-result function to Func.
func Fn(f func(args ...any) (any, error)) Func {
	return FuncOf(func(_ context.Context, args []any) ([]any, error) {
		v, err := f(args...)
		if err != nil {
			return nil, err
		}
		return []any{v}, nil
	})
}

// Arity is implemented by callables that accept a bounded number of
// arguments. Max is -1 for variadic callables.
type Arity interface {
	Arity() (min, max int)
}

// Namer is implemented by callables that suggest their own node id.
type Namer interface {
	Name() string
}

// Domain decides whether a node may fire with the gathered arguments.
type Domain func(args []any) (bool, error)

// DataFunc merges the values received by a data node, keyed by the id of the
// producing node (the start id for inputs and defaults). Returning the Empty
// or None token vetoes the storage of the value.
type DataFunc func(values map[string]any) (any, error)

// Filter rewrites a value before it is stored.
type Filter func(v any) (any, error)

// exprDomain compiles a boolean expression over the named node inputs.
func exprDomain(src string, inputs []string) (Domain, error) {
	pred, err := condition.Compile(src)
	if err != nil {
		return nil, err
	}
	return func(args []any) (bool, error) {
		vars := make(condition.Vars, len(inputs))
		for i, id := range inputs {
			if i < len(args) {
				vars[id] = args[i]
			}
		}
		return pred.Eval(vars)
	}, nil
}

// sameFunc reports whether two callables are the same value. Function values
// are compared by code pointer; other comparable values by equality.
func sameFunc(a, b Func) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Kind() == reflect.Func {
		return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
	}
	if ta.Comparable() {
		return a == b
	}
	return false
}

func funcName(fn Func) string {
	if n, ok := fn.(Namer); ok && n.Name() != "" {
		return n.Name()
	}
	return "function"
}
