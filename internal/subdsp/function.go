package subdsp

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/gyaneshwarpardhi/dispatch/internal/dag"
)

// Param describes one parameter of a Function.
type Param struct {
	Name string
	// Default is the graph default used when the argument is omitted.
	Default    any
	HasDefault bool
	// KeywordOnly parameters are graph defaults outside the declared inputs;
	// only CallKw can override them.
	KeywordOnly bool
}

// Function is a graph with a fixed signature: declared inputs in, declared
// outputs out. A dispatch that misses an output is an error, never a partial
// result.
type Function struct {
	name    string
	graph   *dag.Graph
	inputs  []string
	outputs []string
	params  []Param
	opts    []dag.DispatchOption
}

// NewFunction shrinks g to the nodes that compute outputs from inputs.
func NewFunction(g *dag.Graph, inputs, outputs []string, opts ...dag.DispatchOption) (*Function, error) {
	if len(outputs) == 0 {
		return nil, fmt.Errorf("%w: no outputs", ErrArguments)
	}
	for _, in := range inputs {
		if n := g.Node(in); n == nil || n.Kind() != dag.KindData {
			return nil, fmt.Errorf("%w: input %q is not a data node", ErrArguments, in)
		}
	}
	shrunk := g.ShrinkDsp(inputs, outputs)
	var missing []string
	for _, o := range outputs {
		if !shrunk.Has(o) {
			missing = append(missing, o)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v cannot be computed from %v", ErrUnreachableOutput, missing, inputs)
	}

	f := &Function{
		name:    g.Name(),
		graph:   shrunk,
		inputs:  slices.Clone(inputs),
		outputs: slices.Clone(outputs),
		opts:    append([]dag.DispatchOption{dag.Outputs(outputs...)}, opts...),
	}
	for _, in := range inputs {
		p := Param{Name: in}
		if d, ok := g.DefaultOf(in); ok {
			p.Default, p.HasDefault = d.Value, true
		}
		f.params = append(f.params, p)
	}
	for _, n := range shrunk.Nodes() {
		if slices.Contains(inputs, n.ID()) {
			continue
		}
		if d, ok := shrunk.DefaultOf(n.ID()); ok {
			f.params = append(f.params, Param{Name: n.ID(), Default: d.Value, HasDefault: true, KeywordOnly: true})
		}
	}
	return f, nil
}

// Name is the graph name.
func (f *Function) Name() string { return f.name }

// Params returns the positional parameters followed by the keyword-only ones.
func (f *Function) Params() []Param { return slices.Clone(f.params) }

func (f *Function) Inputs() []string  { return slices.Clone(f.inputs) }
func (f *Function) Outputs() []string { return slices.Clone(f.outputs) }

// Graph returns the shrunk graph the function dispatches.
func (f *Function) Graph() *dag.Graph { return f.graph }

// Arity implements dag.Arity: required positional parameters up to all of
// them.
func (f *Function) Arity() (int, int) {
	return f.required(), len(f.inputs)
}

func (f *Function) required() int {
	n := 0
	for i, p := range f.params[:len(f.inputs)] {
		if !p.HasDefault {
			n = i + 1
		}
	}
	return n
}

// Call implements dag.Func. Arguments bind to the inputs in order; trailing
// inputs with defaults may be omitted.
func (f *Function) Call(ctx context.Context, args []any) ([]any, error) {
	kw, err := f.bind(args)
	if err != nil {
		return nil, err
	}
	return f.run(ctx, kw)
}

// CallKw calls the function with named arguments. Keyword-only parameters
// are accepted here.
func (f *Function) CallKw(ctx context.Context, kw map[string]any) ([]any, error) {
	if err := f.check(kw); err != nil {
		return nil, err
	}
	return f.run(ctx, kw)
}

func (f *Function) bind(args []any) (map[string]any, error) {
	lo, hi := f.Arity()
	if len(args) < lo || len(args) > hi {
		return nil, fmt.Errorf("%w: %s takes %d to %d arguments, got %d", ErrArguments, f.name, lo, hi, len(args))
	}
	kw := make(map[string]any, len(args))
	for i, a := range args {
		kw[f.inputs[i]] = a
	}
	return kw, nil
}

func (f *Function) check(kw map[string]any) error {
	known := make(map[string]Param, len(f.params))
	for _, p := range f.params {
		known[p.Name] = p
	}
	for _, k := range slices.Sorted(maps.Keys(kw)) {
		if _, ok := known[k]; !ok {
			return fmt.Errorf("%w: %s has no parameter %q", ErrArguments, f.name, k)
		}
	}
	for _, p := range f.params {
		if _, ok := kw[p.Name]; !ok && !p.HasDefault {
			return fmt.Errorf("%w: %s: missing argument %q", ErrArguments, f.name, p.Name)
		}
	}
	return nil
}

func (f *Function) run(ctx context.Context, kw map[string]any) ([]any, error) {
	sol, err := f.graph.Dispatch(ctx, kw, f.opts...)
	if err != nil {
		return nil, err
	}
	return collect(sol.Get, sol.Errors(), f.outputs)
}

// unreachable builds the error for missing outputs, chained with the node
// errors recorded along the way in node id order.
func unreachable(missing []string, recorded map[string]error) error {
	errs := []error{fmt.Errorf("%w: %v", ErrUnreachableOutput, missing)}
	for _, id := range slices.Sorted(maps.Keys(recorded)) {
		errs = append(errs, &dag.NodeError{Path: []string{id}, Err: recorded[id]})
	}
	return errors.Join(errs...)
}
