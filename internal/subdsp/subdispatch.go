package subdsp

import (
	"context"
	"fmt"

	"github.com/gyaneshwarpardhi/dispatch/internal/dag"
)

// Shape selects what a SubDispatch returns.
type Shape int

const (
	// All returns the *dag.Solution itself.
	All Shape = iota
	// Dict returns a map of the requested outputs, or of every value when no
	// outputs were requested.
	Dict
	// List returns the requested outputs in order.
	List
	// Value returns the single requested output.
	Value
)

// SubDispatch wraps a graph as a callable. Every argument is an input set
// (map[string]any); later sets override earlier ones.
type SubDispatch struct {
	graph   *dag.Graph
	outputs []string
	shape   Shape
	opts    []dag.DispatchOption
}

// NewSubDispatch copies g and wraps it. List needs at least one output and
// Value exactly one.
func NewSubDispatch(g *dag.Graph, outputs []string, shape Shape, opts ...dag.DispatchOption) (*SubDispatch, error) {
	switch {
	case shape == List && len(outputs) == 0:
		return nil, fmt.Errorf("%w: list shape needs outputs", ErrArguments)
	case shape == Value && len(outputs) != 1:
		return nil, fmt.Errorf("%w: value shape needs exactly one output, got %d", ErrArguments, len(outputs))
	case shape < All || shape > Value:
		return nil, fmt.Errorf("%w: unknown shape %d", ErrArguments, shape)
	}
	if len(outputs) > 0 {
		opts = append([]dag.DispatchOption{dag.Outputs(outputs...)}, opts...)
	}
	return &SubDispatch{
		graph:   g.Copy(),
		outputs: append([]string(nil), outputs...),
		shape:   shape,
		opts:    opts,
	}, nil
}

// Name is the graph name; AddFunction uses it as the default node id.
func (s *SubDispatch) Name() string { return s.graph.Name() }

// Call implements dag.Func.
func (s *SubDispatch) Call(ctx context.Context, args []any) ([]any, error) {
	inputs := make(map[string]any)
	for i, a := range args {
		m, ok := a.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: argument %d is %T, want map[string]any", ErrArguments, i, a)
		}
		for k, v := range m {
			inputs[k] = v
		}
	}
	sol, err := s.graph.Dispatch(ctx, inputs, s.opts...)
	if err != nil {
		return nil, err
	}

	switch s.shape {
	case All:
		return []any{sol}, nil
	case Dict:
		if len(s.outputs) == 0 {
			return []any{sol.Values()}, nil
		}
		out := make(map[string]any, len(s.outputs))
		for _, id := range s.outputs {
			if v, ok := sol.Get(id); ok {
				out[id] = v
			}
		}
		return []any{out}, nil
	}

	values, err := collect(sol.Get, sol.Errors(), s.outputs)
	if err != nil {
		return nil, err
	}
	if s.shape == Value {
		return values, nil
	}
	return []any{values}, nil
}

// collect returns the outputs in order, or ErrUnreachableOutput joined with
// the errors recorded on the way.
func collect(get func(id string) (any, bool), recorded map[string]error, outputs []string) ([]any, error) {
	out := make([]any, len(outputs))
	var missing []string
	for i, id := range outputs {
		v, ok := get(id)
		if !ok {
			missing = append(missing, id)
			continue
		}
		out[i] = v
	}
	if len(missing) > 0 {
		return nil, unreachable(missing, recorded)
	}
	return out, nil
}
