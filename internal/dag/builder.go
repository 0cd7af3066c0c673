package dag

import (
	"context"
	"fmt"

	"github.com/gyaneshwarpardhi/dispatch/internal/config"
	"github.com/gyaneshwarpardhi/dispatch/internal/token"
)

// Resolver supplies the callables named by a graph definition.
type Resolver interface {
	// Lookup returns the function registered under name.
	Lookup(name string) (Func, error)
	// Formula compiles an arithmetic expression over the named inputs.
	Formula(expr string, inputs []string) (Func, error)
}

// Expressioner is implemented by formula functions; the expression is what
// gets persisted.
type Expressioner interface {
	Expression() string
}

// Build constructs a Graph from a validated definition.
// All expressions are compiled here; zero parsing happens at dispatch time.
func Build(def *config.GraphDef, r Resolver, opts ...GraphOption) (*Graph, error) {
	raises := RaiseFor(def.Raises.Prefixes...)
	if def.Raises.All {
		raises = RaiseAll()
	}
	g := New(append([]GraphOption{
		WithName(def.Name),
		WithDescription(def.Description),
		WithWeight(def.Weight),
		WithRaises(raises),
	}, opts...)...)

	for i, nd := range def.Nodes {
		var err error
		switch {
		case nd.Data != nil:
			err = buildData(g, nd.Data, r)
		case nd.Function != nil:
			err = buildFunction(g, nd.Function, r)
		case nd.Dispatcher != nil:
			err = buildDispatcher(g, nd.Dispatcher, r, opts)
		default:
			err = constructionf("nodes[%d]: one of data/function/dispatcher must be set", i)
		}
		if err != nil {
			return nil, fmt.Errorf("graph %s: %w", def.Name, err)
		}
	}
	return g, nil
}

func buildData(g *Graph, d *config.DataDef, r Resolver) error {
	opts := []Option{Describe(d.Description)}
	if d.HasDefault() {
		opts = append(opts, DefaultValue(d.Default), InitialDist(d.InitialDist))
	}
	if d.Wildcard {
		opts = append(opts, Wildcard())
	}
	if d.WaitInputs {
		opts = append(opts, WaitInputs(true))
	}
	if d.Transform != "" {
		fn, err := r.Lookup(d.Transform)
		if err != nil {
			return fmt.Errorf("data %s: transform: %w", d.ID, err)
		}
		opts = append(opts, Transform(func(values map[string]any) (any, error) {
			return first(fn.Call(context.Background(), []any{values}))
		}), transformRef(d.Transform))
	}
	for _, name := range d.Filters {
		fn, err := r.Lookup(name)
		if err != nil {
			return fmt.Errorf("data %s: filter: %w", d.ID, err)
		}
		opts = append(opts, Filters(func(v any) (any, error) {
			return first(fn.Call(context.Background(), []any{v}))
		}), filterRefs(name))
	}
	_, err := g.AddData(d.ID, opts...)
	return err
}

func buildFunction(g *Graph, f *config.FunctionDef, r Resolver) error {
	var (
		fn  Func
		err error
	)
	opts := []Option{Describe(f.Description), Executor(f.Executor)}
	switch {
	case f.Function != "":
		fn, err = r.Lookup(f.Function)
		opts = append(opts, Ref(f.Function))
	case f.Expr != "":
		fn, err = r.Formula(f.Expr, argIDs(f.Inputs))
	default:
		err = constructionf("one of function/expr must be set")
	}
	if err != nil {
		return fmt.Errorf("function %s: %w", f.ID, err)
	}
	if f.Domain != "" {
		opts = append(opts, DomainExpr(f.Domain))
	}
	if f.Weight != nil {
		opts = append(opts, Weight(*f.Weight))
	}
	if f.WaitInputs != nil {
		opts = append(opts, WaitInputs(*f.WaitInputs))
	}
	if len(f.InputWeights) > 0 {
		opts = append(opts, InputWeights(f.InputWeights))
	}
	if len(f.OutputWeights) > 0 {
		opts = append(opts, OutputWeights(f.OutputWeights))
	}
	_, err = g.AddFunction(f.ID, fn, f.Inputs, f.Outputs, opts...)
	return err
}

func buildDispatcher(g *Graph, d *config.DispatcherDef, r Resolver, gopts []GraphOption) error {
	if d.Graph == nil {
		return constructionf("dispatcher %s: graph is required", d.ID)
	}
	sub, err := Build(d.Graph, r, gopts...)
	if err != nil {
		return fmt.Errorf("dispatcher %s: %w", d.ID, err)
	}
	opts := []Option{Describe(d.Description)}
	if d.IncludeDefaults {
		opts = append(opts, IncludeDefaults())
	}
	if d.Domain != "" {
		opts = append(opts, DomainExpr(d.Domain))
	}
	if d.Weight != nil {
		opts = append(opts, Weight(*d.Weight))
	}
	if d.WaitInputs != nil {
		opts = append(opts, WaitInputs(*d.WaitInputs))
	}
	_, err = g.AddDispatcher(d.ID, sub, toLinks(d.Inputs), toLinks(d.Outputs), opts...)
	return err
}

func toLinks(defs []config.LinkDef) []Link {
	out := make([]Link, len(defs))
	for i, l := range defs {
		out[i] = Link{From: l.From, To: l.To}
	}
	return out
}

func first(out []any, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: got %d, want 1", ErrOutputArity, len(out))
	}
	return out[0], nil
}

// Definition returns the persistable form of the graph. Every function must
// carry a registry name or be a formula, every domain must be an
// expression and data nodes must not hold unnamed transforms, filters or
// callbacks.
func (g *Graph) Definition() (*config.GraphDef, error) {
	def := &config.GraphDef{
		Version:     "1",
		Name:        g.name,
		Description: g.description,
		Weight:      g.weight,
		Raises:      config.RaisesDef{All: g.raises.all, Prefixes: g.raises.Prefixes()},
	}
	for _, n := range g.nodes {
		var nd config.NodeDef
		switch x := n.(type) {
		case *DataNode:
			if (x.transform != nil && x.transformRef == "") || len(x.filters) != len(x.filterRefs) || x.callback != nil {
				return nil, fmt.Errorf("%w: data %s holds unnamed callables", ErrNotSerializable, x.id)
			}
			dd := &config.DataDef{
				ID:          x.id,
				Description: x.description,
				Wildcard:    x.wildcard,
				WaitInputs:  x.wait,
				Transform:   x.transformRef,
				Filters:     x.FilterRefs(),
			}
			if d, ok := g.defaults[x.id]; ok {
				dd.Default, dd.InitialDist = d.Value, d.InitialDist
			}
			nd.Data = dd
		case *FunctionNode:
			fd, err := functionDef(x)
			if err != nil {
				return nil, err
			}
			nd.Function = fd
		case *DispatcherNode:
			if x.domain != nil && x.domainSrc == "" {
				return nil, fmt.Errorf("%w: dispatcher %s has a non-expression domain", ErrNotSerializable, x.id)
			}
			sub, err := x.graph.Definition()
			if err != nil {
				return nil, fmt.Errorf("dispatcher %s: %w", x.id, err)
			}
			wait := x.wait
			dd := &config.DispatcherDef{
				ID:              x.id,
				Description:     x.description,
				Graph:           sub,
				Outputs:         linkDefs(x.outputs),
				IncludeDefaults: x.includeDefaults,
				Domain:          x.domainSrc,
				WaitInputs:      &wait,
			}
			if !(len(x.inputs) == 1 && x.inputs[0].From == token.StartID) {
				dd.Inputs = linkDefs(x.inputs)
			}
			if x.hasWeight {
				w := x.weight
				dd.Weight = &w
			}
			nd.Dispatcher = dd
		}
		def.Nodes = append(def.Nodes, nd)
	}
	return def, nil
}

func functionDef(x *FunctionNode) (*config.FunctionDef, error) {
	fd := &config.FunctionDef{
		ID:            x.id,
		Description:   x.description,
		Function:      x.ref,
		Domain:        x.domainSrc,
		InputWeights:  x.InputWeights(),
		OutputWeights: x.OutputWeights(),
		Executor:      x.executor,
	}
	if fd.Function == "" {
		e, ok := x.fn.(Expressioner)
		if !ok {
			return nil, fmt.Errorf("%w: function %s has no registry name", ErrNotSerializable, x.id)
		}
		fd.Expr = e.Expression()
	}
	if x.domain != nil && x.domainSrc == "" {
		return nil, fmt.Errorf("%w: function %s has a non-expression domain", ErrNotSerializable, x.id)
	}
	if !(len(x.inputs) == 1 && x.inputs[0] == token.StartID) {
		fd.Inputs = x.Inputs()
	}
	if !x.autoOutput {
		fd.Outputs = x.Outputs()
	}
	if x.hasWeight {
		w := x.weight
		fd.Weight = &w
	}
	wait := x.wait
	fd.WaitInputs = &wait
	return fd, nil
}

func linkDefs(ls []Link) []config.LinkDef {
	out := make([]config.LinkDef, len(ls))
	for i, l := range ls {
		out[i] = config.LinkDef{From: l.From, To: l.To}
	}
	return out
}
