package subdsp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/gyaneshwarpardhi/dispatch/internal/dag"
	"github.com/gyaneshwarpardhi/dispatch/internal/metrics"
	"github.com/gyaneshwarpardhi/dispatch/internal/token"
)

// Step is one node of a compiled route.
type Step struct {
	ID   string   `msgpack:"id"`
	Kind dag.Kind `msgpack:"kind"`
	// Args are the data ids a callable is called with. A data step set by a
	// callable names that producer; inputs and defaults leave it empty.
	Args []string `msgpack:"args,omitempty"`
}

// endStep closes every route.
var endStep = Step{ID: token.EndID}

// Pipe is a graph compiled for one inputs → outputs contract. Compilation
// runs a single NoCall dispatch and records the nodes it visits; every call
// replays that route without the priority queue.
type Pipe struct {
	id          string
	fingerprint string
	graph       *dag.Graph
	inputs      []string
	outputs     []string
	route       []Step
	log         *slog.Logger
}

// Compile shrinks g to the contract and records the route.
func Compile(ctx context.Context, g *dag.Graph, inputs, outputs []string) (*Pipe, error) {
	fn, err := NewFunction(g, inputs, outputs)
	if err != nil {
		return nil, err
	}
	shrunk := fn.Graph()
	seed := make(map[string]any, len(inputs))
	for _, in := range inputs {
		seed[in] = token.None
	}
	sol, err := shrunk.Dispatch(ctx, seed, dag.Outputs(outputs...), dag.NoCall())
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", g.Name(), err)
	}
	if _, err := collect(sol.Get, sol.Errors(), outputs); err != nil {
		return nil, fmt.Errorf("compile %s: %w", g.Name(), err)
	}

	p := &Pipe{
		id:          uuid.NewString(),
		fingerprint: g.Fingerprint(),
		graph:       shrunk,
		inputs:      slices.Clone(inputs),
		outputs:     slices.Clone(outputs),
		route:       route(shrunk, sol),
		log:         g.Logger(),
	}
	p.log.Debug("pipe compiled", "pipe", p.id, "graph", g.Name(), "steps", len(p.route))
	return p, nil
}

// route orders the visited nodes the outputs depend on.
func route(g *dag.Graph, sol *dag.Solution) []Step {
	wf := sol.Workflow()
	order := make(map[string]int)
	var steps []Step
	for _, e := range sol.Pipe() {
		if e.Err != nil || !wf.Has(e.ID) {
			continue
		}
		if _, seen := order[e.ID]; seen {
			continue
		}
		order[e.ID] = len(steps)
		step := Step{ID: e.ID, Kind: e.Kind}
		if c, ok := g.Node(e.ID).(dag.Callable); ok {
			step.Args = args(c, order)
		} else if e.From != "" && e.From != token.StartID {
			step.Args = []string{e.From}
		}
		steps = append(steps, step)
	}
	return append(steps, endStep)
}

// args picks the argument ids of a callable: all of them when it waits for
// its inputs, else the one that arrived first.
func args(c dag.Callable, order map[string]int) []string {
	var ids []string
	for _, in := range c.Inputs() {
		if in != token.StartID {
			ids = append(ids, in)
		}
	}
	if c.WaitInputs() || len(ids) == 0 {
		return ids
	}
	first := ""
	for _, in := range ids {
		if i, ok := order[in]; ok && (first == "" || i < order[first]) {
			first = in
		}
	}
	if first == "" {
		return nil
	}
	return []string{first}
}

// ID identifies the compiled route.
func (p *Pipe) ID() string { return p.id }

// Name is the graph name.
func (p *Pipe) Name() string { return p.graph.Name() }

// Fingerprint is the fingerprint of the graph the route was compiled from.
func (p *Pipe) Fingerprint() string { return p.fingerprint }

// Route returns the compiled steps, ending with the end step.
func (p *Pipe) Route() []Step {
	out := make([]Step, len(p.route))
	for i, s := range p.route {
		out[i] = Step{ID: s.ID, Kind: s.Kind, Args: slices.Clone(s.Args)}
	}
	return out
}

// Arity implements dag.Arity.
func (p *Pipe) Arity() (int, int) { return len(p.inputs), len(p.inputs) }

// Call implements dag.Func; arguments bind to the inputs in order.
func (p *Pipe) Call(ctx context.Context, args []any) ([]any, error) {
	if len(args) != len(p.inputs) {
		return nil, fmt.Errorf("%w: pipe takes %d arguments, got %d", ErrArguments, len(p.inputs), len(args))
	}
	kw := make(map[string]any, len(args))
	for i, a := range args {
		kw[p.inputs[i]] = a
	}
	return p.CallKw(ctx, kw)
}

// CallKw replays the route on the named inputs.
func (p *Pipe) CallKw(ctx context.Context, kw map[string]any) ([]any, error) {
	for _, in := range p.inputs {
		if _, ok := kw[in]; !ok {
			return nil, fmt.Errorf("%w: missing argument %q", ErrArguments, in)
		}
	}
	out, err := p.replay(ctx, kw)
	outcome := "success"
	switch {
	case errors.Is(err, ErrRouteChanged):
		outcome = "route_changed"
	case err != nil:
		outcome = "error"
	}
	metrics.PipeReplays.WithLabelValues(outcome).Inc()
	return out, err
}

// replay runs the route. Values produced by callables wait in staged until
// their data step is reached; each data node is set once.
func (p *Pipe) replay(ctx context.Context, kw map[string]any) ([]any, error) {
	values := make(map[string]any)
	staged := make(map[string]map[string]any)
	producers := make(map[string][]string)
	stage := func(id, from string, v any) {
		if staged[id] == nil {
			staged[id] = make(map[string]any)
		}
		if _, ok := staged[id][from]; !ok {
			staged[id][from] = v
			producers[id] = append(producers[id], from)
		}
	}

	for _, step := range p.route {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch n := p.graph.Node(step.ID).(type) {
		case *dag.DataNode:
			if _, set := values[n.ID()]; set {
				continue
			}
			v, err := p.data(n, step, kw, staged[n.ID()], producers[n.ID()])
			if err != nil {
				return nil, err
			}
			values[n.ID()] = v
		case *dag.FunctionNode:
			in, err := p.gather(n, step, values)
			if err != nil {
				return nil, err
			}
			out, err := n.Func().Call(ctx, in)
			if err != nil {
				return nil, &dag.NodeError{Path: []string{n.ID()}, Err: err}
			}
			if n.SinkOnly() {
				continue
			}
			if len(out) != len(n.Outputs()) {
				return nil, &dag.NodeError{Path: []string{n.ID()},
					Err: fmt.Errorf("%w: got %d, want %d", dag.ErrOutputArity, len(out), len(n.Outputs()))}
			}
			for i, o := range n.Outputs() {
				if o != token.SinkID {
					stage(o, n.ID(), out[i])
				}
			}
		case *dag.DispatcherNode:
			in, err := p.gather(n, step, values)
			if err != nil {
				return nil, err
			}
			mapped := make(map[string]any)
			for _, l := range n.InputLinks() {
				if i := slices.Index(step.Args, l.From); i >= 0 {
					if _, dup := mapped[l.To]; !dup {
						mapped[l.To] = in[i]
					}
				}
			}
			var inner []string
			for _, l := range n.OutputLinks() {
				inner = append(inner, l.From)
			}
			sub, err := n.Graph().Dispatch(ctx, mapped, dag.Outputs(inner...))
			if err != nil {
				var ne *dag.NodeError
				if errors.As(err, &ne) {
					return nil, &dag.NodeError{Path: append([]string{n.ID()}, ne.Path...), Err: ne.Err}
				}
				return nil, &dag.NodeError{Path: []string{n.ID()}, Err: err}
			}
			for _, l := range n.OutputLinks() {
				if v, ok := sub.Get(l.From); ok {
					stage(l.To, n.ID(), v)
				}
			}
		default:
			if step.ID == token.EndID {
				return collect(func(id string) (any, bool) {
					v, ok := values[id]
					return v, ok
				}, nil, p.outputs)
			}
			return nil, fmt.Errorf("%w: step %q is not in the graph", ErrRouteChanged, step.ID)
		}
	}
	return nil, fmt.Errorf("%w: route has no end step", ErrRouteChanged)
}

// data resolves the value of a data step: an input, a staged result or a
// default, passed through the node's transform and filters. A staged result
// comes from the producer the step names, the one whose value the solver
// stored at compile time.
func (p *Pipe) data(n *dag.DataNode, step Step, kw, staged map[string]any, producers []string) (any, error) {
	id := n.ID()
	var (
		v    any
		from map[string]any
	)
	switch {
	case id == token.StartID:
		return token.None, nil
	case id == token.SelfID:
		return p.graph, nil
	case len(producers) > 0:
		src := producers[0]
		if len(step.Args) == 1 {
			src = step.Args[0]
		}
		sv, ok := staged[src]
		if !ok {
			return nil, fmt.Errorf("%w: %q was not produced by %q", ErrRouteChanged, id, src)
		}
		v, from = sv, staged
		if !n.WaitInputs() {
			from = map[string]any{src: v}
		}
	default:
		if in, ok := kw[id]; ok {
			v = in
		} else if d, ok := p.graph.DefaultOf(id); ok {
			v = d.Value
		} else {
			return nil, fmt.Errorf("%w: %q has no value", ErrRouteChanged, id)
		}
		from = map[string]any{token.StartID: v}
	}

	var err error
	if t := n.Transform(); t != nil {
		if v, err = t(from); err != nil {
			return nil, &dag.NodeError{Path: []string{id}, Err: fmt.Errorf("transform: %w", err)}
		}
	}
	for i, f := range n.Filters() {
		if token.Vetoes(v) {
			break
		}
		if v, err = f(v); err != nil {
			return nil, &dag.NodeError{Path: []string{id}, Err: fmt.Errorf("filter %d: %w", i, err)}
		}
	}
	if token.Vetoes(v) && (n.Transform() != nil || len(n.Filters()) > 0) {
		return nil, fmt.Errorf("%w: %q vetoed its value", ErrRouteChanged, id)
	}
	if cb := n.Callback(); cb != nil {
		cb(v)
	}
	return v, nil
}

// gather collects the arguments of a callable step and checks its domain.
func (p *Pipe) gather(c dag.Callable, step Step, values map[string]any) ([]any, error) {
	in := make([]any, len(step.Args))
	for i, id := range step.Args {
		v, ok := values[id]
		if !ok {
			return nil, fmt.Errorf("%w: %q needs %q before it is set", ErrRouteChanged, c.ID(), id)
		}
		in[i] = v
	}
	if d := c.Domain(); d != nil {
		ok, err := d(in)
		if err != nil {
			return nil, &dag.NodeError{Path: []string{c.ID()}, Err: fmt.Errorf("domain: %w", err)}
		}
		if !ok {
			p.log.Debug("pipe domain rejected", "pipe", p.id, "node", c.ID())
			return nil, fmt.Errorf("%w: domain of %q rejects the inputs", ErrRouteChanged, c.ID())
		}
	}
	return in, nil
}

// routeFile is the persisted form of a pipe.
type routeFile struct {
	ID          string   `msgpack:"id"`
	Fingerprint string   `msgpack:"fingerprint"`
	Inputs      []string `msgpack:"inputs"`
	Outputs     []string `msgpack:"outputs"`
	Steps       []Step   `msgpack:"steps"`
}

// Save writes the route and the fingerprint it was compiled against.
func (p *Pipe) Save(w io.Writer) error {
	rf := routeFile{ID: p.id, Fingerprint: p.fingerprint, Inputs: p.inputs, Outputs: p.outputs, Steps: p.route}
	if err := msgpack.NewEncoder(w).Encode(&rf); err != nil {
		return fmt.Errorf("save pipe %s: %w", p.id, err)
	}
	return nil
}

// LoadPipe reads a route written by Save and binds it to g. It fails with
// ErrFingerprintMismatch when g is not the graph the route was compiled from.
func LoadPipe(r io.Reader, g *dag.Graph) (*Pipe, error) {
	var rf routeFile
	if err := msgpack.NewDecoder(r).Decode(&rf); err != nil {
		return nil, fmt.Errorf("load pipe: %w", err)
	}
	if fp := g.Fingerprint(); fp != rf.Fingerprint {
		return nil, fmt.Errorf("%w: pipe %s compiled for %.12s, graph is %.12s", ErrFingerprintMismatch, rf.ID, rf.Fingerprint, fp)
	}
	if len(rf.Steps) == 0 || rf.Steps[len(rf.Steps)-1].ID != token.EndID {
		return nil, fmt.Errorf("load pipe %s: route has no end step", rf.ID)
	}
	return &Pipe{
		id:          rf.ID,
		fingerprint: rf.Fingerprint,
		graph:       g.ShrinkDsp(rf.Inputs, rf.Outputs),
		inputs:      rf.Inputs,
		outputs:     rf.Outputs,
		route:       rf.Steps,
		log:         g.Logger(),
	}, nil
}
