package dag

import (
	"maps"
	"slices"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/gyaneshwarpardhi/dispatch/internal/token"
)

// reach returns the ids reachable from sources over arcs, breadth first.
// With reverse set arcs are followed backwards. allow, when not nil, decides
// whether the walk may step from one id to the next.
func reach(ids []string, arcs [][2]string, sources []string, reverse bool, allow func(from, to string) bool) map[string]bool {
	pos := make(map[string]int64, len(ids))
	dg := simple.NewDirectedGraph()
	for i, id := range ids {
		pos[id] = int64(i)
		dg.AddNode(simple.Node(i))
	}
	for _, a := range arcs {
		u, okU := pos[a[0]]
		v, okV := pos[a[1]]
		if !okU || !okV || u == v {
			continue
		}
		if reverse {
			u, v = v, u
		}
		dg.SetEdge(dg.NewEdge(simple.Node(u), simple.Node(v)))
	}

	keep := make(map[string]bool)
	bf := traverse.BreadthFirst{
		Traverse: func(e graph.Edge) bool {
			if allow == nil {
				return true
			}
			return allow(ids[e.From().ID()], ids[e.To().ID()])
		},
		Visit: func(n graph.Node) { keep[ids[n.ID()]] = true },
	}
	for _, src := range sources {
		if i, ok := pos[src]; ok {
			bf.Walk(dg, simple.Node(i), nil)
		}
	}
	return keep
}

func (g *Graph) ids() []string {
	out := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.ID()
	}
	return out
}

func (g *Graph) arcs() [][2]string {
	var out [][2]string
	for _, n := range g.nodes {
		for _, to := range g.succ[n.ID()] {
			out = append(out, [2]string{n.ID(), to})
		}
	}
	return out
}

// GetSubDsp returns the sub-graph induced by nodeIDs. When edgeBunch is not
// nil only the listed edges are kept. A callable survives only if its
// required inputs survive and at least one of its outputs does; missing
// function outputs become sink slots.
func (g *Graph) GetSubDsp(nodeIDs []string, edgeBunch [][2]string) *Graph {
	keep := make(map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		if g.Has(id) {
			keep[id] = true
		}
	}
	var allowed map[[2]string]bool
	if edgeBunch != nil {
		allowed = make(map[[2]string]bool, len(edgeBunch))
		for _, e := range edgeBunch {
			allowed[e] = true
		}
	}
	edge := func(from, to string) bool {
		return keep[from] && keep[to] && (allowed == nil || allowed[[2]string{from, to}])
	}

	sub := g.emptyLike()
	for _, n := range g.nodes {
		id := n.ID()
		if !keep[id] {
			continue
		}
		switch x := n.(type) {
		case *DataNode:
			sub.insert(x.clone())
			if d, ok := g.defaults[id]; ok {
				sub.defaults[id] = d
			}
		case *FunctionNode:
			if !inputsSurvive(x.wait, x.inputs, id, edge) {
				continue
			}
			c := x.clone().(*FunctionNode)
			alive := x.autoOutput
			for i, out := range c.outputs {
				if isSink(out) {
					continue
				}
				if edge(id, out) {
					alive = true
				} else {
					c.outputs[i] = token.SinkID
				}
			}
			if !alive {
				continue
			}
			sub.insert(c)
			sub.link(id, c.inputs, c.outputs)
		case *DispatcherNode:
			if !inputsSurvive(x.wait, x.Inputs(), id, edge) {
				continue
			}
			c := x.clone().(*DispatcherNode)
			c.inputs = slices.DeleteFunc(c.inputs, func(l Link) bool {
				return l.From != token.StartID && !edge(l.From, id)
			})
			c.outputs = slices.DeleteFunc(c.outputs, func(l Link) bool { return !edge(id, l.To) })
			if len(x.outputs) > 0 && len(c.outputs) == 0 {
				continue
			}
			sub.insert(c)
			sub.link(id, c.Inputs(), c.Outputs())
		}
	}
	return sub
}

func inputsSurvive(wait bool, inputs []string, id string, edge func(from, to string) bool) bool {
	some := false
	for _, in := range inputs {
		if edge(in, id) {
			some = true
		} else if wait {
			return false
		}
	}
	return some
}

func (g *Graph) emptyLike() *Graph {
	return New(WithName(g.name), WithDescription(g.description), WithWeight(g.weight),
		WithRaises(Raises{all: g.raises.all, prefixes: slices.Clone(g.raises.prefixes)}),
		WithLogger(g.logger))
}

// SubGraphFromWorkflow returns the sub-graph reachable from sources over the
// dependency structure, following edges backwards when reverse is set. With
// addMissing the inputs (forward) or outputs (reverse) of every reached
// callable are added, so that reached callables stay complete.
func (g *Graph) SubGraphFromWorkflow(sources []string, reverse, addMissing bool) *Graph {
	keep := reach(g.ids(), g.arcs(), sources, reverse, nil)
	if addMissing {
		for _, n := range g.nodes {
			c, ok := n.(Callable)
			if !ok || !keep[c.ID()] {
				continue
			}
			extra := c.Inputs()
			if reverse {
				extra = c.Outputs()
			}
			for _, id := range extra {
				if !isSink(id) {
					keep[id] = true
				}
			}
		}
	}
	return g.GetSubDsp(slices.Collect(maps.Keys(keep)), nil)
}

// ShrinkDsp returns the smallest sub-graph that computes outputs from inputs:
// the nodes reachable forward from the inputs and the defaults, intersected
// with the nodes the outputs depend on. Without outputs only the forward
// restriction applies.
func (g *Graph) ShrinkDsp(inputs, outputs []string) *Graph {
	fwd := g.forward(inputs)
	keep := fwd
	if len(outputs) > 0 {
		isInput := make(map[string]bool, len(inputs))
		for _, in := range inputs {
			isInput[in] = true
		}
		keep = reach(g.ids(), g.arcs(), outputs, true, func(from, to string) bool {
			return !isInput[from] && fwd[from] && fwd[to]
		})
		for id := range keep {
			if !fwd[id] {
				delete(keep, id)
			}
		}
	}
	return g.GetSubDsp(slices.Collect(maps.Keys(keep)), nil)
}

// forward computes the fixed point of what can be set from inputs and
// defaults, honouring the wait semantics of callables.
func (g *Graph) forward(inputs []string) map[string]bool {
	reached := make(map[string]bool)
	for _, in := range inputs {
		if n := g.Node(in); n != nil && n.Kind() == KindData {
			reached[in] = true
		}
	}
	for id := range g.defaults {
		reached[id] = true
	}
	for _, id := range []string{token.StartID, token.SelfID} {
		if g.Has(id) {
			reached[id] = true
		}
	}
	for changed := true; changed; {
		changed = false
		for _, n := range g.nodes {
			c, ok := n.(Callable)
			if !ok || reached[c.ID()] {
				continue
			}
			if !inputsSurvive(c.WaitInputs(), c.Inputs(), c.ID(), func(from, _ string) bool { return reached[from] }) {
				continue
			}
			reached[c.ID()] = true
			changed = true
			for _, out := range c.Outputs() {
				if !isSink(out) {
					reached[out] = true
				}
			}
		}
	}
	return reached
}
