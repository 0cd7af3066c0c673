package dag

import "slices"

// Edge is a traversed edge of a dispatch, with the value passed along it.
type Edge struct {
	From  string
	To    string
	Value any
}

// Workflow records the nodes visited by a dispatch, in visit order, and the
// edges traversed.
type Workflow struct {
	nodes []string
	seen  map[string]bool
	edges []Edge
}

func newWorkflow() *Workflow {
	return &Workflow{seen: make(map[string]bool)}
}

func (w *Workflow) addNode(id string) {
	if !w.seen[id] {
		w.seen[id] = true
		w.nodes = append(w.nodes, id)
	}
}

func (w *Workflow) addEdge(from, to string, v any) {
	w.addNode(from)
	w.addNode(to)
	w.edges = append(w.edges, Edge{From: from, To: to, Value: v})
}

// Nodes returns the visited node ids in visit order.
func (w *Workflow) Nodes() []string { return slices.Clone(w.nodes) }

// Edges returns the traversed edges in traversal order.
func (w *Workflow) Edges() []Edge { return slices.Clone(w.edges) }

// Has reports whether id was visited.
func (w *Workflow) Has(id string) bool { return w.seen[id] }

// Successors returns the ids reached from id.
func (w *Workflow) Successors(id string) []string {
	var out []string
	for _, e := range w.edges {
		if e.From == id && !slices.Contains(out, e.To) {
			out = append(out, e.To)
		}
	}
	return out
}

// Predecessors returns the ids that reached id.
func (w *Workflow) Predecessors(id string) []string {
	var out []string
	for _, e := range w.edges {
		if e.To == id && !slices.Contains(out, e.From) {
			out = append(out, e.From)
		}
	}
	return out
}

// restrict returns the workflow induced by keep.
func (w *Workflow) restrict(keep map[string]bool) *Workflow {
	out := newWorkflow()
	for _, id := range w.nodes {
		if keep[id] {
			out.addNode(id)
		}
	}
	for _, e := range w.edges {
		if keep[e.From] && keep[e.To] {
			out.edges = append(out.edges, e)
		}
	}
	return out
}

func (w *Workflow) arcs() [][2]string {
	out := make([][2]string, len(w.edges))
	for i, e := range w.edges {
		out[i] = [2]string{e.From, e.To}
	}
	return out
}

// SubGraphFromWorkflow returns the part of the workflow reachable from
// sources, following edges backwards when reverse is set.
func (s *Solution) SubGraphFromWorkflow(sources []string, reverse bool) *Workflow {
	keep := reach(s.workflow.nodes, s.workflow.arcs(), sources, reverse, nil)
	return s.workflow.restrict(keep)
}

// pruneTo keeps the part of the workflow the outputs depend on.
func (s *Solution) pruneTo(outputs []string) {
	var set []string
	for _, o := range outputs {
		if s.workflow.Has(o) {
			set = append(set, o)
		}
	}
	s.workflow = s.SubGraphFromWorkflow(set, true)
}

// removeUnused drops fired callables whose outputs reached no node.
func (s *Solution) removeUnused() {
	keep := make(map[string]bool, len(s.workflow.nodes))
	for _, id := range s.workflow.nodes {
		keep[id] = true
		if n := s.graph.Node(id); n != nil && n.Kind() != KindData && len(s.workflow.Successors(id)) == 0 {
			keep[id] = false
		}
	}
	s.workflow = s.workflow.restrict(keep)
}
