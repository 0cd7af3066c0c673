package dag

import (
	"fmt"
	"strconv"

	gographviz "github.com/awalterschulze/gographviz"
)

const dotGraph = "G"

var shapes = map[Kind]string{
	KindData:       "ellipse",
	KindFunction:   "box",
	KindDispatcher: "box3d",
}

// DOT renders the graph in Graphviz DOT format.
func (g *Graph) DOT() (string, error) {
	out, err := newDOT(g.name)
	if err != nil {
		return "", err
	}
	for _, n := range g.nodes {
		attrs := map[string]string{"shape": shapes[n.Kind()]}
		if d, ok := g.defaults[n.ID()]; ok {
			attrs["tooltip"] = strconv.Quote(fmt.Sprintf("default: %v", d.Value))
		}
		if err := out.AddNode(dotGraph, strconv.Quote(n.ID()), attrs); err != nil {
			return "", fmt.Errorf("dot node %s: %w", n.ID(), err)
		}
	}
	for _, n := range g.nodes {
		c, ok := n.(Callable)
		if !ok {
			continue
		}
		for _, in := range unique(c.Inputs()) {
			if err := addDOTEdge(out, in, c.ID(), weightLabel(c.inputWeight(in))); err != nil {
				return "", err
			}
		}
		for _, o := range unique(c.Outputs()) {
			if isSink(o) {
				continue
			}
			if err := addDOTEdge(out, c.ID(), o, weightLabel(c.outputWeight(o))); err != nil {
				return "", err
			}
		}
	}
	return out.String(), nil
}

// DOT renders the workflow of the solution, with edges labelled by the
// values passed along them.
func (s *Solution) DOT() (string, error) {
	name := ""
	if s.graph != nil {
		name = s.graph.name
	}
	out, err := newDOT(name)
	if err != nil {
		return "", err
	}
	for _, id := range s.workflow.nodes {
		kind := KindData
		if s.graph != nil {
			if n := s.graph.Node(id); n != nil {
				kind = n.Kind()
			}
		}
		if err := out.AddNode(dotGraph, strconv.Quote(id), map[string]string{"shape": shapes[kind]}); err != nil {
			return "", fmt.Errorf("dot node %s: %w", id, err)
		}
	}
	for _, e := range s.workflow.edges {
		label := ""
		if e.Value != nil {
			label = truncate(fmt.Sprintf("%v", e.Value), 32)
		}
		if err := addDOTEdge(out, e.From, e.To, label); err != nil {
			return "", err
		}
	}
	return out.String(), nil
}

func newDOT(name string) (*gographviz.Graph, error) {
	out := gographviz.NewGraph()
	if err := out.SetName(dotGraph); err != nil {
		return nil, err
	}
	if err := out.SetDir(true); err != nil {
		return nil, err
	}
	if name != "" {
		if err := out.AddAttr(dotGraph, "label", strconv.Quote(name)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func addDOTEdge(out *gographviz.Graph, from, to, label string) error {
	attrs := map[string]string{}
	if label != "" {
		attrs["label"] = strconv.Quote(label)
	}
	if err := out.AddEdge(strconv.Quote(from), strconv.Quote(to), true, attrs); err != nil {
		return fmt.Errorf("dot edge %s -> %s: %w", from, to, err)
	}
	return nil
}

func weightLabel(w float64) string {
	if w == 1 {
		return ""
	}
	return strconv.FormatFloat(w, 'g', -1, 64)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
