package dag

import (
	"fmt"
	"maps"
	"slices"
)

// PipeEntry is one step of the pipe log: a visited node, the error it
// recorded and the pipe of the nested dispatch it ran, if any.
type PipeEntry struct {
	ID   string
	Kind Kind
	Dist float64
	// From is the producer whose value a data node stored; START for inputs
	// and defaults.
	From string
	Err  error
	Sub  []PipeEntry
}

// Solution is the result of one Dispatch call. It is owned by the caller
// once returned; nested solutions are reachable only through SubSol.
type Solution struct {
	// RunID correlates the log lines of one dispatch.
	RunID string

	graph    *Graph
	keys     []string
	values   map[string]any
	dist     map[string]float64
	workflow *Workflow
	sub      map[string]*Solution
	pipe     []PipeEntry
	errs     map[string]error
}

func newSolution(g *Graph, runID string) *Solution {
	return &Solution{
		RunID:    runID,
		graph:    g,
		values:   make(map[string]any),
		dist:     make(map[string]float64),
		workflow: newWorkflow(),
		sub:      make(map[string]*Solution),
		errs:     make(map[string]error),
	}
}

func (s *Solution) set(id string, v any, dist float64) {
	if _, ok := s.values[id]; !ok {
		s.keys = append(s.keys, id)
	}
	s.values[id] = v
	s.dist[id] = dist
}

// Get returns the value of a data node.
func (s *Solution) Get(id string) (any, bool) {
	v, ok := s.values[id]
	return v, ok
}

// Keys returns the ids of the set data nodes in the order they were set.
func (s *Solution) Keys() []string { return slices.Clone(s.keys) }

// Values returns a copy of the id → value mapping.
func (s *Solution) Values() map[string]any { return maps.Clone(s.values) }

// Len returns the number of set data nodes.
func (s *Solution) Len() int { return len(s.keys) }

// Dist returns the distance a data node was set at.
func (s *Solution) Dist(id string) (float64, bool) {
	d, ok := s.dist[id]
	return d, ok
}

// Graph returns the graph the solution was computed on.
func (s *Solution) Graph() *Graph { return s.graph }

// Workflow returns the visited nodes and traversed edges.
func (s *Solution) Workflow() *Workflow { return s.workflow }

// SubSol returns the nested solution of a dispatcher node.
func (s *Solution) SubSol(id string) (*Solution, bool) {
	sub, ok := s.sub[id]
	return sub, ok
}

// SubSolutions returns a copy of the dispatcher id → nested solution mapping.
func (s *Solution) SubSolutions() map[string]*Solution { return maps.Clone(s.sub) }

// Pipe returns the ordered pipe log.
func (s *Solution) Pipe() []PipeEntry { return slices.Clone(s.pipe) }

// Errors returns the recorded invocation errors by node id.
func (s *Solution) Errors() map[string]error { return maps.Clone(s.errs) }

func (s *Solution) record(id string, kind Kind, dist float64, err error, sub []PipeEntry) {
	s.pipe = append(s.pipe, PipeEntry{ID: id, Kind: kind, Dist: dist, Err: err, Sub: sub})
	if err != nil {
		s.errs[id] = err
	}
}

func (s *Solution) recordData(id string, dist float64, from string) {
	s.pipe = append(s.pipe, PipeEntry{ID: id, Kind: KindData, Dist: dist, From: from})
}

// NodeAttr selects what GetNode returns.
type NodeAttr int

const (
	// AttrValue is the value of a data node.
	AttrValue NodeAttr = iota
	// AttrDist is the distance a data node was set at.
	AttrDist
	// AttrNode is the graph node.
	AttrNode
	// AttrError is the error recorded by a node.
	AttrError
	// AttrSolution is the nested solution of a dispatcher node.
	AttrSolution
)

// GetNode resolves path through the nested solutions and returns attr of
// the last node. All ids but the last must be dispatcher nodes.
func (s *Solution) GetNode(attr NodeAttr, path ...string) (any, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrUnknownNode)
	}
	cur := s
	for _, id := range path[:len(path)-1] {
		sub, ok := cur.sub[id]
		if !ok {
			return nil, fmt.Errorf("%w: %q has no nested solution", ErrUnknownNode, id)
		}
		cur = sub
	}
	id := path[len(path)-1]
	if cur.graph == nil || !cur.graph.Has(id) {
		return nil, fmt.Errorf("%w %q", ErrUnknownNode, id)
	}
	switch attr {
	case AttrValue:
		v, ok := cur.values[id]
		if !ok {
			return nil, fmt.Errorf("%w: %q has no value", ErrUnknownNode, id)
		}
		return v, nil
	case AttrDist:
		d, ok := cur.dist[id]
		if !ok {
			return nil, fmt.Errorf("%w: %q has no value", ErrUnknownNode, id)
		}
		return d, nil
	case AttrNode:
		return cur.graph.Node(id), nil
	case AttrError:
		return cur.errs[id], nil
	case AttrSolution:
		sub, ok := cur.sub[id]
		if !ok {
			return nil, fmt.Errorf("%w: %q has no nested solution", ErrUnknownNode, id)
		}
		return sub, nil
	}
	return nil, fmt.Errorf("unknown node attribute %d", attr)
}
