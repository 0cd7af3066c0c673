package dag

import (
	"maps"
	"slices"

	"github.com/gyaneshwarpardhi/dispatch/internal/token"
)

// Kind discriminates the three kinds of graph nodes.
type Kind string

const (
	KindData       Kind = "data"
	KindFunction   Kind = "function"
	KindDispatcher Kind = "dispatcher"
)

// Node is the common interface for all graph nodes.
type Node interface {
	ID() string
	Kind() Kind
	// Index is the creation order of the node inside its graph.
	Index() int
	Description() string
	WaitInputs() bool
	clone() Node
	setIndex(i int)
}

// Callable is implemented by the node kinds that fire: functions and
// nested dispatchers.
type Callable interface {
	Node
	// Inputs returns the outer data ids the node consumes, in order.
	Inputs() []string
	// Outputs returns the outer data ids the node produces, in order.
	// Function outputs may contain the sink id.
	Outputs() []string
	Domain() Domain
	// Weight returns the node weight and whether it was set explicitly.
	Weight() (float64, bool)
	inputWeight(id string) float64
	outputWeight(id string) float64
}

type base struct {
	id          string
	index       int
	description string
	wait        bool
}

func (b *base) ID() string          { return b.id }
func (b *base) Index() int          { return b.index }
func (b *base) Description() string { return b.description }
func (b *base) WaitInputs() bool    { return b.wait }
func (b *base) setIndex(i int)      { b.index = i }

// -----------------------------------------------------------------------
// DataNode
// -----------------------------------------------------------------------

// DataNode is a named value slot.
type DataNode struct {
	base
	transform DataFunc
	callback  func(v any)
	filters   []Filter
	wildcard  bool
	// refs name the registered transform and filters for persistence.
	transformRef string
	filterRefs   []string
}

func (n *DataNode) Kind() Kind           { return KindData }
func (n *DataNode) Transform() DataFunc  { return n.transform }
func (n *DataNode) Callback() func(any)  { return n.callback }
func (n *DataNode) Filters() []Filter    { return slices.Clone(n.filters) }
func (n *DataNode) Wildcard() bool       { return n.wildcard }
func (n *DataNode) TransformRef() string { return n.transformRef }
func (n *DataNode) FilterRefs() []string { return slices.Clone(n.filterRefs) }

func (n *DataNode) clone() Node {
	c := *n
	c.filters = slices.Clone(n.filters)
	c.filterRefs = slices.Clone(n.filterRefs)
	return &c
}

// -----------------------------------------------------------------------
// FunctionNode
// -----------------------------------------------------------------------

// FunctionNode is a named transform with declared inputs and outputs.
type FunctionNode struct {
	base
	fn         Func
	ref        string
	inputs     []string
	outputs    []string
	domain     Domain
	domainSrc  string
	weight     float64
	hasWeight  bool
	inpWeight  map[string]float64
	outWeight  map[string]float64
	executor   string
	autoOutput bool
}

func (n *FunctionNode) Kind() Kind              { return KindFunction }
func (n *FunctionNode) Func() Func              { return n.fn }
func (n *FunctionNode) Ref() string             { return n.ref }
func (n *FunctionNode) Inputs() []string        { return slices.Clone(n.inputs) }
func (n *FunctionNode) Outputs() []string       { return slices.Clone(n.outputs) }
func (n *FunctionNode) Domain() Domain          { return n.domain }
func (n *FunctionNode) DomainSource() string    { return n.domainSrc }
func (n *FunctionNode) Weight() (float64, bool) { return n.weight, n.hasWeight }
func (n *FunctionNode) Executor() string        { return n.executor }

func (n *FunctionNode) InputWeights() map[string]float64  { return maps.Clone(n.inpWeight) }
func (n *FunctionNode) OutputWeights() map[string]float64 { return maps.Clone(n.outWeight) }

func (n *FunctionNode) inputWeight(id string) float64 {
	if w, ok := n.inpWeight[id]; ok {
		return w
	}
	return 1
}

func (n *FunctionNode) outputWeight(id string) float64 {
	if w, ok := n.outWeight[id]; ok {
		return w
	}
	return 1
}

// SinkOnly reports whether the node was added without outputs; its results
// are discarded whatever their number.
func (n *FunctionNode) SinkOnly() bool {
	return n.autoOutput
}

func (n *FunctionNode) clone() Node {
	c := *n
	c.inputs = slices.Clone(n.inputs)
	c.outputs = slices.Clone(n.outputs)
	c.inpWeight = maps.Clone(n.inpWeight)
	c.outWeight = maps.Clone(n.outWeight)
	return &c
}

// -----------------------------------------------------------------------
// DispatcherNode
// -----------------------------------------------------------------------

// Link maps a data id of one graph onto a data id of another.
type Link struct {
	From string
	To   string
}

// Same returns identity links for ids.
func Same(ids ...string) []Link {
	out := make([]Link, len(ids))
	for i, id := range ids {
		out[i] = Link{From: id, To: id}
	}
	return out
}

// DispatcherNode is a nested graph instance. Input links map outer ids to
// inner ids; output links map inner ids to outer ids.
type DispatcherNode struct {
	base
	graph           *Graph
	inputs          []Link
	outputs         []Link
	includeDefaults bool
	domain          Domain
	domainSrc       string
	weight          float64
	hasWeight       bool
}

func (n *DispatcherNode) Kind() Kind              { return KindDispatcher }
func (n *DispatcherNode) Graph() *Graph           { return n.graph }
func (n *DispatcherNode) InputLinks() []Link      { return slices.Clone(n.inputs) }
func (n *DispatcherNode) OutputLinks() []Link     { return slices.Clone(n.outputs) }
func (n *DispatcherNode) IncludeDefaults() bool   { return n.includeDefaults }
func (n *DispatcherNode) Domain() Domain          { return n.domain }
func (n *DispatcherNode) DomainSource() string    { return n.domainSrc }
func (n *DispatcherNode) Weight() (float64, bool) { return n.weight, n.hasWeight }

// Inputs returns the distinct outer ids of the input links.
func (n *DispatcherNode) Inputs() []string {
	return distinct(n.inputs, func(l Link) string { return l.From })
}

// Outputs returns the distinct outer ids of the output links.
func (n *DispatcherNode) Outputs() []string {
	return distinct(n.outputs, func(l Link) string { return l.To })
}

func (n *DispatcherNode) inputWeight(string) float64  { return 1 }
func (n *DispatcherNode) outputWeight(string) float64 { return 1 }

func (n *DispatcherNode) clone() Node {
	c := *n
	c.graph = n.graph.Copy()
	c.inputs = slices.Clone(n.inputs)
	c.outputs = slices.Clone(n.outputs)
	return &c
}

func distinct(links []Link, key func(Link) string) []string {
	seen := make(map[string]bool, len(links))
	var out []string
	for _, l := range links {
		k := key(l)
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func isSink(id string) bool { return id == token.SinkID }
