package dag

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/gyaneshwarpardhi/dispatch/internal/token"
)

// Default is a data node default value and the distance it is seeded at.
type Default struct {
	Value       any
	InitialDist float64
}

// Raises selects the nodes whose invocation errors abort a dispatch.
type Raises struct {
	all      bool
	prefixes []string
}

// RaiseAll makes every invocation error fatal.
func RaiseAll() Raises { return Raises{all: true} }

// RaiseFor makes invocation errors fatal for node ids starting with one of prefixes.
func RaiseFor(prefixes ...string) Raises { return Raises{prefixes: slices.Clone(prefixes)} }

// Match reports whether an error raised by node id is fatal.
func (r Raises) Match(id string) bool {
	if r.all {
		return true
	}
	for _, p := range r.prefixes {
		if strings.HasPrefix(id, p) {
			return true
		}
	}
	return false
}

// All reports whether every error is fatal.
func (r Raises) All() bool { return r.all }

// Prefixes returns the id prefixes of the policy.
func (r Raises) Prefixes() []string { return slices.Clone(r.prefixes) }

// Graph holds the node arena, the adjacency lists and the default values.
// A Graph is mutated only by the Add* methods; it is read-only during Dispatch.
type Graph struct {
	name        string
	description string
	weight      float64
	raises      Raises
	logger      *slog.Logger

	nodes    []Node         // creation order
	index    map[string]int // id → position in nodes
	succ     map[string][]string
	pred     map[string][]string
	defaults map[string]Default
}

// GraphOption configures a Graph.
type GraphOption func(*Graph)

// WithName sets the graph name.
func WithName(name string) GraphOption { return func(g *Graph) { g.name = name } }

// WithDescription sets the graph description.
func WithDescription(d string) GraphOption { return func(g *Graph) { g.description = d } }

// WithWeight sets the fallback weight of function and dispatcher nodes.
func WithWeight(w float64) GraphOption { return func(g *Graph) { g.weight = w } }

// WithRaises sets the raise policy.
func WithRaises(r Raises) GraphOption { return func(g *Graph) { g.raises = r } }

// WithLogger sets the logger used by dispatches of the graph.
func WithLogger(l *slog.Logger) GraphOption { return func(g *Graph) { g.logger = l } }

// New allocates an empty Graph.
func New(opts ...GraphOption) *Graph {
	g := &Graph{
		index:    make(map[string]int),
		succ:     make(map[string][]string),
		pred:     make(map[string][]string),
		defaults: make(map[string]Default),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Name returns the graph name; dispatchers nesting the graph default to it.
func (g *Graph) Name() string { return g.name }

// Description returns the free-text description of the graph.
func (g *Graph) Description() string { return g.description }

// Weight returns the fallback weight of function and dispatcher nodes that
// carry none of their own.
func (g *Graph) Weight() float64 { return g.weight }

// Raises returns the policy selecting the nodes whose errors abort a
// dispatch.
func (g *Graph) Raises() Raises { return g.raises }

// SetRaises replaces the raise policy.
func (g *Graph) SetRaises(r Raises) { g.raises = r }

// Logger returns the graph logger, or the default logger.
func (g *Graph) Logger() *slog.Logger {
	if g.logger == nil {
		return slog.Default()
	}
	return g.logger
}

// Node returns a node by id (nil if not found).
func (g *Graph) Node(id string) Node {
	if i, ok := g.index[id]; ok {
		return g.nodes[i]
	}
	return nil
}

// Has reports whether id is a node of the graph.
func (g *Graph) Has(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Nodes returns all nodes in creation order.
func (g *Graph) Nodes() []Node { return slices.Clone(g.nodes) }

// NodeCount returns the total number of registered nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// Successors returns the ids directly reachable from id, in edge creation order.
func (g *Graph) Successors(id string) []string { return slices.Clone(g.succ[id]) }

// Predecessors returns the ids with an edge into id, in edge creation order.
func (g *Graph) Predecessors(id string) []string { return slices.Clone(g.pred[id]) }

// Defaults returns a copy of the default-value table.
func (g *Graph) Defaults() map[string]Default { return maps.Clone(g.defaults) }

// DefaultOf returns the default of a data node.
func (g *Graph) DefaultOf(id string) (Default, bool) {
	d, ok := g.defaults[id]
	return d, ok
}

// Copy returns a deep copy. Nested graphs and node attachments are not
// shared with the original.
func (g *Graph) Copy() *Graph {
	if g == nil {
		return nil
	}
	c := &Graph{
		name:        g.name,
		description: g.description,
		weight:      g.weight,
		raises:      Raises{all: g.raises.all, prefixes: slices.Clone(g.raises.prefixes)},
		logger:      g.logger,
		nodes:       make([]Node, len(g.nodes)),
		index:       maps.Clone(g.index),
		succ:        make(map[string][]string, len(g.succ)),
		pred:        make(map[string][]string, len(g.pred)),
		defaults:    maps.Clone(g.defaults),
	}
	for i, n := range g.nodes {
		c.nodes[i] = n.clone()
	}
	for k, v := range g.succ {
		c.succ[k] = slices.Clone(v)
	}
	for k, v := range g.pred {
		c.pred[k] = slices.Clone(v)
	}
	return c
}

// -----------------------------------------------------------------------
// Node options
// -----------------------------------------------------------------------

type nodeSpec struct {
	description  string
	def          *Default
	initialDist  float64
	transform    DataFunc
	transformRef string
	callback     func(any)
	filters      []Filter
	filterRefs   []string
	wildcard     bool
	wait         *bool
	domain       Domain
	domainSrc    string
	weight       *float64
	inpWeight    map[string]float64
	outWeight    map[string]float64
	ref          string
	executor     string
	includeDefs  bool
}

// Option configures a node at Add* time. Options that do not apply to the
// node kind are ignored.
type Option func(*nodeSpec)

// Describe sets the node description.
func Describe(d string) Option { return func(s *nodeSpec) { s.description = d } }

// DefaultValue sets the default of a data node. The Empty token removes it.
func DefaultValue(v any) Option {
	return func(s *nodeSpec) { s.def = &Default{Value: v} }
}

// InitialDist sets the distance the data node default is seeded at.
func InitialDist(d float64) Option { return func(s *nodeSpec) { s.initialDist = d } }

// Transform sets the merge function of a data node.
func Transform(fn DataFunc) Option { return func(s *nodeSpec) { s.transform = fn } }

// Callback sets a side effect run after a data node value is stored.
func Callback(fn func(any)) Option { return func(s *nodeSpec) { s.callback = fn } }

// Filters appends filters to a data node.
func Filters(fs ...Filter) Option {
	return func(s *nodeSpec) { s.filters = append(s.filters, fs...) }
}

// Wildcard flags a data node whose input value feeds consumers while still
// accepting one computed value.
func Wildcard() Option { return func(s *nodeSpec) { s.wildcard = true } }

// WaitInputs sets whether the node waits for all of its inputs.
func WaitInputs(wait bool) Option { return func(s *nodeSpec) { s.wait = &wait } }

// InputDomain sets the input domain predicate of a function or dispatcher.
func InputDomain(d Domain) Option {
	return func(s *nodeSpec) { s.domain, s.domainSrc = d, "" }
}

// DomainExpr sets an expression domain evaluated over the node input ids,
// for example "c * b > 0".
func DomainExpr(src string) Option {
	return func(s *nodeSpec) { s.domain, s.domainSrc = nil, src }
}

// Weight sets the node weight.
func Weight(w float64) Option { return func(s *nodeSpec) { s.weight = &w } }

// InputWeights overrides the weights of input edges by input id.
func InputWeights(w map[string]float64) Option {
	return func(s *nodeSpec) { s.inpWeight = maps.Clone(w) }
}

// OutputWeights overrides the weights of output edges by output id.
func OutputWeights(w map[string]float64) Option {
	return func(s *nodeSpec) { s.outWeight = maps.Clone(w) }
}

// Ref records the registry name of the function, making the node persistable.
func Ref(name string) Option { return func(s *nodeSpec) { s.ref = name } }

// Executor selects the backend the function runs on.
func Executor(name string) Option { return func(s *nodeSpec) { s.executor = name } }

// IncludeDefaults copies the nested graph defaults onto outer inputs that
// have none.
func IncludeDefaults() Option { return func(s *nodeSpec) { s.includeDefs = true } }

func transformRef(name string) Option { return func(s *nodeSpec) { s.transformRef = name } }

func filterRefs(names ...string) Option {
	return func(s *nodeSpec) { s.filterRefs = append(s.filterRefs, names...) }
}

func newSpec(opts []Option) *nodeSpec {
	s := &nodeSpec{}
	for _, o := range opts {
		o(s)
	}
	return s
}

// -----------------------------------------------------------------------
// Construction
// -----------------------------------------------------------------------

// AddData adds or redefines a data node and returns its id. An empty id is
// replaced by a generated one.
func (g *Graph) AddData(id string, opts ...Option) (string, error) {
	s := newSpec(opts)
	if id == "" {
		id = g.freeID("unknown")
	}
	if id == token.SinkID || id == token.EndID {
		return "", constructionf("%s cannot be a data node", id)
	}
	n := &DataNode{
		base:         base{id: id, description: s.description, wait: s.wait != nil && *s.wait},
		transform:    s.transform,
		transformRef: s.transformRef,
		callback:     s.callback,
		filters:      s.filters,
		filterRefs:   s.filterRefs,
		wildcard:     s.wildcard,
	}
	if old := g.Node(id); old != nil {
		if old.Kind() != KindData {
			return "", constructionf("id %q is a %s node", id, old.Kind())
		}
		n.index = old.Index()
		g.nodes[n.index] = n
	} else {
		g.insert(n)
	}
	if s.def != nil {
		if token.IsEmpty(s.def.Value) {
			delete(g.defaults, id)
		} else {
			g.defaults[id] = Default{Value: s.def.Value, InitialDist: s.initialDist}
		}
	}
	return id, nil
}

// AddFunction adds a function node and returns its id. Without inputs the
// function is fed by the start node; without outputs every result is
// discarded. Unknown input and output ids are created as data nodes.
func (g *Graph) AddFunction(id string, fn Func, inputs, outputs []string, opts ...Option) (string, error) {
	if fn == nil {
		return "", constructionf("function %q: nil callable", id)
	}
	if len(inputs) == 0 && len(outputs) == 0 {
		return "", constructionf("function %q: at least one input or output is required", id)
	}
	s := newSpec(opts)
	if id == "" {
		id = funcName(fn)
	}
	n := &FunctionNode{
		base:      base{id: id, description: s.description, wait: s.wait == nil || *s.wait},
		fn:        fn,
		ref:       s.ref,
		inputs:    slices.Clone(inputs),
		outputs:   slices.Clone(outputs),
		domain:    s.domain,
		domainSrc: s.domainSrc,
		inpWeight: s.inpWeight,
		outWeight: s.outWeight,
		executor:  s.executor,
	}
	if s.weight != nil {
		n.weight, n.hasWeight = *s.weight, true
	}
	if len(n.inputs) == 0 {
		n.inputs = []string{token.StartID}
	}
	if len(n.outputs) == 0 {
		n.outputs, n.autoOutput = []string{token.SinkID}, true
	}
	if a, ok := fn.(Arity); ok {
		lo, hi := a.Arity()
		if argc := len(argIDs(n.inputs)); argc < lo || (hi >= 0 && argc > hi) {
			return "", constructionf("function %q: %d inputs, callable accepts %d..%d", id, argc, lo, hi)
		}
	}
	missing, err := g.checkIO(id, n.inputs, n.outputs)
	if err != nil {
		return "", err
	}
	if n.domainSrc != "" {
		d, err := exprDomain(n.domainSrc, argIDs(n.inputs))
		if err != nil {
			return "", constructionf("function %q: domain: %v", id, err)
		}
		n.domain = d
	}
	used, existing, err := g.resolveID(id, n, missing)
	if err != nil || existing {
		return used, err
	}
	if err := g.addMissing(missing); err != nil {
		return "", err
	}
	n.id = used
	g.insert(n)
	g.link(used, n.inputs, n.outputs)
	return used, nil
}

// AddDispatcher nests a copy of sub and returns the node id. Input links map
// outer ids onto inner ids, output links map inner ids onto outer ids.
func (g *Graph) AddDispatcher(id string, sub *Graph, inputs, outputs []Link, opts ...Option) (string, error) {
	if sub == nil {
		return "", constructionf("dispatcher %q: nil graph", id)
	}
	if len(inputs) == 0 && len(outputs) == 0 {
		return "", constructionf("dispatcher %q: at least one input or output is required", id)
	}
	s := newSpec(opts)
	if id == "" {
		id = sub.name
		if id == "" {
			id = "dispatcher"
		}
	}
	n := &DispatcherNode{
		base:            base{id: id, description: s.description, wait: s.wait == nil || *s.wait},
		graph:           sub.Copy(),
		inputs:          slices.Clone(inputs),
		outputs:         slices.Clone(outputs),
		includeDefaults: s.includeDefs,
		domain:          s.domain,
		domainSrc:       s.domainSrc,
	}
	if s.weight != nil {
		n.weight, n.hasWeight = *s.weight, true
	}
	if len(n.inputs) == 0 {
		n.inputs = []Link{{From: token.StartID, To: token.StartID}}
	}
	for _, l := range n.inputs {
		if l.From == token.StartID {
			continue
		}
		if in := sub.Node(l.To); in == nil || in.Kind() != KindData {
			return "", constructionf("dispatcher %q: input %q is not a data node of the nested graph", id, l.To)
		}
	}
	for _, l := range n.outputs {
		if out := sub.Node(l.From); out == nil || out.Kind() != KindData {
			return "", constructionf("dispatcher %q: output %q is not a data node of the nested graph", id, l.From)
		}
		if l.To == token.SinkID {
			return "", constructionf("dispatcher %q: output %q cannot be the sink", id, l.From)
		}
	}
	missing, err := g.checkIO(id, n.Inputs(), n.Outputs())
	if err != nil {
		return "", err
	}
	if n.domainSrc != "" {
		d, err := exprDomain(n.domainSrc, argIDs(n.Inputs()))
		if err != nil {
			return "", constructionf("dispatcher %q: domain: %v", id, err)
		}
		n.domain = d
	}
	used, existing, err := g.resolveID(id, n, missing)
	if err != nil || existing {
		return used, err
	}
	if err := g.addMissing(missing); err != nil {
		return "", err
	}
	n.id = used
	g.insert(n)
	g.link(used, n.Inputs(), n.Outputs())
	if n.includeDefaults {
		for _, l := range n.inputs {
			d, ok := sub.defaults[l.To]
			if _, has := g.defaults[l.From]; ok && !has && l.From != token.StartID {
				g.defaults[l.From] = d
			}
		}
	}
	return used, nil
}

// DataSpec, FunctionSpec and DispatcherSpec are the bulk forms of the Add*
// arguments.
type DataSpec struct {
	ID      string
	Options []Option
}

type FunctionSpec struct {
	ID      string
	Func    Func
	Inputs  []string
	Outputs []string
	Options []Option
}

type DispatcherSpec struct {
	ID      string
	Graph   *Graph
	Inputs  []Link
	Outputs []Link
	Options []Option
}

// AddFromLists adds data nodes, then functions, then dispatchers, and returns
// the ids actually used for each list.
func (g *Graph) AddFromLists(data []DataSpec, fns []FunctionSpec, dsps []DispatcherSpec) (dataIDs, fnIDs, dspIDs []string, err error) {
	for _, d := range data {
		id, err := g.AddData(d.ID, d.Options...)
		if err != nil {
			return nil, nil, nil, err
		}
		dataIDs = append(dataIDs, id)
	}
	for _, f := range fns {
		id, err := g.AddFunction(f.ID, f.Func, f.Inputs, f.Outputs, f.Options...)
		if err != nil {
			return nil, nil, nil, err
		}
		fnIDs = append(fnIDs, id)
	}
	for _, d := range dsps {
		id, err := g.AddDispatcher(d.ID, d.Graph, d.Inputs, d.Outputs, d.Options...)
		if err != nil {
			return nil, nil, nil, err
		}
		dspIDs = append(dspIDs, id)
	}
	return dataIDs, fnIDs, dspIDs, nil
}

// SetDefaultValue sets the default of a data node. The Empty token removes it.
func (g *Graph) SetDefaultValue(id string, v any, initialDist float64) error {
	n := g.Node(id)
	if n == nil {
		return fmt.Errorf("%w %q", ErrUnknownNode, id)
	}
	if n.Kind() != KindData {
		return constructionf("%q is a %s node", id, n.Kind())
	}
	if token.IsEmpty(v) {
		delete(g.defaults, id)
		return nil
	}
	g.defaults[id] = Default{Value: v, InitialDist: initialDist}
	return nil
}

func (g *Graph) insert(n Node) {
	n.setIndex(len(g.nodes))
	g.index[n.ID()] = len(g.nodes)
	g.nodes = append(g.nodes, n)
}

func (g *Graph) link(id string, inputs, outputs []string) {
	for _, in := range unique(inputs) {
		g.succ[in] = append(g.succ[in], id)
		g.pred[id] = append(g.pred[id], in)
	}
	for _, out := range unique(outputs) {
		if isSink(out) {
			continue
		}
		g.succ[id] = append(g.succ[id], out)
		g.pred[out] = append(g.pred[out], id)
	}
}

// checkIO validates the data ids of a callable and returns the ones that do
// not exist yet, inputs first. The graph is left untouched.
func (g *Graph) checkIO(id string, inputs, outputs []string) ([]string, error) {
	var missing []string
	check := func(d string) error {
		if n := g.Node(d); n != nil {
			if n.Kind() != KindData {
				return constructionf("%q: %q is a %s node, not a data node", id, d, n.Kind())
			}
			return nil
		}
		if !slices.Contains(missing, d) {
			missing = append(missing, d)
		}
		return nil
	}
	for _, in := range inputs {
		switch {
		case in == token.SinkID || in == token.EndID:
			return nil, constructionf("%q: %s cannot be an input", id, in)
		case in == id:
			return nil, constructionf("%q: input refers to the node itself", id)
		}
		if err := check(in); err != nil {
			return nil, err
		}
	}
	for _, out := range outputs {
		if isSink(out) {
			continue
		}
		if out == token.StartID || out == token.EndID || out == token.SelfID || out == id {
			return nil, constructionf("%q: %s cannot be an output", id, out)
		}
		if err := check(out); err != nil {
			return nil, err
		}
	}
	return missing, nil
}

// addMissing creates the data nodes reported by checkIO.
func (g *Graph) addMissing(ids []string) error {
	for _, id := range ids {
		if _, err := g.AddData(id); err != nil {
			return err
		}
	}
	return nil
}

// resolveID picks the id for a new callable. A node with the same content
// under the candidate id makes the call a no-op; different content moves on
// to the next suffixed candidate. Ids in pending are about to become data
// nodes and are skipped.
func (g *Graph) resolveID(id string, n Callable, pending []string) (used string, existing bool, err error) {
	for i := -1; ; i++ {
		cand := id
		if i >= 0 {
			cand = fmt.Sprintf("%s<%d>", id, i)
		}
		old := g.Node(cand)
		switch {
		case slices.Contains(pending, cand):
		case old == nil:
			return cand, false, nil
		case old.Kind() == KindData:
			if i < 0 {
				return "", false, constructionf("id %q is a data node", id)
			}
		case sameContent(old, n):
			return cand, true, nil
		}
	}
}

func (g *Graph) freeID(prefix string) string {
	if !g.Has(prefix) {
		return prefix
	}
	for i := 0; ; i++ {
		if c := fmt.Sprintf("%s<%d>", prefix, i); !g.Has(c) {
			return c
		}
	}
}

func sameContent(a Node, b Callable) bool {
	switch x := a.(type) {
	case *FunctionNode:
		y, ok := b.(*FunctionNode)
		return ok && sameFunc(x.fn, y.fn) &&
			slices.Equal(x.inputs, y.inputs) && slices.Equal(x.outputs, y.outputs) &&
			x.wait == y.wait && x.weight == y.weight && x.hasWeight == y.hasWeight &&
			maps.Equal(x.inpWeight, y.inpWeight) && maps.Equal(x.outWeight, y.outWeight) &&
			sameDomain(x.domain, x.domainSrc, y.domain, y.domainSrc)
	case *DispatcherNode:
		y, ok := b.(*DispatcherNode)
		return ok && slices.Equal(x.inputs, y.inputs) && slices.Equal(x.outputs, y.outputs) &&
			x.includeDefaults == y.includeDefaults && x.weight == y.weight && x.hasWeight == y.hasWeight &&
			sameDomain(x.domain, x.domainSrc, y.domain, y.domainSrc) &&
			x.graph.Fingerprint() == y.graph.Fingerprint()
	}
	return false
}

func sameDomain(a Domain, aSrc string, b Domain, bSrc string) bool {
	if aSrc != "" || bSrc != "" {
		return aSrc == bSrc
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return fmt.Sprintf("%p", a) == fmt.Sprintf("%p", b)
}

// argIDs drops the start id: functions fed by the start node take no arguments.
func argIDs(inputs []string) []string {
	out := make([]string, 0, len(inputs))
	for _, in := range inputs {
		if in != token.StartID {
			out = append(out, in)
		}
	}
	return out
}

func unique(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
