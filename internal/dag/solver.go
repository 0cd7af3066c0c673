package dag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/dispatch/internal/engine"
	"github.com/gyaneshwarpardhi/dispatch/internal/metrics"
	"github.com/gyaneshwarpardhi/dispatch/internal/token"
)

type dispatchConfig struct {
	outputs    []string
	cutoff     float64
	hasCutoff  bool
	inputsDist map[string]float64
	wildcard   bool
	noCall     bool
	shrink     bool
	rmUnused   bool
	executor   string
	logger     *slog.Logger
}

// DispatchOption configures one Dispatch call.
type DispatchOption func(*dispatchConfig)

// Outputs requests the given data ids. The dispatch stops as soon as all of
// them are set and the returned workflow is pruned to what they depend on.
func Outputs(ids ...string) DispatchOption {
	return func(c *dispatchConfig) { c.outputs = slices.Clone(ids) }
}

// Cutoff stops the dispatch before visiting nodes farther than d.
func Cutoff(d float64) DispatchOption {
	return func(c *dispatchConfig) { c.cutoff, c.hasCutoff = d, true }
}

// InputsDist sets the starting distance of individual inputs.
func InputsDist(m map[string]float64) DispatchOption {
	return func(c *dispatchConfig) { c.inputsDist = maps.Clone(m) }
}

// WildcardInputs lets inputs that are also requested outputs be set once
// more by a computed value.
func WildcardInputs() DispatchOption { return func(c *dispatchConfig) { c.wildcard = true } }

// NoCall resolves reachability only: no callable runs, no domain is checked
// and every computed value is the None token.
func NoCall() DispatchOption { return func(c *dispatchConfig) { c.noCall = true } }

// Shrink dispatches on the graph shrunk to the inputs and outputs.
func Shrink() DispatchOption { return func(c *dispatchConfig) { c.shrink = true } }

// RmUnusedNodes drops from the workflow the fired callables whose outputs
// reached nothing.
func RmUnusedNodes() DispatchOption { return func(c *dispatchConfig) { c.rmUnused = true } }

// OnExecutor selects the backend for functions without their own.
//
// An asynchronous backend gets a function as soon as it is queued, before
// cheaper routes have settled. The function may then run although a cheaper
// route sets its outputs first; its results are discarded and the solution
// matches the synchronous one, but side effects of the call still happen.
func OnExecutor(name string) DispatchOption { return func(c *dispatchConfig) { c.executor = name } }

// LogTo overrides the graph logger for this call.
func LogTo(l *slog.Logger) DispatchOption { return func(c *dispatchConfig) { c.logger = l } }

// Dispatch resolves every value reachable from inputs. On error the partial
// solution is returned together with the error.
func (g *Graph) Dispatch(ctx context.Context, inputs map[string]any, opts ...DispatchOption) (*Solution, error) {
	var cfg dispatchConfig
	for _, o := range opts {
		o(&cfg)
	}
	return g.dispatch(ctx, inputs, cfg)
}

func (g *Graph) dispatch(ctx context.Context, inputs map[string]any, cfg dispatchConfig) (*Solution, error) {
	start := time.Now()
	graph := g
	if cfg.shrink && len(cfg.outputs) > 0 {
		graph = g.ShrinkDsp(slices.Sorted(maps.Keys(inputs)), cfg.outputs)
	}
	logger := cfg.logger
	if logger == nil {
		logger = g.Logger()
	}
	runID := uuid.NewString()
	s := &solver{
		ctx:         ctx,
		g:           graph,
		self:        g,
		cfg:         cfg,
		log:         logger.With("run", runID, "graph", g.name),
		sol:         newSolution(graph, runID),
		outputs:     make(map[string]bool),
		wildPending: make(map[string]bool),
		pending:     make(map[string]float64),
		received:    make(map[string]map[string]any),
		arrived:     make(map[string]map[string]float64),
		scheduled:   make(map[string]bool),
		executors:   make(map[string]engine.Executor),
	}
	for _, o := range cfg.outputs {
		if graph.Has(o) {
			s.outputs[o] = true
		}
	}
	err := s.run(inputs)

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	name := g.name
	if name == "" {
		name = "unnamed"
	}
	metrics.Dispatches.WithLabelValues(name, outcome).Inc()
	metrics.DispatchDuration.Observe(float64(time.Since(start).Microseconds()) / 1000)
	return s.sol, err
}

type solver struct {
	ctx  context.Context
	g    *Graph
	self *Graph
	cfg  dispatchConfig
	log  *slog.Logger
	sol  *Solution
	q    queue
	done bool

	outputs     map[string]bool               // requested outputs not yet set
	wildPending map[string]bool               // set from input, open to one computed value
	pending     map[string]float64            // best queued distance per data id
	received    map[string]map[string]any     // wait data nodes: producer → value
	arrived     map[string]map[string]float64 // callable → input → arrival distance
	scheduled   map[string]bool               // callables queued, excluded or out of range
	executors   map[string]engine.Executor
}

func (s *solver) run(inputs map[string]any) error {
	s.seed(inputs)
	for s.q.len() > 0 && !s.done {
		if err := s.ctx.Err(); err != nil {
			return err
		}
		e := s.q.pop()
		if s.cfg.hasCutoff && e.dist > s.cfg.cutoff {
			break
		}
		var err error
		if e.data {
			err = s.setData(e)
		} else {
			err = s.fire(e)
		}
		if err != nil {
			return err
		}
	}
	if len(s.cfg.outputs) > 0 && !s.cfg.shrink {
		s.sol.pruneTo(s.cfg.outputs)
	}
	if s.cfg.rmUnused {
		s.sol.removeUnused()
	}
	return nil
}

// seed queues the inputs, then the defaults of the nodes not given, then the
// start and self nodes, each in node creation order.
func (s *solver) seed(inputs map[string]any) {
	for id := range inputs {
		if n := s.g.Node(id); n == nil || n.Kind() != KindData {
			s.log.Debug("input ignored", "node", id)
		}
	}
	for _, n := range s.g.nodes {
		dn, ok := n.(*DataNode)
		if !ok {
			continue
		}
		v, given := inputs[dn.id]
		if !given {
			continue
		}
		wild := dn.wildcard || (s.cfg.wildcard && slices.Contains(s.cfg.outputs, dn.id))
		s.pushData(dn.id, v, s.cfg.inputsDist[dn.id], token.StartID, wild)
	}
	for _, n := range s.g.nodes {
		id := n.ID()
		if _, given := inputs[id]; given {
			continue
		}
		if d, ok := s.g.defaults[id]; ok {
			s.pushData(id, d.Value, d.InitialDist, token.StartID, false)
		}
	}
	if _, given := inputs[token.StartID]; !given && s.g.Has(token.StartID) {
		s.pushData(token.StartID, token.None, 0, "", false)
	}
	if _, given := inputs[token.SelfID]; !given && s.g.Has(token.SelfID) {
		s.pushData(token.SelfID, s.self, 0, "", false)
	}
}

func (s *solver) pushData(id string, v any, dist float64, from string, wild bool) {
	if !wild {
		if d, ok := s.pending[id]; !ok || dist < d {
			s.pending[id] = dist
		}
	}
	s.q.push(&entry{id: id, dist: dist, data: true, value: v, from: from, wild: wild})
}

func (s *solver) setData(e *entry) error {
	n := s.g.Node(e.id).(*DataNode)
	if _, set := s.sol.values[e.id]; set {
		if !s.wildPending[e.id] || e.wild || e.from == token.StartID {
			return nil
		}
		delete(s.wildPending, e.id)
	}

	values := map[string]any{e.from: e.value}
	producers := []string{e.from}
	if n.wait && e.from != token.StartID {
		r := s.received[e.id]
		if r == nil {
			r = make(map[string]any)
			s.received[e.id] = r
		}
		r[e.from] = e.value
		if len(r) < len(s.g.pred[e.id]) {
			return nil
		}
		values, producers = r, s.g.pred[e.id]
	}

	v := e.value
	var err error
	if n.transform != nil && !s.cfg.noCall {
		if v, err = n.transform(values); err != nil {
			return s.fail(e.id, KindData, e.dist, fmt.Errorf("transform: %w", err), nil)
		}
	}
	for i, f := range n.filters {
		if s.cfg.noCall || token.Vetoes(v) {
			break
		}
		if v, err = f(v); err != nil {
			return s.fail(e.id, KindData, e.dist, fmt.Errorf("filter %d: %w", i, err), nil)
		}
	}
	if !s.cfg.noCall && token.Vetoes(v) && (n.transform != nil || len(n.filters) > 0) {
		s.log.Debug("value vetoed", "node", e.id)
		return nil
	}

	s.sol.set(e.id, v, e.dist)
	if e.from == "" {
		s.sol.workflow.addNode(e.id)
	}
	for _, p := range producers {
		if p != "" {
			s.sol.workflow.addEdge(p, e.id, values[p])
		}
	}
	s.sol.recordData(e.id, e.dist, e.from)
	if n.callback != nil {
		n.callback(v)
	}

	if e.wild {
		s.wildPending[e.id] = true
	} else if s.outputs[e.id] {
		delete(s.outputs, e.id)
		if len(s.outputs) == 0 && !s.cfg.shrink {
			s.done = true
			return nil
		}
	}
	for _, c := range s.g.succ[e.id] {
		if err := s.arrive(c, e.id, e.dist); err != nil {
			return err
		}
	}
	return nil
}

// arrive registers that input reached callable cid and schedules the node
// once it is eligible.
func (s *solver) arrive(cid, input string, dist float64) error {
	if s.scheduled[cid] {
		return nil
	}
	c := s.g.Node(cid).(Callable)
	d := dist + c.inputWeight(input) + s.nodeWeight(c)
	arr := s.arrived[cid]
	if arr == nil {
		arr = make(map[string]float64)
		s.arrived[cid] = arr
	}
	if _, ok := arr[input]; ok {
		return nil
	}
	arr[input] = d

	var args []any
	if c.WaitInputs() {
		for _, in := range c.Inputs() {
			ad, ok := arr[in]
			if !ok {
				return nil
			}
			d = max(d, ad)
		}
		for _, in := range argIDs(c.Inputs()) {
			args = append(args, s.sol.values[in])
		}
	} else if input != token.StartID {
		args = []any{s.sol.values[input]}
	}
	return s.schedule(c, d, args)
}

func (s *solver) nodeWeight(c Callable) float64 {
	if w, ok := c.Weight(); ok {
		return w
	}
	return s.g.weight
}

func (s *solver) schedule(c Callable, d float64, args []any) error {
	id := c.ID()
	s.scheduled[id] = true
	if s.cfg.hasCutoff && d > s.cfg.cutoff {
		return nil
	}
	if dom := c.Domain(); dom != nil && !s.cfg.noCall {
		ok, err := dom(args)
		if err != nil {
			return s.fail(id, c.Kind(), d, fmt.Errorf("domain: %w", err), nil)
		}
		if !ok {
			metrics.DomainRejections.Inc()
			s.log.Debug("domain rejected", "node", id)
			return nil
		}
	}
	e := &entry{id: id, dist: d, args: args}
	if fn, ok := c.(*FunctionNode); ok && !s.cfg.noCall && !s.covered(fn, d) {
		ex, err := s.executor(fn)
		if err == nil && ex.Async() {
			e.future = ex.Submit(s.ctx, task(fn.fn, args))
		}
	}
	s.q.push(e)
	return nil
}

// covered reports whether firing fn at distance d cannot improve any of its
// outputs.
func (s *solver) covered(fn *FunctionNode, d float64) bool {
	if fn.autoOutput {
		return false
	}
	for _, out := range fn.outputs {
		if isSink(out) {
			continue
		}
		if s.wildPending[out] {
			return false
		}
		if _, set := s.sol.values[out]; set {
			continue
		}
		pd, queued := s.pending[out]
		dn := s.g.Node(out).(*DataNode)
		plain := dn.transform == nil && len(dn.filters) == 0 && !dn.wait
		if queued && plain && pd <= d+fn.outputWeight(out) {
			continue
		}
		return false
	}
	return true
}

func (s *solver) executor(fn *FunctionNode) (engine.Executor, error) {
	name := fn.executor
	if name == "" {
		name = s.cfg.executor
	}
	if ex, ok := s.executors[name]; ok {
		return ex, nil
	}
	ex, err := engine.Get(name)
	if err != nil {
		return nil, err
	}
	s.executors[name] = ex
	return ex, nil
}

func task(fn Func, args []any) engine.Task {
	return func(ctx context.Context) ([]any, error) { return fn.Call(ctx, args) }
}

func (s *solver) fire(e *entry) error {
	c := s.g.Node(e.id).(Callable)
	if fn, ok := c.(*FunctionNode); ok && s.covered(fn, e.dist) {
		s.log.Debug("function skipped, outputs covered", "node", e.id)
		return nil
	}
	arr := s.arrived[e.id]
	for _, in := range unique(c.Inputs()) {
		if _, ok := arr[in]; ok {
			s.sol.workflow.addEdge(in, e.id, s.sol.values[in])
		}
	}
	metrics.NodesFired.WithLabelValues(string(c.Kind())).Inc()
	s.log.Debug("firing", "node", e.id, "dist", e.dist)
	switch n := c.(type) {
	case *FunctionNode:
		return s.fireFunction(n, e)
	case *DispatcherNode:
		return s.fireDispatcher(n, e)
	}
	return nil
}

func (s *solver) fireFunction(n *FunctionNode, e *entry) error {
	if s.cfg.noCall {
		s.sol.record(n.id, KindFunction, e.dist, nil, nil)
		for _, o := range n.outputs {
			if !isSink(o) {
				s.pushData(o, token.None, e.dist+n.outputWeight(o), n.id, false)
			}
		}
		return nil
	}
	fut := e.future
	if fut == nil {
		ex, err := s.executor(n)
		if err != nil {
			return s.fail(n.id, KindFunction, e.dist, err, nil)
		}
		fut = ex.Submit(s.ctx, task(n.fn, e.args))
	}
	out, err := fut.Wait(s.ctx)
	if err == nil && !n.autoOutput && len(out) != len(n.outputs) {
		err = fmt.Errorf("%w: got %d, want %d", ErrOutputArity, len(out), len(n.outputs))
	}
	if err != nil {
		return s.fail(n.id, KindFunction, e.dist, err, nil)
	}
	s.sol.record(n.id, KindFunction, e.dist, nil, nil)
	if n.autoOutput {
		return nil
	}
	for i, o := range n.outputs {
		if !isSink(o) {
			s.pushData(o, out[i], e.dist+n.outputWeight(o), n.id, false)
		}
	}
	return nil
}

func (s *solver) fireDispatcher(n *DispatcherNode, e *entry) error {
	in := make(map[string]any, len(n.inputs))
	for _, l := range n.inputs {
		if l.From == token.StartID {
			continue
		}
		if v, ok := s.sol.values[l.From]; ok {
			if _, dup := in[l.To]; !dup {
				in[l.To] = v
			}
		}
	}
	cfg := dispatchConfig{
		outputs:  distinct(n.outputs, func(l Link) string { return l.From }),
		noCall:   s.cfg.noCall,
		executor: s.cfg.executor,
		logger:   s.log,
	}
	sub, err := n.graph.dispatch(s.ctx, in, cfg)
	var subPipe []PipeEntry
	if sub != nil {
		s.sol.sub[n.id] = sub
		subPipe = sub.pipe
	}
	if err != nil {
		return s.fail(n.id, KindDispatcher, e.dist, err, subPipe)
	}
	s.sol.record(n.id, KindDispatcher, e.dist, nil, subPipe)
	produced := false
	for _, l := range n.outputs {
		if v, ok := sub.values[l.From]; ok {
			produced = true
			s.pushData(l.To, v, e.dist+n.outputWeight(l.To), n.id, false)
		}
	}
	if !produced && len(n.outputs) > 0 {
		s.log.Debug("nested dispatch produced no output", "node", n.id)
	}
	return nil
}

// fail handles an invocation error of node id. Cancellation and errors
// matching the raise policy abort the dispatch; other errors are recorded
// and the node becomes a dead end.
func (s *solver) fail(id string, kind Kind, dist float64, err error, sub []PipeEntry) error {
	s.sol.record(id, kind, dist, err, sub)
	if errors.Is(err, engine.ErrCancelled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nest(id, err)
	}
	if s.g.raises.Match(id) {
		metrics.InvocationErrors.WithLabelValues("true").Inc()
		return nest(id, err)
	}
	metrics.InvocationErrors.WithLabelValues("false").Inc()
	s.log.Warn("node failed", "node", id, "err", err)
	return nil
}
