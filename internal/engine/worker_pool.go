package engine

import (
	"context"
	"sync"

	"github.com/gyaneshwarpardhi/dispatch/internal/metrics"
)

// job is the unit of work dispatched to a worker.
type job struct {
	ctx    context.Context
	task   Task
	future *Future
}

// Pool is a fixed-size goroutine pool with a bounded input queue.
type Pool struct {
	name   string
	queue  chan *job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	pending map[*job]struct{}
}

// NewPool creates and starts a pool with n goroutines and queue capacity depth.
func NewPool(name string, n, depth int) *Pool {
	if n < 1 {
		n = 1
	}
	if depth < 0 {
		depth = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		name:    name,
		queue:   make(chan *job, depth),
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[*job]struct{}),
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run()
		}()
	}
	return p
}

func (p *Pool) Name() string { return p.name }
func (p *Pool) Async() bool  { return true }

func (p *Pool) run() {
	for {
		select {
		case j := <-p.queue:
			p.execute(j)
			metrics.QueueUtilization.WithLabelValues(p.name).Set(p.utilization())
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Pool) execute(j *job) {
	defer p.forget(j)
	if j.future.isResolved() {
		return
	}
	// The task observes both its own context and the pool lifecycle.
	ctx, cancel := context.WithCancel(j.ctx)
	stop := context.AfterFunc(p.ctx, cancel)
	out, err := run(ctx, j.task)
	stop()
	cancel()
	if j.future.resolve(out, err) {
		metrics.BackendSubmissions.WithLabelValues(p.name, outcome(err)).Inc()
	}
}

func (p *Pool) forget(j *job) {
	p.mu.Lock()
	delete(p.pending, j)
	p.mu.Unlock()
}

// Submit enqueues t, blocking while the queue is full. The returned future
// resolves with ErrCancelled if the pool shuts down first.
func (p *Pool) Submit(ctx context.Context, t Task) *Future {
	j := &job{ctx: ctx, task: t, future: newFuture()}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		metrics.BackendSubmissions.WithLabelValues(p.name, "cancelled").Inc()
		return Resolved(nil, ErrCancelled)
	}
	p.pending[j] = struct{}{}
	p.mu.Unlock()

	select {
	case p.queue <- j:
		metrics.QueueUtilization.WithLabelValues(p.name).Set(p.utilization())
	case <-ctx.Done():
		p.forget(j)
		j.future.resolve(nil, ctx.Err())
	case <-p.ctx.Done():
		p.forget(j)
		j.future.resolve(nil, ErrCancelled)
	}
	return j.future
}

// Shutdown stops the workers and resolves every outstanding future with
// ErrCancelled. Tasks already running see their context cancelled.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	outstanding := make([]*job, 0, len(p.pending))
	for j := range p.pending {
		outstanding = append(outstanding, j)
	}
	p.mu.Unlock()

	p.cancel()
	for _, j := range outstanding {
		if j.future.resolve(nil, ErrCancelled) {
			metrics.BackendSubmissions.WithLabelValues(p.name, "cancelled").Inc()
		}
	}
}

// Drain shuts the pool down and waits for all workers to exit.
func (p *Pool) Drain() {
	p.Shutdown()
	p.wg.Wait()
}

// QueueLen returns how many jobs are currently queued.
func (p *Pool) QueueLen() int {
	return len(p.queue)
}

// QueueCap returns the total queue capacity.
func (p *Pool) QueueCap() int {
	return cap(p.queue)
}

func (p *Pool) utilization() float64 {
	if p.QueueCap() == 0 {
		return 0
	}
	return float64(p.QueueLen()) / float64(p.QueueCap())
}
