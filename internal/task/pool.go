package task

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// job pairs a handle with the task it runs
type job struct {
	handle   Handle
	task     *Task
	queuedAt time.Time
}

// Pool is a bounded set of workers fed by an unbounded FIFO.
// Submit never blocks, and every submitted task produces exactly one Event.
type Pool struct {
	workers int
	queue   *Queue[*job]
	router  *Router
	logger  *slog.Logger

	active    atomic.Int64
	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64

	// Lifecycle
	mu      sync.Mutex
	started bool
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPool creates a pool with the given worker count.
// If workers <= 0, uses runtime.NumCPU().
func NewPool(workers int, router *Router, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		workers: workers,
		queue:   NewQueue[*job](),
		router:  router,
		logger:  logger,
	}
}

// Start launches the worker goroutines
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}
	p.started = true
	p.ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.logger.Info("worker pool started", "workers", p.workers)
}

// Stop shuts the pool down. In-flight tasks see their context cancelled;
// tasks still queued are completed with ErrPoolClosed.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	cancel := p.cancel
	p.mu.Unlock()

	p.queue.Close()
	if cancel != nil {
		cancel()
	}
	p.wg.Wait()

	for _, j := range p.queue.Drain() {
		p.finish(j, Event{Handle: j.handle, Err: ErrPoolClosed})
	}

	p.logger.Info("worker pool stopped",
		"submitted", p.submitted.Load(),
		"completed", p.completed.Load(),
		"failed", p.failed.Load())
}

// Submit queues t and returns its handle immediately. consumer is invoked
// exactly once on the consuming context with the outcome.
func (p *Pool) Submit(t *Task, consumer Consumer) Handle {
	h := Handle{
		ID:         uuid.New(),
		Kind:       t.Kind,
		Slot:       t.Slot,
		Generation: t.Generation,
	}
	p.router.register(h, consumer)
	p.submitted.Add(1)

	j := &job{handle: h, task: t, queuedAt: time.Now()}
	p.logger.Debug("task submitted", "task", h.String(), "desc", t.Description, "slot", t.Slot)

	if !p.queue.Push(j) {
		p.finish(j, Event{Handle: h, Err: ErrPoolClosed})
	}
	return h
}

// worker pulls jobs until the pool stops
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		j, ok := p.queue.Pop(p.ctx)
		if !ok {
			return
		}
		if p.ctx.Err() != nil {
			p.finish(j, Event{Handle: j.handle, Err: ErrPoolClosed})
			continue
		}
		p.logger.Debug("task started",
			"task", j.handle.String(),
			"worker", id,
			"waited", time.Since(j.queuedAt))

		start := time.Now()
		p.active.Add(1)
		payload, err := p.execute(j.task)
		p.active.Add(-1)

		p.finish(j, Event{
			Handle:   j.handle,
			Payload:  payload,
			Err:      err,
			Duration: time.Since(start),
		})
	}
}

// execute runs a task under its timeout, converting panics into errors
func (p *Pool) execute(t *Task) (payload any, err error) {
	defer func() {
		if r := recover(); r != nil {
			payload = nil
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	if t.Run == nil {
		return nil, ErrNoWork
	}

	ctx := p.ctx
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	return t.Run(ctx)
}

// finish records the outcome and hands it to the router
func (p *Pool) finish(j *job, ev Event) {
	if ev.Err != nil {
		p.failed.Add(1)
		p.logger.Info("task failed",
			"task", ev.Handle.String(),
			"desc", j.task.Description,
			"error", ev.Err,
			"duration", ev.Duration)
	} else {
		p.completed.Add(1)
		p.logger.Info("task completed",
			"task", ev.Handle.String(),
			"desc", j.task.Description,
			"duration", ev.Duration)
	}
	p.router.Complete(ev)
}

// Stats returns current statistics
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.workers,
		Active:    int(p.active.Load()),
		Pending:   p.queue.Len(),
		InFlight:  p.router.InFlight(),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Delivered: p.router.Delivered(),
		Released:  p.router.Released(),
		Dropped:   p.router.Dropped(),
	}
}
