package task

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// route is the bookkeeping for one submitted task: its consumer and a
// one-shot delivery flag.
type route struct {
	handle    Handle
	consumer  Consumer
	delivered atomic.Bool
	submitted time.Time
}

// Router delivers each task's terminal event to its consumer exactly once,
// on the consuming context, and releases the task afterwards.
type Router struct {
	dispatcher Dispatcher
	logger     *slog.Logger

	mu       sync.Mutex
	inflight map[uuid.UUID]*route

	delivered atomic.Int64
	released  atomic.Int64
	dropped   atomic.Int64
}

// NewRouter creates a router that delivers through dispatcher
func NewRouter(dispatcher Dispatcher, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		dispatcher: dispatcher,
		logger:     logger,
		inflight:   make(map[uuid.UUID]*route),
	}
}

// register records the consumer for a freshly submitted handle
func (r *Router) register(h Handle, consumer Consumer) {
	r.mu.Lock()
	r.inflight[h.ID] = &route{
		handle:    h,
		consumer:  consumer,
		submitted: time.Now(),
	}
	r.mu.Unlock()
}

// Complete routes a terminal event. It returns false when the handle is
// unknown or already completed; such events are dropped.
func (r *Router) Complete(ev Event) bool {
	r.mu.Lock()
	rt, ok := r.inflight[ev.Handle.ID]
	r.mu.Unlock()

	if !ok || !rt.delivered.CompareAndSwap(false, true) {
		r.dropped.Add(1)
		r.logger.Warn("dropping duplicate task completion", "task", ev.Handle.String())
		return false
	}

	deliver := func() {
		// Release runs before the recover so teardown happens even when
		// the consumer panics.
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("task consumer panicked", "task", rt.handle.String(), "panic", p)
			}
		}()
		defer r.release(rt)

		r.delivered.Add(1)
		if rt.consumer != nil {
			rt.consumer(ev)
		}
	}

	if !r.dispatcher.Dispatch(deliver) {
		r.logger.Warn("consuming context closed, releasing undelivered task", "task", rt.handle.String())
		r.release(rt)
	}
	return true
}

// release removes the task from the in-flight registry
func (r *Router) release(rt *route) {
	r.mu.Lock()
	delete(r.inflight, rt.handle.ID)
	r.mu.Unlock()

	r.released.Add(1)
	r.logger.Debug("task released",
		"task", rt.handle.String(),
		"lifetime", time.Since(rt.submitted))
}

// InFlight returns the number of submitted tasks not yet released
func (r *Router) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inflight)
}

// Delivered returns how many consumer callbacks have been invoked
func (r *Router) Delivered() int64 {
	return r.delivered.Load()
}

// Released returns how many tasks have been torn down
func (r *Router) Released() int64 {
	return r.released.Load()
}

// Dropped returns how many duplicate completions were rejected
func (r *Router) Dropped() int64 {
	return r.dropped.Load()
}
