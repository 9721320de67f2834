package task

import (
	"context"
	"log/slog"
	"sync"
)

// Loop is a single-goroutine executor. Everything dispatched to it runs
// serially, in submission order, so state it owns needs no locking.
type Loop struct {
	queue  *Queue[func()]
	logger *slog.Logger

	once sync.Once
	done chan struct{}
}

// NewLoop creates a loop; call Start to begin executing
func NewLoop(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		queue:  NewQueue[func()](),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start runs the loop on its own goroutine until ctx is done or Stop is called
func (l *Loop) Start(ctx context.Context) {
	l.once.Do(func() {
		go func() {
			defer close(l.done)
			l.run(ctx)
		}()
	})
}

func (l *Loop) run(ctx context.Context) {
	for {
		fn, ok := l.queue.Pop(ctx)
		if !ok {
			return
		}
		l.call(fn)
	}
}

// call runs fn, keeping the loop alive if it panics
func (l *Loop) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("loop callback panicked", "panic", r)
		}
	}()
	fn()
}

// Dispatch implements Dispatcher
func (l *Loop) Dispatch(fn func()) bool {
	return l.queue.Push(fn)
}

// Do dispatches fn and waits for it to run. Must not be called from the loop
// itself.
func (l *Loop) Do(fn func()) bool {
	ran := make(chan struct{})
	ok := l.Dispatch(func() {
		defer close(ran)
		fn()
	})
	if !ok {
		return false
	}
	select {
	case <-ran:
		return true
	case <-l.done:
		return false
	}
}

// Stop stops accepting work, runs what is already queued, and waits for
// the loop goroutine to exit.
func (l *Loop) Stop() {
	l.queue.Close()
	l.once.Do(func() {
		// Never started: nothing will drain the queue
		close(l.done)
	})
	<-l.done
}
