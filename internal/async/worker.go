// Package async provides the single dedicated lane that serializes all
// durable-storage work. One goroutine drains a FIFO queue, so code running
// on the lane needs no internal locking.
package async

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStopped is returned when work is submitted after shutdown began.
var ErrStopped = errors.New("async worker stopped")

// Task runs on the worker lane. The context is cancelled only when a
// shutdown drain exceeds its bound.
type Task func(ctx context.Context)

// Worker is a strictly-FIFO single-goroutine task lane.
type Worker struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Task
	closed bool
	done   chan struct{}
}

// New starts the worker goroutine.
func New() *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	w.cond = sync.NewCond(&w.mu)
	go w.loop()
	return w
}

func (w *Worker) loop() {
	defer close(w.done)
	for {
		w.mu.Lock()
		for len(w.queue) == 0 && !w.closed {
			w.cond.Wait()
		}
		if len(w.queue) == 0 {
			w.mu.Unlock()
			return
		}
		task := w.queue[0]
		w.queue = w.queue[1:]
		w.mu.Unlock()

		task(w.ctx)
	}
}

// Run enqueues a fire-and-forget task.
func (w *Worker) Run(task Task) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrStopped
	}
	w.queue = append(w.queue, task)
	w.cond.Signal()
	return nil
}

// Result carries a value-returning task's outcome across lanes.
type Result[T any] struct {
	Value T
	Err   error
}

// Submit enqueues a value-returning task and hands back a future channel.
// The channel always receives exactly one Result.
func Submit[T any](w *Worker, fn func(ctx context.Context) (T, error)) <-chan Result[T] {
	out := make(chan Result[T], 1)
	err := w.Run(func(ctx context.Context) {
		value, err := fn(ctx)
		out <- Result[T]{Value: value, Err: err}
	})
	if err != nil {
		var zero T
		out <- Result[T]{Value: zero, Err: err}
	}
	return out
}

// Shutdown stops intake, waits up to the bound for the queue to drain, then
// cancels the lane context so remaining tasks bail out.
func (w *Worker) Shutdown(timeout time.Duration) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.closed = true
	w.cond.Signal()
	w.mu.Unlock()

	select {
	case <-w.done:
	case <-time.After(timeout):
		w.cancel()
		<-w.done
	}
	w.cancel()
}
