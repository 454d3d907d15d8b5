package resilience

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueFull is returned by Submit when the pending queue is at its
// configured depth cap.
var ErrQueueFull = errors.New("bulkhead queue is full")

// BulkheadConfig configures a bulkhead.
type BulkheadConfig struct {
	// Name identifies this bulkhead for metrics/logging.
	Name string
	// MaxConcurrent is the maximum number of concurrently executing tasks.
	MaxConcurrent int
	// MaxQueueDepth caps the pending queue. Zero means unbounded: under
	// sustained overload the queue grows without limit, so deployments that
	// need a bound set this and handle ErrQueueFull.
	MaxQueueDepth int
	// OnReject is called when a submission is rejected with ErrQueueFull.
	OnReject func(name string)
}

// DefaultBulkheadConfig returns sensible defaults.
func DefaultBulkheadConfig(name string) BulkheadConfig {
	return BulkheadConfig{
		Name:          name,
		MaxConcurrent: 10,
		MaxQueueDepth: 0,
	}
}

type bulkheadTask struct {
	fn      func() error
	settled chan error
}

// Bulkhead bounds concurrent task execution, queuing excess submissions in
// strict FIFO order. Each completed task frees one slot and starts at most
// one queued task; results are delivered only to the submitting caller.
type Bulkhead struct {
	config BulkheadConfig

	mu      sync.Mutex
	active  int
	pending []*bulkheadTask
}

// NewBulkhead creates a new bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}

	return &Bulkhead{
		config: config,
	}
}

// Submit runs fn within the bulkhead and blocks until it settles. If all
// slots are busy the task is queued; it starts when a completion frees a
// slot. A submitted task always runs: cancelling ctx releases the waiting
// caller with ctx.Err() but does not remove the task, and its eventual
// result is discarded.
func (b *Bulkhead) Submit(ctx context.Context, fn func() error) error {
	t := &bulkheadTask{fn: fn, settled: make(chan error, 1)}

	b.mu.Lock()
	if b.active < b.config.MaxConcurrent {
		b.active++
		b.mu.Unlock()
		go b.run(t)
	} else {
		if b.config.MaxQueueDepth > 0 && len(b.pending) >= b.config.MaxQueueDepth {
			b.mu.Unlock()
			if b.config.OnReject != nil {
				b.config.OnReject(b.config.Name)
			}
			return ErrQueueFull
		}
		b.pending = append(b.pending, t)
		b.mu.Unlock()
	}

	select {
	case err := <-t.settled:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitWithResult runs a function that returns a value. On rejection or
// caller cancellation the zero value is returned.
func SubmitWithResult[T any](b *Bulkhead, ctx context.Context, fn func() (T, error)) (T, error) {
	var result T
	err := b.Submit(ctx, func() error {
		var fnErr error
		result, fnErr = fn()
		return fnErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// run executes one task, frees its slot, and settles the submitter.
func (b *Bulkhead) run(t *bulkheadTask) {
	err := t.fn()
	b.complete()
	t.settled <- err
}

// complete decrements the active count and dequeues at most one pending
// task. It runs exactly once per completed task.
func (b *Bulkhead) complete() {
	b.mu.Lock()
	b.active--
	var next *bulkheadTask
	if len(b.pending) > 0 && b.active < b.config.MaxConcurrent {
		next = b.pending[0]
		b.pending[0] = nil
		b.pending = b.pending[1:]
		b.active++
	}
	b.mu.Unlock()

	if next != nil {
		go b.run(next)
	}
}

// Active returns the number of currently executing tasks.
func (b *Bulkhead) Active() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// Queued returns the number of tasks waiting for a slot.
func (b *Bulkhead) Queued() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// MaxConcurrent returns the configured concurrency bound.
func (b *Bulkhead) MaxConcurrent() int {
	return b.config.MaxConcurrent
}
