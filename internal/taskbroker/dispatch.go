package taskbroker

import (
	"context"
	"fmt"
	"sync"
)

// Handler executes one task's work. Implementations must call
// Broker.CanProceed periodically during long-running work and return
// promptly once it reports false (cooperative cancellation, spec
// §4.4).
type Handler func(ctx context.Context, taskID string, args map[string]any) (any, error)

// LocalDispatcher runs tasks on an in-process goroutine pool, the
// worker-process role for deployments that don't need a separate NATS
// worker fleet. Tasks for a given name without a registered handler
// fail immediately.
type LocalDispatcher struct {
	broker   *Broker
	mu       sync.RWMutex
	handlers map[string]Handler
	sem      chan struct{}
}

// NewLocalDispatcher returns a dispatcher bound to broker, running at
// most concurrency tasks at once.
func NewLocalDispatcher(broker *Broker, concurrency int) *LocalDispatcher {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &LocalDispatcher{
		broker:   broker,
		handlers: make(map[string]Handler),
		sem:      make(chan struct{}, concurrency),
	}
}

// Register binds a handler to a task name.
func (d *LocalDispatcher) Register(taskName string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[taskName] = h
}

// Dispatch runs the task on a new goroutine, bounded by the
// dispatcher's concurrency semaphore.
func (d *LocalDispatcher) Dispatch(taskID, taskName string, args map[string]any) error {
	d.mu.RLock()
	h, ok := d.handlers[taskName]
	d.mu.RUnlock()
	if !ok {
		return d.broker.MarkFailure(taskID, fmt.Sprintf("no handler registered for task %q", taskName), "")
	}

	go func() {
		d.sem <- struct{}{}
		defer func() { <-d.sem }()

		if !d.broker.CanProceed(taskID) {
			return
		}
		if err := d.broker.MarkStarted(taskID); err != nil {
			return
		}

		result, err := h(context.Background(), taskID, args)
		if err != nil {
			_ = d.broker.MarkFailure(taskID, err.Error(), "")
			return
		}
		_ = d.broker.MarkSuccess(taskID, result)
	}()
	return nil
}
