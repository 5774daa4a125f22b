package tasks

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
)

// MemoryDispatcher runs tasks on a bounded in-process goroutine pool.
type MemoryDispatcher struct {
	registry *Registry
	timeout  time.Duration

	mu     sync.Mutex
	closed bool
	pool   *pool.Pool
}

// NewMemoryDispatcher creates a dispatcher running at most workers tasks at
// once. Each task gets its own timeout, detached from the dispatching request.
func NewMemoryDispatcher(registry *Registry, workers int, timeout time.Duration) *MemoryDispatcher {
	if workers <= 0 {
		workers = 4
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &MemoryDispatcher{
		registry: registry,
		timeout:  timeout,
		pool:     pool.New().WithMaxGoroutines(workers),
	}
}

func (d *MemoryDispatcher) Dispatch(_ context.Context, task Task) error {
	if err := validate(task); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}

	d.pool.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		start := time.Now()
		if err := d.registry.Run(ctx, task); err != nil {
			log.Printf("[tasks] %s %s failed: %v", task.Name, task.ID, err)
			return
		}
		log.Printf("[tasks] %s %s done in %s", task.Name, task.ID, time.Since(start).Round(time.Millisecond))
	})
	return nil
}

// Close stops accepting tasks and waits for running ones.
func (d *MemoryDispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.pool.Wait()
	return nil
}
