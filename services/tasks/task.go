// Package tasks dispatches background work either in-process or through an
// AMQP queue consumed by worker processes.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskRefreshWatchData refreshes streaming-provider availability for a movie.
const TaskRefreshWatchData = "refresh-watch-data"

var (
	ErrClosed         = errors.New("dispatcher closed")
	ErrUnknownTask    = errors.New("no handler registered for task")
	ErrTaskIncomplete = errors.New("task is missing required fields")
)

// Task is one unit of background work. It is serialized as JSON on the queue.
type Task struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	MovieID   int64     `json:"movieId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewRefreshWatchData builds a refresh-watch-data task for movieID.
func NewRefreshWatchData(movieID int64) Task {
	return Task{
		ID:        uuid.NewString(),
		Name:      TaskRefreshWatchData,
		MovieID:   movieID,
		CreatedAt: time.Now().UTC(),
	}
}

// Dispatcher hands tasks off for asynchronous execution. Dispatch never waits
// for the task to run.
type Dispatcher interface {
	Dispatch(ctx context.Context, task Task) error
	Close() error
}

// Handler executes one task.
type Handler func(ctx context.Context, task Task) error

// Registry maps task names to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register installs h for name, replacing any previous handler.
func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Run executes task with its registered handler.
func (r *Registry) Run(ctx context.Context, task Task) error {
	r.mu.RLock()
	h, ok := r.handlers[task.Name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, task.Name)
	}
	return h(ctx, task)
}

func validate(task Task) error {
	if task.Name == "" {
		return fmt.Errorf("%w: name", ErrTaskIncomplete)
	}
	if task.Name == TaskRefreshWatchData && task.MovieID <= 0 {
		return fmt.Errorf("%w: movieId", ErrTaskIncomplete)
	}
	return nil
}
