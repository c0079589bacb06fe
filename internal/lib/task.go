package lib

import (
	"context"
	"errors"
	"sync"

	"github.com/rentchain/rental-client/internal/interfaces"
	"go.uber.org/atomic"
)

// Task runs a function in a separate goroutine that can be started once and stopped from outside
type Task struct {
	name    string
	runFunc func(ctx context.Context) error

	mu        sync.Mutex
	isRunning *atomic.Bool
	cancel    context.CancelFunc
	exitCh    chan struct{}
	err       *atomic.Error
}

// NewTask creates a new task from Runnable
func NewTask(runnable interfaces.Runnable, name string) *Task {
	return NewTaskFunc(runnable.Run, name)
}

// NewTaskFunc creates a new task from a function
func NewTaskFunc(f func(ctx context.Context) error, name string) *Task {
	closed := make(chan struct{})
	close(closed)

	return &Task{
		name:      name,
		runFunc:   f,
		isRunning: atomic.NewBool(false),
		exitCh:    closed,
		err:       atomic.NewError(nil),
	}
}

func (t *Task) Name() string {
	return t.name
}

func (t *Task) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.isRunning.CompareAndSwap(false, true) {
		panic("task " + t.name + " is already running")
	}

	subCtx, cancel := context.WithCancel(ctx)
	exitCh := make(chan struct{})
	t.cancel = cancel
	t.exitCh = exitCh
	t.err.Store(nil)

	go func() {
		defer close(exitCh)
		defer cancel()

		err := t.runFunc(subCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			t.err.Store(err)
		}
		t.isRunning.Store(false)
	}()
}

// Stop cancels the task and returns a channel that is closed once the goroutine exited.
// Safe to call multiple times and on a task that was never started.
func (t *Task) Stop() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}
	return t.exitCh
}

// Done is closed when the task goroutine exits for any reason
func (t *Task) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exitCh
}

func (t *Task) IsRunning() bool {
	return t.isRunning.Load()
}

// Err returns the error that caused the task to exit, cancellation is not an error
func (t *Task) Err() error {
	return t.err.Load()
}
