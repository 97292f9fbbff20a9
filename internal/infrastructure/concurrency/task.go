package concurrency

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"
)

// Task is a handle to work started with Go. The work runs in its own failure
// domain: panics are converted into errors and nothing is re-raised to the
// goroutine that started it.
type Task struct {
	name     string
	done     chan struct{}
	err      error
	stack    []byte
	started  time.Time
	finished time.Time
}

// Go starts fn in a new goroutine and returns a handle that can be joined.
func Go(ctx context.Context, name string, fn func(ctx context.Context) error) *Task {
	t := &Task{
		name:    name,
		done:    make(chan struct{}),
		started: time.Now(),
	}

	go func() {
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				t.err = fmt.Errorf("task %s panicked: %v", name, r)
				t.stack = debug.Stack()
			}
			t.finished = time.Now()
		}()
		t.err = fn(ctx)
	}()

	return t
}

// Name returns the name the task was started with.
func (t *Task) Name() string {
	return t.name
}

// Wait blocks until the task has finished and returns its error.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// Done is closed when the task finishes.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Stack returns the goroutine stack captured when the task panicked.
func (t *Task) Stack() []byte {
	<-t.done
	return t.stack
}

// Duration returns how long the task ran. Only meaningful after Wait.
func (t *Task) Duration() time.Duration {
	<-t.done
	return t.finished.Sub(t.started)
}

// Sleep pauses for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
