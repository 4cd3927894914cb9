// Package task runs background work that can be awaited and cancelled.
package task

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Task is a handle to one spawned function.
type Task struct {
	Name string
	done chan struct{}
	err  error
}

// Done is closed when the task returns.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the task's error. It is valid only after Done is closed.
func (t *Task) Err() error {
	return t.err
}

// Wait blocks until the task returns or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Group owns a set of background tasks sharing one cancellable context.
type Group struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewGroup creates a group whose tasks are cancelled when parent is.
func NewGroup(parent context.Context) *Group {
	ctx, cancel := context.WithCancel(parent)
	return &Group{ctx: ctx, cancel: cancel}
}

// Go starts fn in a new goroutine. Panics are recovered into the task error.
// After Shutdown, the task is not started and reports context.Canceled.
func (g *Group) Go(name string, fn func(ctx context.Context) error) *Task {
	t := &Task{Name: name, done: make(chan struct{})}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		t.err = context.Canceled
		close(t.done)
		return t
	}
	g.wg.Add(1)
	g.mu.Unlock()

	go func() {
		defer g.wg.Done()
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				log.Printf("ERROR: task %s panicked: %v", name, r)
				t.err = fmt.Errorf("task %s panicked: %v", name, r)
			}
		}()
		t.err = fn(g.ctx)
	}()
	return t
}

// Shutdown cancels every task and waits for them to return or ctx to end.
func (g *Group) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	g.cancel()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
