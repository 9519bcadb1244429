package exec

import (
	"context"
	"fmt"

	"github.com/jfk9w-go/flu/syncf"
)

// Task is the awaitable handle of an operation started with Go.
// It is a syncf.Ref to the operation result which may be read any number of times.
type Task[T any] struct {
	done   chan struct{}
	cancel context.CancelFunc
	result syncf.Val[T]
}

var _ syncf.Ref[struct{}] = (*Task[struct{}])(nil)

func spawn[T any](ctx context.Context, op Op[T]) *Task[T] {
	task := &Task[T]{done: make(chan struct{})}
	cancel, err := syncf.Go(ctx, func(ctx context.Context) {
		defer close(task.done)
		defer func() {
			if r := recover(); r != nil {
				task.result = syncf.Val[T]{E: &PanicError{Value: r}}
			}
		}()

		value, err := op(ctx, Async)
		task.result = syncf.Val[T]{V: value, E: err}
	})

	task.cancel = cancel
	if err != nil {
		task.result.E = err
		close(task.done)
	}

	return task
}

// Done is closed once the operation returns.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Cancel cancels the operation context. It does not wait for completion.
func (t *Task[T]) Cancel() {
	t.cancel()
}

// Get blocks until the operation completes or ctx is done.
// Cancellation of ctx does not cancel the task itself.
func (t *Task[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.result.Get(ctx)
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result blocks until the operation completes.
func (t *Task[T]) Result() (T, error) {
	<-t.done
	return t.result.Get(context.Background())
}

// Stop cancels the task and waits for it to return.
func (t *Task[T]) Stop() (T, error) {
	t.cancel()
	return t.Result()
}

// PanicError wraps a value recovered from a panicking task.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}
