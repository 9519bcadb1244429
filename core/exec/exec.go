// Package exec gives every operation a blocking and a task-returning
// calling convention on top of a single implementation.
//
// An operation is written once as an Op, which receives the Mode it
// was started in. Block runs it in the caller goroutine, Go runs it in
// a background task, Run picks the mode of the enclosing call.
// The mode is also recorded on the context so lower layers
// (for example transport request logging) can look it up with ModeOf.
package exec

import (
	"context"
)

// Mode is the calling convention an operation was started with.
type Mode int

const (
	// Blocking means the caller waits for the result in its own goroutine.
	Blocking Mode = iota
	// Async means the operation runs inside a Task.
	Async
)

func (m Mode) String() string {
	switch m {
	case Async:
		return "async"
	default:
		return "blocking"
	}
}

// Op is a single implementation shared by both calling conventions.
type Op[T any] func(ctx context.Context, mode Mode) (T, error)

type modeKey struct{}

// WithMode records the mode on the context.
func WithMode(ctx context.Context, mode Mode) context.Context {
	return context.WithValue(ctx, modeKey{}, mode)
}

// ModeOf returns the mode recorded on the context, Blocking if none.
func ModeOf(ctx context.Context) Mode {
	if ctx == nil {
		return Blocking
	}

	if mode, ok := ctx.Value(modeKey{}).(Mode); ok {
		return mode
	}

	return Blocking
}

// Block runs op to completion in the calling goroutine.
func Block[T any](ctx context.Context, op Op[T]) (T, error) {
	return op(WithMode(ctx, Blocking), Blocking)
}

// Go starts op in a new cancellable Task.
// An already cancelled ctx yields a completed Task holding the context error.
func Go[T any](ctx context.Context, op Op[T]) *Task[T] {
	return spawn(WithMode(ctx, Async), op)
}

// Run executes op in the mode of the enclosing call: inline with Async mode
// when called from inside a Task, blocking otherwise. It never spawns a goroutine.
func Run[T any](ctx context.Context, op Op[T]) (T, error) {
	mode := ModeOf(ctx)
	return op(WithMode(ctx, mode), mode)
}
