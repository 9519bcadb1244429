package dispatch

import (
	"context"
	"fmt"

	"minigram/core/api"
	"minigram/core/update"
)

// Handler processes a single update. A non-nil reply is sent back
// to the chat of the update before the next update is processed.
type Handler interface {
	Handle(ctx context.Context, u *update.Update) (*api.Reply, error)
}

type HandlerFunc func(ctx context.Context, u *update.Update) (*api.Reply, error)

func (fun HandlerFunc) Handle(ctx context.Context, u *update.Update) (*api.Reply, error) {
	return fun(ctx, u)
}

// HandlerError is a failure of a single update which did not stop the dispatcher.
type HandlerError struct {
	Kind     update.Kind
	UpdateID int64
	Err      error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handle %s update %d: %v", e.Kind, e.UpdateID, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

func (e *HandlerError) Cause() error {
	return e.Err
}
