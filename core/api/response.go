package api

import (
	"fmt"
	"time"

	"minigram/core/update"
)

// Response is a decoded response body as returned by the remote.
type Response map[string]interface{}

// Refused reports whether the remote explicitly refused the call.
func (r Response) Refused() bool {
	ok, present := r["ok"].(bool)
	return present && !ok
}

func (r Response) Result() interface{} {
	return r["result"]
}

func (r Response) err() *Error {
	err := &Error{
		Code:        int(update.ExtractInt(r, "error_code").ValueOrZero()),
		Description: update.ExtractString(r, "description").ValueOrZero(),
	}

	if retryAfter := update.ExtractInt(r, "parameters.retry_after"); retryAfter.Valid {
		err.RetryAfter = time.Duration(retryAfter.Int64) * time.Second
	}

	return err
}

// Error is a refusal reported by the remote.
type Error struct {
	Code        int
	Description string
	// RetryAfter is set when the remote asks to slow down.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%d %s (retry after %.0f seconds)", e.Code, e.Description, e.RetryAfter.Seconds())
	}

	return fmt.Sprintf("%d %s", e.Code, e.Description)
}
