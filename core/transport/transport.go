// Package transport posts JSON bodies to the remote and decodes JSON responses.
//
// Three strategies are available: fasthttp, resty and a minimal built-in
// HTTP/1.1 client (raw). One of them is selected once, at construction time.
//
// A client-side read timeout is not an error: it yields a synthetic
// successful Result with an empty "result" list, so that a long-poll loop
// simply polls again. Connection errors, caller cancellation and malformed
// responses are reported as *Error.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"time"

	"github.com/pkg/errors"
)

const (
	contentType = "application/json"
	userAgent   = "minigram"
)

// Result is an HTTP status code with the decoded JSON body.
type Result struct {
	Status int
	Body   map[string]interface{}
}

// Transport is a strategy for issuing POST requests with JSON bodies.
type Transport interface {
	// Post encodes body as JSON (nil is sent as an empty object),
	// posts it to url and decodes the response.
	Post(ctx context.Context, url string, body interface{}) (Result, error)
	// Name returns the strategy name.
	Name() string
}

// Func adapts a function to the Transport interface.
type Func func(ctx context.Context, url string, body interface{}) (Result, error)

func (fun Func) Post(ctx context.Context, url string, body interface{}) (Result, error) {
	return fun(ctx, url, body)
}

func (fun Func) Name() string {
	return "func"
}

// TimeoutResult is returned when a read times out on the client side.
func TimeoutResult() Result {
	return Result{
		Status: 200,
		Body:   map[string]interface{}{"result": []interface{}{}},
	}
}

func encode(body interface{}) ([]byte, error) {
	if body == nil {
		return []byte("{}"), nil
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "encode body")
	}

	return data, nil
}

func decode(data []byte) (map[string]interface{}, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	body := make(map[string]interface{})
	if err := decoder.Decode(&body); err != nil {
		return nil, errors.Wrap(err, "decode body")
	}

	return body, nil
}

// isReadTimeout reports whether err is a timeout which did not happen while dialing.
func isReadTimeout(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// deadline returns the earliest of now+timeout and the context deadline,
// and whether the context deadline was the binding one.
func deadline(ctx context.Context, timeout time.Duration) (time.Time, bool) {
	at := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && !d.After(at) {
		return d, true
	}

	return at, false
}
