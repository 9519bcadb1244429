package transport

import (
	"fmt"
	"regexp"
)

var tokenRegexp = regexp.MustCompile(`/bot[^/]+/`)

// Error is returned for every failure other than a client-side read timeout.
type Error struct {
	Op  string
	URL string
	Err error
}

func (e *Error) Error() string {
	// wrapped errors may repeat the url
	return Redact(fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err))
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Cause() error {
	return e.Err
}

// Redact hides bot credentials embedded in URL paths.
func Redact(url string) string {
	return tokenRegexp.ReplaceAllString(url, "/bot***/")
}

func fail(op, url string, err error) *Error {
	return &Error{Op: op, URL: url, Err: err}
}
