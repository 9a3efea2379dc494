package llm

import (
	"errors"
	"fmt"
)

// ErrNoResponseBody is wrapped by UpstreamError when a streaming call returns 2xx with nothing to read.
var ErrNoResponseBody = errors.New("no response body")

// ErrEmptyMessages is returned before any network call when the message list is empty.
var ErrEmptyMessages = errors.New("llm: at least one message is required")

// UpstreamError reports a failed exchange with the completion provider: a transport failure,
// a non-2xx status, a missing body, or an error object sent inside the event stream.
type UpstreamError struct {
	StatusCode int
	Status     string
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("upstream returned %s: %s", e.Status, e.Body)
	case e.Err != nil && e.Body != "":
		return fmt.Sprintf("upstream error: %s: %v", e.Body, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("upstream error: %v", e.Err)
	default:
		return "upstream error: " + e.Body
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsUpstreamError reports whether err (or anything it wraps) is an *UpstreamError.
func IsUpstreamError(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
