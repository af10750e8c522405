package dispatch

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned when the wait budget elapses without a matching
// result. Callers map it to a 504 and may retry; every other failure kind is
// a server error.
var ErrTimeout = errors.New("dispatch: timed out waiting for result")

// ConnectionError wraps a failure to reach the broker or set up a channel.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("dispatch: broker connection: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TransportError wraps a publish or fetch failure on an established
// connection.
type TransportError struct {
	Op  string // "publish" or "fetch"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("dispatch: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UpstreamError carries a worker-reported failure. Message is the worker's
// error description, passed through unmodified.
type UpstreamError struct {
	JobID   string
	Message string
}

func (e *UpstreamError) Error() string { return e.Message }
