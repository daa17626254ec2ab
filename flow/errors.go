package flow

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// A State is the session's position in its finite-state machine.
type State int

// Session states.
const (
	Idle = State(iota)
	TimespanRecording
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case TimespanRecording:
		return "timespan recording"
	case Closed:
		return "closed"
	default:
		return "[INVALID]"
	}
}

// ErrConcurrentCall is returned when a session operation is invoked while
// another one is still in flight. Session calls must be strictly sequential.
var ErrConcurrentCall = errors.New("concurrent call on flow session")

// ErrSessionClosed is returned by operations on a session that was closed or
// suffered a fatal driver failure.
var ErrSessionClosed = errors.New("flow session is closed")

// A TransitionError reports an operation invoked in a state that forbids it.
// The offending call appends no step result.
type TransitionError struct {
	Op    string
	State State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s while the session is %s", e.Op, e.State)
}

// A TimeoutError reports that an operation did not complete within its
// deadline. Bound is the session-configured limit where one applies; it is
// zero when the deadline came from the caller's context.
type TimeoutError struct {
	Op    string
	Bound time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Bound > 0 {
		return fmt.Sprintf("%s did not complete within %s", e.Op, e.Bound)
	}
	return fmt.Sprintf("%s deadline exceeded", e.Op)
}

// Timeout implements the net.Error-style timeout predicate.
func (e *TimeoutError) Timeout() bool { return true }

// Unwrap lets errors.Is match context.DeadlineExceeded.
func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// A DriverError reports that the underlying page or transport became
// unavailable mid-capture. It is fatal for the whole session.
type DriverError struct {
	Op  string
	Err error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("page driver failed during %s: %v", e.Op, e.Err)
}

func (e *DriverError) Unwrap() error { return e.Err }
