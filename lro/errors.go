package lro

import (
	"fmt"
	"time"
)

// ErrNotFound is returned when the requested operation does not exist.
type ErrNotFound struct {
	Operation string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found", e.Operation)
}

type InvalidOperationName struct {
	Name string
}

func (e InvalidOperationName) Error() string {
	return fmt.Sprintf("%s is not a valid operation name (must end with 'operations/{id}')", e.Name)
}

// ErrCanceled is returned when polling was abandoned by a local Cancel call.
// The remote operation may still be running unless a remote cancel was also
// delivered.
type ErrCanceled struct {
	Operation string
}

func (e ErrCanceled) Error() string {
	return fmt.Sprintf("operation (%s) canceled locally", e.Operation)
}

// ErrDeadlineExceeded is returned when the Poller's deadline passed before
// the operation reached a terminal state. The operation is abandoned, not
// canceled remotely.
type ErrDeadlineExceeded struct {
	Operation string
	Deadline  time.Time
}

func (e ErrDeadlineExceeded) Error() string {
	return fmt.Sprintf("operation (%s) exceeded polling deadline of %s", e.Operation, e.Deadline.Format(time.RFC3339))
}

// ErrWaitDeadlineExceeded is returned when a Wait exceeds the specified, or
// default, timeout. The operation itself keeps polling in the background.
type ErrWaitDeadlineExceeded struct {
	message string
}

func (e ErrWaitDeadlineExceeded) Error() string {
	return e.message
}

// ErrTransport is returned when status fetches failed beyond the configured
// retry ceiling, or failed with a non-retryable code. It reflects a local
// inability to observe the operation, not a failure reported by the remote
// service.
type ErrTransport struct {
	Operation string
	// Attempts is the total number of consecutive failed fetches.
	Attempts int
	Err      error
}

func (e ErrTransport) Error() string {
	return fmt.Sprintf("operation (%s) status fetch failed after %d attempt(s): %s", e.Operation, e.Attempts, e.Err)
}

func (e ErrTransport) Unwrap() error {
	return e.Err
}
