package lro

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/longrunning/autogen/longrunningpb"
	"google.golang.org/protobuf/types/known/anypb"
)

// FutureOptions holds the configuration of a Future, populated by the
// functional FutureOption values passed to NewFuture.
type FutureOptions struct {
	PollConfig PollConfig
}

// FutureOption is a functional option for the NewFuture method.
type FutureOption func(*FutureOptions)

// WithPollConfig overrides the default polling configuration.
func WithPollConfig(cfg PollConfig) FutureOption {
	return func(opts *FutureOptions) {
		opts.PollConfig = cfg
	}
}

// WithDeadline sets an absolute point past which polling is abandoned
// locally with an ErrDeadlineExceeded.
func WithDeadline(deadline time.Time) FutureOption {
	return func(opts *FutureOptions) {
		opts.PollConfig.Deadline = deadline
	}
}

/*
Future is the caller-facing handle of one long-running operation. It owns the
operation's Handle and Poller, and starts the poll loop on construction.

Progress and completion listeners may be registered at any time; a listener
registered after the operation is already terminal is delivered the terminal
event immediately and synchronously, so no event is ever lost. Completion is
delivered exactly once.

Futures are independent of one another; any number may run concurrently.
*/
type Future struct {
	handle *Handle
	poller *Poller

	mu        sync.Mutex
	progress  []func(*anypb.Any)
	complete  []func(*longrunningpb.Operation, error)
	completed bool
	localErr  error
	done      chan struct{}
}

/*
NewFuture wraps an operation acknowledgment in a Future and starts polling
the provided service for its status.

The acknowledgment op is typically the longrunningpb.Operation returned by
the method which started the operation; if it is already done, the Future
completes without a single fetch. The provided ctx bounds the whole poll
loop: cancelling it abandons the operation locally.
*/
func NewFuture(ctx context.Context, op *longrunningpb.Operation, service OperationsService, opts ...FutureOption) (*Future, error) {
	options := &FutureOptions{}
	for _, opt := range opts {
		opt(options)
	}

	handle, err := NewHandleFromOperation(op)
	if err != nil {
		return nil, err
	}

	f := &Future{
		handle: handle,
		poller: newPoller(handle, service, options.PollConfig),
		done:   make(chan struct{}),
	}
	go f.run(ctx)
	return f, nil
}

// run drives the poll loop to a terminal state and fires completion.
func (f *Future) run(ctx context.Context) {
	var localErr error
	if !f.handle.Done() {
		localErr = f.poller.poll(ctx, f.emitProgress)
	}
	f.finish(localErr)
}

// emitProgress delivers one metadata change to the registered progress
// listeners. It runs on the poll goroutine, strictly after the handle update
// which produced the event, so listeners never observe a half-applied state.
func (f *Future) emitProgress(metadata *anypb.Any) {
	f.mu.Lock()
	listeners := make([]func(*anypb.Any), len(f.progress))
	copy(listeners, f.progress)
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(metadata)
	}
}

// finish records the terminal outcome and delivers it exactly once.
func (f *Future) finish(localErr error) {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return
	}
	f.completed = true
	f.localErr = localErr
	listeners := f.complete
	f.complete = nil
	f.progress = nil
	close(f.done)
	f.mu.Unlock()

	op := f.handle.Operation()
	for _, fn := range listeners {
		fn(op, localErr)
	}
}

/*
OnProgress registers a listener invoked once per metadata change detected by
the poll loop, with the latest metadata. It may be invoked zero or more
times, and never after the operation is terminal.
*/
func (f *Future) OnProgress(listener func(metadata *anypb.Any)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completed {
		return
	}
	f.progress = append(f.progress, listener)
}

/*
OnComplete registers a listener invoked exactly once when the operation
reaches any terminal state. The listener receives a snapshot of the
operation, and the local termination cause: nil when the remote service
reported the outcome (the snapshot then carries either a response or an
error payload), or one of ErrCanceled, ErrDeadlineExceeded and ErrTransport
when polling was abandoned locally (the snapshot then carries neither).

If the operation is already terminal, the listener is invoked synchronously
before OnComplete returns.
*/
func (f *Future) OnComplete(listener func(op *longrunningpb.Operation, err error)) {
	f.mu.Lock()
	if f.completed {
		localErr := f.localErr
		f.mu.Unlock()
		listener(f.handle.Operation(), localErr)
		return
	}
	f.complete = append(f.complete, listener)
	f.mu.Unlock()
}

/*
Cancel abandons the operation locally and, if the polled service supports
cancellation, issues a best-effort remote cancel. Safe to call multiple
times; a no-op once the operation is terminal. Cancellation is cooperative:
it takes effect at the poll loop's next checkpoint.
*/
func (f *Future) Cancel() {
	if f.handle.Done() {
		return
	}
	f.poller.requestRemoteCancel(context.WithoutCancel(context.Background()))
	f.poller.Cancel()
}

/*
Wait blocks until the operation reaches a terminal state and returns a
snapshot of it along with the local termination cause, as documented on
OnComplete.

A positive timeout bounds the wait itself, not the operation: if it elapses
first, Wait returns an ErrWaitDeadlineExceeded and polling continues in the
background. A timeout of zero or less waits indefinitely. Cancelling ctx
aborts the wait with the context's error.
*/
func (f *Future) Wait(ctx context.Context, timeout time.Duration) (*longrunningpb.Operation, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-f.done:
		return f.handle.Operation(), f.localErr
	case <-expired:
		return nil, ErrWaitDeadlineExceeded{
			message: fmt.Sprintf("operation (%s) exceeded wait timeout of %0.0f seconds",
				f.handle.Name(), timeout.Seconds()),
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Name returns the resource name of the underlying operation.
func (f *Future) Name() string {
	return f.handle.Name()
}

// State returns the operation's current local state.
func (f *Future) State() State {
	return f.handle.State()
}

// Done reports whether the operation is terminal.
func (f *Future) Done() bool {
	return f.handle.Done()
}

// Metadata returns the most recently polled progress payload.
func (f *Future) Metadata() *anypb.Any {
	return f.handle.Metadata()
}

// Operation returns a snapshot of the underlying operation.
func (f *Future) Operation() *longrunningpb.Operation {
	return f.handle.Operation()
}

// Handle returns the operation's state container for direct inspection.
func (f *Future) Handle() *Handle {
	return f.handle
}
