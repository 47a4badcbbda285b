package lro

import (
	"fmt"
	"sync"

	"cloud.google.com/go/longrunning/autogen/longrunningpb"
	statuspb "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"

	"go.vidana.build/videointelligence/internal/validate"
)

// State is the local lifecycle state of a long-running operation.
type State int32

const (
	// StatePending means the operation has not yet reached a terminal state.
	StatePending State = iota
	// StateSucceeded means the remote service reported the operation done
	// with a response.
	StateSucceeded
	// StateFailed means either the remote service reported the operation
	// done with an error, or status fetches failed beyond the retry ceiling.
	StateFailed
	// StateCanceled means polling was abandoned by a local Cancel call.
	StateCanceled
	// StateTimedOut means the Poller's deadline passed before the operation
	// completed.
	StateTimedOut
)

// Terminal reports whether no further state transitions can occur.
func (s State) Terminal() bool {
	return s != StatePending
}

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateSucceeded:
		return "SUCCEEDED"
	case StateFailed:
		return "FAILED"
	case StateCanceled:
		return "CANCELED"
	case StateTimedOut:
		return "TIMED_OUT"
	default:
		return fmt.Sprintf("STATE(%d)", int32(s))
	}
}

/*
Handle holds the in-memory state of one long-running operation. It performs
no I/O of its own; a Poller is the sole writer once polling starts, so reads
from other goroutines only need the internal mutex for visibility.

The state transitions exactly once from StatePending to one of the terminal
states, and at most one of the response and remote error is ever set, only at
that transition.
*/
type Handle struct {
	name string

	mu        sync.Mutex
	state     State
	metadata  *anypb.Any
	response  *anypb.Any
	remoteErr *statuspb.Status
}

// NewHandle creates a Handle for the operation with the given resource name,
// of the format '.../operations/{id}'.
func NewHandle(name string) (*Handle, error) {
	if err := validate.Argument("name", name, validate.OperationRegex); err != nil {
		return nil, InvalidOperationName{Name: name}
	}
	return &Handle{name: name}, nil
}

// NewHandleFromOperation creates a Handle seeded from an initial operation
// acknowledgment, which may already be done if the call completed
// synchronously.
func NewHandleFromOperation(op *longrunningpb.Operation) (*Handle, error) {
	h, err := NewHandle(op.GetName())
	if err != nil {
		return nil, err
	}
	h.ApplyUpdate(op)
	return h, nil
}

/*
ApplyUpdate folds one fetched status into the handle and reports whether the
metadata changed and whether the handle is now terminal.

While pending, the metadata is overwritten on every call; when the update
carries done=true the state moves to StateSucceeded or StateFailed and
exactly one of the response and remote error is recorded. Once the handle is
terminal the call is a no-op, which guards against duplicate late fetches.
*/
func (h *Handle) ApplyUpdate(op *longrunningpb.Operation) (metadataChanged bool, terminal bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state.Terminal() {
		return false, true
	}

	if !proto.Equal(h.metadata, op.GetMetadata()) {
		metadataChanged = true
	}
	h.metadata = op.GetMetadata()

	if op.GetDone() {
		if err := op.GetError(); err != nil {
			h.state = StateFailed
			h.remoteErr = err
		} else {
			h.state = StateSucceeded
			h.response = op.GetResponse()
		}
	}

	return metadataChanged, h.state.Terminal()
}

// abandon marks the handle terminal from the local perspective without
// recording a remote result. Used by the Poller for cancellation, deadline
// expiry and transport failure.
func (h *Handle) abandon(state State) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state.Terminal() {
		return false
	}
	h.state = state
	return true
}

// Name returns the resource name of the underlying operation.
func (h *Handle) Name() string {
	return h.name
}

// State returns the current local state of the operation.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Done reports whether the operation reached a terminal state, locally or
// remotely.
func (h *Handle) Done() bool {
	return h.State().Terminal()
}

// Metadata returns the most recently polled progress payload, nil if none
// has been reported yet.
func (h *Handle) Metadata() *anypb.Any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.metadata
}

// Response returns the success payload, nil unless the state is
// StateSucceeded.
func (h *Handle) Response() *anypb.Any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.response
}

// Err returns the failure payload reported by the remote service, nil unless
// the operation failed remotely. Local terminations (cancel, deadline,
// transport) leave it nil.
func (h *Handle) Err() *statuspb.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.remoteErr
}

// Operation returns a snapshot of the handle as a longrunningpb.Operation.
// The done field reflects the last status reported by the remote service;
// locally abandoned operations therefore report done=false.
func (h *Handle) Operation() *longrunningpb.Operation {
	h.mu.Lock()
	defer h.mu.Unlock()

	op := &longrunningpb.Operation{
		Name:     h.name,
		Metadata: h.metadata,
		Done:     h.state == StateSucceeded || h.state == StateFailed,
	}
	if h.response != nil {
		op.Result = &longrunningpb.Operation_Response{Response: h.response}
	} else if h.remoteErr != nil {
		op.Result = &longrunningpb.Operation_Error{Error: h.remoteErr}
	}
	return op
}

// UnmarshalInto unmarshals the handle's response and metadata payloads into
// the provided protocol buffer messages, either of which may be nil. It
// returns an error if the operation is not successfully completed.
func (h *Handle) UnmarshalInto(response, metadata proto.Message) error {
	return UnmarshalOperation(h.Operation(), response, metadata)
}
