package videointelligence

import (
	"context"
	"time"

	"cloud.google.com/go/longrunning/autogen/longrunningpb"
	videointelligencepb "cloud.google.com/go/videointelligence/apiv1/videointelligencepb"
	"go.alis.build/alog"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/anypb"

	"go.vidana.build/videointelligence/lro"
)

// AnnotateVideoOperation manages a long-running operation from
// AnnotateVideo. The underlying operation is polled in the background from
// the moment it is created.
type AnnotateVideoOperation struct {
	future *lro.Future
}

/*
Wait blocks until the operation is terminal and returns the annotation
response.

A failure reported by the service is returned as a gRPC status error. A
positive timeout bounds the wait itself; if it elapses first, Wait returns an
lro.ErrWaitDeadlineExceeded and polling continues in the background. A
timeout of zero or less waits indefinitely.
*/
func (op *AnnotateVideoOperation) Wait(ctx context.Context, timeout time.Duration) (*videointelligencepb.AnnotateVideoResponse, error) {
	result, err := op.future.Wait(ctx, timeout)
	if err != nil {
		return nil, err
	}
	if opErr := result.GetError(); opErr != nil {
		return nil, status.ErrorProto(opErr)
	}

	var resp videointelligencepb.AnnotateVideoResponse
	if err := lro.UnmarshalOperation(result, &resp, nil); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Metadata returns metadata associated with the long-running operation: the
// most recently polled annotation progress. Returns nil when no metadata has
// been reported yet.
func (op *AnnotateVideoOperation) Metadata() (*videointelligencepb.AnnotateVideoProgress, error) {
	meta := op.future.Metadata()
	if meta == nil {
		return nil, nil
	}
	var progress videointelligencepb.AnnotateVideoProgress
	if err := meta.UnmarshalTo(&progress); err != nil {
		return nil, err
	}
	return &progress, nil
}

// OnProgress registers a listener invoked once per polled progress change.
// It is never invoked after the operation is terminal.
func (op *AnnotateVideoOperation) OnProgress(listener func(*videointelligencepb.AnnotateVideoProgress)) {
	op.future.OnProgress(func(meta *anypb.Any) {
		var progress videointelligencepb.AnnotateVideoProgress
		if err := meta.UnmarshalTo(&progress); err != nil {
			alog.Warnf(context.Background(), "discard malformed progress payload for %s: %s", op.Name(), err)
			return
		}
		listener(&progress)
	})
}

// OnComplete registers a listener invoked exactly once when the operation is
// terminal, with the annotation response or the terminal error as documented
// on Wait. Registering after completion delivers the event immediately.
func (op *AnnotateVideoOperation) OnComplete(listener func(*videointelligencepb.AnnotateVideoResponse, error)) {
	op.future.OnComplete(func(result *longrunningpb.Operation, localErr error) {
		if localErr != nil {
			listener(nil, localErr)
			return
		}
		if opErr := result.GetError(); opErr != nil {
			listener(nil, status.ErrorProto(opErr))
			return
		}
		var resp videointelligencepb.AnnotateVideoResponse
		if err := lro.UnmarshalOperation(result, &resp, nil); err != nil {
			listener(nil, err)
			return
		}
		listener(&resp, nil)
	})
}

// Cancel abandons the operation locally and requests a best-effort remote
// cancel. Safe to call multiple times; a no-op once terminal.
func (op *AnnotateVideoOperation) Cancel() {
	op.future.Cancel()
}

// Done reports whether the operation is terminal.
func (op *AnnotateVideoOperation) Done() bool {
	return op.future.Done()
}

// Name returns the name of the long-running operation, matching across the
// lifetime of the operation.
func (op *AnnotateVideoOperation) Name() string {
	return op.future.Name()
}

// State returns the operation's current local lifecycle state.
func (op *AnnotateVideoOperation) State() lro.State {
	return op.future.State()
}
