package lro

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/longrunning/autogen/longrunningpb"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/proto"
)

// WaitOperation blocks until the operation is done and returns it.
//
// Arguments:
//   - operation: The full LRO resource name, of the format '.../operations/*'
//   - service: The service from which the operation originates
//   - timeout: The period after which the method times out and returns an
//     ErrWaitDeadlineExceeded. A zero timeout defaults to 7 minutes.
//
// For progress notifications, cancellation or custom polling intervals,
// construct a [Future] directly.
func WaitOperation(ctx context.Context, operation string, service OperationsService, timeout time.Duration) (*longrunningpb.Operation, error) {
	if timeout == 0 {
		timeout = 7 * time.Minute
	}

	future, err := NewFuture(ctx, &longrunningpb.Operation{Name: operation}, service)
	if err != nil {
		return nil, err
	}
	op, err := future.Wait(ctx, timeout)
	if err != nil {
		// Stop polling an operation nobody is waiting for anymore.
		future.Cancel()
		return nil, err
	}
	return op, nil
}

// BatchWaitOperations is a batch version of WaitOperation: it waits for all
// the named operations concurrently and fails on the first wait that fails.
func BatchWaitOperations(ctx context.Context, operations []string, service OperationsService, timeout time.Duration) ([]*longrunningpb.Operation, error) {
	errs, ctx := errgroup.WithContext(ctx)
	results := make([]*longrunningpb.Operation, len(operations))
	for i, operation := range operations {
		i, operation := i, operation
		errs.Go(func() error {
			op, err := WaitOperation(ctx, operation, service, timeout)
			if err != nil {
				return err
			}
			results[i] = op
			return nil
		})
	}

	err := errs.Wait()
	if err != nil {
		return nil, err
	}

	return results, nil
}

// UnmarshalOperation unmarshals a long-running operation's response and
// metadata payloads into the provided protocol buffer messages.
//
// Parameters:
//   - operation: The operation resource, typically a [Future.Wait] result.
//   - response: The message into which the response should be unmarshalled. Can be nil.
//   - metadata: The message into which the metadata should be unmarshalled. Can be nil.
//
// Returns an error if the operation is not done, the operation resulted in
// an error, or a payload could not be unmarshalled.
func UnmarshalOperation(operation *longrunningpb.Operation, response, metadata proto.Message) error {
	// Unmarshal the Metadata
	if metadata != nil && operation.GetMetadata() != nil {
		err := operation.GetMetadata().UnmarshalTo(metadata)
		if err != nil {
			return err
		}
	}

	if !operation.GetDone() {
		return fmt.Errorf("operation (%s) is not done", operation.GetName())
	}

	if opErr := operation.GetError(); opErr != nil {
		return fmt.Errorf("%d: %s", opErr.GetCode(), opErr.GetMessage())
	}

	// Unmarshal the Response
	if response != nil && operation.GetResponse() != nil {
		err := operation.GetResponse().UnmarshalTo(response)
		if err != nil {
			return err
		}
	}

	return nil
}
