// Copyright 2026 The Vidana Build Platform. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package lromem provides an in-process store of long-running operations. It
implements the producer side of the LRO pattern: creating operations,
recording progress, and marking them successful or failed.

The Store satisfies both the lro.OperationsService and
lro.CancelOperationsService interfaces, which makes it the natural
collaborator for local development and tests of anything built on the lro
package. It keeps no state outside process memory; a production service
would back the same surface with its own database.
*/
package lromem

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/longrunning/autogen/longrunningpb"
	"github.com/google/uuid"
	statuspb "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/emptypb"

	"go.vidana.build/videointelligence/lro"
	"go.vidana.build/videointelligence/internal/validate"
)

// Store manages long-running operations in process memory. The zero value is
// not usable; construct with NewStore. All methods are safe for concurrent
// use.
type Store struct {
	mu  sync.RWMutex
	ops map[string]*longrunningpb.Operation
}

// NewStore creates an empty operation store.
func NewStore() *Store {
	return &Store{ops: make(map[string]*longrunningpb.Operation)}
}

// CreateOptions configure a new operation.
type CreateOptions struct {
	// Id is the operation id; a random uuid is assigned when empty.
	Id string
	// Metadata is the initial progress payload, may be nil.
	Metadata proto.Message
}

// CreateOperation stores a new long-running operation with done=false and
// returns a copy of it.
func (s *Store) CreateOperation(ctx context.Context, opts *CreateOptions) (*longrunningpb.Operation, error) {
	if opts == nil {
		opts = &CreateOptions{}
	}
	if opts.Id == "" {
		opts.Id = uuid.New().String()
	}

	op := &longrunningpb.Operation{
		Name: "operations/" + opts.Id,
	}
	if opts.Metadata != nil {
		metaAny, err := anypb.New(opts.Metadata)
		if err != nil {
			return nil, err
		}
		op.Metadata = metaAny
	}

	s.mu.Lock()
	s.ops[op.GetName()] = op
	s.mu.Unlock()

	return proto.Clone(op).(*longrunningpb.Operation), nil
}

// GetOperation returns a copy of the named operation. It satisfies the
// lro.OperationsService interface and can be used directly in a GetOperation
// rpc method.
func (s *Store) GetOperation(ctx context.Context, req *longrunningpb.GetOperationRequest, opts ...grpc.CallOption) (*longrunningpb.Operation, error) {
	err := validate.Argument("name", req.GetName(), validate.OperationRegex)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	op, ok := s.ops[req.GetName()]
	s.mu.RUnlock()
	if !ok {
		return nil, lro.ErrNotFound{Operation: req.GetName()}
	}
	return proto.Clone(op).(*longrunningpb.Operation), nil
}

// CancelOperation marks the named operation as done with a Canceled error,
// per google.longrunning cancellation semantics. Cancelling an operation
// that is already done is a no-op.
func (s *Store) CancelOperation(ctx context.Context, req *longrunningpb.CancelOperationRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.ops[req.GetName()]
	if !ok {
		return nil, lro.ErrNotFound{Operation: req.GetName()}
	}
	if !op.GetDone() {
		op.Done = true
		op.Result = &longrunningpb.Operation_Error{Error: &statuspb.Status{
			Code:    int32(codes.Canceled),
			Message: "operation canceled by the client",
		}}
	}
	return &emptypb.Empty{}, nil
}

// SetSuccessful marks the operation as done with the given response, and
// overwrites the metadata if provided. Returns a copy of the updated
// operation.
func (s *Store) SetSuccessful(ctx context.Context, operation string, response proto.Message, metadata proto.Message) (*longrunningpb.Operation, error) {
	var result *longrunningpb.Operation_Response
	if response != nil {
		responseAny, err := anypb.New(response)
		if err != nil {
			return nil, err
		}
		result = &longrunningpb.Operation_Response{Response: responseAny}
	}
	return s.update(operation, metadata, func(op *longrunningpb.Operation) {
		op.Done = true
		if result != nil {
			op.Result = result
		}
	})
}

// SetFailed marks the operation as done with the given error, and overwrites
// the metadata if provided. Returns a copy of the updated operation.
func (s *Store) SetFailed(ctx context.Context, operation string, opErr error, metadata proto.Message) (*longrunningpb.Operation, error) {
	if opErr == nil {
		opErr = fmt.Errorf("unknown error")
	}
	return s.update(operation, metadata, func(op *longrunningpb.Operation) {
		op.Done = true
		op.Result = &longrunningpb.Operation_Error{Error: &statuspb.Status{
			Code:    int32(codes.Unknown),
			Message: opErr.Error(),
		}}
	})
}

// UpdateMetadata overwrites the operation's progress payload. Returns a copy
// of the updated operation.
func (s *Store) UpdateMetadata(ctx context.Context, operation string, metadata proto.Message) (*longrunningpb.Operation, error) {
	return s.update(operation, metadata, nil)
}

// WaitOperation blocks until the named operation is done and returns it. A
// zero timeout applies the lro package default.
func (s *Store) WaitOperation(ctx context.Context, operation string, timeout time.Duration) (*longrunningpb.Operation, error) {
	return lro.WaitOperation(ctx, operation, s, timeout)
}

// DeleteOperation removes the operation from the store.
func (s *Store) DeleteOperation(ctx context.Context, operation string) (*emptypb.Empty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ops[operation]; !ok {
		return nil, lro.ErrNotFound{Operation: operation}
	}
	delete(s.ops, operation)
	return &emptypb.Empty{}, nil
}

// update applies the metadata overwrite and the mutation fn to the named
// operation under the write lock.
func (s *Store) update(operation string, metadata proto.Message, fn func(*longrunningpb.Operation)) (*longrunningpb.Operation, error) {
	var metaAny *anypb.Any
	if metadata != nil {
		var err error
		metaAny, err = anypb.New(metadata)
		if err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.ops[operation]
	if !ok {
		return nil, lro.ErrNotFound{Operation: operation}
	}
	if metaAny != nil {
		op.Metadata = metaAny
	}
	if fn != nil {
		fn(op)
	}
	return proto.Clone(op).(*longrunningpb.Operation), nil
}
