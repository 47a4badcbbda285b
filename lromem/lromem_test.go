package lromem

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/longrunning/autogen/longrunningpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/types/known/structpb"

	"go.vidana.build/videointelligence/lro"
)

func newStruct(t *testing.T, fields map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	if err != nil {
		t.Fatalf("structpb.NewStruct() error = %v", err)
	}
	return s
}

func TestStore_CreateOperation(t *testing.T) {
	tests := []struct {
		name     string
		opts     *CreateOptions
		wantName string
	}{
		{
			name:     "With explicit id",
			opts:     &CreateOptions{Id: "08c09105-d9c1-4ade-a58d-8951024bc71a"},
			wantName: "operations/08c09105-d9c1-4ade-a58d-8951024bc71a",
		},
		{
			name: "With assigned id",
			opts: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore()
			op, err := store.CreateOperation(context.Background(), tt.opts)
			if err != nil {
				t.Fatalf("CreateOperation() error = %v", err)
			}
			if tt.wantName != "" && op.GetName() != tt.wantName {
				t.Errorf("CreateOperation().Name = %s, want %s", op.GetName(), tt.wantName)
			}
			if !strings.HasPrefix(op.GetName(), "operations/") {
				t.Errorf("CreateOperation().Name = %s, want operations/ prefix", op.GetName())
			}
			if op.GetDone() {
				t.Error("CreateOperation() returned a done operation")
			}

			got, err := store.GetOperation(context.Background(), &longrunningpb.GetOperationRequest{Name: op.GetName()})
			if err != nil {
				t.Fatalf("GetOperation() error = %v", err)
			}
			if got.GetName() != op.GetName() {
				t.Errorf("GetOperation().Name = %s, want %s", got.GetName(), op.GetName())
			}
		})
	}
}

func TestStore_GetOperationNotFound(t *testing.T) {
	store := NewStore()
	_, err := store.GetOperation(context.Background(), &longrunningpb.GetOperationRequest{
		Name: "operations/08c09105-d9c1-4ade-a58d-8951024bc71a",
	})
	var notFound lro.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("GetOperation() error = %v, want ErrNotFound", err)
	}
}

func TestStore_SetSuccessful(t *testing.T) {
	store := NewStore()
	op, err := store.CreateOperation(context.Background(), nil)
	if err != nil {
		t.Fatalf("CreateOperation() error = %v", err)
	}

	response := newStruct(t, map[string]interface{}{"labels": []interface{}{"cat"}})
	metadata := newStruct(t, map[string]interface{}{"pct": 100.0})
	got, err := store.SetSuccessful(context.Background(), op.GetName(), response, metadata)
	if err != nil {
		t.Fatalf("SetSuccessful() error = %v", err)
	}

	if !got.GetDone() {
		t.Error("SetSuccessful() operation is not done")
	}
	var gotResponse, gotMetadata structpb.Struct
	if err := lro.UnmarshalOperation(got, &gotResponse, &gotMetadata); err != nil {
		t.Fatalf("UnmarshalOperation() error = %v", err)
	}
	labels := gotResponse.GetFields()["labels"].GetListValue().GetValues()
	if len(labels) != 1 || labels[0].GetStringValue() != "cat" {
		t.Errorf("response labels = %v, want [cat]", labels)
	}
	if pct := gotMetadata.GetFields()["pct"].GetNumberValue(); pct != 100 {
		t.Errorf("metadata pct = %v, want 100", pct)
	}
}

func TestStore_SetFailed(t *testing.T) {
	store := NewStore()
	op, err := store.CreateOperation(context.Background(), nil)
	if err != nil {
		t.Fatalf("CreateOperation() error = %v", err)
	}

	got, err := store.SetFailed(context.Background(), op.GetName(), fmt.Errorf("decoding failed"), nil)
	if err != nil {
		t.Fatalf("SetFailed() error = %v", err)
	}

	if !got.GetDone() {
		t.Error("SetFailed() operation is not done")
	}
	if got.GetError().GetMessage() != "decoding failed" {
		t.Errorf("error message = %q, want %q", got.GetError().GetMessage(), "decoding failed")
	}
	if got.GetResponse() != nil {
		t.Error("failed operation carries a response")
	}
}

func TestStore_CancelOperation(t *testing.T) {
	store := NewStore()
	op, err := store.CreateOperation(context.Background(), nil)
	if err != nil {
		t.Fatalf("CreateOperation() error = %v", err)
	}

	if _, err := store.CancelOperation(context.Background(), &longrunningpb.CancelOperationRequest{Name: op.GetName()}); err != nil {
		t.Fatalf("CancelOperation() error = %v", err)
	}
	got, err := store.GetOperation(context.Background(), &longrunningpb.GetOperationRequest{Name: op.GetName()})
	if err != nil {
		t.Fatalf("GetOperation() error = %v", err)
	}
	if !got.GetDone() {
		t.Error("canceled operation is not done")
	}
	if got.GetError().GetCode() != int32(codes.Canceled) {
		t.Errorf("error code = %d, want %d", got.GetError().GetCode(), codes.Canceled)
	}

	// cancelling a done operation must not overwrite its result
	response := newStruct(t, map[string]interface{}{"ok": true})
	done, err := store.CreateOperation(context.Background(), nil)
	if err != nil {
		t.Fatalf("CreateOperation() error = %v", err)
	}
	if _, err := store.SetSuccessful(context.Background(), done.GetName(), response, nil); err != nil {
		t.Fatalf("SetSuccessful() error = %v", err)
	}
	if _, err := store.CancelOperation(context.Background(), &longrunningpb.CancelOperationRequest{Name: done.GetName()}); err != nil {
		t.Fatalf("CancelOperation() error = %v", err)
	}
	got, err = store.GetOperation(context.Background(), &longrunningpb.GetOperationRequest{Name: done.GetName()})
	if err != nil {
		t.Fatalf("GetOperation() error = %v", err)
	}
	if got.GetResponse() == nil {
		t.Error("cancel of a done operation dropped its response")
	}
}

func TestStore_WaitOperation(t *testing.T) {
	store := NewStore()
	op, err := store.CreateOperation(context.Background(), nil)
	if err != nil {
		t.Fatalf("CreateOperation() error = %v", err)
	}
	if _, err := store.SetSuccessful(context.Background(), op.GetName(), newStruct(t, map[string]interface{}{"ok": true}), nil); err != nil {
		t.Fatalf("SetSuccessful() error = %v", err)
	}

	got, err := store.WaitOperation(context.Background(), op.GetName(), 5*time.Second)
	if err != nil {
		t.Fatalf("WaitOperation() error = %v", err)
	}
	if !got.GetDone() {
		t.Error("WaitOperation() returned a not-done operation")
	}
}

func TestStore_DeleteOperation(t *testing.T) {
	store := NewStore()
	op, err := store.CreateOperation(context.Background(), nil)
	if err != nil {
		t.Fatalf("CreateOperation() error = %v", err)
	}

	if _, err := store.DeleteOperation(context.Background(), op.GetName()); err != nil {
		t.Fatalf("DeleteOperation() error = %v", err)
	}
	_, err = store.GetOperation(context.Background(), &longrunningpb.GetOperationRequest{Name: op.GetName()})
	var notFound lro.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("GetOperation() after delete error = %v, want ErrNotFound", err)
	}
}

// TestStore_FuturePolling drives the consumer-side Future against the store:
// the producer updates progress and completes, the future observes it.
func TestStore_FuturePolling(t *testing.T) {
	store := NewStore()
	op, err := store.CreateOperation(context.Background(), &CreateOptions{
		Metadata: newStruct(t, map[string]interface{}{"pct": 0.0}),
	})
	if err != nil {
		t.Fatalf("CreateOperation() error = %v", err)
	}

	future, err := lro.NewFuture(context.Background(), op, store, lro.WithPollConfig(lro.PollConfig{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      1.5,
		MaxRetries:      3,
	}))
	if err != nil {
		t.Fatalf("NewFuture() error = %v", err)
	}

	// the producer side
	halfway := newStruct(t, map[string]interface{}{"pct": 50.0})
	finished := newStruct(t, map[string]interface{}{"pct": 100.0})
	response := newStruct(t, map[string]interface{}{"labels": []interface{}{"cat"}})
	go func() {
		_, _ = store.UpdateMetadata(context.Background(), op.GetName(), halfway)
		_, _ = store.SetSuccessful(context.Background(), op.GetName(), response, finished)
	}()

	result, err := future.Wait(context.Background(), 5*time.Second)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	var gotResponse structpb.Struct
	if err := lro.UnmarshalOperation(result, &gotResponse, nil); err != nil {
		t.Fatalf("UnmarshalOperation() error = %v", err)
	}
	labels := gotResponse.GetFields()["labels"].GetListValue().GetValues()
	if len(labels) != 1 || labels[0].GetStringValue() != "cat" {
		t.Errorf("response labels = %v, want [cat]", labels)
	}
}
