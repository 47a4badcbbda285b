package videointelligence

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/longrunning/autogen/longrunningpb"
	videointelligencepb "cloud.google.com/go/videointelligence/apiv1beta2/videointelligencepb"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/anypb"

	"go.vidana.build/videointelligence/lro"
)

const (
	testOperationName = "projects/test-project/locations/us-east1/operations/123456"
	testInputURI      = "gs://test-bucket/cat.mp4"
)

type fakeVideoService struct {
	videointelligencepb.UnimplementedVideoIntelligenceServiceServer
	acknowledgment *longrunningpb.Operation
}

func (f *fakeVideoService) AnnotateVideo(ctx context.Context, req *videointelligencepb.AnnotateVideoRequest) (*longrunningpb.Operation, error) {
	return f.acknowledgment, nil
}

type fakeOperationsService struct {
	longrunningpb.UnimplementedOperationsServer

	mu     sync.Mutex
	script []*longrunningpb.Operation
	calls  int
}

func (f *fakeOperationsService) GetOperation(ctx context.Context, req *longrunningpb.GetOperationRequest) (*longrunningpb.Operation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	return f.script[i], nil
}

func newTestClient(t *testing.T, video videointelligencepb.VideoIntelligenceServiceServer, operations longrunningpb.OperationsServer) *Client {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	server := grpc.NewServer()
	videointelligencepb.RegisterVideoIntelligenceServiceServer(server, video)
	longrunningpb.RegisterOperationsServer(server, operations)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.NewClient() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	client, err := NewClient(context.Background(), option.WithGRPCConn(conn))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	client.PollConfig = lro.PollConfig{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      1.5,
		MaxRetries:      3,
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestClient_AnnotateVideo(t *testing.T) {
	progress, err := anypb.New(&videointelligencepb.AnnotateVideoProgress{
		AnnotationProgress: []*videointelligencepb.VideoAnnotationProgress{
			{InputUri: testInputURI, ProgressPercent: 100},
		},
	})
	if err != nil {
		t.Fatalf("anypb.New() error = %v", err)
	}
	response, err := anypb.New(&videointelligencepb.AnnotateVideoResponse{
		AnnotationResults: []*videointelligencepb.VideoAnnotationResults{
			{
				InputUri: testInputURI,
				SegmentLabelAnnotations: []*videointelligencepb.LabelAnnotation{
					{Entity: &videointelligencepb.Entity{Description: "cat"}},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("anypb.New() error = %v", err)
	}

	video := &fakeVideoService{
		acknowledgment: &longrunningpb.Operation{Name: testOperationName},
	}
	operations := &fakeOperationsService{
		script: []*longrunningpb.Operation{
			{Name: testOperationName},
			{
				Name:     testOperationName,
				Metadata: progress,
				Done:     true,
				Result:   &longrunningpb.Operation_Response{Response: response},
			},
		},
	}
	client := newTestClient(t, video, operations)

	op, err := client.AnnotateVideo(context.Background(), &videointelligencepb.AnnotateVideoRequest{
		InputUri: testInputURI,
		Features: []videointelligencepb.Feature{videointelligencepb.Feature_LABEL_DETECTION},
	})
	if err != nil {
		t.Fatalf("AnnotateVideo() error = %v", err)
	}

	resp, err := op.Wait(context.Background(), 5*time.Second)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	label := resp.GetAnnotationResults()[0].GetSegmentLabelAnnotations()[0].GetEntity().GetDescription()
	if label != "cat" {
		t.Errorf("label = %q, want %q", label, "cat")
	}
	if !op.Done() {
		t.Error("Done() = false after Wait")
	}
	metadata, err := op.Metadata()
	if err != nil {
		t.Fatalf("Metadata() error = %v", err)
	}
	if got := metadata.GetAnnotationProgress()[0].GetProgressPercent(); got != 100 {
		t.Errorf("progress = %d%%, want 100%%", got)
	}
}
