package videointelligence

import (
	"context"
	"time"

	"cloud.google.com/go/longrunning/autogen/longrunningpb"
	videointelligencepb "cloud.google.com/go/videointelligence/apiv1beta2/videointelligencepb"
	gax "github.com/googleapis/gax-go/v2"
	"go.alis.build/alog"
	"google.golang.org/api/option"
	gtransport "google.golang.org/api/transport/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/anypb"

	"go.vidana.build/videointelligence/lro"
)

const versionClient = "0.3.0"

// CallOptions contains the retry settings for each method of Client.
type CallOptions struct {
	AnnotateVideo []gax.CallOption
}

// DefaultAuthScopes reports the default set of authentication scopes to use
// with this package.
func DefaultAuthScopes() []string {
	return []string{
		"https://www.googleapis.com/auth/cloud-platform",
	}
}

func defaultClientOptions() []option.ClientOption {
	return []option.ClientOption{
		option.WithEndpoint("videointelligence.googleapis.com:443"),
		option.WithScopes(DefaultAuthScopes()...),
	}
}

func defaultCallOptions() *CallOptions {
	return &CallOptions{
		AnnotateVideo: []gax.CallOption{
			gax.WithRetry(func() gax.Retryer {
				return gax.OnCodes([]codes.Code{
					codes.DeadlineExceeded,
					codes.Unavailable,
				}, gax.Backoff{
					Initial:    100 * time.Millisecond,
					Max:        60000 * time.Millisecond,
					Multiplier: 1.3,
				})
			}),
		},
	}
}

// Client is a client for interacting with the Cloud Video Intelligence API
// (v1beta2).
//
// Methods, except Close, may be called concurrently. However, fields must
// not be changed concurrently with method calls.
type Client struct {
	connPool gtransport.ConnPool

	client     videointelligencepb.VideoIntelligenceServiceClient
	operations longrunningpb.OperationsClient

	// CallOptions contains the retry settings for each method of the client.
	CallOptions *CallOptions

	// PollConfig configures how returned operations are polled for status.
	// The zero value applies the lro package defaults.
	PollConfig lro.PollConfig

	xGoogHeader string
}

// NewClient creates a new video intelligence service client (v1beta2).
func NewClient(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	connPool, err := gtransport.DialPool(ctx, append(defaultClientOptions(), opts...)...)
	if err != nil {
		return nil, err
	}
	c := &Client{
		connPool:    connPool,
		client:      videointelligencepb.NewVideoIntelligenceServiceClient(connPool),
		operations:  longrunningpb.NewOperationsClient(connPool),
		CallOptions: defaultCallOptions(),
	}
	c.SetGoogleClientInfo()
	return c, nil
}

// Close closes the connection to the API service. The user should invoke
// this when the client is no longer required.
func (c *Client) Close() error {
	return c.connPool.Close()
}

// SetGoogleClientInfo sets the name and version of the application in the
// `x-goog-api-client` header passed on each request.
func (c *Client) SetGoogleClientInfo(keyval ...string) {
	kv := append([]string{"gl-go", gax.GoVersion}, keyval...)
	kv = append(kv, "gapic", versionClient, "gax", gax.Version, "grpc", grpc.Version)
	c.xGoogHeader = gax.XGoogHeader(kv...)
}

func (c *Client) insertXGoog(ctx context.Context) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	md.Set("x-goog-api-client", c.xGoogHeader)
	return metadata.NewOutgoingContext(ctx, md)
}

// AnnotateVideo performs asynchronous video annotation. The provided ctx
// also bounds the background polling of the returned operation.
func (c *Client) AnnotateVideo(ctx context.Context, req *videointelligencepb.AnnotateVideoRequest, opts ...gax.CallOption) (*AnnotateVideoOperation, error) {
	ctx = c.insertXGoog(ctx)
	opts = append(c.CallOptions.AnnotateVideo[0:len(c.CallOptions.AnnotateVideo):len(c.CallOptions.AnnotateVideo)], opts...)

	var resp *longrunningpb.Operation
	err := gax.Invoke(ctx, func(ctx context.Context, settings gax.CallSettings) error {
		var err error
		resp, err = c.client.AnnotateVideo(ctx, req, settings.GRPC...)
		return err
	}, opts...)
	if err != nil {
		return nil, err
	}

	future, err := lro.NewFuture(ctx, resp, c.operations, lro.WithPollConfig(c.PollConfig))
	if err != nil {
		return nil, err
	}
	return &AnnotateVideoOperation{future: future}, nil
}

// AnnotateVideoOperation re-attaches to an existing long-running operation
// produced by a previous AnnotateVideo call and resumes polling it.
func (c *Client) AnnotateVideoOperation(ctx context.Context, name string) (*AnnotateVideoOperation, error) {
	future, err := lro.NewFuture(ctx, &longrunningpb.Operation{Name: name}, c.operations, lro.WithPollConfig(c.PollConfig))
	if err != nil {
		return nil, err
	}
	return &AnnotateVideoOperation{future: future}, nil
}

// AnnotateVideoOperation manages a long-running operation from
// AnnotateVideo.
type AnnotateVideoOperation struct {
	future *lro.Future
}

// Wait blocks until the operation is terminal and returns the annotation
// response. See the apiv1 documentation for the timeout semantics.
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

// Metadata returns the most recently polled annotation progress, nil when
// none has been reported yet.
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
// cancel.
func (op *AnnotateVideoOperation) Cancel() {
	op.future.Cancel()
}

// Done reports whether the operation is terminal.
func (op *AnnotateVideoOperation) Done() bool {
	return op.future.Done()
}

// Name returns the name of the long-running operation.
func (op *AnnotateVideoOperation) Name() string {
	return op.future.Name()
}

// State returns the operation's current local lifecycle state.
func (op *AnnotateVideoOperation) State() lro.State {
	return op.future.State()
}
