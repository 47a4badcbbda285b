package videointelligence

import (
	"context"
	"time"

	"cloud.google.com/go/longrunning/autogen/longrunningpb"
	videointelligencepb "cloud.google.com/go/videointelligence/apiv1/videointelligencepb"
	gax "github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	gtransport "google.golang.org/api/transport/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"

	"go.vidana.build/videointelligence/lro"
)

// versionClient is the semantic version of this client library.
const versionClient = "0.3.0"

// CallOptions contains the retry settings for each method of Client.
type CallOptions struct {
	AnnotateVideo   []gax.CallOption
	GetOperation    []gax.CallOption
	CancelOperation []gax.CallOption
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
	retry := []gax.CallOption{
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
	}
	return &CallOptions{
		AnnotateVideo:   retry,
		GetOperation:    retry,
		CancelOperation: nil,
	}
}

// Client is a client for interacting with the Cloud Video Intelligence API.
//
// Methods, except Close, may be called concurrently. However, fields must
// not be changed concurrently with method calls.
type Client struct {
	// Connection pool to the service.
	connPool gtransport.ConnPool

	// The gRPC API clients.
	client     videointelligencepb.VideoIntelligenceServiceClient
	operations longrunningpb.OperationsClient

	// CallOptions contains the retry settings for each method of the client.
	CallOptions *CallOptions

	// PollConfig configures how returned operations are polled for status.
	// The zero value applies the lro package defaults.
	PollConfig lro.PollConfig

	// The x-goog-* metadata to be sent with each request.
	xGoogHeader string
}

// NewClient creates a new video intelligence service client.
//
// The service detects objects, explicit content and scene changes in videos.
// It also specifies the region for annotation and transcribes speech to
// text.
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
// `x-goog-api-client` header passed on each request. Intended for use by
// Google-written clients.
func (c *Client) SetGoogleClientInfo(keyval ...string) {
	kv := append([]string{"gl-go", gax.GoVersion}, keyval...)
	kv = append(kv, "gapic", versionClient, "gax", gax.Version, "grpc", grpc.Version)
	c.xGoogHeader = gax.XGoogHeader(kv...)
}

// insertXGoog adds the client's x-goog-api-client header to the outgoing
// context metadata.
func (c *Client) insertXGoog(ctx context.Context) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	md.Set("x-goog-api-client", c.xGoogHeader)
	return metadata.NewOutgoingContext(ctx, md)
}

/*
AnnotateVideo performs asynchronous video annotation. Progress and results
can be retrieved through the returned operation:
Operation.Metadata contains AnnotateVideoProgress (progress),
Operation.Wait delivers AnnotateVideoResponse (results).

The provided ctx also bounds the background polling of the returned
operation; cancelling it abandons the operation locally.
*/
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
// produced by a previous AnnotateVideo call, identified by its resource
// name, and resumes polling it.
func (c *Client) AnnotateVideoOperation(ctx context.Context, name string) (*AnnotateVideoOperation, error) {
	future, err := lro.NewFuture(ctx, &longrunningpb.Operation{Name: name}, c.operations, lro.WithPollConfig(c.PollConfig))
	if err != nil {
		return nil, err
	}
	return &AnnotateVideoOperation{future: future}, nil
}
