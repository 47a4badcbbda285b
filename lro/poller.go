package lro

import (
	"context"
	"sync"
	"time"

	"cloud.google.com/go/longrunning/autogen/longrunningpb"
	"github.com/googleapis/gax-go/v2"
	"go.alis.build/alog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/emptypb"
)

// OperationsService is the status-check collaborator: any service exposing a
// GetOperation method can be polled. The generated google.longrunning
// Operations clients satisfy this interface, as does any service which
// produces long-running operations itself.
type OperationsService interface {
	GetOperation(ctx context.Context, in *longrunningpb.GetOperationRequest, opts ...grpc.CallOption) (*longrunningpb.Operation, error)
}

// CancelOperationsService is optionally implemented by services which also
// support remote cancellation. When the Poller's service implements it,
// Cancel additionally issues a best-effort CancelOperation call.
type CancelOperationsService interface {
	CancelOperation(ctx context.Context, in *longrunningpb.CancelOperationRequest, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

// PollConfig configures the fetch loop of a Poller.
type PollConfig struct {
	// InitialInterval is the delay between the first and second fetch; the
	// first fetch always happens immediately. Defaults to 5s.
	InitialInterval time.Duration
	// MaxInterval caps the delay between fetches. Defaults to 45s.
	MaxInterval time.Duration
	// Multiplier is the factor by which the interval grows after each fetch,
	// up to MaxInterval. Defaults to 1.5.
	Multiplier float64
	// MaxRetries bounds consecutive transient fetch failures; one past the
	// ceiling the Poller gives up with an ErrTransport. Defaults to 5.
	MaxRetries int
	// Deadline, if set, is the absolute point past which no further fetches
	// are made and the operation is abandoned with an ErrDeadlineExceeded.
	Deadline time.Time
}

func (c PollConfig) withDefaults() PollConfig {
	if c.InitialInterval == 0 {
		c.InitialInterval = 5 * time.Second
	}
	if c.MaxInterval == 0 {
		c.MaxInterval = 45 * time.Second
	}
	if c.Multiplier == 0 {
		c.Multiplier = 1.5
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 5
	}
	return c
}

// Poller drives repeated status fetches against an OperationsService and is
// the sole mutator of its bound Handle.
type Poller struct {
	handle  *Handle
	service OperationsService
	cfg     PollConfig

	cancel     chan struct{}
	cancelOnce sync.Once
}

func newPoller(handle *Handle, service OperationsService, cfg PollConfig) *Poller {
	return &Poller{
		handle:  handle,
		service: service,
		cfg:     cfg.withDefaults(),
		cancel:  make(chan struct{}),
	}
}

// Cancel requests local abandonment of the poll loop. It is safe to call
// multiple times and from any goroutine; the loop observes it at its next
// checkpoint, before a fetch or during a sleep, never mid-fetch.
func (p *Poller) Cancel() {
	p.cancelOnce.Do(func() { close(p.cancel) })
}

// requestRemoteCancel issues a best-effort, fire-and-forget CancelOperation
// if the service supports it.
func (p *Poller) requestRemoteCancel(ctx context.Context) {
	service, ok := p.service.(CancelOperationsService)
	if !ok {
		return
	}
	go func() {
		_, err := service.CancelOperation(ctx, &longrunningpb.CancelOperationRequest{Name: p.handle.Name()})
		if err != nil {
			alog.Warnf(ctx, "best-effort remote cancel of %s failed: %s", p.handle.Name(), err)
		}
	}()
}

/*
poll fetches the operation's status until the handle is terminal, the loop is
canceled, the deadline passes, or transient fetch failures exceed the retry
ceiling. The first fetch is made immediately; subsequent fetches are spaced
by a growing backoff interval.

The returned error is the local termination cause: nil when the remote
service reported the outcome (success or failure), otherwise one of
ErrCanceled, ErrDeadlineExceeded or ErrTransport. Fetch errors never escape
unhandled.

progress, if non nil, is invoked from the poll goroutine once per detected
metadata change, after the change has been applied to the handle.
*/
func (p *Poller) poll(ctx context.Context, progress func(*anypb.Any)) error {
	backoff := gax.Backoff{
		Initial:    p.cfg.InitialInterval,
		Max:        p.cfg.MaxInterval,
		Multiplier: p.cfg.Multiplier,
	}
	retries := 0

	for {
		// Checkpoint: local abandonment takes effect before each fetch.
		select {
		case <-p.cancel:
			p.handle.abandon(StateCanceled)
			return ErrCanceled{Operation: p.handle.Name()}
		case <-ctx.Done():
			p.handle.abandon(StateCanceled)
			return ErrCanceled{Operation: p.handle.Name()}
		default:
		}
		if !p.cfg.Deadline.IsZero() && time.Now().After(p.cfg.Deadline) {
			p.handle.abandon(StateTimedOut)
			return ErrDeadlineExceeded{Operation: p.handle.Name(), Deadline: p.cfg.Deadline}
		}

		op, err := p.service.GetOperation(ctx, &longrunningpb.GetOperationRequest{Name: p.handle.Name()})
		if err != nil {
			if !retryableFetchError(err) || retries >= p.cfg.MaxRetries {
				p.handle.abandon(StateFailed)
				return ErrTransport{Operation: p.handle.Name(), Attempts: retries + 1, Err: err}
			}
			retries++
			alog.Warnf(ctx, "transient status fetch failure for %s (attempt %d of %d): %s",
				p.handle.Name(), retries, p.cfg.MaxRetries, err)
		} else {
			retries = 0
			metadataChanged, terminal := p.handle.ApplyUpdate(op)
			if terminal {
				return nil
			}
			if metadataChanged && progress != nil {
				progress(p.handle.Metadata())
			}
		}

		p.pause(ctx, backoff.Pause())
	}
}

// pause sleeps for the given duration, waking early on cancellation. The
// timer is always released.
func (p *Poller) pause(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-p.cancel:
	case <-ctx.Done():
	}
}

// retryableFetchError reports whether a fetch error is a transient transport
// condition. Raw network errors carry no gRPC status and are treated as
// transient; business failures are not errors here at all, they arrive in
// the operation's error payload.
func retryableFetchError(err error) bool {
	s, ok := status.FromError(err)
	if !ok {
		return true
	}
	switch s.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}
