package pipeline

import (
	"context"
	"errors"

	"connectrpc.com/connect"
)

// Interceptor applies the pipeline to connect RPC clients. Unary calls are
// renewed and replayed; streaming calls only get injection since a stream
// cannot be replayed transparently.
type Interceptor struct {
	policy *Policy
}

var _ connect.Interceptor = (*Interceptor)(nil)

// NewInterceptor returns a connect interceptor for policy.
func NewInterceptor(policy *Policy) *Interceptor {
	return &Interceptor{policy: policy}
}

func (i *Interceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	var call connect.UnaryFunc
	call = func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if !req.Spec().IsClient {
			return next(ctx, req)
		}
		ctx = i.policy.markEpoch(ctx)
		i.policy.Inject(ctx, req.Header())

		resp, err := next(ctx, req)
		if err == nil {
			return resp, nil
		}
		fault := FaultFromConnect(err, req.Spec().Procedure)
		if fault == nil {
			return resp, err
		}

		switch i.policy.Decide(ctx, fault) {
		case ActionReplay:
			return call(i.policy.next(ctx), req)
		case ActionSignedOut:
			return nil, &SignedOutError{Fault: fault}
		default:
			if cerr := ctx.Err(); cerr != nil {
				return nil, contextError(cerr)
			}
			return resp, err
		}
	}
	return call
}

func (i *Interceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		i.policy.Inject(ctx, conn.RequestHeader())
		return conn
	}
}

func (i *Interceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}

// FaultFromConnect classifies a connect error. It returns nil for codes the
// pipeline does not handle.
func FaultFromConnect(err error, procedure string) *Fault {
	var cerr *connect.Error
	if !errors.As(err, &cerr) {
		return nil
	}
	switch cerr.Code() {
	case connect.CodeUnauthenticated:
		return &Fault{Kind: KindUnauthenticated, Code: CodeUnauthenticated, Message: cerr.Message(), Operation: procedure}
	case connect.CodePermissionDenied:
		return &Fault{Kind: KindForbidden, Code: CodeForbidden, Message: cerr.Message(), Operation: procedure}
	default:
		return nil
	}
}

func contextError(err error) *connect.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}
	return connect.NewError(connect.CodeCanceled, err)
}
