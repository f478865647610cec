package pipeline

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/MrEthical07/goSession/graphql"
)

// maxInspectBytes bounds how much of a JSON response is buffered to look for
// auth faults. Longer bodies pass through unread.
var maxInspectBytes int64 = 16 << 20

// Transport is an http.RoundTripper running the pipeline around base.
type Transport struct {
	base   http.RoundTripper
	policy *Policy
}

// NewTransport wraps base, or http.DefaultTransport when base is nil.
func NewTransport(base http.RoundTripper, policy *Policy) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{base: base, policy: policy}
}

// RoundTrip implements http.RoundTripper. A call that ends in a forced
// sign-out returns a nil response and a *SignedOutError. req.Body is always
// closed; replays read from req.GetBody or a buffered copy.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	getBody, err := replayableBody(req)
	if err != nil {
		return nil, err
	}
	return t.send(req, getBody)
}

func (t *Transport) send(req *http.Request, getBody func() (io.ReadCloser, error)) (*http.Response, error) {
	ctx := t.policy.markEpoch(req.Context())

	out := req.Clone(ctx)
	if getBody != nil {
		body, err := getBody()
		if err != nil {
			return nil, fmt.Errorf("pipeline: rewind request body: %w", err)
		}
		out.Body = body
		out.GetBody = getBody
	}
	t.policy.Inject(ctx, out.Header)

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}

	fault, err := classifyResponse(resp)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}
	if fault == nil {
		return resp, nil
	}

	switch t.policy.Decide(ctx, fault) {
	case ActionReplay:
		discard(resp)
		return t.send(req.WithContext(t.policy.next(ctx)), getBody)
	case ActionSignedOut:
		discard(resp)
		return nil, &SignedOutError{Fault: fault}
	default:
		if err := ctx.Err(); err != nil {
			discard(resp)
			return nil, err
		}
		return resp, nil
	}
}

func replayableBody(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		req.Body.Close()
		return req.GetBody, nil
	}
	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("pipeline: buffer request body: %w", err)
	}
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, nil
}

// classifyResponse returns the auth fault carried by resp, if any. The body
// is read and put back so the caller can still consume it.
func classifyResponse(resp *http.Response) (*Fault, error) {
	var fault *Fault
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		fault = &Fault{Kind: KindUnauthenticated, Code: CodeUnauthenticated, Message: http.StatusText(resp.StatusCode)}
	case http.StatusForbidden:
		fault = &Fault{Kind: KindForbidden, Code: CodeForbidden, Message: http.StatusText(resp.StatusCode)}
	}

	if resp.Body != nil && graphql.IsJSON(resp.Header.Get("Content-Type")) {
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxInspectBytes))
		if err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("pipeline: read response: %w", err)
		}

		if int64(len(data)) < maxInspectBytes {
			resp.Body.Close()
			resp.Body = io.NopCloser(bytes.NewReader(data))
			if decoded, err := graphql.DecodeResponse(data); err == nil {
				if f := faultFromErrors(decoded.Errors); f != nil {
					fault = f
				}
			}
		} else {
			// Too large to be an error envelope; hand back the prefix
			// followed by the unread rest.
			resp.Body = readCloser{
				Reader: io.MultiReader(bytes.NewReader(data), resp.Body),
				Closer: resp.Body,
			}
		}
	}

	if fault != nil {
		fault.StatusCode = resp.StatusCode
	}
	return fault, nil
}

// faultFromErrors prefers UNAUTHENTICATED over FORBIDDEN when both appear.
func faultFromErrors(es graphql.Errors) *Fault {
	for _, code := range []string{CodeUnauthenticated, CodeForbidden} {
		if e, ok := es.Find(code); ok {
			return &Fault{Kind: Classify(code), Code: code, Message: e.Message}
		}
	}
	return nil
}

type readCloser struct {
	io.Reader
	io.Closer
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxInspectBytes))
	resp.Body.Close()
}
