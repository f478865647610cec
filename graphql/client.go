package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxResponseBytes = 16 << 20

// ErrEmptyQuery is returned for a request without a query document.
var ErrEmptyQuery = errors.New("graphql: empty query")

// Request is one GraphQL operation.
type Request struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// Response is the decoded envelope.
type Response struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Errors Errors          `json:"errors,omitempty"`
}

// DecodeResponse parses a GraphQL response body.
func DecodeResponse(body []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return Response{}, fmt.Errorf("graphql: decode response: %w", err)
	}
	return resp, nil
}

// IsJSON reports whether a Content-Type header carries a JSON document.
func IsJSON(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "application/json") || strings.Contains(ct, "+json")
}

// Option configures a [Client].
type Option func(*Client)

// WithHeader adds a static header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.header.Set(key, value)
	}
}

// WithRequestContext derives the context of each HTTP request from the
// operation, for instance to tag it with the operation name.
func WithRequestContext(fn func(ctx context.Context, req Request) context.Context) Option {
	return func(c *Client) {
		c.reqCtx = fn
	}
}

// Client posts operations to one endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	header   http.Header
	reqCtx   func(context.Context, Request) context.Context
}

// NewClient returns a client for endpoint. A nil hc uses http.DefaultClient.
func NewClient(endpoint string, hc *http.Client, opts ...Option) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	c := &Client{endpoint: endpoint, http: hc, header: make(http.Header)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the target URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Do posts req and decodes "data" into out, which may be nil. A response
// with errors returns [Errors]; data is still decoded when present.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	if strings.TrimSpace(req.Query) == "" {
		return ErrEmptyQuery
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("graphql: encode request: %w", err)
	}
	if c.reqCtx != nil {
		ctx = c.reqCtx(ctx, req)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("graphql: build request: %w", err)
	}
	for k, vs := range c.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/graphql-response+json, application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("graphql: read response: %w", err)
	}

	if !IsJSON(httpResp.Header.Get("Content-Type")) {
		if httpResp.StatusCode/100 != 2 {
			return &HTTPError{StatusCode: httpResp.StatusCode, Body: truncate(string(raw), 512)}
		}
		return fmt.Errorf("graphql: unexpected content type %q", httpResp.Header.Get("Content-Type"))
	}

	resp, err := DecodeResponse(raw)
	if err != nil {
		if httpResp.StatusCode/100 != 2 {
			return &HTTPError{StatusCode: httpResp.StatusCode, Body: truncate(string(raw), 512)}
		}
		return err
	}

	if out != nil && len(resp.Data) > 0 && string(resp.Data) != "null" {
		if err := json.Unmarshal(resp.Data, out); err != nil {
			return fmt.Errorf("graphql: decode data: %w", err)
		}
	}
	if len(resp.Errors) > 0 {
		return resp.Errors
	}
	if httpResp.StatusCode/100 != 2 {
		return &HTTPError{StatusCode: httpResp.StatusCode, Body: truncate(string(raw), 512)}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
