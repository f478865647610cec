package graphql

import (
	"errors"
	"fmt"
	"strings"
)

// Error is one entry of the response "errors" array.
type Error struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Code returns extensions.code, or "".
func (e Error) Code() string {
	if e.Extensions == nil {
		return ""
	}
	code, _ := e.Extensions["code"].(string)
	return code
}

func (e Error) Error() string {
	if code := e.Code(); code != "" {
		return fmt.Sprintf("graphql: %s (%s)", e.Message, code)
	}
	return "graphql: " + e.Message
}

// Errors is the non-empty error list of a response.
type Errors []Error

func (es Errors) Error() string {
	switch len(es) {
	case 0:
		return "graphql: no errors"
	case 1:
		return es[0].Error()
	}
	msgs := make([]string, 0, len(es))
	for _, e := range es {
		msgs = append(msgs, e.Message)
	}
	return fmt.Sprintf("graphql: %d errors: %s", len(es), strings.Join(msgs, "; "))
}

// Find returns the first entry carrying code.
func (es Errors) Find(code string) (Error, bool) {
	for _, e := range es {
		if e.Code() == code {
			return e, true
		}
	}
	return Error{}, false
}

// Code returns the first non-empty code.
func (es Errors) Code() string {
	for _, e := range es {
		if c := e.Code(); c != "" {
			return c
		}
	}
	return ""
}

// HTTPError reports a non-2xx status without a GraphQL error body.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("graphql: http status %d", e.StatusCode)
	}
	return fmt.Sprintf("graphql: http status %d: %s", e.StatusCode, e.Body)
}

// CodeOf returns the first GraphQL error code found in err's chain.
func CodeOf(err error) string {
	var es Errors
	if errors.As(err, &es) {
		return es.Code()
	}
	var e Error
	if errors.As(err, &e) {
		return e.Code()
	}
	return ""
}
