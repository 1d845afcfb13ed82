// Package transport normalizes the two wire shapes an operation envelope
// can arrive in — an API-gateway-style {httpMethod, path, body} request and
// a function-URL-style {requestContext.http.method, rawPath, body}
// request — into one internal request, and renders the uniform response
// envelope back out as one {statusCode, headers, body} shape for both.
package transport

import (
	"encoding/json"
	"fmt"

	"github.com/rivermark/ironlake/internal/op"
)

// Request is the transport-normalized inbound call: the HTTP method/path
// carried in the wire shape plus the raw JSON body. Envelope decodes only
// the body; no caller routes or rejects on Method or Path.
type Request struct {
	Method string
	Path   string
	Body   []byte
}

// gatewayShape is the API-gateway wire shape: {httpMethod, path, body},
// body a JSON string.
type gatewayShape struct {
	HTTPMethod string `json:"httpMethod"`
	Path       string `json:"path"`
	Body       string `json:"body"`
}

// functionURLShape is the function-URL wire shape.
type functionURLShape struct {
	RawPath        string `json:"rawPath"`
	Body           string `json:"body"`
	RequestContext struct {
		HTTP struct {
			Method string `json:"method"`
			Path   string `json:"path"`
		} `json:"http"`
	} `json:"requestContext"`
}

// Parse accepts raw bytes in either wire shape and returns a normalized
// Request. It tries the gateway shape first (httpMethod present), then the
// function-URL shape (requestContext.http.method present).
func Parse(raw []byte) (*Request, error) {
	var gw gatewayShape
	if err := json.Unmarshal(raw, &gw); err == nil && gw.HTTPMethod != "" {
		return &Request{Method: gw.HTTPMethod, Path: gw.Path, Body: []byte(gw.Body)}, nil
	}

	var fn functionURLShape
	if err := json.Unmarshal(raw, &fn); err == nil && fn.RequestContext.HTTP.Method != "" {
		path := fn.RequestContext.HTTP.Path
		if path == "" {
			path = fn.RawPath
		}
		return &Request{Method: fn.RequestContext.HTTP.Method, Path: path, Body: []byte(fn.Body)}, nil
	}

	return nil, fmt.Errorf("transport: unrecognized request shape")
}

// Envelope decodes the request body into an operation envelope.
func (r *Request) Envelope() (*op.Envelope, error) {
	var env op.Envelope
	if err := json.Unmarshal(r.Body, &env); err != nil {
		return nil, fmt.Errorf("transport: decode envelope: %w", err)
	}
	return &env, nil
}

// Response is the uniform outbound envelope: {statusCode, headers, body}
// with body itself a JSON-encoded {success, data?, metadata, error?}
// document, per the wire contract both transports share.
type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type responseBody struct {
	Success  bool                   `json:"success"`
	Data     map[string]interface{} `json:"data,omitempty"`
	Metadata map[string]interface{} `json:"metadata"`
	Error    *errorBody             `json:"error,omitempty"`
}

// FromOpResponse renders a dispatched *op.Response into the wire Response
// envelope, choosing the status code by the failure code's category.
func FromOpResponse(requestID string, resp *op.Response, execMs int64) *Response {
	body := responseBody{
		Metadata: map[string]interface{}{
			"request_id":        requestID,
			"execution_time_ms": execMs,
		},
	}
	status := 200
	if resp.Code != op.CodeNone {
		body.Success = false
		body.Error = &errorBody{Code: string(resp.Code), Message: resp.Error}
		status = statusForCode(resp.Code)
	} else {
		body.Success = true
		body.Data = resp.Result
	}
	return render(status, requestID, execMs, body)
}

// FromError renders a transport-level failure (malformed envelope,
// dispatch error never reaching a response) as a 500.
func FromError(requestID string, err error, execMs int64) *Response {
	body := responseBody{
		Success: false,
		Error:   &errorBody{Code: string(op.CodeInternal), Message: err.Error()},
		Metadata: map[string]interface{}{
			"request_id":        requestID,
			"execution_time_ms": execMs,
		},
	}
	return render(500, requestID, execMs, body)
}

func render(status int, requestID string, execMs int64, body responseBody) *Response {
	encoded, _ := json.Marshal(body)
	return &Response{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":                "application/json",
			"Access-Control-Allow-Origin": "*",
			"X-Request-ID":                requestID,
			"X-Execution-Time-Ms":         fmt.Sprintf("%d", execMs),
		},
		Body: string(encoded),
	}
}

// statusForCode maps a failure Code to an HTTP status: validation/operation
// failures are 400, catalog/engine unavailability is 503, everything else
// (internal) is 500.
func statusForCode(code op.Code) int {
	switch code {
	case op.CodeCatalogUnavailable, op.CodeEngineUnavailable:
		return 503
	case op.CodeInternal:
		return 500
	default:
		return 400
	}
}

// CORSPreamble is the body returned for an OPTIONS request.
func CORSPreamble() *Response {
	return &Response{
		StatusCode: 204,
		Headers: map[string]string{
			"Access-Control-Allow-Origin":  "*",
			"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
			"Access-Control-Allow-Headers": "Content-Type, Authorization",
		},
	}
}
