// Package transport provides the JSON REST client the SDK sends all
// backend traffic through.
//
// Requests pass through an explicit, ordered middleware chain before
// dispatch, so cross-cutting behavior (bearer attachment, one-shot
// refresh replay, metrics) is a named, testable transform rather than
// a closure hung off a shared http.Client. Responses are classified
// into the authkit error taxonomy at this boundary; nothing above it
// inspects HTTP status codes.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	authkit "github.com/darasa/authkit-go"
	"github.com/google/uuid"
)

// DefaultTimeout is the hard upper bound for a single request,
// replay included. Not a retry budget.
const DefaultTimeout = 15 * time.Second

// Request is a backend call before dispatch. Middleware may mutate it.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any // JSON-encoded when non-nil
	Header http.Header

	// SkipAuth marks requests that must not carry a bearer credential
	// and must never be replayed by the refresh protocol (login,
	// refresh itself).
	SkipAuth bool

	// Retried is the per-request marker of the one-shot refresh
	// protocol: set after the single allowed replay so a second
	// expiry failure propagates instead of looping.
	Retried bool
}

// Response is a successful (2xx) backend reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the response body into out.
func (r *Response) Decode(out any) error {
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("transport: decode response: %w", err)
	}
	return nil
}

// Next invokes the rest of the chain, ending at the HTTP dispatch.
type Next func(ctx context.Context, req *Request) (*Response, error)

// Middleware transforms requests and responses around the rest of the
// chain.
type Middleware interface {
	RoundTrip(ctx context.Context, req *Request, next Next) (*Response, error)
}

// MiddlewareFunc adapts a function to the Middleware interface.
type MiddlewareFunc func(ctx context.Context, req *Request, next Next) (*Response, error)

// RoundTrip implements Middleware.
func (f MiddlewareFunc) RoundTrip(ctx context.Context, req *Request, next Next) (*Response, error) {
	return f(ctx, req, next)
}

// Client dispatches JSON requests against a base URL.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	chain   []Middleware
	logger  *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets a structured logger for request failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMiddleware appends middleware to the chain. Order matters: the
// first middleware sees the request first and the response last.
func WithMiddleware(mw ...Middleware) Option {
	return func(c *Client) { c.chain = append(c.chain, mw...) }
}

// New creates a transport client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: DefaultTimeout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Use appends middleware after construction. The session manager
// installs its bearer and refresh middleware this way, since it is
// built after the transport it wraps.
func (c *Client) Use(mw ...Middleware) {
	c.chain = append(c.chain, mw...)
}

// Do runs req through the middleware chain and dispatches it.
// Non-2xx responses and network failures return an *authkit.Error.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	next := c.dispatch
	for i := len(c.chain) - 1; i >= 0; i-- {
		mw := c.chain[i]
		inner := next
		next = func(ctx context.Context, req *Request) (*Response, error) {
			return mw.RoundTrip(ctx, req, inner)
		}
	}
	return next(ctx, req)
}

// dispatch performs the actual HTTP exchange and classifies the
// outcome.
func (c *Client) dispatch(ctx context.Context, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("transport: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	u := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return nil, fmt.Errorf("transport: create request: %w", err)
	}
	for k, vs := range req.Header {
		httpReq.Header[k] = vs
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	if httpReq.Header.Get("X-Request-ID") == "" {
		httpReq.Header.Set("X-Request-ID", uuid.NewString())
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		// Timeouts classify as network failures, not auth failures;
		// they must not trigger the refresh protocol.
		c.logger.Warn("request failed", "method", req.Method, "path", req.Path, "error", err)
		return nil, authkit.WrapError(authkit.KindNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, authkit.WrapError(authkit.KindNetwork, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
	}
	return nil, classify(resp.StatusCode, data)
}

// errorEnvelope is the backend's error body shape. All fields are
// optional; absent ones simply yield a less specific message.
type errorEnvelope struct {
	Success bool                 `json:"success"`
	Error   string               `json:"error"`
	Message string               `json:"message"`
	Errors  []authkit.FieldError `json:"errors"`
}

// classify maps a non-2xx response to the closed error taxonomy.
func classify(status int, body []byte) *authkit.Error {
	var env errorEnvelope
	_ = json.Unmarshal(body, &env)
	msg := env.Error
	if msg == "" {
		msg = env.Message
	}

	switch {
	case status == http.StatusUnauthorized:
		return &authkit.Error{Kind: authkit.KindAuthExpired, Message: msg, Status: status}
	case status >= 500:
		return &authkit.Error{Kind: authkit.KindServer, Message: msg, Status: status}
	default:
		return &authkit.Error{Kind: authkit.KindValidation, Message: msg, Status: status, Fields: env.Errors}
	}
}
