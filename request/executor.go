package request

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// DefaultUserAgent identifies the library to the remote API.
const DefaultUserAgent = "evelib/0.3 (+https://github.com/briangreenhill/evelib)"

// Executor performs the raw network fetch for a fully resolved URI.
type Executor interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, uri string) ([]byte, error)

func (f ExecutorFunc) Fetch(ctx context.Context, uri string) ([]byte, error) {
	return f(ctx, uri)
}

// HTTPExecutor issues GET requests and returns the response body.
type HTTPExecutor struct {
	http      *http.Client
	userAgent string
	accept    string
	tokens    oauth2.TokenSource
}

type ExecutorOption func(*HTTPExecutor)

// WithHTTPClient replaces the underlying client. Its transport is wrapped,
// not replaced.
func WithHTTPClient(h *http.Client) ExecutorOption {
	return func(e *HTTPExecutor) { e.http = h }
}

func WithUserAgent(ua string) ExecutorOption {
	return func(e *HTTPExecutor) { e.userAgent = ua }
}

// WithAccept sets the Accept header, e.g. a CREST versioned media type.
func WithAccept(mime string) ExecutorOption {
	return func(e *HTTPExecutor) { e.accept = mime }
}

// WithTokenSource authorizes every request with an OAuth2 bearer token.
func WithTokenSource(ts oauth2.TokenSource) ExecutorOption {
	return func(e *HTTPExecutor) { e.tokens = ts }
}

// NewHTTPExecutor returns an executor with a 30 second timeout unless a client
// is supplied.
func NewHTTPExecutor(opts ...ExecutorOption) *HTTPExecutor {
	e := &HTTPExecutor{
		http:      &http.Client{Timeout: 30 * time.Second},
		userAgent: DefaultUserAgent,
	}
	for _, o := range opts {
		o(e)
	}

	base := e.http.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	if e.tokens != nil {
		base = &oauth2.Transport{Source: e.tokens, Base: base}
	}
	client := *e.http
	client.Transport = &userAgentRoundTripper{
		userAgent: e.userAgent,
		accept:    e.accept,
		next:      base,
	}
	e.http = &client
	return e
}

func (e *HTTPExecutor) Fetch(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: body}
	}
	return body, nil
}

type acceptKey struct{}

// WithAcceptContext returns a context whose requests send mime as Accept,
// overriding WithAccept. CREST uses it to ask for a resource's versioned media
// type.
func WithAcceptContext(ctx context.Context, mime string) context.Context {
	return context.WithValue(ctx, acceptKey{}, mime)
}

type userAgentRoundTripper struct {
	userAgent string
	accept    string
	next      http.RoundTripper
}

func (rt *userAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", rt.userAgent)
	accept := rt.accept
	if v, ok := req.Context().Value(acceptKey{}).(string); ok && v != "" {
		accept = v
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return rt.next.RoundTrip(req)
}
