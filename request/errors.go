package request

import (
	"fmt"
)

// HTTPError captures unexpected status codes and response bodies.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.StatusCode, string(e.Body))
}

// TransportError reports a failed network fetch: connection errors, timeouts
// and non-success statuses. It is fatal to the call and never retried by the
// pipeline.
type TransportError struct {
	URI string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URI, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status behind the failure, or 0 when the request
// never produced a response.
func (e *TransportError) StatusCode() int {
	if httpErr, ok := e.Err.(*HTTPError); ok {
		return httpErr.StatusCode
	}
	return 0
}

// DeserializationError reports a payload that could not be turned into the
// requested type. Nothing is written to the cache when it occurs.
type DeserializationError struct {
	URI string
	Err error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("deserialize %s: %v", e.URI, e.Err)
}

func (e *DeserializationError) Unwrap() error { return e.Err }

// CacheError reports a store failure. The pipeline absorbs it unless strict
// cache mode is enabled.
type CacheError struct {
	Op  string // "get" or "put"
	Key string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }
