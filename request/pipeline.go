// Package request implements the cache-aware request pipeline: it resolves a
// request to an absolute URI, serves it from a cache store while the stored
// response is valid, and otherwise fetches it live and records the fresh
// payload together with its server-declared validity window.
package request

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"github.com/briangreenhill/evelib/cache"
	"github.com/briangreenhill/evelib/serializer"
)

// Request describes one resource fetch relative to a pipeline's base URI.
type Request struct {
	Path       string
	Credential *Credential // nil for anonymous resources
	Query      *Query      // nil for no parameters
}

// Policy holds the cache read and write toggles. Both default to enabled and
// take effect on the next call.
type Policy struct {
	noRead  atomic.Bool
	noWrite atomic.Bool
}

func (p *Policy) SetRead(allow bool)  { p.noRead.Store(!allow) }
func (p *Policy) SetWrite(allow bool) { p.noWrite.Store(!allow) }
func (p *Policy) Read() bool          { return !p.noRead.Load() }
func (p *Policy) Write() bool         { return !p.noWrite.Load() }

// Pipeline is safe for concurrent use. The store is the only shared mutable
// resource; concurrent misses for the same key each fetch and each write.
type Pipeline struct {
	baseURL *url.URL
	exec    Executor
	store   cache.Store
	log     zerolog.Logger
	now     func() time.Time
	meter   metric.Meter
	metrics *pipelineMetrics
	onError func(context.Context, *CacheError)
	strict  bool
	policy  Policy
}

type Option func(*Pipeline)

// WithStore enables caching. Without a store the pipeline always fetches.
func WithStore(s cache.Store) Option {
	return func(p *Pipeline) { p.store = s }
}

func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithClock overrides the clock used for validity decisions.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func WithMeter(m metric.Meter) Option {
	return func(p *Pipeline) { p.meter = m }
}

// WithCacheErrorHandler registers a callback for absorbed store failures.
func WithCacheErrorHandler(fn func(context.Context, *CacheError)) Option {
	return func(p *Pipeline) { p.onError = fn }
}

// WithStrictCache makes store failures fail the call instead of being absorbed.
func WithStrictCache(strict bool) Option {
	return func(p *Pipeline) { p.strict = strict }
}

// New returns a pipeline resolving request paths against baseURL.
func New(baseURL string, exec Executor, opts ...Option) (*Pipeline, error) {
	if exec == nil {
		return nil, errors.New("executor required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	p := &Pipeline{
		baseURL: u,
		exec:    exec,
		log:     zerolog.Nop(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(p)
	}

	p.metrics, err = newPipelineMetrics(p.meter)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return p, nil
}

// BaseURL returns the URI request paths are resolved against.
func (p *Pipeline) BaseURL() string { return p.baseURL.String() }

// Cached reports whether the pipeline has a store.
func (p *Pipeline) Cached() bool { return p.store != nil }

func (p *Pipeline) SetCacheRead(allow bool)  { p.policy.SetRead(allow) }
func (p *Pipeline) SetCacheWrite(allow bool) { p.policy.SetWrite(allow) }

// CacheRead reports whether cached entries may satisfy requests. Always false
// without a store.
func (p *Pipeline) CacheRead() bool { return p.Cached() && p.policy.Read() }

// CacheWrite reports whether fresh payloads are recorded. Always false without
// a store.
func (p *Pipeline) CacheWrite() bool { return p.Cached() && p.policy.Write() }

// Resolve returns the absolute URI for req. The URI is also the cache key.
func (p *Pipeline) Resolve(req Request) (string, error) {
	ref, err := url.Parse(req.Path)
	if err != nil {
		return "", fmt.Errorf("parse path %q: %w", req.Path, err)
	}
	if ref.RawQuery != "" || ref.ForceQuery {
		return "", fmt.Errorf("path %q: pass parameters through Query", req.Path)
	}
	u := p.baseURL.ResolveReference(ref)
	u.Fragment = ""
	return u.String() + req.Query.Encode(req.Credential), nil
}

// Fetch returns the resource described by req, from the cache when a valid
// entry exists and from the executor otherwise.
func Fetch[T any](ctx context.Context, p *Pipeline, s serializer.Serializer[T], req Request) (T, error) {
	var zero T

	key, err := p.Resolve(req)
	if err != nil {
		return zero, err
	}
	log := p.log.With().Str("key", key).Logger()

	// Flags are sampled once so a toggle mid-call cannot split the decision.
	read, write := p.CacheRead(), p.CacheWrite()

	if read {
		v, ok, err := lookup(ctx, p, s, key, log)
		if err != nil {
			return zero, err
		}
		if ok {
			return v, nil
		}
	} else {
		log.Debug().Msg("cache read bypassed")
		p.metrics.miss(ctx, missBypass)
	}

	start := time.Now()
	body, err := p.exec.Fetch(ctx, key)
	p.metrics.fetched(ctx, time.Since(start), err)
	if err != nil {
		return zero, &TransportError{URI: key, Err: err}
	}

	v, err := s.Deserialize(body)
	if err != nil {
		return zero, &DeserializationError{URI: key, Err: err}
	}
	validUntil := s.ValidUntil(v)

	if !write {
		return v, nil
	}

	entry := &cache.Entry{
		Key:        key,
		Body:       body,
		ValidUntil: validUntil,
		FetchedAt:  p.now(),
	}
	if err := p.store.Put(ctx, key, entry); err != nil {
		if cerr := p.cacheFailed(ctx, log, "put", key, err); cerr != nil {
			return v, cerr
		}
		return v, nil
	}
	log.Debug().Time("valid_until", validUntil).Msg("cache stored")
	return v, nil
}

// lookup reports ok when a valid cached entry satisfied the request. A non-nil
// error is only returned in strict mode.
func lookup[T any](ctx context.Context, p *Pipeline, s serializer.Serializer[T], key string, log zerolog.Logger) (T, bool, error) {
	var zero T

	entry, err := p.store.Get(ctx, key)
	switch {
	case errors.Is(err, cache.ErrNotFound):
		log.Debug().Msg("cache miss")
		p.metrics.miss(ctx, missAbsent)
		return zero, false, nil
	case err != nil:
		p.metrics.miss(ctx, missError)
		return zero, false, p.cacheFailed(ctx, log, "get", key, err)
	}

	now := p.now()
	if !entry.Valid(now) {
		log.Debug().Time("valid_until", entry.ValidUntil).Msg("cache stale")
		p.metrics.miss(ctx, missStale)
		return zero, false, nil
	}

	v, err := s.Deserialize(entry.Body)
	if err != nil {
		log.Warn().Err(err).Msg("cached body unreadable, refetching")
		p.metrics.miss(ctx, missCorrupt)
		return zero, false, nil
	}

	log.Debug().Time("valid_until", entry.ValidUntil).Msg("cache hit")
	p.metrics.hit(ctx)
	return v, true, nil
}

// cacheFailed reports a store failure and returns it when strict mode is on.
func (p *Pipeline) cacheFailed(ctx context.Context, log zerolog.Logger, op, key string, err error) error {
	cerr := &CacheError{Op: op, Key: key, Err: err}
	log.Warn().Err(err).Str("op", op).Msg("cache store failed")
	p.metrics.cacheError(ctx, op)
	if p.onError != nil {
		p.onError(ctx, cerr)
	}
	if p.strict {
		return cerr
	}
	return nil
}
