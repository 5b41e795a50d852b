// Package eveonline is a client for the EVE Online XML API. Every call goes
// through a request.Pipeline, so responses are served from the cache until
// the server's cachedUntil instant passes.
package eveonline

import (
	"context"

	"github.com/briangreenhill/evelib/cache"
	"github.com/briangreenhill/evelib/request"
	"github.com/briangreenhill/evelib/serializer"
)

const DefaultBaseURL = "https://api.eveonline.com"

// Entity is the shared base of the API areas. The cache toggles act on the
// underlying pipeline, so areas built on one pipeline share them.
type Entity struct {
	pipeline *request.Pipeline
}

func (e *Entity) Pipeline() *request.Pipeline { return e.pipeline }

func (e *Entity) SetCacheRead(allow bool)  { e.pipeline.SetCacheRead(allow) }
func (e *Entity) SetCacheWrite(allow bool) { e.pipeline.SetCacheWrite(allow) }
func (e *Entity) CacheRead() bool          { return e.pipeline.CacheRead() }
func (e *Entity) CacheWrite() bool         { return e.pipeline.CacheWrite() }
func (e *Entity) Cached() bool             { return e.pipeline.Cached() }

// Client groups every API area over one pipeline.
type Client struct {
	*Entity
	Server    *Server
	Account   *Account
	Character *Character
	Eve       *Eve
	Map       *Map
}

func New(p *request.Pipeline) *Client {
	e := &Entity{pipeline: p}
	return &Client{
		Entity:    e,
		Server:    &Server{e},
		Account:   &Account{e},
		Character: &Character{e},
		Eve:       &Eve{e},
		Map:       &Map{e},
	}
}

// NewDefault builds a client for the public API with an HTTP executor and a
// file cache under ~/.evelib_cache/eveonline. Options are applied after the
// defaults, so WithStore replaces the file cache.
func NewDefault(opts ...request.Option) (*Client, error) {
	store, err := cache.NewFileStore("eveonline")
	if err != nil {
		return nil, err
	}
	opts = append([]request.Option{request.WithStore(store)}, opts...)
	p, err := request.New(DefaultBaseURL, request.NewHTTPExecutor(), opts...)
	if err != nil {
		return nil, err
	}
	return New(p), nil
}

func get[T any](ctx context.Context, e *Entity, path string, cred *request.Credential, q *request.Query) (*Response[T], error) {
	return request.Fetch(ctx, e.pipeline, serializer.NewXML[*Response[T]](), request.Request{
		Path:       path,
		Credential: cred,
		Query:      q,
	})
}
