// Package evecrest is a client for the EVE CREST JSON API.
//
// CREST resources carry no cachedUntil envelope, so cached copies are always
// stale: the pipeline records every response but each call goes to the
// network.
package evecrest

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/briangreenhill/evelib/cache"
	"github.com/briangreenhill/evelib/request"
	"github.com/briangreenhill/evelib/serializer"
)

const (
	DefaultBaseURL = "https://public-crest.eveonline.com"

	// AuthedBaseURL serves the same resources to OAuth2 bearer tokens.
	AuthedBaseURL = "https://crest-tq.eveonline.com"
)

// Versioned media types sent as Accept.
const (
	MediaAlliance      = "application/vnd.ccp.eve.Alliance-v1+json"
	MediaIndustryTeams = "application/vnd.ccp.eve.IndustryTeamCollection-v1+json"
)

// Client exposes the CREST resources over one pipeline.
type Client struct {
	pipeline *request.Pipeline
}

func New(p *request.Pipeline) *Client {
	return &Client{pipeline: p}
}

// NewDefault builds a client for the public endpoint with a file cache under
// ~/.evelib_cache/evecrest. With a token source it targets the authenticated
// endpoint instead.
func NewDefault(ts oauth2.TokenSource, opts ...request.Option) (*Client, error) {
	store, err := cache.NewFileStore("evecrest")
	if err != nil {
		return nil, err
	}
	base := DefaultBaseURL
	var execOpts []request.ExecutorOption
	if ts != nil {
		base = AuthedBaseURL
		execOpts = append(execOpts, request.WithTokenSource(ts))
	}
	opts = append([]request.Option{request.WithStore(store)}, opts...)
	p, err := request.New(base, request.NewHTTPExecutor(execOpts...), opts...)
	if err != nil {
		return nil, err
	}
	return New(p), nil
}

func (c *Client) Pipeline() *request.Pipeline { return c.pipeline }

func (c *Client) SetCacheRead(allow bool)  { c.pipeline.SetCacheRead(allow) }
func (c *Client) SetCacheWrite(allow bool) { c.pipeline.SetCacheWrite(allow) }
func (c *Client) CacheRead() bool          { return c.pipeline.CacheRead() }
func (c *Client) CacheWrite() bool         { return c.pipeline.CacheWrite() }
func (c *Client) Cached() bool             { return c.pipeline.Cached() }

// Alliance returns the alliance with the given ID.
func (c *Client) Alliance(ctx context.Context, id int64) (*Alliance, error) {
	ctx = request.WithAcceptContext(ctx, MediaAlliance)
	return get[Alliance](ctx, c, fmt.Sprintf("/alliances/%d/", id))
}

// IndustryTeams returns the teams currently available for hire.
func (c *Client) IndustryTeams(ctx context.Context) (*Collection[IndustryTeam], error) {
	ctx = request.WithAcceptContext(ctx, MediaIndustryTeams)
	return get[Collection[IndustryTeam]](ctx, c, "/industry/teams/")
}

func get[T any](ctx context.Context, c *Client, path string) (*T, error) {
	return request.Fetch(ctx, c.pipeline, serializer.NewJSON[*T](), request.Request{Path: path})
}
