package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/evelib/eveonline"
	"github.com/briangreenhill/evelib/request"
	"github.com/briangreenhill/evelib/serializer"
)

// envelope decodes only the XML API envelope: enough to reject API errors and
// to read cachedUntil.
type envelope = eveonline.Response[struct{}]

// Refresher handles TaskRefreshResource. Its pipelines never read from the
// cache, so every task performs a live fetch and overwrites the stored entry.
type Refresher struct {
	pipelines   map[string]*request.Pipeline
	credentials func(keyID string) *request.Credential
	log         zerolog.Logger
}

// NewRefresher takes ownership of the given pipelines and disables their cache
// reads. credentials may be nil when no task carries a key ID.
func NewRefresher(xmlAPI, crest *request.Pipeline, credentials func(keyID string) *request.Credential, log zerolog.Logger) *Refresher {
	pipelines := map[string]*request.Pipeline{}
	for area, p := range map[string]*request.Pipeline{AreaEVEOnline: xmlAPI, AreaCrest: crest} {
		if p == nil {
			continue
		}
		p.SetCacheRead(false)
		pipelines[area] = p
	}
	return &Refresher{pipelines: pipelines, credentials: credentials, log: log}
}

// ProcessTask implements asynq.Handler. Client errors and malformed payloads
// skip retry; network failures, 429 and 5xx are returned for asynq to retry.
func (r *Refresher) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p RefreshPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		r.log.Error().Err(err).Msg("[asynq] bad payload")
		return fmt.Errorf("bad payload: %v: %w", err, asynq.SkipRetry)
	}
	log := r.log.With().Str("area", p.Area).Str("path", p.Path).Logger()

	start := time.Now()
	err := r.refresh(ctx, p)
	duration := time.Since(start)

	if err != nil {
		if isRetryable(err) {
			log.Warn().Err(err).Dur("duration", duration).Msg("[refresh] retryable error")
			return err
		}
		log.Error().Err(err).Dur("duration", duration).Msg("[refresh] permanent error (dropping job)")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	log.Info().Dur("duration", duration).Msg("[refresh] done")
	return nil
}

func (r *Refresher) refresh(ctx context.Context, p RefreshPayload) error {
	if err := p.validate(); err != nil {
		return err
	}
	pipeline, ok := r.pipelines[p.Area]
	if !ok {
		return fmt.Errorf("no pipeline for area %q", p.Area)
	}

	req := request.Request{Path: p.Path}
	if len(p.Params) > 0 {
		req.Query = request.NewQuery()
		for _, param := range p.Params {
			req.Query.Add(param.Key, param.Value)
		}
	}
	if p.KeyID != "" {
		if r.credentials == nil {
			return fmt.Errorf("no credential source for key %s", p.KeyID)
		}
		if req.Credential = r.credentials(p.KeyID); req.Credential == nil {
			return fmt.Errorf("unknown key %s", p.KeyID)
		}
	}

	var err error
	switch p.Area {
	case AreaEVEOnline:
		_, err = request.Fetch(ctx, pipeline, serializer.NewXML[*envelope](), req)
	case AreaCrest:
		_, err = request.Fetch(ctx, pipeline, serializer.NewJSON[json.RawMessage](), req)
	}
	return err
}

func isRetryable(err error) bool {
	var terr *request.TransportError
	if !errors.As(err, &terr) {
		return false
	}
	code := terr.StatusCode()
	return code == 0 || code == http.StatusTooManyRequests || code >= 500
}
