// cmd/api/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/briangreenhill/evelib/evecrest"
	"github.com/briangreenhill/evelib/eveonline"
	"github.com/briangreenhill/evelib/internal/config"
	"github.com/briangreenhill/evelib/internal/http/routes"
	"github.com/briangreenhill/evelib/internal/jobs"
	"github.com/briangreenhill/evelib/request"
)

func main() {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config error")
	}
	logger = logger.Level(cfg.Level())

	ctx := context.Background()

	// Metrics
	exporter, err := otelprom.New()
	if err != nil {
		logger.Fatal().Err(err).Msg("prometheus exporter")
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	defer func() { _ = provider.Shutdown(ctx) }()
	meter := provider.Meter("github.com/briangreenhill/evelib")

	// Cache
	store, closeStore, err := config.OpenStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.CacheBackend).Msg("cache store error")
	}
	defer func() { _ = closeStore() }()

	exec := cfg.Executor()
	pipeline := func(base, name string, fresh bool) *request.Pipeline {
		p, err := cfg.Pipeline(base, exec, store,
			request.WithLogger(logger.With().Str("api", name).Logger()),
			request.WithMeter(meter),
		)
		if err != nil {
			logger.Fatal().Err(err).Str("api", name).Msg("pipeline error")
		}
		if fresh {
			p.SetCacheRead(false)
		}
		return p
	}

	opts := routes.ServerOptions{
		EVE:        eveonline.New(pipeline(cfg.BaseURL, "eveonline", false)),
		EVEFresh:   eveonline.New(pipeline(cfg.BaseURL, "eveonline", true)),
		Crest:      evecrest.New(pipeline(cfg.CrestURL, "evecrest", false)),
		CrestFresh: evecrest.New(pipeline(cfg.CrestURL, "evecrest", true)),
		Metrics:    promhttp.Handler(),
	}

	// Refresh queue
	if cfg.RedisAddr != "" {
		client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() {
			if closeErr := client.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("close asynq client")
			}
		}()
		opts.Jobs = jobs.Enqueuer(client)
	}

	// Router / server
	s := routes.New(opts)
	h := hlog.NewHandler(logger)(s.Router)

	logger.Info().Str("port", cfg.Port).Str("cache", cfg.CacheBackend).Msg("starting gateway")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
