package main

import (
	"context"
	"fmt"
	"os"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/evelib/internal/config"
	"github.com/briangreenhill/evelib/internal/jobs"
	"github.com/briangreenhill/evelib/request"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("component", "worker").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config error")
	}
	logger = logger.Level(cfg.Level())
	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("REDIS_ADDR is required")
	}

	store, closeStore, err := config.OpenStore(context.Background(), cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.CacheBackend).Msg("cache store error")
	}
	defer func() { _ = closeStore() }()

	exec := cfg.Executor()
	xmlAPI, err := cfg.Pipeline(cfg.BaseURL, exec, store, request.WithLogger(logger.With().Str("api", "eveonline").Logger()))
	if err != nil {
		logger.Fatal().Err(err).Msg("pipeline error")
	}
	crest, err := cfg.Pipeline(cfg.CrestURL, exec, store, request.WithLogger(logger.With().Str("api", "evecrest").Logger()))
	if err != nil {
		logger.Fatal().Err(err).Msg("pipeline error")
	}

	credentials := func(keyID string) *request.Credential {
		if cred := cfg.Credential(); cred != nil && cred.ID == keyID {
			return cred
		}
		return nil
	}
	refresher := jobs.NewRefresher(xmlAPI, crest, credentials, logger)

	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, asynq.Config{
		Concurrency:    8,
		StrictPriority: false,
		Queues: map[string]int{
			jobs.QueueRefresh: 10, // higher priority
			"default":         5,  // default priority
		},
		Logger: asynqLogger{logger},
	})
	mux := asynq.NewServeMux()
	mux.Handle(jobs.TaskRefreshResource, refresher)

	logger.Info().Str("cache", cfg.CacheBackend).Msg("worker running")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped")
	}
}

// asynqLogger routes asynq's internal logging through zerolog.
type asynqLogger struct {
	log zerolog.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Fatal().Msg(fmt.Sprint(args...)) }
