package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/briangreenhill/evelib/evecrest"
	"github.com/briangreenhill/evelib/eveonline"
	"github.com/briangreenhill/evelib/internal/config"
	"github.com/briangreenhill/evelib/request"
)

type rootOptions struct {
	noCacheRead  bool
	noCacheWrite bool
	backend      string
	verbose      bool
}

// app holds what every subcommand needs. It is built once per invocation.
type app struct {
	cfg   config.Config
	eve   *eveonline.Client
	crest *evecrest.Client
	log   zerolog.Logger
	close func() error
}

func newApp(ctx context.Context, opts rootOptions, errOut io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.backend != "" {
		cfg.CacheBackend = strings.ToLower(opts.backend)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if opts.noCacheRead {
		cfg.CacheRead = false
	}
	if opts.noCacheWrite {
		cfg.CacheWrite = false
	}

	level := cfg.Level()
	if opts.verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: errOut, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger().Level(level)

	store, closeStore, err := config.OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", cfg.CacheBackend, err)
	}

	exec := cfg.Executor()
	xmlAPI, err := cfg.Pipeline(cfg.BaseURL, exec, store, request.WithLogger(logger.With().Str("api", "eveonline").Logger()))
	if err != nil {
		_ = closeStore()
		return nil, err
	}
	crest, err := cfg.Pipeline(cfg.CrestURL, exec, store, request.WithLogger(logger.With().Str("api", "evecrest").Logger()))
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	return &app{
		cfg:   cfg,
		eve:   eveonline.New(xmlAPI),
		crest: evecrest.New(crest),
		log:   logger,
		close: closeStore,
	}, nil
}

func newRootCmd() *cobra.Command {
	var (
		opts rootOptions
		a    *app
	)
	current := func() *app { return a }

	root := &cobra.Command{
		Use:   "evelib",
		Short: "Query the EVE Online APIs through a response cache.",
		Long: `evelib fetches resources from the EVE Online XML API and CREST.

Responses are cached until the server's cachedUntil instant, in the backend
selected by EVELIB_CACHE_BACKEND (memory, file, sqlite, redis, postgres, none).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			a, err = newApp(cmd.Context(), opts, cmd.ErrOrStderr())
			return err
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a == nil {
				return nil
			}
			return a.close()
		},
	}

	root.PersistentFlags().BoolVar(&opts.noCacheRead, "no-cache-read", false, "always fetch live, ignoring cached entries")
	root.PersistentFlags().BoolVar(&opts.noCacheWrite, "no-cache-write", false, "do not record fetched responses")
	root.PersistentFlags().StringVar(&opts.backend, "backend", "", "cache backend, overrides EVELIB_CACHE_BACKEND")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log cache decisions")

	root.AddCommand(
		newStatusCmd(current),
		newAlliancesCmd(current),
		newCharacterIDCmd(current),
		newCharactersCmd(current),
		newCrestAllianceCmd(current),
		newWarmCmd(current),
	)
	return root
}
