package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const cachedUntilLayout = "2006-01-02 15:04:05 MST"

var errNoCredential = errors.New("no API key configured, set EVELIB_KEY_ID and EVELIB_VCODE")

func newStatusCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show Tranquility server status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := current()
			resp, err := a.eve.Server.Status(cmd.Context())
			if err != nil {
				return err
			}
			state := "offline"
			if resp.Result.ServerOpen {
				state = "online"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tranquility is %s with %d players (cached until %s)\n",
				state, resp.Result.OnlinePlayers, resp.CachedUntil().Format(cachedUntilLayout))
			return nil
		},
	}
}

func newAlliancesCmd(current func() *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "alliances",
		Short: "List the largest alliances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := current()
			resp, err := a.eve.Eve.AllianceList(cmd.Context())
			if err != nil {
				return err
			}
			alliances := resp.Result.Alliances
			sort.SliceStable(alliances, func(i, j int) bool {
				return alliances[i].MemberCount > alliances[j].MemberCount
			})
			if limit > 0 && len(alliances) > limit {
				alliances = alliances[:limit]
			}
			out := cmd.OutOrStdout()
			for _, al := range alliances {
				fmt.Fprintf(out, "%-6s %-40s %8d\n", al.ShortName, al.Name, al.MemberCount)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of alliances to print, 0 for all")
	return cmd
}

func newCharacterIDCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "character-id NAME...",
		Short: "Resolve character names to IDs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			resp, err := a.eve.Eve.CharacterID(cmd.Context(), args...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range resp.Result.Characters {
				fmt.Fprintf(out, "%s\t%d\n", c.Name, c.CharacterID)
			}
			return nil
		},
	}
}

func newCharactersCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "characters",
		Short: "List the characters on the configured API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := current()
			cred := a.cfg.Credential()
			if cred == nil {
				return errNoCredential
			}
			resp, err := a.eve.Account.Characters(cmd.Context(), cred)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range resp.Result.Characters {
				fmt.Fprintf(out, "%d\t%s\t%s\n", c.CharacterID, c.DisplayName(), c.CorporationName)
			}
			return nil
		},
	}
}

func newCrestAllianceCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "crest-alliance ID",
		Short: "Show an alliance from CREST",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid alliance id %q", args[0])
			}
			a := current()
			al, err := a.crest.Alliance(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s, %d corporations\n", al.ShortName, al.Name, al.CorporationsCount)
			return nil
		},
	}
}

// newWarmCmd fetches a fixed set of resources concurrently so later calls are
// served from the cache.
func newWarmCmd(current func() *app) *cobra.Command {
	var parallel int
	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Populate the cache with commonly used resources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := current()
			g, ctx := errgroup.WithContext(cmd.Context())
			if parallel > 0 {
				g.SetLimit(parallel)
			}

			var warmed atomic.Int32
			run := func(name string, fetch func() error) {
				g.Go(func() error {
					if err := fetch(); err != nil {
						return fmt.Errorf("warm %s: %w", name, err)
					}
					warmed.Add(1)
					a.log.Debug().Str("resource", name).Msg("warmed")
					return nil
				})
			}

			run("server status", func() error { _, err := a.eve.Server.Status(ctx); return err })
			run("alliance list", func() error { _, err := a.eve.Eve.AllianceList(ctx); return err })
			run("jumps", func() error { _, err := a.eve.Map.Jumps(ctx); return err })
			if cred := a.cfg.Credential(); cred != nil {
				run("characters", func() error { _, err := a.eve.Account.Characters(ctx, cred); return err })
				run("api key info", func() error { _, err := a.eve.Account.APIKeyInfo(ctx, cred); return err })
			}

			err := g.Wait()
			fmt.Fprintf(cmd.OutOrStdout(), "warmed %d resources\n", warmed.Load())
			return err
		},
	}
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 4, "maximum concurrent fetches")
	return cmd
}
