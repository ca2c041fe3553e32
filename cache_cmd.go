package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/readaloud/internal/cache"
)

var errCacheDisabled = errors.New("the audio cache is disabled (cache.enabled: false)")

var (
	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the audio cache",
		Long: paragraph(fmt.Sprintf("\nAudio from cloud engines is %s, keyed by engine, voice, rate and text, "+
			"so speaking the same text again costs no request.", keyword("cached on disk"))),
		Args: cobra.NoArgs,
	}

	cacheStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show how much audio is cached",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCache(func(store *cache.Store) error {
				writeCacheStats(cmd.OutOrStdout(), store.Dir(), store.Stats(), store.Entries())
				return nil
			})
		},
	}

	cacheClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached audio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCache(func(store *cache.Store) error {
				before := store.Stats()
				if err := store.Clear(); err != nil {
					return fmt.Errorf("unable to clear cache: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Removed %d entries (%s)\n",
					okMark, before.Items, humanize.Bytes(uint64(before.Size))) //nolint:gosec
				return nil
			})
		},
	}

	cachePruneCmd = &cobra.Command{
		Use:   "prune",
		Short: "Remove cached audio older than a week",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCache(func(store *cache.Store) error {
				n := store.Prune()
				fmt.Fprintf(cmd.OutOrStdout(), "%s Pruned %d entries\n", okMark, n)
				return nil
			})
		},
	}
)

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd, cachePruneCmd)
}

func withCache(fn func(*cache.Store) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck
	if a.cache == nil {
		return errCacheDisabled
	}
	return fn(a.cache)
}

func writeCacheStats(w io.Writer, dir string, stats cache.Stats, entries []cache.Entry) {
	fmt.Fprintf(w, "%s %s\n", faint("directory"), dir)
	fmt.Fprintf(w, "%s   %s\n", faint("entries"), humanize.Comma(stats.Items))
	fmt.Fprintf(w, "%s      %s of %s\n", faint("size"),
		humanize.Bytes(uint64(stats.Size)), humanize.Bytes(uint64(stats.Capacity))) //nolint:gosec
	if len(entries) == 0 {
		return
	}

	oldest, newest := entries[0].Created, entries[0].Created
	var hits int64
	for _, e := range entries {
		if e.Created.Before(oldest) {
			oldest = e.Created
		}
		if e.Created.After(newest) {
			newest = e.Created
		}
		hits += e.Hits
	}
	fmt.Fprintf(w, "%s    %s\n", faint("oldest"), humanize.Time(oldest))
	fmt.Fprintf(w, "%s    %s\n", faint("newest"), humanize.Time(newest))
	fmt.Fprintf(w, "%s      %s\n", faint("hits"), humanize.Comma(hits))
}
