package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/hyperjump/shiori/internal/cache"
	"github.com/hyperjump/shiori/internal/cli"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache counters and contents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat()
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()
		c, _, err := setup(ctx)
		if err != nil {
			return err
		}
		defer c.Close()
		return writeCacheStats(cmd.OutOrStdout(), c.Store.Stats(), format)
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove expired entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()
		c, _, err := setup(ctx)
		if err != nil {
			return err
		}
		defer c.Close()
		removed, err := c.Store.PurgeExpired(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired %s\n", removed, pluralEntry(removed))
		return nil
	},
}

var cacheClearSearchCmd = &cobra.Command{
	Use:   "clear-search",
	Short: "Remove every cached search result",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()
		c, _, err := setup(ctx)
		if err != nil {
			return err
		}
		defer c.Close()
		removed, err := c.Engine.ClearCache(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d search %s\n", removed, pluralEntry(removed))
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cachePurgeCmd, cacheClearSearchCmd)
	rootCmd.AddCommand(cacheCmd)
}

func pluralEntry(n int) string {
	if n == 1 {
		return "entry"
	}
	return "entries"
}

func writeCacheStats(w io.Writer, st cache.Stats, format cli.SearchOutputFormat) error {
	if format == cli.OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	fmt.Fprintf(w, "Backend:     %s\n", st.Backend)
	fmt.Fprintf(w, "Entries:     %d of %d\n", st.Entries, st.MaxEntries)
	fmt.Fprintf(w, "Size:        %d bytes\n", st.SizeBytes)
	fmt.Fprintf(w, "Hits:        %d\n", st.Hits)
	fmt.Fprintf(w, "Misses:      %d\n", st.Misses)
	fmt.Fprintf(w, "Evictions:   %d\n", st.Evictions)
	fmt.Fprintf(w, "Expired:     %d\n", st.Expired)
	if st.WriteFailures > 0 {
		fmt.Fprintf(w, "Write fails: %d\n", st.WriteFailures)
	}
	writeCounts(w, "By kind", st.ByPrefix)
	writeCounts(w, "By priority", st.ByPriority)
	return nil
}

func writeCounts(w io.Writer, label string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(w, "%s:\n", label)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-10s %d\n", k, counts[k])
	}
}
