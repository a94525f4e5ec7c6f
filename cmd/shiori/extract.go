package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/shiori/internal/cli"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/pipeline"
	"github.com/hyperjump/shiori/pkg/utils"
)

var extractAll bool

var extractCmd = &cobra.Command{
	Use:   "extract [--all | <section path>]",
	Short: "Extract section text into the cache",
	Long:  `Extract the text of one section, or of every section with --all, and cache it for searching.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if extractAll && len(args) > 0 {
			return fmt.Errorf("--all takes no section path")
		}
		if !extractAll && len(args) != 1 {
			return fmt.Errorf("give a section path or --all")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat()
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()
		c, logger, err := setup(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		list := c.Registry.Sections()
		if !extractAll {
			sec, ok := c.Registry.FindSection(args[0])
			if !ok {
				return fmt.Errorf("no section with file path %q", args[0])
			}
			list = []models.Section{sec}
		}
		outcomes := c.Pipeline.ExtractAll(ctx, list)
		if err := ctx.Err(); err != nil {
			return err
		}
		failed := countFailed(outcomes)
		logger.Debug("extract finished", zap.Int("sections", len(outcomes)), zap.Int("failed", failed))
		if err := writeOutcomes(cmd.OutOrStdout(), outcomes, format); err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d %s failed", failed, utils.Plural(failed, "section"))
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().BoolVarP(&extractAll, "all", "a", false, "extract every section")
	rootCmd.AddCommand(extractCmd)
}

func countFailed(outcomes []pipeline.Outcome) int {
	failed := 0
	for _, o := range outcomes {
		if o.Kind != "" {
			failed++
		}
	}
	return failed
}

func writeOutcomes(w io.Writer, outcomes []pipeline.Outcome, format cli.SearchOutputFormat) error {
	switch format {
	case cli.OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(outcomes)
	case cli.OutputCompact:
		for _, o := range outcomes {
			fmt.Fprintf(w, "%s\t%d\t%s\n", o.Section.FilePath, o.Pages, o.Kind)
		}
	default:
		for _, o := range outcomes {
			switch {
			case o.Kind != "":
				fmt.Fprintf(w, "%-30s %s: %s\n", o.Section.FilePath, o.Kind, cli.TruncateWords(o.Error, 24))
			case o.Cached:
				fmt.Fprintf(w, "%-30s %d %s (cached)\n", o.Section.FilePath, o.Pages, utils.Plural(o.Pages, "page"))
			default:
				fmt.Fprintf(w, "%-30s %d %s\n", o.Section.FilePath, o.Pages, utils.Plural(o.Pages, "page"))
			}
		}
	}
	return nil
}
