package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/hyperjump/shiori/internal/cli"
)

var sectionsCmd = &cobra.Command{
	Use:   "sections",
	Short: "List sections and whether their text is cached",
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
		return cli.WriteSections(cmd.OutOrStdout(), sectionRows(ctx, c), format)
	},
}

func init() {
	rootCmd.AddCommand(sectionsCmd)
}

func sectionRows(ctx context.Context, c *Components) []cli.SectionRow {
	list := c.Registry.Sections()
	rows := make([]cli.SectionRow, 0, len(list))
	for _, sec := range list {
		rows = append(rows, cli.SectionRow{
			Section: sec,
			Pages:   sec.PageCount(),
			Cached:  c.Pipeline.Cached(ctx, sec),
		})
	}
	return rows
}
