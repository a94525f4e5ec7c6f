package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/shiori/internal/cli"
	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/sections"
	"github.com/hyperjump/shiori/pkg/utils"
)

var (
	pageNext     bool
	pagePrevious bool
	pageSection  string
	pageRelative int
)

var pageCmd = &cobra.Command{
	Use:   "page [<absolute page>]",
	Short: "Map a page number to its section",
	Long: `Map an absolute page number to its section and section-relative page.
--next and --previous step one page, wrapping at the ends of the document.
--section with --relative maps the other way, clamping into the section.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat()
		if err != nil {
			return err
		}
		cfg, _, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		logger, err := utils.NewCLILogger(cfg.Debug || debug)
		if err != nil {
			return err
		}
		coord, err := resolvePage(cfg, logger, args)
		if err != nil {
			return err
		}
		return cli.WriteCoordinate(cmd.OutOrStdout(), coord, format)
	},
}

func init() {
	pageCmd.Flags().BoolVar(&pageNext, "next", false, "show the page after the given page")
	pageCmd.Flags().BoolVar(&pagePrevious, "previous", false, "show the page before the given page")
	pageCmd.Flags().StringVar(&pageSection, "section", "", "section file path, used with --relative")
	pageCmd.Flags().IntVar(&pageRelative, "relative", 1, "section-relative page, used with --section")
	pageCmd.MarkFlagsMutuallyExclusive("next", "previous")
	rootCmd.AddCommand(pageCmd)
}

func resolvePage(cfg *config.Config, logger *zap.Logger, args []string) (models.PageCoordinate, error) {
	registry, err := sections.NewRegistry(cfg.Document.Sections, sections.WithLogger(logger))
	if err != nil {
		return models.PageCoordinate{}, err
	}
	if registry.Len() == 0 {
		return models.PageCoordinate{}, fmt.Errorf("no sections configured")
	}
	if pageSection != "" {
		if len(args) > 0 {
			return models.PageCoordinate{}, fmt.Errorf("--section takes no absolute page")
		}
		sec, ok := registry.FindSection(pageSection)
		if !ok {
			return models.PageCoordinate{}, fmt.Errorf("no section with file path %q", pageSection)
		}
		return registry.Coordinate(sec, pageRelative), nil
	}
	if len(args) == 0 {
		return models.PageCoordinate{}, fmt.Errorf("give an absolute page or --section")
	}
	page, err := strconv.Atoi(args[0])
	if err != nil {
		return models.PageCoordinate{}, fmt.Errorf("page must be an integer: %q", args[0])
	}
	switch {
	case pageNext:
		return registry.Next(page), nil
	case pagePrevious:
		return registry.Previous(page), nil
	}
	coord, ok := registry.FindPageInfo(page)
	if !ok {
		return models.PageCoordinate{}, fmt.Errorf("page %d is outside pages %d-%d", page, registry.FirstPage(), registry.LastPage())
	}
	return coord, nil
}
