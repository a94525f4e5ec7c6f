package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hyperjump/shiori/internal/cli"
)

var (
	configPath string
	debug      bool
	output     string
)

var rootCmd = &cobra.Command{
	Use:   "shiori",
	Short: "Search a sectioned document by page",
	Long: `shiori searches a large document that is split into sections, each a separate
file covering a range of global page numbers. Extracted text and search results
are kept in a tiered cache so repeated work is served without touching sources.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("shiori version %s\n", version))
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "config file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "output format: text, compact, or json")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func outputFormat() (cli.SearchOutputFormat, error) {
	return cli.ParseOutputFormat(output)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "shiori version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
