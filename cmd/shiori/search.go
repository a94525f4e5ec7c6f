package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperjump/shiori/internal/cli"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/server"
)

var (
	searchSections       []string
	searchLimit          int
	searchOffset         int
	searchServer         string
	searchExtractMissing bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Search every section for lines containing all query words",
	Long: `Search every section for lines containing all query words. Results are grouped by
page in document order. Sections without cached text are skipped unless
--extract-missing is given. With --server the query is sent to a running API.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat()
		if err != nil {
			return err
		}
		query := &models.SearchQuery{
			Query:          buildSearchQuery(args),
			Sections:       searchSections,
			Limit:          searchLimit,
			Offset:         searchOffset,
			ExtractMissing: searchExtractMissing,
		}
		var response *models.SearchResponse
		if searchServer != "" {
			response, err = searchViaHTTP(searchServer, query)
		} else {
			ctx, stop := signalContext()
			defer stop()
			var c *Components
			c, _, err = setup(ctx)
			if err != nil {
				return err
			}
			defer c.Close()
			response, err = runSearch(ctx, c, query)
		}
		if err != nil {
			return err
		}
		return cli.WriteSearchResults(cmd.OutOrStdout(), response, format)
	},
}

var statusServer string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := statusViaHTTP(statusServer)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Version:         %s\n", status.Version)
		fmt.Fprintf(w, "Sections:        %d (%d cached)\n", status.Sections, status.CachedSections)
		fmt.Fprintf(w, "Pages:           %d-%d\n", status.FirstPage, status.LastPage)
		fmt.Fprintf(w, "Cache:           %s, %d entries, %d bytes\n", status.CacheBackend, status.CacheEntries, status.CacheBytes)
		if status.DiskUsageBytes != nil {
			fmt.Fprintf(w, "Disk usage:      %d bytes\n", *status.DiskUsageBytes)
		}
		fmt.Fprintf(w, "Watching:        %t\n", status.WatchEnabled)
		fmt.Fprintf(w, "Uptime:          %ds\n", status.UptimeSeconds)
		return nil
	},
}

func init() {
	searchCmd.Flags().StringSliceVarP(&searchSections, "section", "s", nil, "limit to these section file paths (repeatable)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum pages to show (0 = config default)")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "pages to skip")
	searchCmd.Flags().BoolVar(&searchExtractMissing, "extract-missing", false, "extract sections whose text is not cached")
	searchCmd.Flags().StringVar(&searchServer, "server", "", "send the query to a running server at this URL")
	rootCmd.AddCommand(searchCmd)

	statusCmd.Flags().StringVar(&statusServer, "server", "http://localhost:8080", "server URL")
	rootCmd.AddCommand(statusCmd)
}

// buildSearchQuery joins positional args into a single query string.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runSearch(ctx context.Context, c *Components, query *models.SearchQuery) (*models.SearchResponse, error) {
	response, err := c.Engine.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return response, nil
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(strings.TrimRight(serverURL, "/")+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func statusViaHTTP(serverURL string) (*server.StatusResponse, error) {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var s server.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}
