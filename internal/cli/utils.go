// Package cli renders search results, sections, and page coordinates for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/search"
	"github.com/hyperjump/shiori/pkg/utils"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputCompact prints one match per line: page, section path, text.
	OutputCompact SearchOutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (SearchOutputFormat, error) {
	switch f := SearchOutputFormat(strings.ToLower(s)); f {
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
}

// contextWidth bounds how much surrounding text is printed per match.
const contextWidth = 200

// styles renders through a renderer bound to one writer, so output that is
// not a terminal carries no escape codes.
type styles struct {
	title   lipgloss.Style
	page    lipgloss.Style
	dim     lipgloss.Style
	mark    lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("81")),
		page:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("255")).Background(lipgloss.Color("24")).Padding(0, 1),
		dim:     r.NewStyle().Foreground(lipgloss.Color("240")),
		mark:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("220")),
		warning: r.NewStyle().Foreground(lipgloss.Color("214")),
		failure: r.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

// WriteSearchResults writes search results to w in the given format.
// Unknown formats are written as text.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		writeSearchResultsCompact(w, response)
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	st := newStyles(w)
	tokens := search.Tokenize(response.Query)
	mark := func(s string) string { return st.mark.Render(s) }

	fmt.Fprintf(w, "\nFound %d %s on %d %s in %dms",
		response.TotalMatches, utils.Plural(response.TotalMatches, "match"),
		response.TotalGroups, utils.Plural(response.TotalGroups, "page"),
		response.QueryTime)
	if response.Cached {
		fmt.Fprint(w, st.dim.Render(" (cached)"))
	}
	fmt.Fprintln(w)
	if len(response.Groups) < response.TotalGroups {
		fmt.Fprintln(w, st.dim.Render(fmt.Sprintf("Showing pages %d-%d of %d",
			response.Offset+1, response.Offset+len(response.Groups), response.TotalGroups)))
	}
	fmt.Fprintln(w)

	for _, group := range response.Groups {
		fmt.Fprintf(w, "%s %s %s\n",
			st.page.Render(fmt.Sprintf("p.%d", group.Page)),
			st.title.Render(group.SectionName),
			st.dim.Render(group.SectionPath))
		for _, result := range group.Results {
			fmt.Fprintf(w, "  %s\n", search.Highlight(result.Text, tokens, mark))
			if result.Context != "" && result.Context != result.Text {
				fmt.Fprintf(w, "    %s\n", st.dim.Render(utils.Truncate(result.Context, contextWidth)))
			}
		}
		fmt.Fprintln(w)
	}

	if len(response.Skipped) > 0 {
		fmt.Fprintln(w, st.warning.Render(fmt.Sprintf("Not yet extracted (%d): %s",
			len(response.Skipped), strings.Join(response.Skipped, ", "))))
	}
	for _, f := range response.Failed {
		line := fmt.Sprintf("Failed %s: %s", f.SectionPath, TruncateWords(f.Message, 24))
		if f.Retryable {
			line += " (retry later)"
		}
		fmt.Fprintln(w, st.failure.Render(line))
	}
}

func writeSearchResultsCompact(w io.Writer, response *models.SearchResponse) {
	for _, group := range response.Groups {
		for _, result := range group.Results {
			fmt.Fprintf(w, "%d\t%s\t%s\n", result.Page, result.SectionPath, result.Text)
		}
	}
}

// PrintSearchResults prints search results to stdout in text format.
func PrintSearchResults(response *models.SearchResponse) {
	_ = WriteSearchResults(os.Stdout, response, OutputText)
}

// SectionRow is one line of a section listing.
type SectionRow struct {
	models.Section
	Pages  int  `json:"pages"`
	Cached bool `json:"cached"`
}

// WriteSections writes the section list in the given format.
func WriteSections(w io.Writer, rows []SectionRow, format SearchOutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, rows)
	}
	st := newStyles(w)
	for _, row := range rows {
		if format == OutputCompact {
			fmt.Fprintf(w, "%d\t%d\t%s\t%t\n", row.StartPage, row.EndPage, row.FilePath, row.Cached)
			continue
		}
		state := st.dim.Render("not extracted")
		if row.Cached {
			state = st.title.Render("cached")
		}
		fmt.Fprintf(w, "%5d-%-5d %s %s  %s\n",
			row.StartPage, row.EndPage, st.title.Render(row.DisplayName()), st.dim.Render(row.FilePath), state)
	}
	return nil
}

// WriteCoordinate writes one page coordinate in the given format.
func WriteCoordinate(w io.Writer, coord models.PageCoordinate, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, coord)
	case OutputCompact:
		fmt.Fprintf(w, "%d\t%s\t%d\n", coord.AbsolutePage, coord.Section.FilePath, coord.RelativePage)
	default:
		st := newStyles(w)
		fmt.Fprintf(w, "%s %s page %d of %d %s\n",
			st.page.Render(fmt.Sprintf("p.%d", coord.AbsolutePage)),
			st.title.Render(coord.Section.DisplayName()),
			coord.RelativePage, coord.Section.PageCount(),
			st.dim.Render(coord.Section.FilePath))
	}
	return nil
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
