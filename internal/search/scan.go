package search

import "strings"

// Match is one matching line on a page.
type Match struct {
	// Line is the 0-based index of the line within the page text.
	Line    int
	Text    string
	Context string
}

// ScanPage returns every line of page that contains all tokens, in line order.
// Each match carries a context built from up to before preceding and after
// following non-blank lines, joined with spaces.
func ScanPage(page string, tokens []string, before, after int) []Match {
	if len(tokens) == 0 {
		return nil
	}
	lines := strings.Split(page, "\n")
	var (
		matches []Match
		recent  []string // rolling buffer of the last `before` non-blank lines
	)
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if MatchLine(line, tokens) {
			parts := make([]string, 0, len(recent)+1+after)
			parts = append(parts, recent...)
			parts = append(parts, line)
			parts = append(parts, lookAhead(lines[i+1:], after)...)
			matches = append(matches, Match{
				Line:    i,
				Text:    line,
				Context: strings.TrimSpace(strings.Join(parts, " ")),
			})
		}
		if before > 0 {
			recent = append(recent, line)
			if len(recent) > before {
				recent = recent[1:]
			}
		}
	}
	return matches
}

func lookAhead(lines []string, n int) []string {
	var out []string
	for _, raw := range lines {
		if len(out) >= n {
			break
		}
		if line := strings.TrimSpace(raw); line != "" {
			out = append(out, line)
		}
	}
	return out
}
