package search

import "strings"

// Highlight wraps every case-insensitive occurrence of the tokens in text with mark.
// Overlapping occurrences are merged into one marked span.
func Highlight(text string, tokens []string, mark func(string) string) string {
	if len(tokens) == 0 || mark == nil {
		return text
	}
	lower := strings.ToLower(text)
	// Lowercasing can change byte lengths outside ASCII; fall back to no marks then.
	if len(lower) != len(text) {
		return text
	}
	marked := make([]bool, len(text))
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		for from := 0; ; {
			i := strings.Index(lower[from:], tok)
			if i < 0 {
				break
			}
			start := from + i
			for j := start; j < start+len(tok); j++ {
				marked[j] = true
			}
			from = start + 1
		}
	}

	var b strings.Builder
	for i := 0; i < len(text); {
		j := i
		for j < len(text) && marked[j] == marked[i] {
			j++
		}
		if marked[i] {
			b.WriteString(mark(text[i:j]))
		} else {
			b.WriteString(text[i:j])
		}
		i = j
	}
	return b.String()
}
