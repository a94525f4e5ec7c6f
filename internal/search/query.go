package search

import "strings"

// Tokenize lowercases query and splits it on whitespace. Every token is required.
func Tokenize(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// NormalizeQuery returns the canonical form of query used for cache keys.
func NormalizeQuery(query string) string {
	return strings.Join(Tokenize(query), " ")
}

// MatchLine reports whether every token occurs in line, ignoring case.
// Tokens match anywhere, including inside longer words.
func MatchLine(line string, tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	lower := strings.ToLower(line)
	for _, tok := range tokens {
		if !strings.Contains(lower, tok) {
			return false
		}
	}
	return true
}
