package models

import "fmt"

// SearchQuery represents a search request scoped to a set of sections.
type SearchQuery struct {
	Query string `json:"query"`
	// Sections limits the search to these section file paths. Empty means all sections.
	Sections []string `json:"sections,omitempty"`
	// Limit and Offset paginate over grouped results, not individual matches.
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
	// ExtractMissing extracts sections whose text is not yet cached instead of skipping them.
	ExtractMissing bool `json:"extract_missing,omitempty"`
}

// Validate ensures the search query has valid fields and sets defaults.
// An empty query is valid and yields no results; a negative offset is not.
func (q *SearchQuery) Validate(defaultLimit, maxLimit int) error {
	if q.Offset < 0 {
		return fmt.Errorf("offset cannot be negative")
	}
	if defaultLimit <= 0 {
		defaultLimit = 50
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if maxLimit > 0 && q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return nil
}
