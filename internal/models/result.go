package models

// SearchResult is one matching line.
type SearchResult struct {
	// Page is the absolute page number.
	Page        int    `json:"page"`
	Text        string `json:"text"`
	Context     string `json:"context"`
	SectionName string `json:"section_name"`
	SectionPath string `json:"section_path"`
	Category    string `json:"category,omitempty"`
}

// GroupedResult collects every match on one page of one section.
type GroupedResult struct {
	Key         string          `json:"key"`
	Page        int             `json:"page"`
	SectionPath string          `json:"section_path"`
	SectionName string          `json:"section_name"`
	Results     []*SearchResult `json:"results"`
	Count       int             `json:"count"`
}

// SearchStatus distinguishes a finished search from one that failed.
// A completed search with no groups means "no results".
type SearchStatus string

const (
	StatusCompleted SearchStatus = "completed"
	StatusFailed    SearchStatus = "failed"
)

// SectionFailure reports a section that could not be searched.
type SectionFailure struct {
	SectionPath string `json:"section_path"`
	Kind        string `json:"kind"`
	Message     string `json:"message"`
	Retryable   bool   `json:"retryable"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Query  string           `json:"query"`
	Status SearchStatus     `json:"status"`
	Groups []*GroupedResult `json:"groups"`
	// TotalGroups and TotalMatches count everything before pagination.
	TotalGroups  int `json:"total_groups"`
	TotalMatches int `json:"total_matches"`
	Limit        int `json:"limit"`
	Offset       int `json:"offset"`
	// Skipped lists sections in scope whose text was not cached.
	Skipped   []string          `json:"skipped,omitempty"`
	Failed    []*SectionFailure `json:"failed,omitempty"`
	Cached    bool              `json:"cached"`
	QueryTime int64             `json:"query_time_ms"`
}
