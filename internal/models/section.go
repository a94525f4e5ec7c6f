// Package models defines core data structures for sections, page coordinates, and search results.
package models

import (
	"fmt"
	"sort"
)

// Section is a named, contiguous range of absolute pages within the document.
// FilePath identifies the section's source and doubles as its stable identifier.
type Section struct {
	FilePath  string `json:"file_path" yaml:"file_path"`
	Name      string `json:"name" yaml:"name"`
	Title     string `json:"title,omitempty" yaml:"title,omitempty"`
	StartPage int    `json:"start_page" yaml:"start_page"`
	EndPage   int    `json:"end_page" yaml:"end_page"`
	Category  string `json:"category,omitempty" yaml:"category,omitempty"`
}

// PageCount returns the number of pages covered by the section.
func (s Section) PageCount() int {
	return s.EndPage - s.StartPage + 1
}

// Contains reports whether absolutePage falls inside the section's range.
func (s Section) Contains(absolutePage int) bool {
	return absolutePage >= s.StartPage && absolutePage <= s.EndPage
}

// DisplayName returns the title when set, otherwise the name.
func (s Section) DisplayName() string {
	if s.Title != "" {
		return s.Title
	}
	return s.Name
}

// Validate checks the per-section range invariants.
func (s Section) Validate() error {
	if s.FilePath == "" {
		return fmt.Errorf("section %q: file_path is required", s.Name)
	}
	if s.StartPage < 1 {
		return fmt.Errorf("section %q: start_page must be >= 1, got %d", s.Name, s.StartPage)
	}
	if s.EndPage < s.StartPage {
		return fmt.Errorf("section %q: end_page %d before start_page %d", s.Name, s.EndPage, s.StartPage)
	}
	return nil
}

// PageCoordinate ties an absolute page to its section-relative page.
// It is derived on demand and never stored.
type PageCoordinate struct {
	AbsolutePage int     `json:"absolute_page"`
	RelativePage int     `json:"relative_page"`
	Section      Section `json:"section"`
}

// PageText maps section-relative page numbers to extracted text.
// Pages that failed extraction are absent rather than empty.
type PageText map[int]string

// Pages returns the page numbers present, in ascending order.
func (p PageText) Pages() []int {
	pages := make([]int, 0, len(p))
	for n := range p {
		pages = append(pages, n)
	}
	sort.Ints(pages)
	return pages
}
