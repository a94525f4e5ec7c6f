// Package sections holds the section registry and converts between absolute
// document pages and section-relative pages.
package sections

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/models"
)

// Registry is the ordered, immutable list of sections making up the document.
type Registry struct {
	sections []models.Section
	logger   *zap.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets a logger for clamped coordinates.
func WithLogger(l *zap.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry validates sections and returns a registry over a copy of them.
func NewRegistry(sections []models.Section, opts ...RegistryOption) (*Registry, error) {
	if len(sections) == 0 {
		return nil, fmt.Errorf("registry needs at least one section")
	}
	if err := config.ValidateSections(sections); err != nil {
		return nil, err
	}
	r := &Registry{
		sections: append([]models.Section(nil), sections...),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Sections returns a copy of the sections in document order.
func (r *Registry) Sections() []models.Section {
	return append([]models.Section(nil), r.sections...)
}

// Len returns the number of sections.
func (r *Registry) Len() int {
	return len(r.sections)
}

// FirstPage is the first absolute page of the document.
func (r *Registry) FirstPage() int {
	return r.sections[0].StartPage
}

// LastPage is the last absolute page of the document.
func (r *Registry) LastPage() int {
	return r.sections[len(r.sections)-1].EndPage
}

// Select returns the sections whose file paths are listed, in document order.
// An empty list selects every section. Unknown paths are returned separately.
func (r *Registry) Select(paths []string) (selected []models.Section, unknown []string) {
	if len(paths) == 0 {
		return r.Sections(), nil
	}
	want := make(map[string]bool, len(paths))
	for _, p := range paths {
		want[p] = true
	}
	for _, s := range r.sections {
		if want[s.FilePath] {
			selected = append(selected, s)
			delete(want, s.FilePath)
		}
	}
	for _, p := range paths {
		if want[p] {
			unknown = append(unknown, p)
			delete(want, p)
		}
	}
	return selected, unknown
}

// Index returns the position of the section with filePath, or -1.
func (r *Registry) Index(filePath string) int {
	for i, s := range r.sections {
		if s.FilePath == filePath {
			return i
		}
	}
	return -1
}
