package sections

import (
	"go.uber.org/zap"

	"github.com/hyperjump/shiori/internal/apperr"
	"github.com/hyperjump/shiori/internal/models"
)

// FindSection looks a section up by its file path.
func (r *Registry) FindSection(filePath string) (models.Section, bool) {
	if i := r.Index(filePath); i >= 0 {
		return r.sections[i], true
	}
	return models.Section{}, false
}

// ToAbsolute converts a section-relative page to an absolute page. It does not clamp.
func ToAbsolute(section models.Section, relativePage int) int {
	return relativePage + section.StartPage - 1
}

// ToRelative converts an absolute page to a page relative to section.
// Pages outside the section are clamped to 1 or the section's page count and logged.
func (r *Registry) ToRelative(section models.Section, absolutePage int) int {
	rel := absolutePage - section.StartPage + 1
	if section.Contains(absolutePage) {
		return rel
	}
	clamped := GetValidRelativePage(section, rel)
	r.logger.Warn("page outside section, clamping",
		zap.String("kind", string(apperr.KindInvalidPageCoordinate)),
		zap.String("section", section.FilePath),
		zap.Int("absolute_page", absolutePage),
		zap.Int("start_page", section.StartPage),
		zap.Int("end_page", section.EndPage),
		zap.Int("clamped_to", clamped),
	)
	return clamped
}

// FindPageInfo returns the coordinate of absolutePage, or false if no section contains it.
func (r *Registry) FindPageInfo(absolutePage int) (models.PageCoordinate, bool) {
	for _, s := range r.sections {
		if s.Contains(absolutePage) {
			return models.PageCoordinate{
				AbsolutePage: absolutePage,
				RelativePage: absolutePage - s.StartPage + 1,
				Section:      s,
			}, true
		}
	}
	return models.PageCoordinate{}, false
}

// Coordinate builds the coordinate for a section-relative page, clamping it into the section.
func (r *Registry) Coordinate(section models.Section, relativePage int) models.PageCoordinate {
	rel := GetValidRelativePage(section, relativePage)
	return models.PageCoordinate{
		AbsolutePage: ToAbsolute(section, rel),
		RelativePage: rel,
		Section:      section,
	}
}

// IsValidRelativePage reports whether relativePage exists in section.
func IsValidRelativePage(section models.Section, relativePage int) bool {
	return relativePage >= 1 && relativePage <= section.PageCount()
}

// IsValidAbsolutePage reports whether absolutePage is covered by some section.
func (r *Registry) IsValidAbsolutePage(absolutePage int) bool {
	_, ok := r.FindPageInfo(absolutePage)
	return ok
}

// GetValidRelativePage clamps relativePage into [1, section page count].
func GetValidRelativePage(section models.Section, relativePage int) int {
	if relativePage < 1 {
		return 1
	}
	if n := section.PageCount(); relativePage > n {
		return n
	}
	return relativePage
}

// GetValidAbsolutePage clamps absolutePage into the document's page range.
// A page that falls in a gap between sections moves to the start of the next section.
func (r *Registry) GetValidAbsolutePage(absolutePage int) int {
	if absolutePage < r.FirstPage() {
		return r.FirstPage()
	}
	if absolutePage > r.LastPage() {
		return r.LastPage()
	}
	for _, s := range r.sections {
		if absolutePage <= s.EndPage {
			if absolutePage < s.StartPage {
				return s.StartPage
			}
			return absolutePage
		}
	}
	return r.LastPage()
}
