package sections

import "github.com/hyperjump/shiori/internal/models"

// Next returns the page after absolutePage. Past the last page of the
// document it wraps to the first page of the document.
func (r *Registry) Next(absolutePage int) models.PageCoordinate {
	return r.step(absolutePage, 1)
}

// Previous returns the page before absolutePage. Before the first page of
// the document it wraps to the last page of the document.
func (r *Registry) Previous(absolutePage int) models.PageCoordinate {
	return r.step(absolutePage, -1)
}

// Navigate moves delta pages from a section-relative position, crossing into
// neighbouring sections as needed and wrapping around the whole document.
func (r *Registry) Navigate(section models.Section, relativePage, delta int) models.PageCoordinate {
	return r.step(ToAbsolute(section, relativePage), delta)
}

func (r *Registry) step(absolutePage, delta int) models.PageCoordinate {
	target := absolutePage + delta
	switch {
	case target > r.LastPage():
		target = r.FirstPage()
	case target < r.FirstPage():
		target = r.LastPage()
	}
	if coord, ok := r.FindPageInfo(target); ok {
		return coord
	}
	// target sits in a gap between sections: skip over it in the direction of travel.
	for i, s := range r.sections {
		if target < s.StartPage {
			if delta >= 0 {
				return r.Coordinate(s, 1)
			}
			prev := r.sections[i-1]
			return r.Coordinate(prev, prev.PageCount())
		}
	}
	last := r.sections[len(r.sections)-1]
	return r.Coordinate(last, last.PageCount())
}
