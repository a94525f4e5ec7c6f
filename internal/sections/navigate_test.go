package sections

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/shiori/internal/models"
)

func TestNext_crossesSections(t *testing.T) {
	r := newTestRegistry(t)
	c := r.Next(10)
	assert.Equal(t, 11, c.AbsolutePage)
	assert.Equal(t, 1, c.RelativePage)
	assert.Equal(t, "b.pdf", c.Section.FilePath)
}

func TestNext_wrapsToFirstPageOfDocument(t *testing.T) {
	r := newTestRegistry(t)
	c := r.Next(r.LastPage())
	assert.Equal(t, 1, c.AbsolutePage)
	assert.Equal(t, "a.pdf", c.Section.FilePath)
}

func TestPrevious_wrapsToLastPageOfDocument(t *testing.T) {
	r := newTestRegistry(t)
	c := r.Previous(1)
	assert.Equal(t, 21, c.AbsolutePage)
	assert.Equal(t, "c.pdf", c.Section.FilePath)
}

func TestNavigate_fromRelativePage(t *testing.T) {
	r := newTestRegistry(t)
	b, _ := r.FindSection("b.pdf")

	c := r.Navigate(b, 1, -1)
	assert.Equal(t, 10, c.AbsolutePage, "previous from first page of B is last page of A")
	assert.Equal(t, "a.pdf", c.Section.FilePath)

	c = r.Navigate(b, 10, 1)
	assert.Equal(t, 21, c.AbsolutePage)
}

func TestNext_skipsGap(t *testing.T) {
	r, err := NewRegistry([]models.Section{
		{FilePath: "a", Name: "A", StartPage: 1, EndPage: 5},
		{FilePath: "b", Name: "B", StartPage: 9, EndPage: 12},
	})
	require.NoError(t, err)

	assert.Equal(t, 9, r.Next(5).AbsolutePage)
	assert.Equal(t, 5, r.Previous(9).AbsolutePage)
}
