package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// pdfDocument reads page text lazily so one bad page does not spoil the rest.
type pdfDocument struct {
	r *pdf.Reader
}

func openPDF(content []byte) (Document, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	return &pdfDocument{r: r}, nil
}

func (d *pdfDocument) NumPages() int {
	return d.r.NumPage()
}

func (d *pdfDocument) PageText(page int) (string, error) {
	if page < 1 || page > d.r.NumPage() {
		return "", fmt.Errorf("page %d out of range 1..%d", page, d.r.NumPage())
	}
	p := d.r.Page(page)
	if p.V.IsNull() {
		return "", nil
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("extract page %d: %w", page, err)
	}
	return text, nil
}
