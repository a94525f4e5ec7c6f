// Package e2e provides end-to-end tests; this file builds minimal multi-page files for supported types.
package e2e

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SupportedFileExtensions is the list of multi-page formats used in E2E tests.
// PDF is not generated here (no minimal PDF with extractable text) and HTML
// always reads as a single page.
var SupportedFileExtensions = []string{
	".txt", ".md", ".rst",
	".docx", ".xlsx", ".pptx", ".odp", ".ods",
}

// WriteMinimalFile returns the bytes of a file of the given extension whose
// pages hold the given lines, one page boundary per format.
func WriteMinimalFile(ext string, pages [][]string) ([]byte, error) {
	switch ext {
	case ".txt", ".rst":
		return []byte(joinPages(pages, "\n", "\f")), nil
	case ".md":
		return []byte(joinPages(pages, "\n\n", "\n\f")), nil
	case ".docx":
		return minimalDocx(pages), nil
	case ".pptx":
		return minimalPptx(pages), nil
	case ".odp":
		return minimalOdp(pages), nil
	case ".ods":
		return minimalOds(pages), nil
	case ".xlsx":
		return minimalXlsx(pages)
	default:
		return nil, fmt.Errorf("no fixture writer for %q", ext)
	}
}

func joinPages(pages [][]string, lineSep, pageSep string) string {
	parts := make([]string, len(pages))
	for i, lines := range pages {
		parts[i] = strings.Join(lines, lineSep)
	}
	return strings.Join(parts, pageSep)
}

func zipOf(files ...string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for i := 0; i+1 < len(files); i += 2 {
		fw, _ := w.Create(files[i])
		_, _ = fw.Write([]byte(files[i+1]))
	}
	_ = w.Close()
	return buf.Bytes()
}

func minimalDocx(pages [][]string) []byte {
	var b strings.Builder
	b.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for i, lines := range pages {
		if i > 0 {
			b.WriteString(`<w:p><w:r><w:br w:type="page"/></w:r></w:p>`)
		}
		for _, line := range lines {
			b.WriteString(`<w:p><w:r><w:t>` + line + `</w:t></w:r></w:p>`)
		}
	}
	b.WriteString(`</w:body></w:document>`)
	return zipOf("word/document.xml", b.String())
}

func minimalPptx(pages [][]string) []byte {
	files := make([]string, 0, 2*len(pages))
	for i, lines := range pages {
		var b strings.Builder
		b.WriteString(`<p:sld xmlns:p="a" xmlns:a="b"><p:cSld><p:spTree><p:sp><p:txBody>`)
		for _, line := range lines {
			b.WriteString(`<a:p><a:r><a:t>` + line + `</a:t></a:r></a:p>`)
		}
		b.WriteString(`</p:txBody></p:sp></p:spTree></p:cSld></p:sld>`)
		files = append(files, fmt.Sprintf("ppt/slides/slide%d.xml", i+1), b.String())
	}
	return zipOf(files...)
}

func minimalOdp(pages [][]string) []byte {
	var b strings.Builder
	b.WriteString(`<office:document><office:body><office:presentation>`)
	for i, lines := range pages {
		fmt.Fprintf(&b, `<draw:page draw:name="p%d"><draw:frame><draw:text-box>`, i+1)
		for _, line := range lines {
			b.WriteString(`<text:p>` + line + `</text:p>`)
		}
		b.WriteString(`</draw:text-box></draw:frame></draw:page>`)
	}
	b.WriteString(`</office:presentation></office:body></office:document>`)
	return zipOf("content.xml", b.String())
}

func minimalOds(pages [][]string) []byte {
	var b strings.Builder
	b.WriteString(`<office:document><office:body><office:spreadsheet>`)
	for i, lines := range pages {
		fmt.Fprintf(&b, `<table:table table:name="S%d">`, i+1)
		for _, line := range lines {
			b.WriteString(`<table:table-row><table:table-cell><text:p>` + line + `</text:p></table:table-cell></table:table-row>`)
		}
		b.WriteString(`</table:table>`)
	}
	b.WriteString(`</office:spreadsheet></office:body></office:document>`)
	return zipOf("content.xml", b.String())
}

func minimalXlsx(pages [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	for i, lines := range pages {
		sheet := fmt.Sprintf("Sheet%d", i+1)
		if i > 0 {
			if _, err := f.NewSheet(sheet); err != nil {
				return nil, err
			}
		}
		for row, line := range lines {
			if err := f.SetCellValue(sheet, fmt.Sprintf("A%d", row+1), line); err != nil {
				return nil, err
			}
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
