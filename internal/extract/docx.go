package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// docxDocumentXMLPath is the default path to the main document body inside a .docx zip.
const docxDocumentXMLPath = "word/document.xml"

// contentTypesPath is the path to [Content_Types].xml in OOXML packages.
const contentTypesPath = "[Content_Types].xml"

const docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"

// docxToken matches, in document order, a text run, an explicit page break, or a paragraph end.
var docxToken = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>|<w:br\s[^>]*w:type="page"[^>]*/>|</w:p>`)

// PartName and ContentType may appear in either order on an Override element.
var (
	partNameRe  = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)
)

var xmlEntities = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&quot;", "\"", "&apos;", "'", "&amp;", "&")

// xmlText decodes the predefined XML entities in character data.
func xmlText(s string) string {
	return xmlEntities.Replace(s)
}

// openZip opens content as a zip archive, naming the format in errors.
func openZip(content []byte, format string) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: not a zip: %w", format, err)
	}
	return zr, nil
}

// readZipFile returns the contents of the named member, or false if there is none.
func readZipFile(zr *zip.Reader, name string) ([]byte, bool, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		data, err := readZipEntry(f)
		return data, true, err
	}
	return nil, false, nil
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return data, nil
}

// findDocxMainDocumentPath finds the main document path from [Content_Types].xml.
// Returns the path without leading slash, or empty string if not found.
func findDocxMainDocumentPath(zr *zip.Reader) string {
	data, ok, err := readZipFile(zr, contentTypesPath)
	if !ok || err != nil {
		return ""
	}
	content := string(data)
	if matches := partNameRe.FindStringSubmatch(content); len(matches) > 1 {
		return strings.TrimPrefix(matches[1], "/")
	}
	if matches := partNameRe2.FindStringSubmatch(content); len(matches) > 1 {
		return strings.TrimPrefix(matches[1], "/")
	}
	return ""
}

// openDOCX reads the main document part and splits it into pages on explicit
// page breaks. Each paragraph becomes one line. The reader works on raw
// <w:t> runs so paragraphs with attributes (w:rsidR etc.) are not missed.
func openDOCX(content []byte) (Document, error) {
	zr, err := openZip(content, "DOCX")
	if err != nil {
		return nil, err
	}
	docPath := findDocxMainDocumentPath(zr)
	if docPath == "" {
		docPath = docxDocumentXMLPath
	}
	docXML, ok, err := readZipFile(zr, docPath)
	if err != nil {
		return nil, fmt.Errorf("extract DOCX: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("extract DOCX: %s not found", docPath)
	}

	var (
		pages pageList
		page  []string
		line  strings.Builder
	)
	endLine := func() {
		if s := strings.TrimSpace(line.String()); s != "" {
			page = append(page, s)
		}
		line.Reset()
	}
	for _, m := range docxToken.FindAllStringSubmatch(string(docXML), -1) {
		switch {
		case strings.HasPrefix(m[0], "<w:t"):
			line.WriteString(xmlText(m[1]))
		case m[0] == "</w:p>":
			endLine()
		default: // page break
			endLine()
			pages = append(pages, strings.Join(page, "\n"))
			page = nil
		}
	}
	endLine()
	pages = append(pages, strings.Join(page, "\n"))
	return pages, nil
}
