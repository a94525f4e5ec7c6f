// Package extract provides per-page text extraction from various document formats.
package extract

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrUnsupportedFormat is returned by Open for extensions it cannot read.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Document is a parsed document whose text is read one page at a time.
// Pages are numbered from 1.
type Document interface {
	NumPages() int
	PageText(page int) (string, error)
}

// Opener parses raw document bytes.
type Opener interface {
	Open(content []byte, ext string) (Document, error)
}

// Extractor opens documents by file extension.
type Extractor struct {
	// PlainFallback treats unknown extensions as plain text instead of failing.
	PlainFallback bool
}

// NewExtractor returns an Extractor that reads unknown extensions as plain text.
func NewExtractor() *Extractor {
	return &Extractor{PlainFallback: true}
}

// Open parses content according to ext, which includes the leading dot (e.g. ".pdf").
//
// Page boundaries per format: PDF pages; form feeds in plain text and Markdown;
// explicit page breaks in DOCX; sheets in XLSX and ODS; slides in PPTX and ODP.
// HTML is a single page.
func (e *Extractor) Open(content []byte, ext string) (Document, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return openPDF(content)
	case ".docx":
		return openDOCX(content)
	case ".xlsx":
		return openExcel(content)
	case ".pptx":
		return openPPTX(content)
	case ".odp":
		return openODP(content)
	case ".ods":
		return openODS(content)
	case ".md", ".markdown":
		return openMarkdown(content), nil
	case ".html", ".htm":
		return openHTML(content)
	case ".txt", ".rst", "":
		return openPlain(content), nil
	}
	if e.PlainFallback {
		return openPlain(content), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

// pageList is a document whose pages were all split up front.
type pageList []string

func (p pageList) NumPages() int { return len(p) }

func (p pageList) PageText(page int) (string, error) {
	if page < 1 || page > len(p) {
		return "", fmt.Errorf("page %d out of range 1..%d", page, len(p))
	}
	return p[page-1], nil
}

// validUTF8 replaces invalid UTF-8 sequences with the replacement character.
func validUTF8(content []byte) string {
	if !utf8.Valid(content) {
		return strings.ToValidUTF8(string(content), "\ufffd")
	}
	return string(content)
}

// splitFormFeed splits text into pages on form feed characters.
func splitFormFeed(text string) []string {
	return strings.Split(text, "\f")
}
