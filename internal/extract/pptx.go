package extract

import (
	"archive/zip"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// pptxSlideName matches slide parts and captures the slide number.
var pptxSlideName = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// pptxToken matches a DrawingML text run or a paragraph end.
var pptxToken = regexp.MustCompile(`<a:t(?:\s[^>]*)?>([^<]*)</a:t>|</a:p>`)

// openPPTX returns one page per slide, ordered by slide number rather than zip order.
func openPPTX(content []byte) (Document, error) {
	zr, err := openZip(content, "PPTX")
	if err != nil {
		return nil, err
	}
	type slide struct {
		n int
		f *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		m := pptxSlideName.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slides = append(slides, slide{n: n, f: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	pages := make(pageList, 0, len(slides))
	for _, s := range slides {
		data, err := readZipEntry(s.f)
		if err != nil {
			return nil, fmt.Errorf("extract PPTX: %w", err)
		}
		pages = append(pages, paragraphText(string(data), pptxToken, "</a:p>"))
	}
	return pages, nil
}

// paragraphText joins the runs matched by token into lines, breaking on paragraphEnd.
func paragraphText(xml string, token *regexp.Regexp, paragraphEnd string) string {
	var (
		lines []string
		line  strings.Builder
	)
	endLine := func() {
		if s := strings.TrimSpace(line.String()); s != "" {
			lines = append(lines, s)
		}
		line.Reset()
	}
	for _, m := range token.FindAllStringSubmatch(xml, -1) {
		if m[0] == paragraphEnd {
			endLine()
			continue
		}
		line.WriteString(xmlText(m[1]))
	}
	endLine()
	return strings.Join(lines, "\n")
}
