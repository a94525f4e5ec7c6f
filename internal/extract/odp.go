package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// odfContentPath is the path to the main content inside OpenDocument zips.
const odfContentPath = "content.xml"

var (
	odpPage = regexp.MustCompile(`(?s)<draw:page(?:\s[^>]*)?>(.*?)</draw:page>`)
	// odfParagraph matches a paragraph or heading, including nested spans.
	odfParagraph = regexp.MustCompile(`(?s)<text:(?:p|h)(?:\s[^>]*)?>(.*?)</text:(?:p|h)>`)
	odfTag       = regexp.MustCompile(`<[^>]+>`)
)

// openODP returns one page per draw:page (slide).
func openODP(content []byte) (Document, error) {
	return odfPages(content, "ODP", odpPage)
}

// odfPages splits content.xml into pages with pageRe. Each paragraph becomes a line.
// A document without any page element is read as a single page.
func odfPages(content []byte, format string, pageRe *regexp.Regexp) (Document, error) {
	zr, err := openZip(content, format)
	if err != nil {
		return nil, err
	}
	data, ok, err := readZipFile(zr, odfContentPath)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", format, err)
	}
	if !ok {
		return nil, fmt.Errorf("extract %s: %s not found", format, odfContentPath)
	}
	xml := string(data)
	chunks := pageRe.FindAllStringSubmatch(xml, -1)
	if len(chunks) == 0 {
		return pageList{odfText(xml)}, nil
	}
	pages := make(pageList, 0, len(chunks))
	for _, c := range chunks {
		pages = append(pages, odfText(c[1]))
	}
	return pages, nil
}

func odfText(xml string) string {
	var lines []string
	for _, m := range odfParagraph.FindAllStringSubmatch(xml, -1) {
		if s := strings.TrimSpace(xmlText(odfTag.ReplaceAllString(m[1], ""))); s != "" {
			lines = append(lines, s)
		}
	}
	return strings.Join(lines, "\n")
}
