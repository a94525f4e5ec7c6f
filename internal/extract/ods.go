package extract

import "regexp"

var odsSheet = regexp.MustCompile(`(?s)<table:table(?:\s[^>]*)?>(.*?)</table:table>`)

// openODS returns one page per sheet, one line per cell paragraph.
func openODS(content []byte) (Document, error) {
	return odfPages(content, "ODS", odsSheet)
}
