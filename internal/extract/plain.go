package extract

// openPlain splits plain text into pages on form feeds.
// Invalid UTF-8 sequences are replaced with the replacement character.
func openPlain(content []byte) Document {
	return pageList(splitFormFeed(validUTF8(content)))
}
