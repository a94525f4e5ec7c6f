// Package fileid derives stable cache keys from section source locations and queries.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// TextPrefix prefixes keys holding extracted page text.
	TextPrefix = "text:"
	// SearchPrefix prefixes keys holding computed search results.
	SearchPrefix = "search:"
)

// NormalizeLocation cleans a local path or URL so equivalent spellings share a key.
func NormalizeLocation(location string) string {
	if u, err := url.Parse(location); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		u.Scheme = strings.ToLower(u.Scheme)
		u.Host = strings.ToLower(u.Host)
		u.Fragment = ""
		return u.String()
	}
	return filepath.Clean(location)
}

// TextKey returns the cache key for a section's extracted text.
// Same location always yields the same key.
func TextKey(location string) string {
	return TextPrefix + digest(NormalizeLocation(location))
}

// SearchKey returns the cache key for a normalized query over a set of sections.
// The order of sections does not matter; an empty scope means all sections.
func SearchKey(normalizedQuery string, scope []string) string {
	sorted := append([]string(nil), scope...)
	sort.Strings(sorted)
	return SearchPrefix + digest(normalizedQuery+"\x00"+strings.Join(sorted, "\x00"))
}

func digest(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}
