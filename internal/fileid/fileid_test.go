package fileid

import (
	"strings"
	"testing"
)

func TestTextKey_stable(t *testing.T) {
	a := TextKey("/docs/manual/engine.pdf")
	b := TextKey("/docs/manual/../manual/engine.pdf")
	if a != b {
		t.Errorf("equivalent paths should share a key: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, TextPrefix) {
		t.Errorf("missing prefix: %s", a)
	}
	if a == TextKey("/docs/manual/intro.pdf") {
		t.Error("different paths must differ")
	}
}

func TestTextKey_url(t *testing.T) {
	a := TextKey("HTTPS://Example.com/manual/a.pdf#page=3")
	b := TextKey("https://example.com/manual/a.pdf")
	if a != b {
		t.Errorf("URL case and fragment should not matter: %s vs %s", a, b)
	}
}

func TestSearchKey(t *testing.T) {
	a := SearchKey("valve seal", []string{"b.pdf", "a.pdf"})
	b := SearchKey("valve seal", []string{"a.pdf", "b.pdf"})
	if a != b {
		t.Error("scope order should not matter")
	}
	if a == SearchKey("valve seal", nil) {
		t.Error("scoped and unscoped searches must differ")
	}
	if a == SearchKey("valve", []string{"a.pdf", "b.pdf"}) {
		t.Error("different queries must differ")
	}
	if !strings.HasPrefix(a, SearchPrefix) {
		t.Errorf("missing prefix: %s", a)
	}
}
