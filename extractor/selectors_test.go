package extractor

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSelectorsFromBytes_KeepsDefaults(t *testing.T) {
	sel, err := LoadSelectorsFromBytes([]byte(`{"post_container": "div.post"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sel.PostContainer != "div.post" {
		t.Errorf("post_container = %q", sel.PostContainer)
	}
	if sel.Text != DefaultSelectors().Text {
		t.Errorf("text selector lost its default: %q", sel.Text)
	}
}

func TestLoadSelectorsFromBytes_Invalid(t *testing.T) {
	for _, data := range []string{`{"media": "[["}`, `not json`, `{"timestamp_attr": ""}`} {
		if _, err := LoadSelectorsFromBytes([]byte(data)); err == nil {
			t.Errorf("expected error for %s", data)
		}
	}
}

func TestResolveSelectors(t *testing.T) {
	if got := ResolveSelectors(""); got != DefaultSelectors() {
		t.Errorf("embedded selectors differ from defaults: %+v", got)
	}

	path := filepath.Join(t.TempDir(), "selectors.json")
	if err := os.WriteFile(path, []byte(`{"post_container": "section"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if got := ResolveSelectors(path); got.PostContainer != "section" {
		t.Errorf("file override ignored: %+v", got)
	}

	if got := ResolveSelectors(filepath.Join(t.TempDir(), "missing.json")); got != DefaultSelectors() {
		t.Errorf("missing file should fall back: %+v", got)
	}
}

func TestRun_CustomSelectors(t *testing.T) {
	sel := DefaultSelectors()
	sel.PostContainer = "div.post"
	o := opts(ProxyPolicy)
	o.Selectors = sel

	markup := `<div class="post"><a href="/a/status/4">x</a></div><article><a href="/a/status/5">y</a></article>`
	res := mustRun(t, markup, o)
	if len(res.Posts) != 1 || res.Posts[0].ID != "4" {
		t.Errorf("posts = %+v", res.Posts)
	}
}
