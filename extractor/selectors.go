package extractor

import (
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/andybalholm/cascadia"
)

//go:embed selectors.json
var embeddedSelectors embed.FS

// Selectors names the markup roles the extractor looks for. Every value is
// a CSS selector except TimestampAttr.
type Selectors struct {
	PostContainer string `json:"post_container"`
	Permalink     string `json:"permalink"`
	Text          string `json:"text"`
	Timestamp     string `json:"timestamp"`
	TimestampAttr string `json:"timestamp_attr"`
	Media         string `json:"media"`
}

// DefaultSelectors returns the fallback selector set used when neither an
// external file nor the embedded selectors.json can be loaded.
func DefaultSelectors() Selectors {
	return Selectors{
		PostContainer: "article",
		Permalink:     `a[href*="/status/"]`,
		Text:          `[data-testid="tweetText"]`,
		Timestamp:     "time",
		TimestampAttr: "datetime",
		Media:         "img, video",
	}
}

// LoadSelectors loads a selector set from the JSON file at path.
func LoadSelectors(path string) (Selectors, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Selectors{}, fmt.Errorf("failed to read selector file: %w", err)
	}
	return LoadSelectorsFromBytes(data)
}

// LoadSelectorsFromBytes parses a selector set from raw JSON. Keys missing
// from the document keep their default value.
func LoadSelectorsFromBytes(data []byte) (Selectors, error) {
	sel := DefaultSelectors()
	if err := json.Unmarshal(data, &sel); err != nil {
		return Selectors{}, fmt.Errorf("failed to parse selector JSON: %w", err)
	}
	if _, err := sel.compile(); err != nil {
		return Selectors{}, err
	}
	return sel, nil
}

// ResolveSelectors picks the selector set in this order:
//  1. the external file at path, when path is non-empty
//  2. the embedded selectors.json
//  3. DefaultSelectors
func ResolveSelectors(path string) Selectors {
	if path != "" {
		sel, err := LoadSelectors(path)
		if err == nil {
			slog.Info("loaded selectors from file", "path", path)
			return sel
		}
		slog.Warn("external selectors failed to load, trying embedded", "path", path, "error", err)
	}

	data, err := embeddedSelectors.ReadFile("selectors.json")
	if err == nil {
		sel, parseErr := LoadSelectorsFromBytes(data)
		if parseErr == nil {
			return sel
		}
		err = parseErr
	}
	slog.Warn("embedded selectors unusable, using defaults", "error", err)
	return DefaultSelectors()
}

// compiledSelectors holds the parsed form of a Selectors value.
type compiledSelectors struct {
	post      cascadia.Selector
	permalink cascadia.Selector
	text      cascadia.Selector
	timestamp cascadia.Selector
	media     cascadia.Selector
	timeAttr  string
}

func (s Selectors) compile() (*compiledSelectors, error) {
	c := &compiledSelectors{timeAttr: s.TimestampAttr}
	targets := []struct {
		name string
		expr string
		dst  *cascadia.Selector
	}{
		{"post_container", s.PostContainer, &c.post},
		{"permalink", s.Permalink, &c.permalink},
		{"text", s.Text, &c.text},
		{"timestamp", s.Timestamp, &c.timestamp},
		{"media", s.Media, &c.media},
	}
	for _, t := range targets {
		compiled, err := cascadia.Compile(t.expr)
		if err != nil {
			return nil, fmt.Errorf("invalid %s selector %q: %w", t.name, t.expr, err)
		}
		*t.dst = compiled
	}
	if c.timeAttr == "" {
		return nil, fmt.Errorf("timestamp_attr must not be empty")
	}
	return c, nil
}
