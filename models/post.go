package models

import "time"

// TimestampLayout is the canonical rendering of a post timestamp:
// ISO-8601 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// PostRecord is one normalized post. It is the single canonical shape
// produced by the extraction pipeline; the CLI and service forms render it
// through their own adapters.
type PostRecord struct {
	// ID is the numeric status identifier taken from the permalink.
	ID string `json:"id" validate:"required,numeric"`

	// Text is the rendered inner text of the post body. May be empty.
	Text string `json:"text"`

	// TextHTML is the raw markup of the post body, kept for notifiers
	// that render rich text. Never serialized.
	TextHTML string `json:"-"`

	// Timestamp is nil when the markup carried no usable datetime and the
	// active policy does not stamp missing times.
	Timestamp *time.Time `json:"timestamp"`

	// URL is the absolute permalink.
	URL string `json:"url" validate:"required,url"`

	// Media lists img and video sources in document order.
	Media []string `json:"media"`
}

// FormatTimestamp renders the record timestamp in TimestampLayout, or ""
// when absent.
func (p PostRecord) FormatTimestamp() string {
	if p.Timestamp == nil {
		return ""
	}
	return p.Timestamp.UTC().Format(TimestampLayout)
}

// CLIPost is the command-line output shape.
type CLIPost struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	URL       string `json:"url"`
	Timestamp string `json:"timestamp"`
}

// ServicePost is the element shape of GET /tweets.
type ServicePost struct {
	ID    string   `json:"id"`
	Text  string   `json:"text"`
	Date  *string  `json:"date"`
	URL   string   `json:"url"`
	Media []string `json:"media"`
}

// ToCLIPosts adapts records to the command-line shape. The result is never
// nil so an empty set encodes as [].
func ToCLIPosts(posts []PostRecord) []CLIPost {
	out := make([]CLIPost, 0, len(posts))
	for _, p := range posts {
		out = append(out, CLIPost{
			ID:        p.ID,
			Text:      p.Text,
			URL:       p.URL,
			Timestamp: p.FormatTimestamp(),
		})
	}
	return out
}

// ToServicePosts adapts records to the service shape. A missing timestamp
// becomes a JSON null date; media is always an array.
func ToServicePosts(posts []PostRecord) []ServicePost {
	out := make([]ServicePost, 0, len(posts))
	for _, p := range posts {
		sp := ServicePost{
			ID:    p.ID,
			Text:  p.Text,
			URL:   p.URL,
			Media: p.Media,
		}
		if sp.Media == nil {
			sp.Media = []string{}
		}
		if p.Timestamp != nil {
			d := p.FormatTimestamp()
			sp.Date = &d
		}
		out = append(out, sp)
	}
	return out
}
