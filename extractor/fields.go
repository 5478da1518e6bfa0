package extractor

import "strings"

// statusSegment marks the permalink path segment that precedes a post id.
const statusSegment = "/status/"

// RawFields is everything extracted from one candidate before validation.
type RawFields struct {
	ID        Outcome
	Href      Outcome
	Text      Outcome
	TextHTML  Outcome
	Timestamp Outcome
	Media     []string
}

// ExtractFields pulls every field of c from t. It never fails: fields that
// cannot be read are Absent.
func ExtractFields(t Tree, c Candidate) RawFields {
	raw := RawFields{
		Href:      t.ExtractField(c, FieldPermalink),
		Text:      t.ExtractField(c, FieldText),
		TextHTML:  t.ExtractField(c, FieldTextHTML),
		Timestamp: t.ExtractField(c, FieldTimestamp),
		Media:     t.ExtractMedia(c),
	}
	if raw.Href.Found {
		raw.ID = ParseStatusID(raw.Href.Value)
	}
	return raw
}

// ParseStatusID returns the numeric path component that follows /status/
// in href. Anything after the next '/', '?' or '#' is ignored. The outcome
// is Absent when the segment is missing or the component is not all digits.
func ParseStatusID(href string) Outcome {
	_, rest, ok := strings.Cut(href, statusSegment)
	if !ok {
		return Absent
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return Absent
	}
	for i := 0; i < len(rest); i++ {
		if rest[i] < '0' || rest[i] > '9' {
			return Absent
		}
	}
	return Found(rest)
}
