package extractor

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/use-agent/xfeed/models"
)

// Rejection reasons.
const (
	ReasonMissingID   = "missing_id"
	ReasonEmptyText   = "empty_text"
	ReasonBadURL      = "bad_url"
	ReasonInvalidPost = "invalid_post"
)

// Rejection explains why a candidate did not become a PostRecord.
type Rejection struct {
	Reason string
	Err    error
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return fmt.Sprintf("post rejected (%s): %v", r.Reason, r.Err)
	}
	return fmt.Sprintf("post rejected (%s)", r.Reason)
}

func (r *Rejection) Unwrap() error { return r.Err }

// validate is safe for concurrent use and caches struct metadata.
var validate = validator.New()

// Normalize turns raw fields into a PostRecord according to opts.Policy, or
// returns a *Rejection.
func Normalize(raw RawFields, opts Options) (models.PostRecord, error) {
	if !raw.ID.Found || raw.ID.Value == "" {
		return models.PostRecord{}, &Rejection{Reason: ReasonMissingID}
	}
	text := raw.Text.Value
	if opts.Policy.RequireNonEmptyText && text == "" {
		return models.PostRecord{}, &Rejection{Reason: ReasonEmptyText}
	}

	permalink, err := resolvePermalink(opts.origin(), raw.Href.Value)
	if err != nil {
		return models.PostRecord{}, &Rejection{Reason: ReasonBadURL, Err: err}
	}

	rec := models.PostRecord{
		ID:        raw.ID.Value,
		Text:      text,
		TextHTML:  raw.TextHTML.Value,
		Timestamp: normalizeTimestamp(raw.Timestamp, opts),
		URL:       permalink,
		Media:     raw.Media,
	}
	if err := validate.Struct(rec); err != nil {
		return models.PostRecord{}, &Rejection{Reason: ReasonInvalidPost, Err: err}
	}
	if !strings.Contains(rec.URL, rec.ID) {
		return models.PostRecord{}, &Rejection{Reason: ReasonInvalidPost, Err: fmt.Errorf("id %s not in url %s", rec.ID, rec.URL)}
	}
	return rec, nil
}

// resolvePermalink resolves href against origin. Relative paths get the
// origin prefixed; absolute hrefs are kept as they are.
func resolvePermalink(origin, href string) (string, error) {
	base, err := url.Parse(origin + "/")
	if err != nil {
		return "", fmt.Errorf("parse origin: %w", err)
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse href: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// normalizeTimestamp parses an RFC 3339 datetime. Unparseable values count as
// absent; absent values are stamped with the current time only when the
// policy asks for it.
func normalizeTimestamp(raw Outcome, opts Options) *time.Time {
	if raw.Found {
		if t, err := time.Parse(time.RFC3339Nano, raw.Value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	if !opts.Policy.StampMissingTime {
		return nil
	}
	now := opts.now().UTC().Truncate(time.Millisecond)
	return &now
}
