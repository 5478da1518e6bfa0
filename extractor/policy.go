package extractor

import (
	"strings"
	"time"
)

// DefaultOrigin is the site every relative permalink is resolved against.
const DefaultOrigin = "https://x.com"

// Policy captures the validation differences between acquisition paths.
type Policy struct {
	// Name labels the policy in logs and cache keys.
	Name string

	// RequireNonEmptyText rejects candidates whose body text is empty.
	RequireNonEmptyText bool

	// StampMissingTime fills an absent timestamp with the current time
	// instead of leaving it null.
	StampMissingTime bool

	// MaxPosts caps the result set. Zero or negative disables the cap.
	MaxPosts int
}

// BrowserPolicy is applied to the command-line form.
var BrowserPolicy = Policy{
	Name:                "browser",
	RequireNonEmptyText: true,
	StampMissingTime:    true,
	MaxPosts:            20,
}

// ProxyPolicy is applied to the service form.
var ProxyPolicy = Policy{
	Name:                "proxy",
	RequireNonEmptyText: false,
	StampMissingTime:    false,
	MaxPosts:            10,
}

// WithMax returns a copy of p with a different cap.
func (p Policy) WithMax(n int) Policy {
	p.MaxPosts = n
	return p
}

// Options is the explicit configuration of one pipeline run.
type Options struct {
	Policy    Policy
	Origin    string
	Selectors Selectors

	// Now supplies the fallback timestamp. Defaults to time.Now.
	Now func() time.Time
}

// NewOptions returns Options for p with the default origin and selectors.
func NewOptions(p Policy) Options {
	return Options{
		Policy:    p,
		Origin:    DefaultOrigin,
		Selectors: DefaultSelectors(),
	}
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o Options) origin() string {
	if o.Origin == "" {
		return DefaultOrigin
	}
	return strings.TrimRight(o.Origin, "/")
}
