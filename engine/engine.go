package engine

import (
	"context"
	"time"
)

// Engine acquires the rendered markup of a profile page.
type Engine interface {
	// Name returns the engine identifier (e.g. "proxy", "direct", "rod").
	Name() string

	// Fetch retrieves the page for the given request. It either returns a
	// complete document or fails; there are no partial results.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// FetchRequest contains everything an engine needs to fetch a profile.
type FetchRequest struct {
	// Handle is the normalized profile handle. Informational.
	Handle string

	// URL is the absolute profile URL.
	URL string

	// WaitSelector is the post container selector the page is expected to
	// render before its markup is captured.
	WaitSelector string

	Headers map[string]string
	Timeout time.Duration
	Stealth bool
}

// FetchResult is the output of a successful engine fetch.
type FetchResult struct {
	HTML  string
	Title string

	// StatusCode is 0 when the engine cannot observe it.
	StatusCode int
	FinalURL   string
	EngineName string
}

// withTimeout applies req.Timeout to ctx when set.
func withTimeout(ctx context.Context, req *FetchRequest) (context.Context, context.CancelFunc) {
	if req.Timeout > 0 {
		return context.WithTimeout(ctx, req.Timeout)
	}
	return context.WithCancel(ctx)
}
