// Package timeline fetches a profile through an engine and runs the
// extraction pipeline over the returned markup.
package timeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/use-agent/xfeed/engine"
	"github.com/use-agent/xfeed/extractor"
	"github.com/use-agent/xfeed/metrics"
	"github.com/use-agent/xfeed/models"
)

// Options configures a Client.
type Options struct {
	// Extract is passed to the pipeline unchanged.
	Extract extractor.Options

	// Timeout bounds one acquisition. Zero leaves it to the engine.
	Timeout time.Duration

	// Stealth asks browser engines to inject evasion scripts.
	Stealth bool
}

// Result is one fetched and normalized profile.
type Result struct {
	Handle      string
	Posts       []models.PostRecord
	Candidates  int
	Rejected    int
	EngineUsed  string
	FetchTime   time.Duration
	ExtractTime time.Duration
}

// Client is safe for concurrent use when its engine is.
type Client struct {
	source engine.Engine
	opts   Options
}

// New returns a Client reading markup from source.
func New(source engine.Engine, opts Options) *Client {
	return &Client{source: source, opts: opts}
}

// Policy returns the extraction policy applied by c.
func (c *Client) Policy() extractor.Policy {
	return c.opts.Extract.Policy
}

// ProfileURL is the page fetched for handle.
func (c *Client) ProfileURL(handle string) string {
	origin := c.opts.Extract.Origin
	if origin == "" {
		origin = extractor.DefaultOrigin
	}
	return origin + "/" + handle
}

// Fetch validates rawHandle, acquires the profile markup with one engine
// call and runs the pipeline. Acquisition failures are returned as
// *models.ScrapeError and the pipeline is not run.
func (c *Client) Fetch(ctx context.Context, rawHandle string) (*Result, error) {
	handle, err := NormalizeHandle(rawHandle)
	if err != nil {
		return nil, err
	}

	waitSelector := c.opts.Extract.Selectors.PostContainer
	if waitSelector == "" {
		waitSelector = extractor.DefaultSelectors().PostContainer
	}

	fetchStart := time.Now()
	page, err := c.source.Fetch(ctx, &engine.FetchRequest{
		Handle:       handle,
		URL:          c.ProfileURL(handle),
		WaitSelector: waitSelector,
		Timeout:      c.opts.Timeout,
		Stealth:      c.opts.Stealth,
	})
	fetchTime := time.Since(fetchStart)
	if err != nil {
		slog.Warn("profile acquisition failed", "handle", handle, "engine", c.source.Name(), "error", err)
		return nil, asScrapeError(err)
	}

	extractStart := time.Now()
	extracted, err := extractor.Run(page.HTML, c.opts.Extract)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeParse, "failed to parse profile markup", err)
	}
	extractTime := time.Since(extractStart)
	metrics.PostsExtracted.Add(float64(len(extracted.Posts)))

	slog.Info("profile fetched",
		"handle", handle,
		"engine", page.EngineName,
		"policy", c.opts.Extract.Policy.Name,
		"candidates", extracted.Candidates,
		"rejected", extracted.Rejected,
		"posts", len(extracted.Posts),
		"fetchMs", fetchTime.Milliseconds(),
	)

	return &Result{
		Handle:      handle,
		Posts:       extracted.Posts,
		Candidates:  extracted.Candidates,
		Rejected:    extracted.Rejected,
		EngineUsed:  page.EngineName,
		FetchTime:   fetchTime,
		ExtractTime: extractTime,
	}, nil
}

// asScrapeError keeps typed errors and classifies the rest.
func asScrapeError(err error) *models.ScrapeError {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, "profile acquisition timed out", err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, "failed to acquire profile markup", err)
	}
}
