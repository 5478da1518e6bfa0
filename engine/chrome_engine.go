package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/use-agent/xfeed/models"
)

// ChromeOptions configures a ChromeEngine.
type ChromeOptions struct {
	Headless   bool
	NoSandbox  bool
	BrowserBin string
	ProxyURL   string
	UserAgent  string

	// ControlURL attaches to a running browser's DevTools endpoint instead
	// of launching one.
	ControlURL string

	// WaitTimeout bounds the wait for the post container after navigation.
	// When it elapses the current DOM is captured anyway.
	WaitTimeout time.Duration
}

// ChromeEngine renders the profile in a chromedp-driven Chrome. One browser
// is shared; every Fetch opens and closes its own tab.
type ChromeEngine struct {
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	waitTimeout   time.Duration
}

// NewChromeEngine starts (or attaches to) Chrome.
func NewChromeEngine(opts ChromeOptions) (*ChromeEngine, error) {
	var allocCtx context.Context
	var cancelAlloc context.CancelFunc
	if opts.ControlURL != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(context.Background(), opts.ControlURL)
	} else {
		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.WindowSize(1280, 1024),
		)
		if opts.NoSandbox {
			allocOpts = append(allocOpts, chromedp.NoSandbox)
		}
		if opts.UserAgent != "" {
			allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
		}
		if opts.BrowserBin != "" {
			allocOpts = append(allocOpts, chromedp.ExecPath(opts.BrowserBin))
		}
		if opts.ProxyURL != "" {
			allocOpts = append(allocOpts, chromedp.ProxyServer(opts.ProxyURL))
		}
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(context.Background(), allocOpts...)
	}

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	// The first Run allocates the browser.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("chrome_engine: start browser: %w", err)
	}
	slog.Info("chromedp browser ready", "remote", opts.ControlURL != "")

	wait := opts.WaitTimeout
	if wait <= 0 {
		wait = 10 * time.Second
	}
	return &ChromeEngine{
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
		waitTimeout:   wait,
	}, nil
}

func (e *ChromeEngine) Name() string { return "chromedp" }

func (e *ChromeEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	tabCtx, cancelTab := chromedp.NewContext(e.browserCtx)
	defer cancelTab()

	runCtx, cancel := withTimeout(tabCtx, req)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, chromedp.Navigate(req.URL)); err != nil {
		return nil, categorizeChromeError(ctx, err)
	}

	if req.WaitSelector != "" {
		waitCtx, cancelWait := context.WithTimeout(runCtx, e.waitTimeout)
		err := chromedp.Run(waitCtx, chromedp.WaitReady(req.WaitSelector, chromedp.ByQuery))
		cancelWait()
		if err != nil {
			slog.Debug("post container did not appear, capturing current DOM",
				"url", req.URL, "selector", req.WaitSelector, "error", err)
		}
	}

	var htmlStr, title, finalURL string
	err := chromedp.Run(runCtx,
		chromedp.Title(&title),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &htmlStr, chromedp.ByQuery),
	)
	if err != nil {
		return nil, categorizeChromeError(ctx, err)
	}

	return &FetchResult{
		HTML:       htmlStr,
		Title:      title,
		FinalURL:   finalURL,
		EngineName: e.Name(),
	}, nil
}

// Close shuts the browser down (or detaches from a remote one).
func (e *ChromeEngine) Close() {
	e.cancelBrowser()
	e.cancelAlloc()
}

func categorizeChromeError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return models.NewScrapeError(models.ErrCodeTimeout, "page load timed out", err)
	}
	return models.NewScrapeError(models.ErrCodeNavigation, "page load failed", err)
}
