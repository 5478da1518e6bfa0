package scraper

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"

	"github.com/use-agent/xfeed/config"
	"github.com/use-agent/xfeed/models"
)

// Viewport matches a common desktop window so the timeline renders its
// desktop layout.
const (
	viewportWidth  = 1280
	viewportHeight = 1024
)

// Scraper manages the browser lifecycle and the page pool.
// It is safe for concurrent use.
type Scraper struct {
	browser     *rod.Browser
	pagePool    rod.Pool[rod.Page]
	browserCfg  config.BrowserConfig
	scraperCfg  config.ScraperConfig
	remote      bool
	pid         int
	activePages atomic.Int32
	startTime   time.Time
}

// NewScraper launches a headless browser (or attaches to the one at
// BrowserConfig.ControlURL) and initialises the page pool.
func NewScraper(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig) (*Scraper, error) {
	controlURL, pid, err := resolveControlURL(browserCfg)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	slog.Info("browser ready", "controlURL", controlURL, "remote", browserCfg.ControlURL != "")

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	maxPages := browserCfg.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}
	pool := rod.NewPagePool(maxPages)
	slog.Info("page pool created", "maxPages", maxPages)

	return &Scraper{
		browser:    browser,
		pagePool:   pool,
		browserCfg: browserCfg,
		scraperCfg: scraperCfg,
		remote:     browserCfg.ControlURL != "",
		pid:        pid,
		startTime:  time.Now(),
	}, nil
}

func resolveControlURL(cfg config.BrowserConfig) (string, int, error) {
	if cfg.ControlURL != "" {
		u, err := launcher.ResolveURL(cfg.ControlURL)
		return u, 0, err
	}

	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)
	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.DefaultProxy != "" {
		l = l.Proxy(cfg.DefaultProxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("no-first-run"))

	u, err := l.Launch()
	if err != nil {
		return "", 0, err
	}
	return u, l.PID(), nil
}

// Stats returns a snapshot of the pool's current state.
func (s *Scraper) Stats() models.PoolStats {
	return models.PoolStats{
		MaxPages:    s.browserCfg.MaxPages,
		ActivePages: int(s.activePages.Load()),
		BrowserPID:  s.pid,
	}
}

// Uptime reports how long the browser has been connected.
func (s *Scraper) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// Close drains the page pool and kills a launched browser. A browser
// reached through ControlURL is left running.
func (s *Scraper) Close() {
	slog.Info("scraper shutting down: draining page pool")
	s.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	if s.remote {
		slog.Info("scraper shutdown complete, remote browser left running")
		return
	}
	if err := s.browser.Close(); err != nil {
		slog.Warn("closing browser failed", "error", err)
	}
	slog.Info("scraper shutdown complete")
}
