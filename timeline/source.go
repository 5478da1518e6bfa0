package timeline

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/use-agent/xfeed/config"
	"github.com/use-agent/xfeed/engine"
	"github.com/use-agent/xfeed/extractor"
	"github.com/use-agent/xfeed/models"
	"github.com/use-agent/xfeed/scraper"
)

// Source is the engine selected for one acquisition mode together with the
// resources it owns.
type Source struct {
	engine.Engine

	scraper *scraper.Scraper
	closers []func()
}

// NewSource builds the engine for mode ("browser", "proxy", "direct" or
// "auto") from cfg. Browser-backed modes launch the browser immediately.
func NewSource(cfg *config.Config, mode string) (*Source, error) {
	s := &Source{}
	var err error
	switch mode {
	case config.ModeBrowser:
		s.Engine, err = s.browserEngine(cfg)
	case config.ModeProxy:
		s.Engine, err = proxyEngine(cfg)
	case config.ModeDirect:
		s.Engine = engine.Instrument(engine.NewDirectEngine(cfg.Engine.HTTPTimeout))
	case config.ModeAuto:
		s.Engine, err = s.autoEngine(cfg)
	default:
		err = fmt.Errorf("unknown engine mode %q", mode)
	}
	if err != nil {
		s.Close()
		return nil, err
	}
	slog.Info("markup source ready", "mode", mode, "engine", s.Name())
	return s, nil
}

// Stats reports the rod page pool, or zero values when no rod browser is
// in use.
func (s *Source) Stats() models.PoolStats {
	if s.scraper == nil {
		return models.PoolStats{}
	}
	return s.scraper.Stats()
}

// Close releases browsers and background goroutines in reverse order.
func (s *Source) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func (s *Source) browserEngine(cfg *config.Config) (engine.Engine, error) {
	switch cfg.Browser.Driver {
	case config.DriverChromedp:
		ce, err := engine.NewChromeEngine(engine.ChromeOptions{
			Headless:    cfg.Browser.Headless,
			NoSandbox:   cfg.Browser.NoSandbox,
			BrowserBin:  cfg.Browser.BrowserBin,
			ProxyURL:    cfg.Browser.DefaultProxy,
			UserAgent:   cfg.Browser.UserAgent,
			ControlURL:  cfg.Browser.ControlURL,
			WaitTimeout: cfg.Scraper.NavigationTimeout,
		})
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, ce.Close)
		return engine.Instrument(ce), nil
	case config.DriverRod, "":
		sc, err := scraper.NewScraper(cfg.Browser, cfg.Scraper)
		if err != nil {
			return nil, err
		}
		s.scraper = sc
		s.closers = append(s.closers, sc.Close)
		return engine.Instrument(engine.NewRodEngine(sc.Fetch, true)), nil
	default:
		return nil, fmt.Errorf("unknown browser driver %q", cfg.Browser.Driver)
	}
}

func proxyEngine(cfg *config.Config) (engine.Engine, error) {
	pe, err := engine.NewProxyEngine(engine.ProxyOptions{
		BaseURL: cfg.Proxy.BaseURL,
		APIKey:  cfg.Proxy.APIKey,
		Params:  cfg.Proxy.Params,
		Client:  &http.Client{Timeout: cfg.Proxy.Timeout},
	})
	if err != nil {
		return nil, err
	}
	return engine.Instrument(pe), nil
}

// autoEngine races direct, proxy (when a key is configured) and browser.
func (s *Source) autoEngine(cfg *config.Config) (engine.Engine, error) {
	engines := []engine.Engine{engine.Instrument(engine.NewDirectEngine(cfg.Engine.HTTPTimeout))}
	if cfg.Proxy.APIKey != "" {
		pe, err := proxyEngine(cfg)
		if err != nil {
			return nil, err
		}
		engines = append(engines, pe)
	}
	be, err := s.browserEngine(cfg)
	if err != nil {
		return nil, err
	}
	engines = append(engines, be)

	delays := cfg.Engine.EscalationDelays
	if cfg.Proxy.APIKey == "" && len(delays) == 3 {
		delays = []time.Duration{delays[0], delays[2]}
	}
	memory := engine.NewMemory(cfg.Engine.MemoryTTL)
	s.closers = append(s.closers, memory.Stop)
	return engine.Instrument(engine.NewDispatcher(engines, delays, memory)), nil
}

// ExtractOptions builds the pipeline configuration for policy from cfg.
func ExtractOptions(cfg *config.Config, policy extractor.Policy) extractor.Options {
	return extractor.Options{
		Policy:    policy,
		Origin:    cfg.Extract.Origin,
		Selectors: extractor.ResolveSelectors(cfg.Extract.SelectorsPath),
	}
}
