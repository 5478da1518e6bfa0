package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Proxy     ProxyConfig
	Extract   ExtractConfig
	Engine    EngineConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
	Watch     WatchConfig
}

// Engine modes accepted by EngineConfig.CLIMode and EngineConfig.ServiceMode.
const (
	ModeBrowser = "browser"
	ModeProxy   = "proxy"
	ModeDirect  = "direct"
	ModeAuto    = "auto"
)

// EngineConfig selects how markup is acquired for each invocation form.
type EngineConfig struct {
	// CLIMode is the acquisition mode for the command-line form.
	CLIMode string // default: "browser"

	// ServiceMode is the acquisition mode for the HTTP service form.
	ServiceMode string // default: "proxy"

	// EscalationDelays is the staged start delay for each engine tier in
	// "auto" mode (direct, proxy, browser).
	EscalationDelays []time.Duration // default: [0s, 2s, 5s]

	// HTTPTimeout is the deadline for the direct HTTP engine.
	HTTPTimeout time.Duration // default: 5s

	// MemoryTTL is how long a winning engine is remembered per host.
	MemoryTTL time.Duration // default: 24h
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 3000
	Mode string // "debug", "release", "test"; default: "release"
}

// Browser drivers accepted by BrowserConfig.Driver.
const (
	DriverRod      = "rod"
	DriverChromedp = "chromedp"
)

// BrowserConfig controls the headless browser.
type BrowserConfig struct {
	// Driver picks the automation library: "rod" or "chromedp".
	Driver string // default: "rod"

	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int // default: 4

	// DefaultProxy is the proxy URL handed to the browser.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: true

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// ControlURL connects to an already running Chrome instead of launching one.
	ControlURL string

	// UserAgent is sent by the browser on every request.
	UserAgent string
}

// ScraperConfig controls browser scraping behavior.
type ScraperConfig struct {
	// Timeout is the deadline for one profile acquisition.
	Timeout time.Duration // default: 30s

	// NavigationTimeout is the max time for page.Navigate alone.
	NavigationTimeout time.Duration // default: 15s

	// WaitSelector is awaited after navigation before the DOM is captured.
	WaitSelector string // default: "article"

	// BlockedResourceTypes lists resource types to block.
	// default: ["Stylesheet", "Font"]
	BlockedResourceTypes []string
}

// ProxyConfig controls the third-party rendering proxy.
type ProxyConfig struct {
	// BaseURL is the proxy endpoint.
	BaseURL string // default: "https://api.zenrows.com/v1/"

	// APIKey authenticates against the proxy.
	APIKey string

	// Params are extra query parameters appended to every proxy call.
	Params []string // default: ["js_render=true"]

	// Timeout bounds a single proxy round trip.
	Timeout time.Duration // default: 60s
}

// ExtractConfig controls the extraction pipeline.
type ExtractConfig struct {
	// Origin is prefixed to relative permalinks and used to build profile URLs.
	Origin string // default: "https://x.com"

	// CLIMaxPosts caps the command-line result set. Non-positive values
	// fall back to the default.
	CLIMaxPosts int // default: 20

	// ServiceMaxPosts caps the service result set. Non-positive values
	// fall back to the default.
	ServiceMaxPosts int // default: 10

	// SelectorsPath optionally points at a JSON file overriding the
	// embedded selector set.
	SelectorsPath string
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per identity.
	RequestsPerSecond float64 // default: 2

	// Burst is the maximum burst size per identity.
	Burst int // default: 5
}

// CacheConfig controls the result set cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached result sets.
	MaxEntries int // default: 500

	// TTL is how long a cached result set is served. Zero disables caching,
	// so every request fetches afresh unless an operator opts in.
	TTL time.Duration // default: 0
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
	Output string // "stdout", "stderr" or "discard"; default depends on the binary
}

// WatchConfig controls the follow-and-notify loop.
type WatchConfig struct {
	// Handles are the followed profiles.
	Handles []string

	// Interval is the delay between two polls.
	Interval time.Duration // default: 3m

	// Concurrency bounds how many handles are fetched at once.
	Concurrency int // default: 2

	// DiscordWebhookURL receives one embed per new post.
	DiscordWebhookURL string

	// WebhookURL receives a signed JSON event per batch of new posts.
	WebhookURL string

	// WebhookSecret signs WebhookURL deliveries when non-empty.
	WebhookSecret string

	// EmbedURL is the public base URL of a server serving GET /embed.
	// When set, Discord notifications for video posts link that page.
	EmbedURL string

	// Serve runs the watcher inside xfeed-server and mounts the
	// /api/v1/watch routes.
	Serve bool // default: false
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("XFEED_HOST", "0.0.0.0"),
			Port: envIntOr("PORT", envIntOr("XFEED_PORT", 3000)),
			Mode: envOr("XFEED_MODE", "release"),
		},
		Browser: BrowserConfig{
			Driver:       envOr("XFEED_BROWSER_DRIVER", DriverRod),
			Headless:     envBoolOr("XFEED_HEADLESS", true),
			MaxPages:     envIntOr("XFEED_MAX_PAGES", 4),
			DefaultProxy: os.Getenv("XFEED_BROWSER_PROXY"),
			NoSandbox:    envBoolOr("XFEED_NO_SANDBOX", true),
			BrowserBin:   os.Getenv("XFEED_BROWSER_BIN"),
			ControlURL:   os.Getenv("XFEED_BROWSER_CONTROL_URL"),
			UserAgent:    envOr("XFEED_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0.0.0"),
		},
		Scraper: ScraperConfig{
			Timeout:           envDurationOr("XFEED_TIMEOUT", 30*time.Second),
			NavigationTimeout: envDurationOr("XFEED_NAV_TIMEOUT", 15*time.Second),
			WaitSelector:      envOr("XFEED_WAIT_SELECTOR", "article"),
			BlockedResourceTypes: envSliceOr("XFEED_BLOCKED_RESOURCES", []string{
				"Stylesheet", "Font",
			}),
		},
		Proxy: ProxyConfig{
			BaseURL: envOr("XFEED_PROXY_URL", "https://api.zenrows.com/v1/"),
			APIKey:  envOr("ZENROWS_API_KEY", os.Getenv("XFEED_PROXY_API_KEY")),
			Params:  envSliceOr("XFEED_PROXY_PARAMS", []string{"js_render=true"}),
			Timeout: envDurationOr("XFEED_PROXY_TIMEOUT", 60*time.Second),
		},
		Extract: ExtractConfig{
			Origin:          strings.TrimRight(envOr("XFEED_ORIGIN", "https://x.com"), "/"),
			CLIMaxPosts:     envPositiveIntOr("XFEED_CLI_MAX_POSTS", 20),
			ServiceMaxPosts: envPositiveIntOr("XFEED_SERVICE_MAX_POSTS", 10),
			SelectorsPath:   os.Getenv("XFEED_SELECTORS_PATH"),
		},
		Engine: EngineConfig{
			CLIMode:          envOr("XFEED_CLI_ENGINE", ModeBrowser),
			ServiceMode:      envOr("XFEED_SERVICE_ENGINE", ModeProxy),
			EscalationDelays: envDurationSliceOr("XFEED_ESCALATION_DELAYS", []time.Duration{0, 2 * time.Second, 5 * time.Second}),
			HTTPTimeout:      envDurationOr("XFEED_HTTP_TIMEOUT", 5*time.Second),
			MemoryTTL:        envDurationOr("XFEED_ENGINE_MEMORY_TTL", 24*time.Hour),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("XFEED_AUTH_ENABLED", false),
			APIKeys: envSliceOr("XFEED_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("XFEED_RATE_RPS", 2.0),
			Burst:             envIntOr("XFEED_RATE_BURST", 5),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("XFEED_CACHE_MAX_ENTRIES", 500),
			TTL:        envDurationOr("XFEED_CACHE_TTL", 0),
		},
		Log: LogConfig{
			Level:  envOr("XFEED_LOG_LEVEL", "info"),
			Format: envOr("XFEED_LOG_FORMAT", "json"),
			Output: os.Getenv("XFEED_LOG_OUTPUT"),
		},
		Watch: WatchConfig{
			Handles:           envSliceOr("XFEED_WATCH_HANDLES", nil),
			Interval:          envDurationOr("XFEED_WATCH_INTERVAL", 3*time.Minute),
			Concurrency:       envIntOr("XFEED_WATCH_CONCURRENCY", 2),
			DiscordWebhookURL: os.Getenv("DISCORD_WEBHOOK_URL"),
			WebhookURL:        os.Getenv("XFEED_WEBHOOK_URL"),
			WebhookSecret:     os.Getenv("XFEED_WEBHOOK_SECRET"),
			EmbedURL:          envOr("XFEED_EMBED_URL", os.Getenv("APP_URL")),
			Serve:             envBoolOr("XFEED_WATCH_ENABLED", false),
		},
	}
}

func envDurationSliceOr(key string, fallback []time.Duration) []time.Duration {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]time.Duration, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				if d, err := time.ParseDuration(trimmed); err == nil {
					result = append(result, d)
				}
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// envPositiveIntOr is envIntOr for caps, where zero or less would mean
// "unbounded".
func envPositiveIntOr(key string, fallback int) int {
	if i := envIntOr(key, fallback); i > 0 {
		return i
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
