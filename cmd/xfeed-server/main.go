package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/use-agent/xfeed/api"
	"github.com/use-agent/xfeed/cache"
	"github.com/use-agent/xfeed/config"
	"github.com/use-agent/xfeed/extractor"
	"github.com/use-agent/xfeed/logger"
	"github.com/use-agent/xfeed/notifier"
	"github.com/use-agent/xfeed/timeline"
	"github.com/use-agent/xfeed/watcher"
	"github.com/use-agent/xfeed/webhook"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	_ = godotenv.Load()
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	logger.Init(cfg.Log, "stdout")
	slog.Info("xfeed-server starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"engine", cfg.Engine.ServiceMode,
	)

	// ── 3. Markup source (launches a browser for browser/auto) ──────
	src, err := timeline.NewSource(cfg, cfg.Engine.ServiceMode)
	if err != nil {
		slog.Error("failed to initialise markup source", "error", err)
		os.Exit(1)
	}
	defer src.Close()

	client := timeline.New(src, timeline.Options{
		Extract: timeline.ExtractOptions(cfg, extractor.ProxyPolicy.WithMax(cfg.Extract.ServiceMaxPosts)),
		Timeout: cfg.Scraper.Timeout,
	})

	// ── 4. Result cache ─────────────────────────────────────────────
	cc := cache.New[*timeline.Result](cfg.Cache.MaxEntries, cfg.Cache.TTL)
	defer cc.Stop()

	deps := api.Deps{
		Fetcher:    client,
		Cache:      cc,
		Stats:      src.Stats,
		EngineName: src.Name(),
		StartTime:  time.Now(),
	}

	// ── 5. Optional watcher behind /api/v1/watch ────────────────────
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	if cfg.Watch.Serve {
		w, err := watcher.New(client, cfg.Watch, watchSinks(cfg.Watch)...)
		if err != nil {
			slog.Error("invalid watch configuration", "error", err)
			os.Exit(1)
		}
		deps.Watch = w
		go w.Run(watchCtx)
	}

	// ── 6. Setup router ─────────────────────────────────────────────
	router := api.NewRouter(cfg, deps)

	// ── 7. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 8. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())
	stopWatch()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("xfeed-server stopped")
}

func watchSinks(cfg config.WatchConfig) []watcher.Notifier {
	var sinks []watcher.Notifier
	if cfg.DiscordWebhookURL != "" {
		sinks = append(sinks, notifier.New(cfg.DiscordWebhookURL, notifier.WithEmbedPage(cfg.EmbedURL)))
	}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, webhook.NewSink(cfg.WebhookURL, cfg.WebhookSecret))
	}
	return sinks
}
