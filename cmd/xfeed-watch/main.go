// Command xfeed-watch follows profiles and forwards new posts to Discord
// and/or a signed webhook.
//
//	xfeed-watch [-engine mode] [-interval 3m] [handle ...]
//
// Handles given as arguments replace XFEED_WATCH_HANDLES.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/use-agent/xfeed/config"
	"github.com/use-agent/xfeed/extractor"
	"github.com/use-agent/xfeed/logger"
	"github.com/use-agent/xfeed/notifier"
	"github.com/use-agent/xfeed/timeline"
	"github.com/use-agent/xfeed/watcher"
	"github.com/use-agent/xfeed/webhook"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	mode := flag.String("engine", cfg.Engine.ServiceMode, "acquisition engine: browser, proxy, direct or auto")
	flag.DurationVar(&cfg.Watch.Interval, "interval", cfg.Watch.Interval, "delay between polls")
	flag.Parse()
	if flag.NArg() > 0 {
		cfg.Watch.Handles = flag.Args()
	}

	logger.Init(cfg.Log, "stdout")

	var sinks []watcher.Notifier
	if cfg.Watch.DiscordWebhookURL != "" {
		sinks = append(sinks, notifier.New(cfg.Watch.DiscordWebhookURL, notifier.WithEmbedPage(cfg.Watch.EmbedURL)))
	}
	if cfg.Watch.WebhookURL != "" {
		sinks = append(sinks, webhook.NewSink(cfg.Watch.WebhookURL, cfg.Watch.WebhookSecret))
	}
	if len(sinks) == 0 {
		slog.Warn("no notification sink configured; new posts will only be logged")
	}

	src, err := timeline.NewSource(cfg, *mode)
	if err != nil {
		slog.Error("failed to initialise markup source", "error", err)
		os.Exit(1)
	}
	defer src.Close()

	client := timeline.New(src, timeline.Options{
		Extract: timeline.ExtractOptions(cfg, extractor.ProxyPolicy.WithMax(cfg.Extract.CLIMaxPosts)),
		Timeout: cfg.Scraper.Timeout,
		Stealth: true,
	})

	w, err := watcher.New(client, cfg.Watch, sinks...)
	if err == nil && len(w.List()) == 0 {
		err = errors.New("no handles to follow")
	}
	if err != nil {
		slog.Error("invalid watch configuration", "error", err)
		src.Close()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil {
		slog.Error("watcher stopped", "error", err)
	}
}
