// Command xfeed prints the recent posts of one profile as a JSON array.
//
//	xfeed [-engine browser|proxy|direct|auto] [-max N] <handle>
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/use-agent/xfeed/config"
	"github.com/use-agent/xfeed/engine"
	"github.com/use-agent/xfeed/extractor"
	"github.com/use-agent/xfeed/logger"
	"github.com/use-agent/xfeed/models"
	"github.com/use-agent/xfeed/timeline"
)

const usage = "usage: xfeed [-engine browser|proxy|direct|auto] [-max N] <handle>"

// openFunc builds the markup source for mode and returns its release func.
type openFunc func(cfg *config.Config, mode string) (engine.Engine, func(), error)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, openSource)
	stop()
	os.Exit(code)
}

func openSource(cfg *config.Config, mode string) (engine.Engine, func(), error) {
	src, err := timeline.NewSource(cfg, mode)
	if err != nil {
		return nil, nil, err
	}
	return src, src.Close, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, open openFunc) int {
	cfg := config.Load()

	fs := flag.NewFlagSet("xfeed", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	mode := fs.String("engine", cfg.Engine.CLIMode, "acquisition engine: browser, proxy, direct or auto")
	limit := fs.Int("max", cfg.Extract.CLIMaxPosts, "maximum number of posts to print")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return fail(stderr, usage)
		}
		return fail(stderr, err.Error())
	}
	if fs.NArg() < 1 {
		return fail(stderr, "No username provided")
	}
	// Values above the default are an explicit opt-in; zero or less would
	// lift the cap entirely.
	if *limit <= 0 {
		return fail(stderr, fmt.Sprintf("-max must be a positive number, got %d", *limit))
	}

	logger.Init(cfg.Log, "discard")

	src, release, err := open(cfg, *mode)
	if err != nil {
		return fail(stderr, err.Error())
	}
	defer release()

	client := timeline.New(src, timeline.Options{
		Extract: timeline.ExtractOptions(cfg, extractor.BrowserPolicy.WithMax(*limit)),
		Timeout: cfg.Scraper.Timeout,
		Stealth: true,
	})
	res, err := client.Fetch(ctx, fs.Arg(0))
	if err != nil {
		return fail(stderr, err.Error())
	}

	if err := json.NewEncoder(stdout).Encode(models.ToCLIPosts(res.Posts)); err != nil {
		return fail(stderr, err.Error())
	}
	return 0
}

func fail(stderr io.Writer, msg string) int {
	json.NewEncoder(stderr).Encode(models.ErrorResponse{Error: msg})
	return 1
}
