package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/xfeed/config"
	"github.com/use-agent/xfeed/engine"
)

type stubEngine struct {
	html string
	err  error
	req  *engine.FetchRequest
}

func (s *stubEngine) Name() string { return "stub" }

func (s *stubEngine) Fetch(_ context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	s.req = req
	if s.err != nil {
		return nil, s.err
	}
	return &engine.FetchResult{HTML: s.html, EngineName: "stub"}, nil
}

func opener(e *stubEngine, gotMode *string) openFunc {
	return func(_ *config.Config, mode string) (engine.Engine, func(), error) {
		if gotMode != nil {
			*gotMode = mode
		}
		return e, func() {}, nil
	}
}

func TestRun_Success(t *testing.T) {
	var b strings.Builder
	for i := 25; i > 0; i-- {
		fmt.Fprintf(&b, `<article><a href="/alice/status/%d">x</a><div data-testid="tweetText">post %d</div><time datetime="2024-01-02T03:04:05Z"></time></article>`, i, i)
	}
	b.WriteString(`<article><a href="/alice/status/99">x</a></article>`)

	var stdout, stderr bytes.Buffer
	src := &stubEngine{html: b.String()}
	var mode string
	code := run(context.Background(), []string{"@Alice"}, &stdout, &stderr, opener(src, &mode))
	if code != 0 {
		t.Fatalf("exit %d, stderr %s", code, stderr.String())
	}
	if stderr.Len() != 0 {
		t.Errorf("stderr should be empty, got %q", stderr.String())
	}
	if mode != config.ModeBrowser {
		t.Errorf("default mode = %q", mode)
	}
	if src.req.URL != "https://x.com/alice" || !src.req.Stealth {
		t.Errorf("request = %+v", src.req)
	}

	var posts []map[string]string
	if err := json.Unmarshal(stdout.Bytes(), &posts); err != nil {
		t.Fatalf("stdout is not a JSON array: %v", err)
	}
	if len(posts) != 20 {
		t.Fatalf("expected 20 posts, got %d", len(posts))
	}
	if posts[0]["id"] != "25" || posts[0]["timestamp"] != "2024-01-02T03:04:05.000Z" {
		t.Errorf("first post = %v", posts[0])
	}
	if _, ok := posts[0]["media"]; ok {
		t.Error("CLI shape must not carry media")
	}
}

func TestRun_Flags(t *testing.T) {
	src := &stubEngine{html: `<article><a href="/bob/status/1">x</a><div data-testid="tweetText">a</div></article>` +
		`<article><a href="/bob/status/2">x</a><div data-testid="tweetText">b</div></article>`}
	var stdout, stderr bytes.Buffer
	var mode string
	code := run(context.Background(), []string{"-engine", "direct", "-max", "1", "bob"}, &stdout, &stderr, opener(src, &mode))
	if code != 0 {
		t.Fatalf("exit %d, stderr %s", code, stderr.String())
	}
	if mode != "direct" {
		t.Errorf("mode = %q", mode)
	}
	var posts []map[string]string
	if err := json.Unmarshal(stdout.Bytes(), &posts); err != nil || len(posts) != 1 {
		t.Fatalf("posts = %v, err %v", posts, err)
	}
	ts, err := time.Parse(time.RFC3339, posts[0]["timestamp"])
	if err != nil || time.Since(ts) > time.Minute {
		t.Errorf("missing time should be stamped with now, got %q", posts[0]["timestamp"])
	}
}

func TestRun_Failures(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		engine  *stubEngine
		wantMsg string
	}{
		{"no handle", nil, &stubEngine{}, "No username provided"},
		{"invalid handle", []string{"not a handle"}, &stubEngine{}, "INVALID_INPUT"},
		{"acquisition fails", []string{"alice"}, &stubEngine{err: errors.New("browser exploded")}, "browser exploded"},
		{"zero max", []string{"-max", "0", "alice"}, &stubEngine{}, "-max must be a positive number"},
		{"negative max", []string{"-max=-3", "alice"}, &stubEngine{}, "-max must be a positive number"},
		{"unknown flag", []string{"-bogus", "alice"}, &stubEngine{}, "flag provided but not defined: -bogus"},
		{"bad max value", []string{"-max", "many", "alice"}, &stubEngine{}, "invalid value"},
		{"help", []string{"-h"}, &stubEngine{}, "usage: xfeed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), tt.args, &stdout, &stderr, opener(tt.engine, nil))
			if code != 1 {
				t.Fatalf("exit = %d, want 1", code)
			}
			if stdout.Len() != 0 {
				t.Errorf("stdout should be empty, got %q", stdout.String())
			}
			var body map[string]string
			if err := json.Unmarshal(stderr.Bytes(), &body); err != nil {
				t.Fatalf("stderr is not JSON: %q", stderr.String())
			}
			if !strings.Contains(body["error"], tt.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", body["error"], tt.wantMsg)
			}
		})
	}
}

func TestRun_OpenFails(t *testing.T) {
	var stdout, stderr bytes.Buffer
	open := func(*config.Config, string) (engine.Engine, func(), error) {
		return nil, nil, errors.New(`unknown engine mode "warp"`)
	}
	if code := run(context.Background(), []string{"-engine", "warp", "alice"}, &stdout, &stderr, open); code != 1 {
		t.Errorf("exit = %d", code)
	}
	if !strings.Contains(stderr.String(), "unknown engine mode") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestRun_MaxAboveDefault(t *testing.T) {
	var b strings.Builder
	for i := 30; i > 0; i-- {
		fmt.Fprintf(&b, `<article><a href="/alice/status/%d">x</a><div data-testid="tweetText">post %d</div></article>`, i, i)
	}
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-max", "25", "alice"}, &stdout, &stderr, opener(&stubEngine{html: b.String()}, nil))
	if code != 0 {
		t.Fatalf("exit %d, stderr %s", code, stderr.String())
	}
	var posts []map[string]string
	if err := json.Unmarshal(stdout.Bytes(), &posts); err != nil || len(posts) != 25 {
		t.Fatalf("expected 25 posts, got %d (err %v)", len(posts), err)
	}
}
