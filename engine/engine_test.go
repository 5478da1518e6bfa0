package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/use-agent/xfeed/models"
)

func TestProxyEngine_BuildsRequestAndReturnsBody(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Alice (@alice) / X</title></head><body><article></article></body></html>`))
	}))
	defer srv.Close()

	eng, err := NewProxyEngine(ProxyOptions{
		BaseURL: srv.URL + "/v1/",
		APIKey:  "k3y",
		Params:  []string{"js_render=true", "premium_proxy = true"},
	})
	if err != nil {
		t.Fatalf("NewProxyEngine: %v", err)
	}

	res, err := eng.Fetch(context.Background(), &FetchRequest{URL: "https://x.com/alice", WaitSelector: "article"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Title != "Alice (@alice) / X" || res.EngineName != "proxy" || res.StatusCode != 200 {
		t.Errorf("unexpected result: %+v", res)
	}
	want := map[string]string{
		"apikey":        "k3y",
		"url":           "https://x.com/alice",
		"js_render":     "true",
		"premium_proxy": "true",
		"wait_for":      "article",
	}
	for k, v := range want {
		if got.Get(k) != v {
			t.Errorf("query %s = %q, want %q", k, got.Get(k), v)
		}
	}
}

func TestProxyEngine_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"REQS001","detail":"quota exceeded"}`, http.StatusPaymentRequired)
	}))
	defer srv.Close()

	t.Run("non-2xx", func(t *testing.T) {
		eng, _ := NewProxyEngine(ProxyOptions{BaseURL: srv.URL, APIKey: "k"})
		_, err := eng.Fetch(context.Background(), &FetchRequest{URL: "https://x.com/alice"})
		var se *models.ScrapeError
		if !errors.As(err, &se) || se.Code != models.ErrCodeProxy {
			t.Fatalf("expected PROXY_FAILED, got %v", err)
		}
		if !strings.Contains(err.Error(), "quota exceeded") {
			t.Errorf("error should carry the proxy body: %v", err)
		}
	})

	t.Run("missing api key", func(t *testing.T) {
		eng, _ := NewProxyEngine(ProxyOptions{BaseURL: srv.URL})
		if _, err := eng.Fetch(context.Background(), &FetchRequest{URL: "https://x.com/alice"}); err == nil {
			t.Fatal("expected error without api key")
		}
	})

	t.Run("invalid base url", func(t *testing.T) {
		if _, err := NewProxyEngine(ProxyOptions{BaseURL: "not a url"}); err == nil {
			t.Fatal("expected error for invalid base url")
		}
	})
}

func TestProxyEngine_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	eng, _ := NewProxyEngine(ProxyOptions{BaseURL: srv.URL, APIKey: "k"})
	_, err := eng.Fetch(context.Background(), &FetchRequest{URL: "https://x.com/alice", Timeout: 50 * time.Millisecond})
	var se *models.ScrapeError
	if !errors.As(err, &se) || se.Code != models.ErrCodeTimeout {
		t.Fatalf("expected SCRAPE_TIMEOUT, got %v", err)
	}
}

func TestEngines_RejectOversizedBody(t *testing.T) {
	page := "<html><body>" + strings.Repeat("<article>x</article>", maxBody/20) + "<article>y</article></body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	}))
	defer srv.Close()

	tests := []struct {
		name string
		eng  Engine
		code string
	}{
		{"proxy", mustProxy(t, ProxyOptions{BaseURL: srv.URL, APIKey: "k"}), models.ErrCodeProxy},
		{"direct", NewDirectEngineWithTransport(http.DefaultTransport), models.ErrCodeNavigation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.eng.Fetch(context.Background(), &FetchRequest{URL: srv.URL, WaitSelector: "article"})
			if res != nil {
				t.Fatalf("a truncated document must not be returned (%d bytes)", len(res.HTML))
			}
			var se *models.ScrapeError
			if !errors.As(err, &se) || se.Code != tt.code || !errors.Is(err, errBodyTooLarge) {
				t.Fatalf("expected %s wrapping errBodyTooLarge, got %v", tt.code, err)
			}
		})
	}
}

func TestReadBody_AtLimit(t *testing.T) {
	body, err := readBody(strings.NewReader(strings.Repeat("a", maxBody)))
	if err != nil || len(body) != maxBody {
		t.Fatalf("a body of exactly maxBody bytes should be accepted: len=%d err=%v", len(body), err)
	}
}

func mustProxy(t *testing.T, opts ProxyOptions) *ProxyEngine {
	t.Helper()
	eng, err := NewProxyEngine(opts)
	if err != nil {
		t.Fatal(err)
	}
	return eng
}

func TestDirectEngine(t *testing.T) {
	tests := []struct {
		name    string
		ct      string
		body    string
		wantErr bool
	}{
		{"rendered posts", "text/html; charset=utf-8", `<html><title>t</title><article>x</article></html>`, false},
		{"app shell only", "text/html", `<html><body><div id="react-root"></div></body></html>`, true},
		{"not html", "application/json", `{}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Accept-Language") == "" {
					t.Error("missing browser headers")
				}
				w.Header().Set("Content-Type", tt.ct)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			eng := NewDirectEngineWithTransport(http.DefaultTransport)
			res, err := eng.Fetch(context.Background(), &FetchRequest{URL: srv.URL, WaitSelector: "article"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && res.EngineName != "direct" {
				t.Errorf("engine name = %q", res.EngineName)
			}
		})
	}
}

type fakeEngine struct {
	name  string
	delay time.Duration
	err   error
	calls atomic.Int32
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	f.calls.Add(1)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(f.delay):
	}
	if f.err != nil {
		return nil, f.err
	}
	return &FetchResult{HTML: "<article></article>", EngineName: f.name}, nil
}

func TestDispatcher_EscalatesOnFailure(t *testing.T) {
	direct := &fakeEngine{name: "direct", err: errors.New("app shell")}
	proxy := &fakeEngine{name: "proxy", delay: 10 * time.Millisecond}
	mem := NewMemory(time.Hour)
	defer mem.Stop()

	d := NewDispatcher([]Engine{direct, proxy}, []time.Duration{0, 20 * time.Millisecond}, mem)
	if d.Name() != "auto" {
		t.Errorf("name = %q", d.Name())
	}
	res, err := d.Fetch(context.Background(), &FetchRequest{URL: "https://x.com/alice"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.EngineName != "proxy" {
		t.Errorf("winner = %q, want proxy", res.EngineName)
	}
	if got := mem.Get("x.com"); got != "proxy" {
		t.Errorf("memory = %q, want proxy", got)
	}

	// The remembered engine is tried alone on the next call.
	if _, err := d.Fetch(context.Background(), &FetchRequest{URL: "https://x.com/bob"}); err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if direct.calls.Load() != 1 {
		t.Errorf("direct engine called %d times, want 1", direct.calls.Load())
	}
}

func TestDispatcher_AllFail(t *testing.T) {
	last := errors.New("browser crashed")
	d := NewDispatcher([]Engine{
		&fakeEngine{name: "direct", err: errors.New("app shell")},
		&fakeEngine{name: "rod", delay: 5 * time.Millisecond, err: last},
	}, nil, nil)

	_, err := d.Fetch(context.Background(), &FetchRequest{URL: "https://x.com/alice"})
	if err == nil {
		t.Fatal("expected error when every engine fails")
	}
}

func TestMemory_Expiry(t *testing.T) {
	m := NewMemory(time.Minute)
	defer m.Stop()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	m.Set("x.com", "proxy")
	if got := m.Get("x.com"); got != "proxy" {
		t.Fatalf("Get = %q", got)
	}
	now = now.Add(2 * time.Minute)
	if got := m.Get("x.com"); got != "" {
		t.Errorf("expired entry returned %q", got)
	}

	m.Set("x.com", "rod")
	now = now.Add(2 * time.Minute)
	m.prune()
	if _, ok := m.store.Load("x.com"); ok {
		t.Error("prune kept an expired entry")
	}
	m.Stop()
}

func TestContainsTag(t *testing.T) {
	if !containsTag(`<div><article/></div>`, "article") {
		t.Error("self-closing article not found")
	}
	if containsTag(`<div>article</div>`, "article") {
		t.Error("text mistaken for a tag")
	}
	if !containsTag(`<div></div>`, `div[data-x]`) {
		t.Error("complex selectors are assumed present")
	}
}
