package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/xfeed/config"
	"github.com/use-agent/xfeed/extractor"
	"github.com/use-agent/xfeed/models"
	"github.com/use-agent/xfeed/timeline"
	"github.com/use-agent/xfeed/watcher"
)

func newWatchRouter(t *testing.T, cfg *config.Config, src *stubEngine) (http.Handler, *watcher.Watcher) {
	t.Helper()
	client := timeline.New(src, timeline.Options{Extract: extractor.NewOptions(extractor.ProxyPolicy)})
	w, err := watcher.New(client, config.WatchConfig{Interval: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	return NewRouter(cfg, Deps{Fetcher: client, EngineName: src.Name(), StartTime: time.Now(), Watch: w}), w
}

func do(r http.Handler, method, target string, header ...string) (*httptest.ResponseRecorder, models.WatchResponse) {
	req := httptest.NewRequest(method, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body models.WatchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestWatchRoutes(t *testing.T) {
	r, wl := newWatchRouter(t, testConfig(), &stubEngine{html: profile(3)})

	w, body := do(r, http.MethodPost, "/api/v1/watch?user=@Alice")
	if w.Code != http.StatusCreated || !body.Success {
		t.Fatalf("follow: status=%d body=%s", w.Code, w.Body.String())
	}
	if body.Handle != "alice" || body.Found != 3 || body.Cursor != "3" || len(body.Handles) != 1 {
		t.Errorf("follow body = %+v", body)
	}
	if c, ok := wl.Cursor("alice"); !ok || c != 3 {
		t.Errorf("cursor = %d, %v", c, ok)
	}

	w, body = do(r, http.MethodGet, "/api/v1/watch")
	if w.Code != http.StatusOK || len(body.Handles) != 1 || body.Handles[0] != "alice" {
		t.Errorf("list: status=%d body=%+v", w.Code, body)
	}

	w, body = do(r, http.MethodPost, "/api/v1/watch?user=alice")
	if w.Code != http.StatusConflict || body.Error == nil || body.Error.Code != models.ErrCodeConflict {
		t.Errorf("second follow: status=%d body=%+v", w.Code, body)
	}

	w, body = do(r, http.MethodPost, "/api/v1/watch?user=bad%20handle")
	if w.Code != http.StatusBadRequest || body.Error == nil || body.Error.Code != models.ErrCodeInvalidInput {
		t.Errorf("invalid follow: status=%d body=%+v", w.Code, body)
	}

	w, body = do(r, http.MethodDelete, "/api/v1/watch?user=ALICE")
	if w.Code != http.StatusOK || body.Handle != "alice" || body.Handles == nil || len(body.Handles) != 0 {
		t.Errorf("unfollow: status=%d body=%s", w.Code, w.Body.String())
	}

	w, body = do(r, http.MethodDelete, "/api/v1/watch?user=alice")
	if w.Code != http.StatusNotFound || body.Error == nil || body.Error.Code != models.ErrCodeNotFound {
		t.Errorf("second unfollow: status=%d body=%+v", w.Code, body)
	}
}

func TestWatchRoutes_NoPosts(t *testing.T) {
	r, wl := newWatchRouter(t, testConfig(), &stubEngine{html: "<html><body></body></html>"})

	w, body := do(r, http.MethodPost, "/api/v1/watch?user=alice")
	if w.Code != http.StatusNotFound || body.Error == nil || body.Error.Code != models.ErrCodeNotFound {
		t.Errorf("status=%d body=%s", w.Code, w.Body.String())
	}
	if len(wl.List()) != 0 {
		t.Errorf("rejected follow was kept: %v", wl.List())
	}
}

func TestWatchRoutes_Protected(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.AuthConfig{Enabled: true, APIKeys: []string{"secret"}}
	r, _ := newWatchRouter(t, cfg, &stubEngine{html: profile(1)})

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete} {
		if w, _ := do(r, method, "/api/v1/watch?user=alice"); w.Code != http.StatusUnauthorized {
			t.Errorf("%s without key: status = %d", method, w.Code)
		}
	}
	if w, _ := do(r, http.MethodGet, "/api/v1/watch", "X-API-Key", "secret"); w.Code != http.StatusOK {
		t.Errorf("with key: status = %d", w.Code)
	}

	// Without a watcher the routes are not mounted.
	plain := newTestRouter(t, testConfig(), &stubEngine{html: profile(1)}, 0)
	if w := get(plain, "/api/v1/watch"); w.Code != http.StatusNotFound {
		t.Errorf("unmounted watch: status = %d", w.Code)
	}
}

func TestEmbedPage(t *testing.T) {
	r := newTestRouter(t, testConfig(), &stubEngine{}, 0)

	w := get(r, "/embed?title=%40nfl&name=NFL&handle=nfl&text=%3Cscript%3Ealert(1)%3C%2Fscript%3E"+
		"&image=https%3A%2F%2Fpbs.example%2Fposter.jpg&video=https%3A%2F%2Fvideo.example%2Ftd.mp4")
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("status=%d content-type=%q", w.Code, w.Header().Get("Content-Type"))
	}
	page := w.Body.String()
	for _, want := range []string{
		`<meta property="og:title" content="@nfl">`,
		`<meta property="og:image" content="https://pbs.example/poster.jpg">`,
		`<meta property="og:video" content="https://video.example/td.mp4">`,
		`<source src="https://video.example/td.mp4" type="video/mp4">`,
		`<h2>NFL (@nfl)</h2>`,
		`&lt;script&gt;alert(1)&lt;/script&gt;`,
	} {
		if !strings.Contains(page, want) {
			t.Errorf("page is missing %s\n%s", want, page)
		}
	}
	if strings.Contains(page, "<script>") {
		t.Error("text must be escaped")
	}
}

func TestEmbedPage_Defaults(t *testing.T) {
	r := newTestRouter(t, testConfig(), &stubEngine{}, 0)

	page := get(r, "/embed?image=https%3A%2F%2Fpbs.example%2F1.jpg&video=javascript%3Aalert(1)").Body.String()
	if !strings.Contains(page, "<title>Post</title>") || !strings.Contains(page, "<h2>User (@user)</h2>") {
		t.Errorf("defaults missing:\n%s", page)
	}
	if strings.Contains(page, "<video") || strings.Contains(page, "javascript") {
		t.Errorf("non-http video must be dropped:\n%s", page)
	}
	if !strings.Contains(page, `<img src="https://pbs.example/1.jpg"`) {
		t.Errorf("image fallback missing:\n%s", page)
	}
}
