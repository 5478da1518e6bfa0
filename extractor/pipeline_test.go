package extractor

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/html"
)

var fixedNow = time.Date(2025, 1, 2, 3, 4, 5, 678_000_000, time.UTC)

func opts(p Policy) Options {
	o := NewOptions(p)
	o.Now = func() time.Time { return fixedNow }
	return o
}

// post renders one post container. Empty arguments leave the element out.
func post(href, text, datetime string) string {
	var b strings.Builder
	b.WriteString("<article>")
	if href != "" {
		fmt.Fprintf(&b, `<a href="%s">permalink</a>`, href)
	}
	if text != "-" {
		fmt.Fprintf(&b, `<div data-testid="tweetText">%s</div>`, text)
	}
	if datetime != "" {
		fmt.Fprintf(&b, `<time datetime="%s">1h</time>`, datetime)
	}
	b.WriteString("</article>")
	return b.String()
}

func page(posts ...string) string {
	return "<html><body><main>" + strings.Join(posts, "\n") + "</main></body></html>"
}

func mustRun(t *testing.T, markup string, o Options) *Result {
	t.Helper()
	res, err := Run(markup, o)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return res
}

func TestRun_SinglePostWithoutTime(t *testing.T) {
	markup := page(post("/alice/status/12345", "hello", ""))

	t.Run("browser stamps now", func(t *testing.T) {
		res := mustRun(t, markup, opts(BrowserPolicy))
		if len(res.Posts) != 1 {
			t.Fatalf("expected 1 post, got %d", len(res.Posts))
		}
		p := res.Posts[0]
		if p.ID != "12345" || p.Text != "hello" {
			t.Errorf("unexpected record: %+v", p)
		}
		if p.URL != "https://x.com/alice/status/12345" {
			t.Errorf("url = %q", p.URL)
		}
		if got := p.FormatTimestamp(); got != "2025-01-02T03:04:05.678Z" {
			t.Errorf("timestamp = %q, want generated now", got)
		}
	})

	t.Run("proxy leaves timestamp null", func(t *testing.T) {
		res := mustRun(t, markup, opts(ProxyPolicy))
		if len(res.Posts) != 1 {
			t.Fatalf("expected 1 post, got %d", len(res.Posts))
		}
		if res.Posts[0].Timestamp != nil {
			t.Errorf("expected nil timestamp, got %v", res.Posts[0].Timestamp)
		}
	})
}

func TestRun_NoStatusLink(t *testing.T) {
	markup := page(`<article><a href="/alice">profile</a><div data-testid="tweetText">hello</div></article>`)
	for _, p := range []Policy{BrowserPolicy, ProxyPolicy} {
		t.Run(p.Name, func(t *testing.T) {
			res := mustRun(t, markup, opts(p))
			if len(res.Posts) != 0 {
				t.Errorf("expected no posts, got %+v", res.Posts)
			}
			if res.Candidates != 1 || res.Rejected != 1 {
				t.Errorf("candidates=%d rejected=%d, want 1/1", res.Candidates, res.Rejected)
			}
		})
	}
}

func TestRun_EmptyText(t *testing.T) {
	tests := []struct {
		name   string
		markup string
	}{
		{"empty text region", page(post("/alice/status/77", "", ""))},
		{"missing text region", page(post("/alice/status/77", "-", ""))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if res := mustRun(t, tt.markup, opts(BrowserPolicy)); len(res.Posts) != 0 {
				t.Errorf("browser policy kept empty-text post: %+v", res.Posts)
			}
			res := mustRun(t, tt.markup, opts(ProxyPolicy))
			if len(res.Posts) != 1 {
				t.Fatalf("proxy policy: expected 1 post, got %d", len(res.Posts))
			}
			if res.Posts[0].Text != "" {
				t.Errorf("text = %q, want empty", res.Posts[0].Text)
			}
		})
	}
}

func TestRun_DuplicateIDsKeepFirst(t *testing.T) {
	markup := page(
		post("/alice/status/1", "pinned", ""),
		post("/alice/status/2", "second", ""),
		post("/alice/status/1", "organic", ""),
	)
	res := mustRun(t, markup, opts(BrowserPolicy))
	if len(res.Posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(res.Posts))
	}
	if res.Posts[0].ID != "1" || res.Posts[0].Text != "pinned" {
		t.Errorf("first record = %+v, want pinned id 1", res.Posts[0])
	}
	if res.Posts[1].ID != "2" {
		t.Errorf("second record id = %s, want 2", res.Posts[1].ID)
	}
}

func TestRun_CapAndOrder(t *testing.T) {
	var posts []string
	for i := 30; i > 0; i-- {
		// Timestamps increase while ids decrease so any re-sorting shows.
		ts := fixedNow.Add(time.Duration(30-i) * time.Minute).Format(time.RFC3339)
		posts = append(posts, post(fmt.Sprintf("/alice/status/%d", i), fmt.Sprintf("post %d", i), ts))
	}
	markup := page(posts...)

	for _, p := range []Policy{BrowserPolicy, ProxyPolicy, BrowserPolicy.WithMax(3)} {
		t.Run(fmt.Sprintf("%s/%d", p.Name, p.MaxPosts), func(t *testing.T) {
			res := mustRun(t, markup, opts(p))
			if len(res.Posts) != p.MaxPosts {
				t.Fatalf("expected %d posts, got %d", p.MaxPosts, len(res.Posts))
			}
			for i, rec := range res.Posts {
				if want := fmt.Sprint(30 - i); rec.ID != want {
					t.Errorf("position %d: id %s, want %s", i, rec.ID, want)
				}
			}
		})
	}
}

func TestRun_Idempotent(t *testing.T) {
	markup := page(
		post("/alice/status/10", "a", "2024-05-01T10:00:00.000Z"),
		post("/alice/status/11", "b", ""),
		post("/alice/status/10", "dup", ""),
	)
	for _, p := range []Policy{BrowserPolicy, ProxyPolicy} {
		first := mustRun(t, markup, opts(p))
		second := mustRun(t, markup, opts(p))
		a, _ := json.Marshal(first.Posts)
		b, _ := json.Marshal(second.Posts)
		if string(a) != string(b) {
			t.Errorf("%s: runs differ:\n%s\n%s", p.Name, a, b)
		}
	}
}

func TestRun_IDAppearsInURL(t *testing.T) {
	markup := page(
		post("/alice/status/101?s=20", "query", ""),
		post("https://x.com/bob/status/202", "absolute", ""),
		post("/carol/status/303/photo/1", "photo", ""),
		post("/dave/status/notanumber", "bad", ""),
	)
	res := mustRun(t, markup, opts(ProxyPolicy))
	if len(res.Posts) != 3 {
		t.Fatalf("expected 3 posts, got %d", len(res.Posts))
	}
	for _, p := range res.Posts {
		if p.ID == "" || strings.Trim(p.ID, "0123456789") != "" {
			t.Errorf("id %q is not numeric", p.ID)
		}
		if !strings.Contains(p.URL, p.ID) {
			t.Errorf("url %q does not contain id %q", p.URL, p.ID)
		}
	}
	if got := res.Posts[1].URL; got != "https://x.com/bob/status/202" {
		t.Errorf("absolute href rewritten to %q", got)
	}
	if got := res.Posts[0].URL; got != "https://x.com/alice/status/101?s=20" {
		t.Errorf("relative href resolved to %q", got)
	}
}

func TestRun_Timestamps(t *testing.T) {
	tests := []struct {
		name     string
		datetime string
		policy   Policy
		want     string
	}{
		{"canonical", "2024-03-04T05:06:07.000Z", ProxyPolicy, "2024-03-04T05:06:07.000Z"},
		{"offset converted to utc", "2024-03-04T07:06:07+02:00", ProxyPolicy, "2024-03-04T05:06:07.000Z"},
		{"malformed on proxy is null", "yesterday", ProxyPolicy, ""},
		{"malformed on browser is stamped", "yesterday", BrowserPolicy, "2025-01-02T03:04:05.678Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := mustRun(t, page(post("/alice/status/5", "t", tt.datetime)), opts(tt.policy))
			if len(res.Posts) != 1 {
				t.Fatalf("expected 1 post, got %d", len(res.Posts))
			}
			if got := res.Posts[0].FormatTimestamp(); got != tt.want {
				t.Errorf("timestamp = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRun_MediaInDocumentOrder(t *testing.T) {
	markup := page(`<article>
		<a href="/alice/status/9">x</a>
		<div data-testid="tweetText">media</div>
		<img src="https://pbs.example/a.jpg">
		<video src="https://video.example/b.mp4"></video>
		<img>
		<img src="https://pbs.example/a.jpg">
	</article>`)
	res := mustRun(t, markup, opts(ProxyPolicy))
	if len(res.Posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(res.Posts))
	}
	want := []string{"https://pbs.example/a.jpg", "https://video.example/b.mp4", "https://pbs.example/a.jpg"}
	if !reflect.DeepEqual(res.Posts[0].Media, want) {
		t.Errorf("media = %v, want %v", res.Posts[0].Media, want)
	}
}

func TestRun_InnerText(t *testing.T) {
	markup := page(post("/alice/status/3",
		`<span>line one</span><br><span>line </span><img alt="🙂" src="e.svg"><span> two</span>`, ""))
	res := mustRun(t, markup, opts(BrowserPolicy))
	if len(res.Posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(res.Posts))
	}
	if got, want := res.Posts[0].Text, "line one\nline 🙂 two"; got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
	if !strings.Contains(res.Posts[0].TextHTML, "<br/>") {
		t.Errorf("text html not kept: %q", res.Posts[0].TextHTML)
	}
}

func TestRun_EmptyDocument(t *testing.T) {
	res := mustRun(t, "", opts(BrowserPolicy))
	if res.Posts == nil || len(res.Posts) != 0 {
		t.Errorf("expected empty non-nil result set, got %#v", res.Posts)
	}
}

func TestAssemble(t *testing.T) {
	res := mustRun(t, page(
		post("/a/status/1", "a", ""),
		post("/a/status/2", "b", ""),
		post("/a/status/1", "c", ""),
		post("/a/status/3", "d", ""),
	), opts(ProxyPolicy.WithMax(0)))
	if len(res.Posts) != 3 {
		t.Fatalf("uncapped: expected 3 posts, got %d", len(res.Posts))
	}
	capped := Assemble(res.Posts, 2)
	if len(capped) != 2 || capped[0].ID != "1" || capped[1].ID != "2" {
		t.Errorf("capped = %+v", capped)
	}
	if got := Assemble(nil, 10); got == nil || len(got) != 0 {
		t.Errorf("Assemble(nil) = %#v", got)
	}
}

func TestInnerText_Whitespace(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   string
	}{
		{"source indentation", "<div>\n <span>hello</span>\n <span>world</span></div>", "hello world"},
		{"adjacent spans join", "<span>hel</span><span>lo</span>", "hello"},
		{"runs collapse", "a \t\t b\n\nc", "a b c"},
		{"br trims around", "one   <br>   two", "one\ntwo"},
		{"blocks", "<p> first </p><p>second</p>", "first\nsecond"},
		{"emoji alt", `hi <img alt="🎉" src="x.svg">!`, "hi 🎉!"},
		{"script skipped", "<span>a</span><script>var x = 1</script><span> b</span>", "a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := html.Parse(strings.NewReader(tt.markup))
			if err != nil {
				t.Fatal(err)
			}
			if got := innerText(doc); got != tt.want {
				t.Errorf("innerText = %q, want %q", got, tt.want)
			}
		})
	}
}
