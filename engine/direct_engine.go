package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	tls "github.com/refraction-networking/utls"
	"golang.org/x/net/html"

	"github.com/use-agent/xfeed/models"
)

// DirectEngine fetches the profile page itself, without JavaScript, using a
// Chrome-like TLS fingerprint. Most of the time the site serves an app shell
// without posts; the engine then fails so a dispatcher can escalate.
type DirectEngine struct {
	client  *http.Client
	timeout time.Duration
}

// chromeH1Spec is a Chrome ClientHello with ALPN restricted to http/1.1,
// since http.Transport cannot speak h2 over a utls connection.
var chromeH1Spec = func() *tls.ClientHelloSpec {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return nil
	}
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	return &spec
}()

// NewDirectEngine creates a DirectEngine. A positive timeout caps every
// fetch independently of the request timeout.
func NewDirectEngine(timeout time.Duration) *DirectEngine {
	e := NewDirectEngineWithTransport(&http.Transport{
		DialTLSContext:    dialTLSChrome,
		ForceAttemptHTTP2: false,
	})
	e.timeout = timeout
	return e
}

// NewDirectEngineWithTransport creates a DirectEngine over rt.
func NewDirectEngineWithTransport(rt http.RoundTripper) *DirectEngine {
	return &DirectEngine{
		client: &http.Client{
			Transport: rt,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
	}
}

func dialTLSChrome(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	host, _, _ := net.SplitHostPort(addr)
	var tlsConn *tls.UConn
	if chromeH1Spec == nil {
		tlsConn = tls.UClient(conn, &tls.Config{ServerName: host, NextProtos: []string{"http/1.1"}}, tls.HelloGolang)
	} else {
		tlsConn = tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
		if err := tlsConn.ApplyPreset(chromeH1Spec); err != nil {
			conn.Close()
			return nil, fmt.Errorf("direct_engine: apply tls spec: %w", err)
		}
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

func (e *DirectEngine) Name() string { return "direct" }

func (e *DirectEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	ctx, cancel := withTimeout(ctx, req)
	defer cancel()
	if e.timeout > 0 {
		var cancelOwn context.CancelFunc
		ctx, cancelOwn = context.WithTimeout(ctx, e.timeout)
		defer cancelOwn()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("direct_engine: build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.5")
	httpReq.Header.Set("Accept-Encoding", "identity")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, models.NewScrapeError(models.ErrCodeTimeout, "direct fetch timed out", err)
		}
		return nil, models.NewScrapeError(models.ErrCodeNavigation, "direct fetch failed", err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp.Body)
	if errors.Is(err, errBodyTooLarge) {
		return nil, models.NewScrapeError(models.ErrCodeNavigation, "direct fetch body too large", err)
	}
	if err != nil {
		return nil, fmt.Errorf("direct_engine: read body: %w", err)
	}
	bodyStr := string(body)

	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode >= 400 || !isHTMLContentType(ct) {
		return nil, models.NewScrapeError(models.ErrCodeNavigation,
			fmt.Sprintf("direct fetch returned %d (content-type: %s)", resp.StatusCode, ct), nil)
	}
	container := req.WaitSelector
	if container == "" {
		container = "article"
	}
	if !containsTag(bodyStr, container) {
		return nil, models.NewScrapeError(models.ErrCodeNavigation,
			"direct fetch returned no rendered posts", nil)
	}

	return &FetchResult{
		HTML:       bodyStr,
		Title:      extractTitle(bodyStr),
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
		EngineName: e.Name(),
	}, nil
}

// isHTMLContentType returns true if the content-type header looks like HTML.
func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// containsTag reports whether the document has at least one start tag named
// tag. Only plain tag names are understood; anything else is treated as
// present so the pipeline decides.
func containsTag(htmlStr, tag string) bool {
	if strings.ContainsAny(tag, " .#[>:,") {
		return true
	}
	tokenizer := html.NewTokenizer(strings.NewReader(htmlStr))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.SelfClosingTagToken:
			if tn, _ := tokenizer.TagName(); string(tn) == tag {
				return true
			}
		}
	}
}

// extractTitle uses the Go HTML tokenizer to find the first <title> element.
func extractTitle(htmlStr string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(htmlStr))
	inTitle := false
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			if tn, _ := tokenizer.TagName(); string(tn) == "title" {
				inTitle = true
			}
		case html.TextToken:
			if inTitle {
				return strings.TrimSpace(string(tokenizer.Text()))
			}
		case html.EndTagToken:
			if inTitle {
				return ""
			}
		}
	}
}
