package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/use-agent/xfeed/models"
)

// maxBody caps every response body an engine reads.
const maxBody = 10 << 20

// errBodyTooLarge rejects a body over maxBody instead of parsing a prefix.
var errBodyTooLarge = fmt.Errorf("response body exceeds %d bytes", maxBody)

func readBody(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxBody+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxBody {
		return nil, errBodyTooLarge
	}
	return body, nil
}

// ProxyOptions configures a ProxyEngine.
type ProxyOptions struct {
	// BaseURL is the rendering proxy endpoint.
	BaseURL string

	// APIKey is sent as the apikey query parameter.
	APIKey string

	// Params are extra "key=value" query parameters, e.g. "js_render=true".
	Params []string

	// Client defaults to a plain http.Client.
	Client *http.Client
}

// ProxyEngine asks a third-party rendering service to load the profile in
// its own browser and return the resulting HTML.
type ProxyEngine struct {
	base   *url.URL
	apiKey string
	params url.Values
	client *http.Client
}

// NewProxyEngine validates opts and returns a ProxyEngine.
func NewProxyEngine(opts ProxyOptions) (*ProxyEngine, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("proxy_engine: invalid base url %q", opts.BaseURL)
	}
	params := url.Values{}
	for _, kv := range opts.Params {
		k, v, _ := strings.Cut(kv, "=")
		if k = strings.TrimSpace(k); k != "" {
			params.Set(k, strings.TrimSpace(v))
		}
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	return &ProxyEngine{base: base, apiKey: opts.APIKey, params: params, client: client}, nil
}

func (e *ProxyEngine) Name() string { return "proxy" }

func (e *ProxyEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if e.apiKey == "" {
		return nil, models.NewScrapeError(models.ErrCodeProxy, "rendering proxy API key is not configured", nil)
	}
	ctx, cancel := withTimeout(ctx, req)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, e.requestURL(req), nil)
	if err != nil {
		return nil, fmt.Errorf("proxy_engine: build request: %w", err)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, models.NewScrapeError(models.ErrCodeTimeout, "rendering proxy timed out", err)
		}
		return nil, models.NewScrapeError(models.ErrCodeProxy, "rendering proxy unreachable", err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp.Body)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeProxy, "reading rendering proxy response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, models.NewScrapeError(models.ErrCodeProxy,
			fmt.Sprintf("rendering proxy returned %d", resp.StatusCode), errors.New(snippet))
	}

	bodyStr := string(body)
	return &FetchResult{
		HTML:       bodyStr,
		Title:      extractTitle(bodyStr),
		StatusCode: resp.StatusCode,
		FinalURL:   req.URL,
		EngineName: e.Name(),
	}, nil
}

// requestURL builds <base>?apikey=..&url=..&wait_for=..&<params>.
func (e *ProxyEngine) requestURL(req *FetchRequest) string {
	q := e.base.Query()
	for k, vs := range e.params {
		q[k] = vs
	}
	q.Set("apikey", e.apiKey)
	q.Set("url", req.URL)
	if req.WaitSelector != "" && q.Get("wait_for") == "" {
		q.Set("wait_for", req.WaitSelector)
	}
	u := *e.base
	u.RawQuery = q.Encode()
	return u.String()
}
