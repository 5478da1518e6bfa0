// Package webhook delivers new posts as signed JSON events to an HTTP
// endpoint.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/use-agent/xfeed/metrics"
	"github.com/use-agent/xfeed/models"
)

// EventPostsNew is sent once per handle and poll with the new posts.
const EventPostsNew = "posts.new"

// SignatureHeader carries "sha256=<hex>" when a secret is configured.
const SignatureHeader = "X-Xfeed-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string               `json:"type"`
	Handle    string               `json:"handle"`
	Timestamp int64                `json:"timestamp"`
	Data      []models.ServicePost `json:"data"`
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Deliver sends a webhook event synchronously.
// The request body is signed with HMAC-SHA256 if secret is non-empty.
func Deliver(ctx context.Context, client *http.Client, url, secret string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Xfeed-Webhook/1.0")
	if secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(secret, body))
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Sink posts one Event per Notify call and retries failed deliveries.
type Sink struct {
	url    string
	secret string
	client *http.Client
	delays []time.Duration
	now    func() time.Time
}

// NewSink returns a Sink with up to 3 retries (1s, 5s, 30s apart).
func NewSink(url, secret string) *Sink {
	return &Sink{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		delays: []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second},
		now:    time.Now,
	}
}

// Name identifies the sink in logs and metrics.
func (s *Sink) Name() string { return "webhook" }

// Notify delivers posts for handle as a single event.
func (s *Sink) Notify(ctx context.Context, handle string, posts []models.PostRecord) error {
	event := &Event{
		Type:      EventPostsNew,
		Handle:    handle,
		Timestamp: s.now().Unix(),
		Data:      models.ToServicePosts(posts),
	}

	var err error
	for attempt, delay := range s.delays {
		if delay > 0 {
			select {
			case <-ctx.Done():
				metrics.ObserveNotification(s.Name(), ctx.Err())
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		err = Deliver(ctx, s.client, s.url, s.secret, event)
		if err == nil {
			slog.Info("webhook delivered",
				"url", s.url,
				"event", event.Type,
				"handle", handle,
				"posts", len(posts),
				"attempt", attempt+1,
			)
			break
		}
		slog.Warn("webhook delivery failed",
			"url", s.url,
			"event", event.Type,
			"handle", handle,
			"attempt", attempt+1,
			"error", err,
		)
	}
	metrics.ObserveNotification(s.Name(), err)
	if err != nil {
		return fmt.Errorf("webhook: exhausted %d attempts: %w", len(s.delays), err)
	}
	return nil
}
