// Package notifier posts new posts to a Discord channel through a webhook.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"golang.org/x/time/rate"

	"github.com/use-agent/xfeed/extractor"
	"github.com/use-agent/xfeed/metrics"
	"github.com/use-agent/xfeed/models"
)

const (
	colorPost = 1942002 // #1DA1F2

	maxDescription = 2000
	maxAttempts    = 3
	footerText     = "Posted from X.com"
)

// Client sends one Discord embed per post.
type Client struct {
	webhookURL  string
	origin      string
	client      *http.Client
	rateLimiter *rate.Limiter
	conv        *converter.Converter
	retryDelay  time.Duration
	embedBase   string
}

// New returns a Client for webhookURL. Sends are spaced two per second.
func New(webhookURL string, opts ...Option) *Client {
	c := &Client{
		webhookURL:  webhookURL,
		origin:      extractor.DefaultOrigin,
		client:      &http.Client{Timeout: 10 * time.Second},
		rateLimiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
		retryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name identifies the sink in logs and metrics.
func (c *Client) Name() string { return "discord" }

// Notify sends posts in the given order. A failed post does not stop the
// remaining ones; all errors are joined.
func (c *Client) Notify(ctx context.Context, handle string, posts []models.PostRecord) error {
	var errs []error
	for _, p := range posts {
		err := c.Send(ctx, handle, p)
		metrics.ObserveNotification(c.Name(), err)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("discord notification failed", "handle", handle, "post", p.ID, "error", err)
			errs = append(errs, fmt.Errorf("post %s: %w", p.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Send posts a single embed for post.
func (c *Client) Send(ctx context.Context, handle string, post models.PostRecord) error {
	if c.webhookURL == "" {
		return nil
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(discordWebhookPayload{
		Content: c.embedLink(handle, post),
		Embeds:  []discordEmbed{c.formatPostToEmbed(handle, post)},
	})
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		retryAfter, err := c.post(ctx, payload)
		if err == nil {
			return nil
		}
		lastErr = err
		if retryAfter < 0 || attempt == maxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryAfter):
		}
	}
	return lastErr
}

// post performs one delivery. A non-negative delay means the failure is
// worth retrying after that long.
func (c *Client) post(ctx context.Context, payload []byte) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return -1, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return c.retryDelay, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return 0, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err = fmt.Errorf("discord status: %s, body: %s", resp.Status, body)
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if secs, perr := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64); perr == nil && secs >= 0 {
			return min(time.Duration(secs*float64(time.Second)), 30*time.Second), err
		}
		return c.retryDelay, err
	case resp.StatusCode >= 500:
		return c.retryDelay, err
	default:
		return -1, err
	}
}

type discordWebhookPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds"`
}

type discordEmbedAuthor struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

type discordEmbedImage struct {
	URL string `json:"url"`
}

type discordEmbedFooter struct {
	Text string `json:"text,omitempty"`
}

type discordEmbed struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	URL         string              `json:"url,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Author      *discordEmbedAuthor `json:"author,omitempty"`
	Image       *discordEmbedImage  `json:"image,omitempty"`
	Footer      discordEmbedFooter  `json:"footer,omitempty"`
}

func (c *Client) formatPostToEmbed(handle string, post models.PostRecord) discordEmbed {
	embed := discordEmbed{
		Title:       "New post from @" + handle,
		Description: c.describe(post),
		URL:         post.URL,
		Color:       colorPost,
		Author:      &discordEmbedAuthor{Name: "@" + handle, URL: c.origin + "/" + handle},
		Footer:      discordEmbedFooter{Text: footerText},
	}
	if post.Timestamp != nil {
		embed.Timestamp = post.Timestamp.UTC().Format(time.RFC3339)
	}
	if image, _ := splitMedia(post.Media); image != "" {
		embed.Image = &discordEmbedImage{URL: image}
	}
	return embed
}

// describe prefers markdown rendered from the post markup so links and
// line breaks survive, and falls back to the plain text.
func (c *Client) describe(post models.PostRecord) string {
	desc := post.Text
	if post.TextHTML != "" {
		md, err := c.conv.ConvertString(post.TextHTML, converter.WithDomain(c.origin))
		if err == nil && strings.TrimSpace(md) != "" {
			desc = strings.TrimSpace(md)
		}
	}
	return truncate(desc, maxDescription)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
