package notifier

import (
	"net/url"
	"path"
	"strings"

	"github.com/use-agent/xfeed/models"
)

const (
	maxContent   = 2000
	maxEmbedText = 280
)

// Option configures a Client.
type Option func(*Client)

// WithEmbedPage makes the client link posts that carry a video to the
// preview page served at base (the server's GET /embed), so the channel
// gets a playable preview.
func WithEmbedPage(base string) Option {
	return func(c *Client) { c.embedBase = strings.TrimRight(base, "/") }
}

// isVideo reports whether a media source is a video file or stream.
func isVideo(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if strings.HasPrefix(u.Host, "video.") {
		return true
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".mp4", ".m3u8", ".webm", ".mov":
		return true
	}
	return false
}

// splitMedia returns the first still image and the first video of media.
func splitMedia(media []string) (image, video string) {
	for _, m := range media {
		if isVideo(m) {
			if video == "" {
				video = m
			}
		} else if image == "" {
			image = m
		}
	}
	return image, video
}

// embedLink returns the preview page URL for post, or "" when no page is
// configured or the post has no video.
func (c *Client) embedLink(handle string, post models.PostRecord) string {
	image, video := splitMedia(post.Media)
	if c.embedBase == "" || video == "" {
		return ""
	}
	q := url.Values{}
	q.Set("title", "@"+handle)
	q.Set("name", handle)
	q.Set("handle", handle)
	q.Set("video", video)
	if image != "" {
		q.Set("image", image)
	}
	q.Set("text", truncate(post.Text, maxEmbedText))
	link := c.embedBase + "/embed?" + q.Encode()
	if len(link) > maxContent {
		q.Del("text")
		link = c.embedBase + "/embed?" + q.Encode()
	}
	return link
}
