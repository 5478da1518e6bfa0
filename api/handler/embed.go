package handler

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
)

var embedPage = template.Must(template.New("embed").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<meta property="og:title" content="{{.Title}}">
<meta property="og:description" content="{{.Text}}">
{{- if .Image}}
<meta property="og:image" content="{{.Image}}">
{{- end}}
{{- if .Video}}
<meta property="og:type" content="video.other">
<meta property="og:video" content="{{.Video}}">
<meta property="og:video:type" content="video/mp4">
{{- end}}
<title>{{.Title}}</title>
</head>
<body style="background:#0f1419;color:white;font-family:sans-serif;padding:20px;">
<h2>{{.Name}} (@{{.Handle}})</h2>
<p style="white-space:pre-wrap;">{{.Text}}</p>
{{- if .Video}}
<video controls autoplay muted style="width:100%;border-radius:12px;"{{if .Image}} poster="{{.Image}}"{{end}}>
  <source src="{{.Video}}" type="video/mp4">
</video>
{{- else if .Image}}
<img src="{{.Image}}" style="width:100%;border-radius:12px;">
{{- end}}
</body>
</html>
`))

type embedData struct {
	Title, Text, Name, Handle string
	Image, Video              string
}

// Embed returns a handler for GET /embed, a preview page carrying OpenGraph
// tags so chat clients can unfurl a post with its video.
//
// Query: title, text, name, handle, image, video. Media parameters that are
// not absolute http(s) URLs are ignored.
func Embed() gin.HandlerFunc {
	return func(c *gin.Context) {
		data := embedData{
			Title:  c.DefaultQuery("title", "Post"),
			Text:   c.Query("text"),
			Name:   c.DefaultQuery("name", "User"),
			Handle: c.DefaultQuery("handle", "user"),
			Image:  mediaURL(c.Query("image")),
			Video:  mediaURL(c.Query("video")),
		}

		var buf bytes.Buffer
		if err := embedPage.Execute(&buf, data); err != nil {
			slog.Error("embed render failed", "error", err)
			c.String(http.StatusInternalServerError, "render failed")
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
	}
}

func mediaURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	return u.String()
}
