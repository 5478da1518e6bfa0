package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/xfeed/models"
	"github.com/use-agent/xfeed/timeline"
)

// Response bodies of GET /tweets. Clients match on these strings.
const (
	msgMissingUser   = "Missing ?user="
	msgInvalidUser   = "Invalid ?user="
	msgScrapeFailure = "Failed to scrape tweets"
)

// Tweets returns a handler for GET /tweets?user=<handle>.
//
// 400 for a missing or malformed handle, 500 with a fixed message for any
// other failure (the cause is only logged), 200 with {"tweets": [...]}
// otherwise.
func Tweets(f Fetcher, cc *ResultCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Query("user")
		if strings.TrimSpace(raw) == "" {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msgMissingUser})
			return
		}
		handle, err := timeline.NormalizeHandle(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msgInvalidUser})
			return
		}

		res, _, err := fetchCached(c.Request.Context(), f, cc, handle)
		if err != nil {
			slog.Error("tweets request failed", "user", handle, "error", err)
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: msgScrapeFailure})
			return
		}

		c.JSON(http.StatusOK, models.TweetsResponse{Tweets: models.ToServicePosts(res.Posts)})
	}
}
