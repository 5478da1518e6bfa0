package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/xfeed/models"
	"github.com/use-agent/xfeed/timeline"
)

// Posts returns a handler for GET /api/v1/posts?user=<handle>.
//
// Unlike /tweets it reports typed errors, the engine that produced the
// markup, cache status and timing.
func Posts(f Fetcher, cc *ResultCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		handle, err := timeline.NormalizeHandle(c.Query("user"))
		if err != nil {
			respondError(c, err, models.TimingInfo{})
			return
		}

		res, hit, err := fetchCached(c.Request.Context(), f, cc, handle)
		if err != nil {
			respondError(c, err, models.TimingInfo{
				TotalMs: time.Since(totalStart).Milliseconds(),
			})
			return
		}

		resp := models.PostsResponse{
			Success:    true,
			Handle:     res.Handle,
			Posts:      models.ToServicePosts(res.Posts),
			Candidates: res.Candidates,
			Rejected:   res.Rejected,
			EngineUsed: res.EngineUsed,
			Timing: models.TimingInfo{
				TotalMs:   time.Since(totalStart).Milliseconds(),
				FetchMs:   res.FetchTime.Milliseconds(),
				ExtractMs: res.ExtractTime.Milliseconds(),
			},
		}
		if cc != nil && cc.TTL() > 0 {
			resp.CacheStatus = "miss"
			if hit {
				resp.CacheStatus = "hit"
				resp.Timing.FetchMs = 0
				resp.Timing.ExtractMs = 0
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}
