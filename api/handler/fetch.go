package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/xfeed/cache"
	"github.com/use-agent/xfeed/extractor"
	"github.com/use-agent/xfeed/models"
	"github.com/use-agent/xfeed/timeline"
)

// Fetcher fetches and normalizes one profile. *timeline.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, handle string) (*timeline.Result, error)
	Policy() extractor.Policy
}

// ResultCache caches fetched profiles by handle and policy.
type ResultCache = cache.Cache[*timeline.Result]

// fetchCached serves handle from cc when possible. handle must already be
// normalized so equivalent spellings share an entry.
func fetchCached(ctx context.Context, f Fetcher, cc *ResultCache, handle string) (*timeline.Result, bool, error) {
	var key string
	if cc != nil {
		key = cache.Key(handle, f.Policy().Name)
		if res, hit := cc.Get(key); hit {
			return res, true, nil
		}
	}
	res, err := f.Fetch(ctx, handle)
	if err != nil {
		return nil, false, err
	}
	if cc != nil {
		cc.Set(key, res)
	}
	return res, false, nil
}

// respondError writes a failed PostsResponse with the status mapped from
// the error code.
func respondError(c *gin.Context, err error, timing models.TimingInfo) {
	var scrapeErr *models.ScrapeError
	if !errors.As(err, &scrapeErr) {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
	}

	c.JSON(mapErrorToStatus(scrapeErr), models.PostsResponse{
		Success: false,
		Posts:   []models.ServicePost{},
		Error:   scrapeErr.ToDetail(),
		Timing:  timing,
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation, models.ErrCodeProxy:
		return http.StatusBadGateway // 502
	case models.ErrCodeBrowserCrash:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeConflict:
		return http.StatusConflict // 409
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
