package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/xfeed/models"
	"github.com/use-agent/xfeed/watcher"
)

// Watchlist is the runtime follow list. *watcher.Watcher implements it.
type Watchlist interface {
	Follow(ctx context.Context, raw string) (watcher.Followed, error)
	Unfollow(raw string) (string, error)
	List() []string
}

// WatchList returns a handler for GET /api/v1/watch.
func WatchList(wl Watchlist) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.WatchResponse{Success: true, Handles: handlesOf(wl)})
	}
}

// WatchFollow returns a handler for POST /api/v1/watch?user=<handle>.
func WatchFollow(wl Watchlist) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, err := wl.Follow(c.Request.Context(), c.Query("user"))
		if err != nil {
			respondWatchError(c, wl, err)
			return
		}
		c.JSON(http.StatusCreated, models.WatchResponse{
			Success: true,
			Handle:  f.Handle,
			Found:   f.Found,
			Cursor:  strconv.FormatUint(f.Cursor, 10),
			Handles: handlesOf(wl),
		})
	}
}

// WatchUnfollow returns a handler for DELETE /api/v1/watch?user=<handle>.
func WatchUnfollow(wl Watchlist) gin.HandlerFunc {
	return func(c *gin.Context) {
		handle, err := wl.Unfollow(c.Query("user"))
		if err != nil {
			respondWatchError(c, wl, err)
			return
		}
		c.JSON(http.StatusOK, models.WatchResponse{Success: true, Handle: handle, Handles: handlesOf(wl)})
	}
}

func respondWatchError(c *gin.Context, wl Watchlist, err error) {
	var scrapeErr *models.ScrapeError
	if !errors.As(err, &scrapeErr) {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
	}
	c.JSON(mapErrorToStatus(scrapeErr), models.WatchResponse{
		Handles: handlesOf(wl),
		Error:   scrapeErr.ToDetail(),
	})
}

func handlesOf(wl Watchlist) []string {
	if h := wl.List(); h != nil {
		return h
	}
	return []string{}
}
