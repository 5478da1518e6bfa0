package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/use-agent/xfeed/api/handler"
	"github.com/use-agent/xfeed/api/middleware"
	"github.com/use-agent/xfeed/config"
	"github.com/use-agent/xfeed/models"
)

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Fetcher    handler.Fetcher
	Cache      *handler.ResultCache
	Stats      func() models.PoolStats
	EngineName string
	StartTime  time.Time

	// Watch enables the /api/v1/watch routes when non-nil.
	Watch handler.Watchlist
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logging → Metrics
//	API:     Auth (if enabled) → RateLimit
//
// /tweets, /embed, /metrics and the health endpoint sit outside auth.
func NewRouter(cfg *config.Config, deps Deps) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logging())
	r.Use(middleware.Metrics())

	r.GET("/tweets", handler.Tweets(deps.Fetcher, deps.Cache))
	r.GET("/embed", handler.Embed())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(deps.Stats, deps.EngineName, deps.StartTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))
	protected.GET("/posts", handler.Posts(deps.Fetcher, deps.Cache))
	if deps.Watch != nil {
		protected.GET("/watch", handler.WatchList(deps.Watch))
		protected.POST("/watch", handler.WatchFollow(deps.Watch))
		protected.DELETE("/watch", handler.WatchUnfollow(deps.Watch))
	}

	return r
}
