package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"

	"geolynx/internal/api/handlers"
	"geolynx/internal/metrics"
)

type Config struct {
	MetricsEnabled    bool
	TrustForwardedFor bool
}

// Services are the collaborators behind the HTTP routes.
type Services struct {
	Metadata  handlers.MetadataService
	Cache     handlers.CacheService
	Databases handlers.DatabaseLister
	System    *handlers.SystemHandler
}

// New builds the gin engine with every route registered.
func New(cfg Config, services Services, logger *pterm.Logger) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), AccessLog(logger))

	ipHandler := handlers.NewIPHandler(services.Metadata, logger, cfg.TrustForwardedFor)
	systemHandler := services.System
	if systemHandler == nil {
		systemHandler = handlers.NewSystemHandler(services.Cache, services.Databases, nil, logger)
	}

	engine.GET("/health", systemHandler.Health)

	api := engine.Group("/api")
	{
		api.GET("/ip", ipHandler.GetCallerMetadata)
		api.GET("/ip/:ip", ipHandler.GetMetadata)
		api.GET("/cache/stats", systemHandler.GetCacheStats)
		api.DELETE("/cache", systemHandler.PurgeCache)
	}

	if cfg.MetricsEnabled {
		engine.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	return engine
}

// AccessLog logs each request at debug level and server errors at error level.
func AccessLog(logger *pterm.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		args := logger.Args(
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"client", c.ClientIP(),
		)
		if c.Writer.Status() >= 500 {
			logger.Error("HTTP request failed", args)
			return
		}
		logger.Debug("HTTP request", args)
	}
}
