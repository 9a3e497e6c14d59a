// Package http exposes the resolver over HTTP with gin.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/substance-resolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/substance-resolver/internal/interfaces/http/handlers"
	"github.com/turtacn/substance-resolver/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and middleware dependencies.
type RouterConfig struct {
	ResolutionHandler *handlers.ResolutionHandler
	InsightsHandler   *handlers.InsightsHandler
	HealthHandler     *handlers.HealthHandler

	Logger         logging.Logger
	Logging        middleware.LoggingConfig
	CORSOrigins    []string
	RateLimit      middleware.RateLimitConfig
	Recorder       middleware.RequestRecorder
	MetricsHandler http.Handler
	MetricsPath    string
}

// NewRouter builds the route tree. Nil handlers leave their routes unmounted.
func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.Recovery(log))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.RateLimit(cfg.RateLimit))
	r.Use(middleware.RequestLogging(log, cfg.Logging))
	if cfg.Recorder != nil {
		r.Use(middleware.Metrics(cfg.Recorder))
	}

	if h := cfg.HealthHandler; h != nil {
		r.GET("/healthz", h.Liveness)
		r.GET("/readyz", h.Readiness)
		r.GET("/health", h.Detailed)
	}
	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(cfg.MetricsHandler))
	}
	if h := cfg.ResolutionHandler; h != nil {
		r.GET("/match", h.Match)
		r.GET("/synonyms_lookup", h.SynonymsLookup)
	}
	if h := cfg.InsightsHandler; h != nil {
		r.GET("/synonyms", h.Synonyms)
	}
	return r
}
