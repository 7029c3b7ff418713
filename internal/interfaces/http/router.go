// Package http assembles the gin router and the HTTP server lifecycle.
package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mapplot/customer-atlas/internal/application/mapview"
	"github.com/mapplot/customer-atlas/internal/config"
	"github.com/mapplot/customer-atlas/internal/infrastructure/monitoring/logging"
	prommetrics "github.com/mapplot/customer-atlas/internal/infrastructure/monitoring/prometheus"
	"github.com/mapplot/customer-atlas/internal/interfaces/http/handlers"
	"github.com/mapplot/customer-atlas/internal/interfaces/http/middleware"
)

// RouterDeps carries everything the router needs.
type RouterDeps struct {
	Service  *mapview.Service
	Metrics  *prommetrics.Metrics
	Registry *prometheus.Registry
	Logger   logging.Logger
	Checkers []handlers.HealthChecker
}

// NewRouter builds the gin engine with the full middleware chain and all
// routes mounted.
func NewRouter(cfg config.ServerConfig, deps RouterDeps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	gin.SetMode(ginMode(cfg.Mode))

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Recovery(deps.Logger),
		middleware.RequestLogging(deps.Logger, deps.Metrics),
	)

	health := handlers.NewHealthHandler(deps.Checkers...)
	r.GET("/healthz", health.Liveness)
	r.GET("/readyz", health.Readiness)

	if deps.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	mv := handlers.NewMapViewHandler(deps.Service, deps.Logger)
	mv.RegisterRoutes(r.Group("/api/v1/map"))

	return r
}

func ginMode(mode string) string {
	switch mode {
	case "debug":
		return gin.DebugMode
	case "test":
		return gin.TestMode
	default:
		return gin.ReleaseMode
	}
}
