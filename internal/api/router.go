package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/leozw/leadboard/internal/api/handlers"
	"github.com/leozw/leadboard/internal/api/middleware"
	"github.com/leozw/leadboard/internal/config"
	"github.com/leozw/leadboard/internal/dashboard"
	"github.com/leozw/leadboard/internal/metrics"
	"github.com/leozw/leadboard/internal/registry"
	"github.com/leozw/leadboard/internal/resolver"
)

type Server struct {
	Config   *config.Config
	Router   *gin.Engine
	Registry *registry.Registry
	Service  *dashboard.Service

	resolver  *resolver.Resolver
	collector *metrics.Collector
	logger    *zap.Logger
}

func NewServer(cfg *config.Config, reg *registry.Registry, res *resolver.Resolver, svc *dashboard.Service, collector *metrics.Collector, logger *zap.Logger) *Server {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics(collector))
	router.Use(middleware.CORS())

	server := &Server{
		Config:    cfg,
		Router:    router,
		Registry:  reg,
		Service:   svc,
		resolver:  res,
		collector: collector,
		logger:    logger,
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	h := handlers.NewHandler(s.Service, s.Registry, s.logger)

	// Health and scrape endpoints stay outside tenant resolution.
	s.Router.GET("/api/health", h.Health)
	s.Router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Tenant-scoped routes
	tenant := s.Router.Group("/api")
	tenant.Use(middleware.Domain(s.resolver, s.collector))
	if s.Config.RateLimit.Enabled {
		tenant.Use(middleware.RateLimit(s.Config.RateLimit.RPS, s.Config.RateLimit.Burst))
	}

	tenant.GET("/theme", h.Theme)

	dash := tenant.Group("/dashboard")
	{
		dash.GET("/overview", h.Overview)
		dash.GET("/time-series", h.TimeSeries)
		dash.GET("/channels", h.Channels)
		dash.GET("/hours", h.Hours)
		dash.GET("/top-cities", h.TopCities)
		dash.GET("/top-providers", h.TopProviders)
		dash.GET("/leads", h.Leads)
		dash.GET("/export/csv", h.ExportCSV)
	}

	// Admin routes operate on the whole registry, no tenant resolution.
	admin := s.Router.Group("/api/admin")
	{
		admin.GET("/domains", h.ListDomains)
		admin.GET("/domains/:domain/status", h.DomainStatus)
		admin.GET("/metrics", h.AdminMetrics)
		admin.POST("/reload", h.Reload)
		admin.POST("/cache/clear", h.CacheClear)
		admin.POST("/validate", h.Validate)
	}
}
