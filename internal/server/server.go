package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/replenish/internal/cache"
	"github.com/smallbiznis/replenish/internal/config"
	dimensiondomain "github.com/smallbiznis/replenish/internal/dimension/domain"
	ingestdomain "github.com/smallbiznis/replenish/internal/ingest/domain"
	"github.com/smallbiznis/replenish/internal/observability"
	obsmiddleware "github.com/smallbiznis/replenish/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/replenish/internal/observability/metrics"
	obstracing "github.com/smallbiznis/replenish/internal/observability/tracing"
	orderdomain "github.com/smallbiznis/replenish/internal/order/domain"
	"github.com/smallbiznis/replenish/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) {
		s.RegisterAPIRoutes()
		s.RegisterAdminRoutes()
	}),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
		QuietRoutes:     []string{"/health", "/metrics"},
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// RunHTTP binds the engine to cfg.HTTPAddr for the lifetime of the fx app.
// It must be invoked after the dimension warmup hook so traffic is only
// accepted once the cache is loaded.
func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	db           *gorm.DB
	log          *zap.Logger
	ingestSvc    ingestdomain.Service
	orderSvc     orderdomain.Service
	dimensionSvc dimensiondomain.Service
	cache        *cache.DimensionCache
	obsMetrics   *obsmetrics.Metrics
	bulkLimiter  *ratelimit.BulkIngestLimiter
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	DB           *gorm.DB
	Log          *zap.Logger
	IngestSvc    ingestdomain.Service
	OrderSvc     orderdomain.Service
	DimensionSvc dimensiondomain.Service
	Cache        *cache.DimensionCache
	ObsMetrics   *obsmetrics.Metrics           `optional:"true"`
	BulkLimiter  *ratelimit.BulkIngestLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		db:           p.DB,
		log:          p.Log.Named("http.server"),
		ingestSvc:    p.IngestSvc,
		orderSvc:     p.OrderSvc,
		dimensionSvc: p.DimensionSvc,
		cache:        p.Cache,
		obsMetrics:   p.ObsMetrics,
		bulkLimiter:  p.BulkLimiter,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterAPIRoutes() {
	s.engine.GET("/health", s.Health)

	// -------- Orders --------
	orders := s.engine.Group("/orders")
	orders.POST("/bulk", s.BulkIngestRateLimit(), s.BulkIngestOrders)
	orders.GET("/stats", s.GetOrderStats)
	orders.GET("", s.ListOrders)
	orders.POST("", s.CreateOrder)
	orders.GET("/:id", s.GetOrderByID)
	orders.PUT("/:id", s.UpdateOrder)
	orders.DELETE("/:id", s.DeleteOrder)

	// -------- Dimensions --------
	s.engine.GET("/locations", s.ListLocations)
	s.engine.GET("/products", s.ListProducts)
}

func (s *Server) RegisterAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.POST("/dimensions/refresh", s.RefreshDimensions)
}
