package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable-sync/api/swagger"
	"github.com/noah-isme/sma-timetable-sync/internal/middleware"
	"github.com/noah-isme/sma-timetable-sync/internal/service"
	"github.com/noah-isme/sma-timetable-sync/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-sync/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-sync/pkg/middleware/requestid"
)

// RouterConfig collects the dependencies of the ops HTTP surface.
type RouterConfig struct {
	Logger         *zap.Logger
	Metrics        *service.MetricsService
	Health         *HealthHandler
	SyncJobs       *SyncJobHandler
	AllowedOrigins []string
	// EnableDocs serves the Swagger UI under /docs.
	EnableDocs bool
}

// NewRouter builds the gin engine serving health, metrics and job status.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(cfg.Logger))
	r.Use(middleware.Metrics(cfg.Metrics))
	r.Use(corsmiddleware.New(cfg.AllowedOrigins))

	r.GET("/health", cfg.Health.Health)
	r.GET("/ready", cfg.Health.Ready)
	r.GET("/metrics", cfg.Health.Prometheus)

	if cfg.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if cfg.SyncJobs != nil {
		jobs := r.Group("/sync/jobs")
		jobs.GET("", cfg.SyncJobs.List)
		jobs.GET("/:id", cfg.SyncJobs.Get)
	}

	return r
}
