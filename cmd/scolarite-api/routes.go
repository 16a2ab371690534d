package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/scolarite-api/internal/handler"
	"github.com/noah-isme/scolarite-api/internal/middleware"
	"github.com/noah-isme/scolarite-api/internal/models"
	"github.com/noah-isme/scolarite-api/internal/service"
	"github.com/noah-isme/scolarite-api/pkg/config"
	"github.com/noah-isme/scolarite-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/scolarite-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/scolarite-api/pkg/middleware/requestid"
)

type routeDeps struct {
	validator middleware.TokenValidator
	metrics   *service.MetricsService
	auth      *handler.AuthHandler
	requests  *handler.RequestHandler
	unified   *handler.UnifiedHandler
	probes    *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", deps.probes.Health)
	r.GET("/ready", deps.probes.Ready)
	r.GET("/metrics", deps.probes.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", deps.auth.Login)
	auth.GET("/me", middleware.JWT(deps.validator), deps.auth.Me)

	requests := api.Group("/requests", middleware.JWT(deps.validator))

	staff := requests.Group("/unified", middleware.RequireRoles(models.RoleStaff))
	staff.GET("", deps.unified.List)
	staff.POST("/status", deps.unified.ChangeStatus)
	staff.GET("/search", deps.unified.Search)
	staff.GET("/stats", deps.unified.Stats)
	staff.GET("/export", deps.unified.Export)

	requests.POST("/:type", middleware.RequireRoles(models.RoleStudent), deps.requests.Create)
	requests.GET("/:type/mine", middleware.RequireRoles(models.RoleStudent), deps.requests.Mine)
	requests.GET("/:type/:id", middleware.RequireRoles(models.RoleStudent, models.RoleStaff), deps.requests.Get)

	return r
}
