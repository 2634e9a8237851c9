package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/lessonsync-api/internal/middleware"
	"github.com/noah-isme/lessonsync-api/internal/models"
	"github.com/noah-isme/lessonsync-api/pkg/config"
	"github.com/noah-isme/lessonsync-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lessonsync-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lessonsync-api/pkg/middleware/requestid"
)

// RouterDeps bundles everything the HTTP surface needs.
type RouterDeps struct {
	Config        *config.Config
	Logger        *zap.Logger
	Tokens        middleware.TokenValidator
	RequestMetric middleware.RequestObserver

	Auth         *AuthHandler
	Series       *SeriesHandler
	Changes      *ChangeHandler
	Availability *AvailabilityHandler
	Schedule     *ScheduleHandler
	Metrics      *MetricsHandler
}

// NewRouter registers every route on a fresh gin engine.
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger, "/health", "/ready", "/metrics"))
	r.Use(middleware.Metrics(deps.RequestMetric))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", deps.Metrics.Health)
	r.GET("/ready", deps.Metrics.Ready)
	r.GET("/metrics", deps.Metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	v1 := r.Group(cfg.APIPrefix)

	// Signed links authenticate themselves.
	v1.POST("/votes/:token", deps.Changes.VoteByLink)

	authenticated := v1.Group("")
	authenticated.Use(middleware.JWT(deps.Tokens))

	authenticated.GET("/auth/me", deps.Auth.Me)

	series := authenticated.Group("/series")
	{
		series.GET("", deps.Series.List)
		series.GET("/:id/status", deps.Series.Status)
		series.GET("/:id/occurrences", deps.Series.Occurrences)
		series.GET("/:id/eligibility", deps.Series.Eligibility)
		series.GET("/:id/slots", deps.Series.Slots)

		managers := series.Group("")
		managers.Use(middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin))
		managers.DELETE("/:id/overrides/:date", deps.Series.Restore)
	}
	authenticated.GET("/overrides", deps.Series.Overrides)

	changes := authenticated.Group("/changes")
	{
		changes.POST("", deps.Changes.Submit)
		changes.GET("/pending", deps.Changes.Pending)
		changes.POST("/:id/votes", deps.Changes.Vote)
	}

	availability := authenticated.Group("/availability")
	availability.Use(middleware.RequireRoles(models.RoleTeacher))
	{
		availability.GET("", deps.Availability.List)
		availability.PUT("", deps.Availability.Set)
		availability.DELETE("/:date", deps.Availability.Remove)
	}

	schedule := authenticated.Group("/schedule")
	{
		schedule.GET("/weekly", deps.Schedule.Weekly)
		schedule.GET("/weekly/export", deps.Schedule.Export)
	}

	admin := authenticated.Group("")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	{
		admin.POST("/auth/tokens", deps.Auth.Issue)
		admin.POST("/admin/requests/expire", deps.Changes.ExpireRequests)
	}

	return r
}
