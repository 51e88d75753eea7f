package api

import (
	"github.com/gin-gonic/gin"

	"github.com/timmy/dropcart/internal/api/handler"
	"github.com/timmy/dropcart/internal/api/middleware"
	"github.com/timmy/dropcart/internal/config"
	"github.com/timmy/dropcart/internal/logger"
	"github.com/timmy/dropcart/internal/pricing"
	"github.com/timmy/dropcart/internal/repository"
	"github.com/timmy/dropcart/internal/service"
)

// Dependencies are the services the router exposes.
type Dependencies struct {
	Engine   *service.JobEngine
	Resolver *service.FulfillmentResolver
	Rules    *repository.PricingRuleRepository
	Pricing  *pricing.Engine
	Checks   map[string]handler.Pinger
	Logger   *logger.Logger
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps Dependencies, cfg config.ServerConfig) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(deps.Logger))
	r.Use(middleware.CORS(cfg.CORS))

	healthHandler := handler.NewHealthHandler(deps.Checks)
	jobHandler := handler.NewJobHandler(deps.Engine)
	pricingHandler := handler.NewPricingHandler(deps.Rules, deps.Pricing)
	variantHandler := handler.NewVariantHandler(deps.Resolver)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		// Jobs
		v1.POST("/jobs", jobHandler.CreateJob)
		v1.GET("/jobs", jobHandler.ListJobs)
		v1.GET("/jobs/:id", jobHandler.GetJob)
		v1.GET("/jobs/:id/items", jobHandler.ListItems)
		v1.POST("/jobs/:id/step", jobHandler.Step)
		v1.POST("/jobs/:id/run", jobHandler.Run)
		v1.POST("/jobs/:id/cancel", jobHandler.Cancel)

		// Pricing
		v1.POST("/pricing/quote", pricingHandler.Quote)
		v1.GET("/pricing/rules", pricingHandler.ListRules)
		v1.PUT("/pricing/rules", pricingHandler.UpsertRule)

		// Variants
		v1.POST("/variants/match", variantHandler.Match)
		v1.POST("/fulfillment/resolve", variantHandler.Resolve)
	}

	return r
}
