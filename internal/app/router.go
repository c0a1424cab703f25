package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"transit/internal/config"
	"transit/internal/handler"
	"transit/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	TransitHandler *handler.TransitHandler
	AccountHandler *handler.AccountHandler
	RedisClient    *redis.Client
	NewRelicApp    *newrelic.Application
	Auth           config.AuthConfig
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// All business routes require the gateway-verified identity; the
	// idempotency cache is keyed by it, so identity runs first.
	identity := middleware.GatewayIdentity(deps.Auth.IdentityHeader)
	idempotency := middleware.IdempotencyMiddleware(deps.RedisClient)

	transit := router.Group("/transit", identity, idempotency)
	{
		transit.POST("/entry", deps.TransitHandler.Entry)
		transit.POST("/exit", deps.TransitHandler.Exit)
		transit.POST("/repay", deps.TransitHandler.Repay)
		transit.GET("/records", deps.TransitHandler.Records)
		transit.GET("/detail/:transitId", deps.TransitHandler.Detail)
	}

	account := router.Group("/account", identity, idempotency)
	{
		account.POST("/topup", deps.AccountHandler.Topup)
		account.GET("/balance", deps.AccountHandler.Balance)
	}

	return router
}
