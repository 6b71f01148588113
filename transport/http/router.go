package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/cosign/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// HealthCheck reports whether the backing store is reachable.
type HealthCheck func(ctx context.Context) error

// SetupRouter sets up the Gin router
func SetupRouter(
	authService *service.AuthService,
	registry *service.Registry,
	coordinator *service.Coordinator,
	health HealthCheck,
	log logrus.FieldLogger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(log))

	authHandlers := NewAuthHandlers(authService)
	proposalHandlers := NewProposalHandlers(registry, coordinator)
	requireSession := AuthMiddleware(authService)

	router.GET("/healthz", func(c *gin.Context) {
		if health != nil {
			if err := health(c.Request.Context()); err != nil {
				abortWithError(c, err)
				return
			}
		}
		c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.POST("/challenge", authHandlers.Challenge)
		auth.POST("/login", authHandlers.Login)
		auth.POST("/logout", requireSession, authHandlers.Logout)
	}

	// Signing data is public so wallets can display it before login
	router.GET("/api/proposals/:id/data", proposalHandlers.Data)

	// Protected API routes
	api := router.Group("/api")
	api.Use(requireSession)
	{
		api.GET("/me", authHandlers.Me)
		api.POST("/proposals", proposalHandlers.Create)
		api.GET("/proposals", proposalHandlers.List)
		api.GET("/proposals/:id", proposalHandlers.Get)
		api.POST("/proposals/:id/approvals", proposalHandlers.Approve)
		api.POST("/proposals/:id/reject", proposalHandlers.Reject)
	}

	return router
}
