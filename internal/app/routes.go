// Package app provides HTTP handlers for the accounts service.
package app

import (
	"github.com/gin-gonic/gin"

	"github.com/atharv2608/backend-for-video-streaming-platform/internal/sdk/middleware"
)

// ----------------------------------------------------------------------------
// Route Registration
// ----------------------------------------------------------------------------

func (a *App) RegisterRoutes() *gin.Engine {
	router := gin.New()

	// Global middleware chain
	router.Use(gin.Recovery())      // Panic recovery
	router.Use(middleware.Logger()) // Custom slog logger
	router.Use(middleware.CORS())   // CORS support

	// API v1 route group
	v1 := router.Group("/api/v1")
	{
		// Health check routes (public)
		health := v1.Group("/health")
		{
			health.GET("/readiness", a.HandleReadiness)
			health.GET("/liveness", a.HandleLiveness)
		}

		users := v1.Group("/users")
		{
			// Public routes
			users.POST("/register", a.HandleRegister)
			users.POST("/login", a.HandleLogin)
			users.POST("/refresh-token", a.HandleRefresh)                 // Token from cookie or body.
			users.POST("/forgot-password", a.HandleForgotPassword)        // Issues a reset token.
			users.POST("/reset-password/:token", a.HandleResetPassword)   // Completes the reset.

			// Protected routes (requires a valid access token)
			authed := users.Group("")
			authed.Use(middleware.Authenticate(a.tokens, a.db))
			{
				authed.POST("/logout", a.HandleLogout)
				authed.POST("/change-password", a.HandleChangePassword)
				authed.GET("/current-user", a.HandleCurrentUser)
				authed.PATCH("/update-account", a.HandleUpdateAccount)
				authed.PATCH("/avatar", a.HandleUpdateAvatar)
				authed.PATCH("/cover-image", a.HandleUpdateCoverImage)
				authed.GET("/watch-history", a.HandleWatchHistory)
			}
		}
	}

	return router
}
