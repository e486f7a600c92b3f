package http

import (
	"github.com/gin-gonic/gin"
)

// SetupRouter sets up the Gin router.
func SetupRouter(handlers *Handlers) *gin.Engine {
	router := gin.Default()

	auth := router.Group("/auth")
	{
		auth.POST("/login/begin", handlers.BeginLogin)
		auth.POST("/login/complete", handlers.CompleteLogin)
		auth.POST("/refresh", handlers.Refresh)
		auth.POST("/logout", handlers.Logout)
	}

	api := router.Group("/api")
	{
		api.POST("/query", handlers.Query)
	}

	return router
}
