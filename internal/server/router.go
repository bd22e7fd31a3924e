package server

import (
	"github.com/gin-gonic/gin"

	"github.com/kineticare/kineticare-backend/internal/handlers"
	"github.com/kineticare/kineticare-backend/internal/middleware"
)

type RouterConfig struct {
	AuthHandler       *handlers.AuthHandler
	AuthMiddleware    *middleware.AuthMiddleware
	GenerationHandler *handlers.GenerationHandler
	LibraryHandler    *handlers.LibraryHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(middleware.CORS())

	r.GET("/healthcheck", handlers.HealthCheck)

	api := r.Group("/api")
	{
		api.POST("/register", cfg.AuthHandler.Register)
		api.POST("/login", cfg.AuthHandler.Login)
	}

	// The generate stream authenticates in-band: failures arrive as terminal
	// events on the SSE channel, not as HTTP statuses.
	api.POST("/generate", cfg.AuthMiddleware.AttachAuth(), cfg.GenerationHandler.Generate)

	protected := api.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	{
		protected.POST("/refresh", cfg.AuthHandler.Refresh)
		protected.POST("/logout", cfg.AuthHandler.Logout)

		protected.GET("/exercise-library", cfg.LibraryHandler.ListExercises)
		protected.GET("/suggestions/:id", cfg.LibraryHandler.GetSuggestionSet)
	}

	return r
}
