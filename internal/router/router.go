package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stint/backend/internal/handler"
	"stint/backend/internal/middleware"
	"stint/backend/internal/service"
)

func New(
	authService *service.AuthService,
	authHandler *handler.AuthHandler,
	projectHandler *handler.ProjectHandler,
	stintHandler *handler.StintHandler,
	sweepHandler *handler.SweepHandler,
	corsOrigins []string,
) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), middleware.CORS(corsOrigins))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.POST("/internal/sweep", sweepHandler.Run)

	api := engine.Group("/api")
	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	projects := api.Group("/projects")
	projects.Use(middleware.Auth(authService))
	projects.POST("", projectHandler.Create)
	projects.GET("", projectHandler.List)
	projects.POST("/:id/archive", projectHandler.Archive)

	stints := api.Group("/stints")
	stints.Use(middleware.Auth(authService))
	stints.POST("/start", stintHandler.Start)
	stints.GET("/current", stintHandler.Current)
	stints.GET("/history", stintHandler.History)
	stints.GET("/events", stintHandler.Events)
	stints.POST("/:id/pause", stintHandler.Pause)
	stints.POST("/:id/resume", stintHandler.Resume)
	stints.POST("/:id/complete", stintHandler.Complete)
	stints.POST("/:id/interrupt", stintHandler.Interrupt)
	stints.POST("/:id/sync", stintHandler.Sync)

	return engine
}
