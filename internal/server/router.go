package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/traceloom/traceloom-backend/internal/http/handlers"
)

type RouterConfig struct {
	HealthHandler   *handlers.HealthHandler
	SessionHandler  *handlers.SessionHandler
	RealtimeHandler *handlers.RealtimeHandler
	ToolsHandler    *handlers.ToolsHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	router.GET("/sse/stream", cfg.RealtimeHandler.SSEStream)

	api := router.Group("/api")
	{
		api.POST("/sessions", cfg.SessionHandler.CreateSession)
		api.GET("/sessions/:id", cfg.SessionHandler.GetSession)
		api.POST("/sessions/:id/run", cfg.SessionHandler.RunSession)
		api.POST("/sessions/:id/cancel", cfg.SessionHandler.CancelSession)
		api.GET("/sessions/:id/venn", cfg.SessionHandler.GetVenn)
		api.GET("/sessions/:id/merge-log", cfg.SessionHandler.GetMergeLog)
		api.GET("/tools", cfg.ToolsHandler.ListTools)
		api.POST("/sessions/:id/tools/:name", cfg.ToolsHandler.DispatchTool)
	}

	return router
}
