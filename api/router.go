package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/obtic-sorbonne/chatsfp/api/handler"
	"github.com/obtic-sorbonne/chatsfp/api/middleware"
)

// SetupRouter 组装HTTP路由
func SetupRouter(
	qaHandler *handler.QAHandler,
	ingestHandler *handler.IngestHandler,
	bulletinHandler *handler.BulletinHandler,
) *gin.Engine {
	router := gin.New()

	router.Use(middleware.SetTraceID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/ingest", ingestHandler.Ingest)
		apiGroup.GET("/index", ingestHandler.Status)

		apiGroup.POST("/qa", qaHandler.Ask)
		apiGroup.GET("/history", qaHandler.History)
		apiGroup.DELETE("/history", qaHandler.ClearHistory)

		apiGroup.GET("/template", qaHandler.GetTemplate)
		apiGroup.PUT("/template", qaHandler.UpdateTemplate)
		apiGroup.DELETE("/template", qaHandler.ResetTemplate)

		if bulletinHandler != nil {
			apiGroup.GET("/bulletins", bulletinHandler.List)
			apiGroup.GET("/bulletins/years", bulletinHandler.Years)
		}
	}

	return router
}
