package apihandlers

import (
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// NewRouter registers every route on a new gin engine.
func NewRouter(h *APIHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/health", h.HealthHandler)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/catalogs", h.ListCatalogsHandler)
		v1.GET("/catalogs/:lang", h.GetCatalogHandler)

		v1.POST("/classify", h.ClassifyHandler)

		jobGroup := v1.Group("/jobs")
		{
			jobGroup.POST("", h.SubmitJobHandler)
			jobGroup.GET("/:id", h.GetJobHandler)
			jobGroup.DELETE("/:id", h.CancelJobHandler)
		}

		v1.GET("/runs", h.ListRunsHandler)
		v1.GET("/runs/:id", h.GetRunHandler)
		v1.GET("/usage", h.UsageHandler)
	}
	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("HTTP request")
	}
}
