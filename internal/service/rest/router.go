package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// NewRouter собирает API-роутер: middleware плюс маршруты каталога и заказов.
func NewRouter(lessons *LessonHandler, orders *OrderHandler, logger *log.Entry) *gin.Engine {
	if logger == nil {
		logger = log.WithField("component", "http")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestLogger(logger))
	router.Use(recovery(logger))

	router.GET("/lessons", lessons.List)
	router.GET("/lessons/stats/overview", lessons.Stats)
	router.GET("/lessons/:id", lessons.Get)
	router.PUT("/lessons/:id", lessons.Update)

	router.POST("/orders", orders.Create)
	router.GET("/orders", orders.List)
	router.GET("/orders/stats/overview", orders.Stats)
	router.GET("/orders/:id", orders.Get)

	return router
}

// requestLogger пишет одну структурированную строку на запрос.
func requestLogger(logger *log.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Error("request completed")
			return
		}
		entry.Info("request completed")
	}
}

// recovery перехватывает панику обработчика и отвечает 500 с общим текстом.
func recovery(logger *log.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithField("panic", r).Error("handler panicked")
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse())
			}
		}()
		c.Next()
	}
}
