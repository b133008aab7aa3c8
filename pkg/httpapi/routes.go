package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joripage/oms-core/pkg/logging"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

func RegisterRoutes(router *gin.Engine, h *OrderHandler) {
	router.Use(requestLogger(h.logger))

	api := router.Group("/api")
	{
		api.POST("/orders", h.PlaceOrder)
		api.GET("/orders", h.ListActiveOrders)
		api.GET("/orders/:id", h.GetOrder)
		api.PATCH("/orders/:id", h.ModifyOrder)
		api.DELETE("/orders/:id", h.CancelOrder)
		api.GET("/history", h.ListHistory)
		api.GET("/statistics", h.GetStatistics)

		api.GET("/risk/exposure", h.GetExposure)
		api.POST("/risk/pnl", h.UpdatePnL)
	}
}

// NewRouter builds a gin engine with recovery and request logging.
func NewRouter(h *OrderHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	RegisterRoutes(router, h)
	return router
}

// requestLogger tags the request context with a request id and logs one
// line per request.
func requestLogger(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(requestIDHeader, reqID)
		ctx := logging.WithRequestID(c.Request.Context(), reqID)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		logger.Info(ctx, "http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
