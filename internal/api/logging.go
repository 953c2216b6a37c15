package api

import (
	"time"

	"powerbank-rental-go/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIdHeader = "X-Request-Id"

// requestLogger tags every request with an id and logs its outcome.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestId := c.GetHeader(requestIdHeader)
		if requestId == "" {
			requestId = uuid.New().String()
		}
		c.Header(requestIdHeader, requestId)
		c.Request = c.Request.WithContext(models.WithActor(c.Request.Context(), models.Actor{RequestId: requestId}))

		c.Next()

		actor := models.ActorFromContext(c.Request.Context())
		fields := []zap.Field{
			zap.String("request_id", requestId),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if actor.UserId != "" {
			fields = append(fields, zap.String("user_id", actor.UserId))
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			zap.L().Error("HTTP request", fields...)
		case status >= 400:
			zap.L().Warn("HTTP request", fields...)
		default:
			zap.L().Debug("HTTP request", fields...)
		}
	}
}
