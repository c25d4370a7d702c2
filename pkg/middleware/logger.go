package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fazilcanakbas/havacilaregitim/pkg/logger"
)

// RequestLogger logs one line per request through the shared zap logger.
// Server errors log at error level so they stand out in aggregated output.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if sub, _ := Subject(c); sub != "" {
			fields = append(fields, zap.String("sub", sub))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if status >= 500 {
			logger.L().Error("request", fields...)
			return
		}
		logger.L().Info("request", fields...)
	}
}
