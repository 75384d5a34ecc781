package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/locey/TaskAVS/base/logger/xzap"
)

const TraceHeader = "X-Request-Id"

// Trace tags the request context with the caller's request id, or a new one,
// and logs the request once it is served.
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(TraceHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(xzap.NewContext(c.Request.Context(), id))
		c.Header(TraceHeader, id)

		start := time.Now()
		c.Next()
		xzap.WithContext(c.Request.Context()).Debug("request served",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
