package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"collabstream/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

// HTTPMetrics is satisfied by the Prometheus collector.
type HTTPMetrics interface {
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
}

// RequestLoggerMiddleware assigns a request id, then logs and measures every request.
// metrics may be nil.
func RequestLoggerMiddleware(cl *logger.ContextLogger, metrics HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), requestID))

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		ctx := c.Request.Context()
		status := c.Writer.Status()
		cl.LogRequest(ctx, c.Request.Method, c.Request.URL.Path, status, duration.Milliseconds())
		if metrics != nil {
			metrics.RecordHTTPRequest(c.Request.Method, c.FullPath(), status, duration)
		}
	}
}
