// Package middleware provides the gin middleware chain: request IDs, request
// logging with latency metrics, and panic recovery.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mapplot/customer-atlas/internal/infrastructure/monitoring/logging"
	prommetrics "github.com/mapplot/customer-atlas/internal/infrastructure/monitoring/prometheus"
)

// RequestIDHeader is the header carrying the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// requestIDKey is the gin context key the request ID is stored under.
const requestIDKey = "request_id"

// RequestID propagates an inbound X-Request-ID or generates one, storing it in
// the context and echoing it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID returns the request ID set by RequestID, or "" if absent.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// skipLogPaths are high-frequency probe paths that would drown the logs.
var skipLogPaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// RequestLogging logs each request on completion and records the latency
// histogram.  5xx responses log at error level, 4xx at warn.  metrics may be
// nil.
func RequestLogging(logger logging.Logger, metrics *prommetrics.Metrics) gin.HandlerFunc {
	logger = logger.Named("http")
	return func(c *gin.Context) {
		if skipLogPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		if metrics != nil {
			metrics.HTTPRequestSeconds.
				WithLabelValues(route, c.Request.Method, strconv.Itoa(status)).
				Observe(elapsed.Seconds())
		}

		fields := []logging.Field{
			logging.String("method", c.Request.Method),
			logging.String("path", c.Request.URL.Path),
			logging.Int("status", status),
			logging.Duration("elapsed", elapsed),
			logging.String("request_id", GetRequestID(c)),
		}
		switch {
		case status >= 500:
			fields = append(fields, logging.String("errors", c.Errors.String()))
			logger.Error("request completed", fields...)
		case status >= 400:
			logger.Warn("request completed", fields...)
		default:
			logger.Info("request completed", fields...)
		}
	}
}

// Recovery converts panics into 500 responses instead of killing the process.
func Recovery(logger logging.Logger) gin.HandlerFunc {
	logger = logger.Named("http")
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("handler panicked",
					logging.Any("panic", r),
					logging.String("path", c.Request.URL.Path),
					logging.String("request_id", GetRequestID(c)),
				)
				c.AbortWithStatusJSON(500, gin.H{
					"error": gin.H{"code": "COMMON_001", "message": "internal server error"},
				})
			}
		}()
		c.Next()
	}
}
