package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"messaging-service/internal/logger"
	"messaging-service/internal/observability"
)

const RequestIDHeader = "X-Request-Id"

// RequestContext assigns a request id, attaches a request-scoped logger and logs the
// outcome of each request.
func RequestContext(base zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := observability.RequestIDFromRequest(c.Request)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("requestID", requestID)
		c.Writer.Header().Set(RequestIDHeader, requestID)

		l := base.With().Str("request_id", requestID).Logger()
		if traceID := observability.TraceIDFromContext(c.Request.Context()); traceID != "" {
			l = l.With().Str("trace_id", traceID).Logger()
		}
		ctx := observability.WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(logger.WithContext(ctx, l))

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := l.Info()
		if status >= 500 {
			ev = l.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("route", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}
