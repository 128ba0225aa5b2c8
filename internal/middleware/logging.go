package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// LoggingMiddleware emits one structured slog record per request after the
// handler chain completes. The record carries the request ID set by
// RequestIDMiddleware and the authenticated user ID when present, which is what
// makes server-side correlation with client-reported request IDs work.
//
// Response status picks the log level: 5xx logs at Error, 4xx at Warn,
// everything else at Info.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}

		if id, exists := c.Get(RequestIDKey); exists {
			attrs = append(attrs, "request_id", id)
		}
		if userID := CallerID(c); userID != "" {
			attrs = append(attrs, "user_id", userID)
		}
		if orgID := c.GetString("organization_id"); orgID != "" {
			attrs = append(attrs, "organization_id", orgID)
		}

		switch {
		case status >= 500:
			slog.Error("request completed", attrs...)
		case status >= 400:
			slog.Warn("request completed", attrs...)
		default:
			slog.Info("request completed", attrs...)
		}
	}
}
