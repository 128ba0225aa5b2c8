package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/classdesk/classdesk/internal/audit"
	"github.com/classdesk/classdesk/internal/safego"
)

// RequestAuditMiddleware ships a record for every authenticated write request
// to the configured audit destinations. Reads are not shipped; the audit_logs
// table remains the tenant-visible history while shipped records feed external
// aggregation. Shipping runs off the request goroutine so a slow sink never
// delays the response.
func RequestAuditMiddleware(shipper audit.Shipper) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		switch c.Request.Method {
		case "POST", "PUT", "PATCH", "DELETE":
		default:
			return
		}

		userID := CallerID(c)
		if userID == "" {
			return
		}

		entry := &audit.LogEntry{
			Timestamp:      time.Now().UTC(),
			Action:         c.Request.Method + " " + c.FullPath(),
			UserID:         userID,
			OrganizationID: c.GetString("organization_id"),
			IPAddress:      c.ClientIP(),
			AuthMethod:     c.GetString("auth_method"),
			StatusCode:     c.Writer.Status(),
		}

		safego.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := shipper.Ship(ctx, entry); err != nil {
				// Ship already logs per-destination failures; nothing further to do.
				_ = err
			}
		})
	}
}
