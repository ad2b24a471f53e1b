package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/generyand/umdc-cec-system-sub001/internal/models"
	"github.com/generyand/umdc-cec-system-sub001/pkg/middleware/requestid"
)

// AuditWriter persists audit entries.
type AuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Audit records an audit entry after successful administrative requests. idParam names the
// route parameter stored as the resource id; leave it empty when the route has none.
func Audit(writer AuditWriter, logger *zap.Logger, action, resource, idParam string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if writer == nil || c.Writer.Status() >= 400 {
			return
		}

		entry := &models.AuditLog{
			Action:    action,
			Resource:  resource,
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		}
		if claims, ok := c.Get(ContextUserKey); ok {
			if user, ok := claims.(*models.JWTClaims); ok {
				entry.UserID = &user.UserID
			}
		}
		if idParam != "" {
			if id := c.Param(idParam); id != "" {
				entry.ResourceID = &id
			}
		}
		entry.NewValues, _ = json.Marshal(map[string]interface{}{
			"path":       c.FullPath(),
			"method":     c.Request.Method,
			"status":     c.Writer.Status(),
			"latency":    time.Since(start).Milliseconds(),
			"request_id": requestid.Value(c),
		})

		if err := writer.CreateAuditLog(c.Request.Context(), entry); err != nil {
			logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		}
	}
}
