package paas

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cryptoalert/internal/config"
)

// RequireBearerMiddleware guards /api routes. Token validation happens at the
// PaaS gateway; this only rejects requests that did not pass through it.
func RequireBearerMiddleware(cfg config.PaaSConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.AuthDisabled {
			c.Next()
			return
		}
		p := c.Request.URL.Path
		if !strings.HasPrefix(p, "/api/") && p != "/docs" {
			c.Next()
			return
		}
		auth := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		if cfg.RequireGateway && strings.TrimSpace(c.GetHeader("X-Easyweb3-Project")) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing X-Easyweb3-Project"})
			return
		}
		c.Next()
	}
}

// WriteAuditMiddleware logs every mutating /api request to the PaaS.
func WriteAuditMiddleware(p *Client, logger *zap.Logger) gin.HandlerFunc {
	if p == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		method := strings.ToUpper(c.Request.Method)
		if !strings.HasPrefix(path, "/api/") {
			return
		}
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			return
		}

		status := c.Writer.Status()
		details := map[string]any{
			"method":   method,
			"route":    c.FullPath(),
			"status":   status,
			"duration": time.Since(start).String(),
			"project":  strings.TrimSpace(c.GetHeader("X-Easyweb3-Project")),
		}
		if id := c.Param("id"); id != "" {
			details["alert_id"] = id
		}
		if name := c.Param("name"); name != "" {
			details["switch"] = name
		}
		if owner := strings.TrimSpace(c.Query("owner_id")); owner != "" {
			details["owner_id"] = owner
		}

		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), 2*time.Second)
		defer cancel()
		err := p.CreateLog(ctx, CreateLogRequest{
			Action:  "cryptoalert_http_write",
			Level:   levelFromStatus(status),
			Details: details,
		})
		if err != nil && logger != nil {
			logger.Debug("paas audit log failed", zap.Error(err))
		}
	}
}

func levelFromStatus(status int) string {
	if status >= 500 {
		return "error"
	}
	if status >= 400 {
		return "warn"
	}
	return "info"
}
