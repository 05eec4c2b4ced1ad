package paas

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

type ctxKey struct{}

// WithClient attaches the PaaS client to ctx so background work can audit.
func WithClient(ctx context.Context, c *Client) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey{}, c)
}

func ClientFromContext(ctx context.Context) *Client {
	if ctx == nil {
		return nil
	}
	c, _ := ctx.Value(ctxKey{}).(*Client)
	return c
}

// LogBestEffortCtx writes an audit log with the client carried by ctx.
// Errors are dropped; callers never wait more than two seconds.
func LogBestEffortCtx(ctx context.Context, action, level string, details map[string]any) {
	logBestEffort(ClientFromContext(ctx), action, level, details)
}

func LogBestEffort(c *gin.Context, action, level string, details map[string]any) {
	logBestEffort(ClientFromGin(c), action, level, details)
}

func logBestEffort(p *Client, action, level string, details map[string]any) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = p.CreateLog(ctx, CreateLogRequest{
		Action:  action,
		Level:   level,
		Details: details,
	})
}

func InjectClientMiddleware(p *Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p != nil && c.Request != nil {
			c.Request = c.Request.WithContext(WithClient(c.Request.Context(), p))
		}
		c.Next()
	}
}

func ClientFromGin(c *gin.Context) *Client {
	if c == nil || c.Request == nil {
		return nil
	}
	return ClientFromContext(c.Request.Context())
}
