package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler serves liveness and readiness. Readiness depends on the
// database only; a stopped scheduler is reported but still ready.
type HealthHandler struct {
	Ping    func(ctx context.Context) error
	Running func() bool
}

func (h *HealthHandler) Register(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", h.ready)
}

func (h *HealthHandler) ready(c *gin.Context) {
	body := gin.H{"status": "ready"}
	if h.Running != nil {
		body["monitor_running"] = h.Running()
	}
	if h.Ping == nil {
		body["status"] = "db_missing"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.Ping(ctx); err != nil {
		body["status"] = "db_unreachable"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}
