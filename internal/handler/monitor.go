package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cryptoalert/internal/cache"
	"cryptoalert/internal/monitor"
	"cryptoalert/internal/paas"
	"cryptoalert/internal/service"
)

// PriceReader looks up prices mirrored outside this process.
type PriceReader interface {
	Price(ctx context.Context, key string) (cache.PriceEntry, bool, error)
}

type MonitorHandler struct {
	Monitor  *monitor.Monitor
	Settings *service.SystemSettingsService
	Prices   PriceReader

	// BaseCtx outlives requests; the scheduler started over HTTP runs on it.
	BaseCtx context.Context
}

func (h *MonitorHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/monitor")
	g.GET("/status", h.status)
	g.POST("/start", h.start)
	g.POST("/stop", h.stop)
	g.POST("/check", h.check)
	g.POST("/cleanup", h.cleanup)

	r.GET("/api/v1/prices", h.prices)
	r.GET("/api/v1/prices/:key", h.price)
	r.GET("/api/v1/owners/:owner_id/summary", h.ownerSummary)
}

func (h *MonitorHandler) status(c *gin.Context) {
	if h.Monitor == nil {
		Error(c, http.StatusInternalServerError, "monitor unavailable", nil)
		return
	}
	Ok(c, h.Monitor.Status(), nil)
}

func (h *MonitorHandler) start(c *gin.Context) {
	if h.Monitor == nil {
		Error(c, http.StatusInternalServerError, "monitor unavailable", nil)
		return
	}
	ctx := h.BaseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	started := h.Monitor.Start(ctx)
	if err := h.Settings.SetEnabled(c.Request.Context(), service.FeatureMonitor, true); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	paas.LogBestEffort(c, "monitor_start", "info", map[string]any{"started": started})
	Ok(c, gin.H{"started": started, "status": h.Monitor.Status()}, nil)
}

func (h *MonitorHandler) stop(c *gin.Context) {
	if h.Monitor == nil {
		Error(c, http.StatusInternalServerError, "monitor unavailable", nil)
		return
	}
	stopped := h.Monitor.Stop()
	if err := h.Settings.SetEnabled(c.Request.Context(), service.FeatureMonitor, false); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	paas.LogBestEffort(c, "monitor_stop", "info", map[string]any{"stopped": stopped})
	Ok(c, gin.H{"stopped": stopped, "status": h.Monitor.Status()}, nil)
}

func (h *MonitorHandler) check(c *gin.Context) {
	if h.Monitor == nil {
		Error(c, http.StatusInternalServerError, "monitor unavailable", nil)
		return
	}
	res, ran := h.Monitor.ForceCheck(context.WithoutCancel(c.Request.Context()))
	if !ran {
		Error(c, http.StatusConflict, "a cycle is already running", nil)
		return
	}
	Ok(c, res, nil)
}

func (h *MonitorHandler) cleanup(c *gin.Context) {
	if h.Monitor == nil {
		Error(c, http.StatusInternalServerError, "monitor unavailable", nil)
		return
	}
	days := intQuery(c, "days", 0)
	if days < 0 {
		Error(c, http.StatusBadRequest, "days must not be negative", nil)
		return
	}
	removed, err := h.Monitor.Cleanup(c.Request.Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"removed": removed}, nil)
}

func (h *MonitorHandler) prices(c *gin.Context) {
	if h.Monitor == nil {
		Error(c, http.StatusInternalServerError, "monitor unavailable", nil)
		return
	}
	items := h.Monitor.Prices()
	Ok(c, items, map[string]any{"total": len(items)})
}

// price serves the in-process cache first and falls back to the mirror.
func (h *MonitorHandler) price(c *gin.Context) {
	key := strings.ToLower(strings.TrimSpace(c.Param("key")))
	if key == "" {
		Error(c, http.StatusBadRequest, "invalid key", nil)
		return
	}
	if h.Monitor != nil {
		if p, ok := h.Monitor.Prices()[key]; ok {
			Ok(c, p, map[string]any{"source": "memory"})
			return
		}
	}
	if h.Prices != nil {
		p, ok, err := h.Prices.Price(c.Request.Context(), key)
		if err != nil {
			Error(c, http.StatusBadGateway, err.Error(), nil)
			return
		}
		if ok {
			Ok(c, p, map[string]any{"source": "redis"})
			return
		}
	}
	Error(c, http.StatusNotFound, "price not cached", nil)
}

func (h *MonitorHandler) ownerSummary(c *gin.Context) {
	if h.Monitor == nil {
		Error(c, http.StatusInternalServerError, "monitor unavailable", nil)
		return
	}
	owner := strings.TrimSpace(c.Param("owner_id"))
	if owner == "" {
		Error(c, http.StatusBadRequest, "invalid owner_id", nil)
		return
	}
	sum, err := h.Monitor.OwnerSummary(c.Request.Context(), owner)
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, sum, nil)
}
