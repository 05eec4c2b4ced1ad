package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cryptoalert/internal/service"
)

type SettingsHandler struct {
	Settings *service.SystemSettingsService
}

func (h *SettingsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/settings/switches")
	g.GET("", h.listSwitches)
	g.GET("/:name", h.getSwitch)
	g.PUT("/:name", h.putSwitch)
}

func (h *SettingsHandler) listSwitches(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings service unavailable", nil)
		return
	}
	out := make(map[string]bool)
	for key, def := range service.DefaultFeatureSwitches() {
		out[strings.TrimPrefix(key, "feature.")] = h.Settings.IsEnabled(c.Request.Context(), key, def)
	}
	Ok(c, out, nil)
}

func (h *SettingsHandler) getSwitch(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings service unavailable", nil)
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	key := "feature." + name
	def, known := service.DefaultFeatureSwitches()[key]
	if !known {
		Error(c, http.StatusNotFound, "unknown switch", nil)
		return
	}
	Ok(c, map[string]any{
		"name":    name,
		"key":     key,
		"enabled": h.Settings.IsEnabled(c.Request.Context(), key, def),
	}, nil)
}

type putSwitchRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *SettingsHandler) putSwitch(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings service unavailable", nil)
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	key := "feature." + name
	if _, known := service.DefaultFeatureSwitches()[key]; !known {
		Error(c, http.StatusNotFound, "unknown switch", nil)
		return
	}
	var req putSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if err := h.Settings.SetEnabled(c.Request.Context(), key, req.Enabled); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, map[string]any{
		"name":    name,
		"key":     key,
		"enabled": req.Enabled,
	}, nil)
}
