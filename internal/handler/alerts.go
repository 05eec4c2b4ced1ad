package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"cryptoalert/internal/paas"
	"cryptoalert/internal/repository"
	"cryptoalert/internal/service"
)

type AlertsHandler struct {
	Repo   repository.Repository
	Alerts *service.AlertService
}

func (h *AlertsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/alerts")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.GET("/:id/notifications", h.notifications)
	g.PATCH("/:id/active", h.setActive)
	g.POST("/:id/reset", h.reset)
	g.DELETE("/:id", h.delete)
}

type createAlertRequest struct {
	OwnerID         string          `json:"owner_id"`
	ResourceKey     string          `json:"resource_key"`
	ResourceSymbol  string          `json:"resource_symbol"`
	ResourceName    string          `json:"resource_name"`
	Condition       string          `json:"condition"`
	Threshold       decimal.Decimal `json:"threshold"`
	Repeat          bool            `json:"repeat"`
	CooldownMinutes int             `json:"cooldown_minutes"`
}

func (h *AlertsHandler) create(c *gin.Context) {
	if h.Alerts == nil {
		Error(c, http.StatusInternalServerError, "alert service unavailable", nil)
		return
	}
	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	item, err := h.Alerts.Create(c.Request.Context(), service.CreateAlertInput{
		OwnerID:         req.OwnerID,
		ResourceKey:     req.ResourceKey,
		ResourceSymbol:  req.ResourceSymbol,
		ResourceName:    req.ResourceName,
		ConditionType:   req.Condition,
		Threshold:       req.Threshold,
		Repeat:          req.Repeat,
		CooldownMinutes: req.CooldownMinutes,
	})
	if err != nil {
		fail(c, err)
		return
	}
	paas.LogBestEffort(c, "alert_create", "info", map[string]any{
		"alert_id":     item.ID,
		"owner_id":     item.OwnerID,
		"resource_key": item.ResourceKey,
	})
	c.JSON(http.StatusCreated, apiResponse{Code: 0, Message: "ok", Data: item})
}

func (h *AlertsHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	params := repository.ListAlertsParams{
		Limit:       limit,
		Offset:      offset,
		OwnerID:     stringQueryPtr(c, "owner_id"),
		ResourceKey: stringQueryPtr(c, "resource_key"),
		Active:      boolQueryPtr(c, "active"),
		Triggered:   boolQueryPtr(c, "triggered"),
		OrderBy:     strings.TrimSpace(c.Query("order_by")),
		Asc:         boolQueryPtr(c, "asc"),
	}
	items, err := h.Repo.ListAlerts(c.Request.Context(), params)
	if err != nil {
		fail(c, err)
		return
	}
	total, err := h.Repo.CountAlerts(c.Request.Context(), params)
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *AlertsHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	item, err := h.Repo.GetAlertByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, item, nil)
}

func (h *AlertsHandler) notifications(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	items, err := h.Repo.ListAlertNotifications(c.Request.Context(), c.Param("id"), intQuery(c, "limit", 50))
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, items, nil)
}

type setActiveRequest struct {
	Active *bool `json:"active"`
}

func (h *AlertsHandler) setActive(c *gin.Context) {
	if h.Alerts == nil {
		Error(c, http.StatusInternalServerError, "alert service unavailable", nil)
		return
	}
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	item, err := h.Alerts.SetActive(c.Request.Context(), c.Param("id"), *req.Active)
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, item, nil)
}

func (h *AlertsHandler) reset(c *gin.Context) {
	if h.Alerts == nil {
		Error(c, http.StatusInternalServerError, "alert service unavailable", nil)
		return
	}
	item, err := h.Alerts.Reset(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, item, nil)
}

func (h *AlertsHandler) delete(c *gin.Context) {
	if h.Alerts == nil {
		Error(c, http.StatusInternalServerError, "alert service unavailable", nil)
		return
	}
	id := c.Param("id")
	owner := strings.TrimSpace(c.Query("owner_id"))
	if err := h.Alerts.Delete(c.Request.Context(), id, owner); err != nil {
		fail(c, err)
		return
	}
	paas.LogBestEffort(c, "alert_delete", "info", map[string]any{"alert_id": id, "owner_id": owner})
	Ok(c, gin.H{"deleted": id}, nil)
}
