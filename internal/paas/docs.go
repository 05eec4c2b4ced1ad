package paas

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func RegisterDocs(r *gin.Engine) {
	r.GET("/docs", func(c *gin.Context) {
		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.String(http.StatusOK, `# Crypto Alert Monitor

Price alert engine. Polls CoinGecko for every coin with an armed alert,
evaluates the alerts and notifies owners over Telegram.

## Access via PaaS

Base path (through gateway):
- /api/v1/services/cryptoalert/

## Auth

All /api/* routes require a Bearer token (validated by the PaaS gateway).
Health and metrics endpoints are public.

## Routes

- GET /healthz
- GET /readyz
- GET /metrics
- GET /api/v1/monitor/status
- POST /api/v1/monitor/start
- POST /api/v1/monitor/stop
- POST /api/v1/monitor/check
- POST /api/v1/monitor/cleanup?days=30
- GET /api/v1/prices
- GET /api/v1/prices/:key
- GET /api/v1/owners/:owner_id/summary
- POST /api/v1/alerts
- GET /api/v1/alerts?owner_id=
- GET /api/v1/alerts/:id
- GET /api/v1/alerts/:id/notifications
- PATCH /api/v1/alerts/:id/active
- POST /api/v1/alerts/:id/reset
- DELETE /api/v1/alerts/:id?owner_id=
- GET /api/v1/settings/switches
- GET /api/v1/settings/switches/:name
- PUT /api/v1/settings/switches/:name
`)
	})
}
