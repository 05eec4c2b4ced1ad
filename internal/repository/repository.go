package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"cryptoalert/internal/models"
)

var ErrNotFound = errors.New("record not found")

// SubscriptionStore is what the monitor needs from persistence.
type SubscriptionStore interface {
	// ListEligibleAlerts returns active, non-triggered alerts in stable order.
	ListEligibleAlerts(ctx context.Context) ([]models.Alert, error)
	// SaveAlert persists the evaluator-owned fields of an alert.
	SaveAlert(ctx context.Context, item *models.Alert) error
	UpdateLastKnownValue(ctx context.Context, id string, value decimal.Decimal) error
	// DeleteTriggeredAlertsBefore removes one-shot alerts triggered before cutoff.
	DeleteTriggeredAlertsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountAlertsByOwner(ctx context.Context, ownerID string) (OwnerAlertCounts, error)
}

// DeliveryLog records notification attempts.
type DeliveryLog interface {
	InsertAlertNotification(ctx context.Context, item *models.AlertNotification) error
	DeleteAlertNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Repository is the full store used by the service wiring and HTTP handlers.
type Repository interface {
	SubscriptionStore
	DeliveryLog

	CreateAlert(ctx context.Context, item *models.Alert) error
	GetAlertByID(ctx context.Context, id string) (*models.Alert, error)
	ListAlerts(ctx context.Context, params ListAlertsParams) ([]models.Alert, error)
	CountAlerts(ctx context.Context, params ListAlertsParams) (int64, error)
	SetAlertActive(ctx context.Context, id string, active bool) error
	DeleteAlert(ctx context.Context, id string, ownerID string) error
	ListAlertNotifications(ctx context.Context, alertID string, limit int) ([]models.AlertNotification, error)

	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
}

type OwnerAlertCounts struct {
	Active    int64 `json:"active"`
	Triggered int64 `json:"triggered"`
	Total     int64 `json:"total"`
}

type ListAlertsParams struct {
	Limit       int
	Offset      int
	OwnerID     *string
	ResourceKey *string
	Active      *bool
	Triggered   *bool
	OrderBy     string
	Asc         *bool
}
