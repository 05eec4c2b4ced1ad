package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	DeliveryStatusSent   = "sent"
	DeliveryStatusFailed = "failed"
)

// AlertNotification records one delivery attempt for a triggered alert.
type AlertNotification struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	AlertID string `gorm:"type:varchar(36);not null;index"`
	OwnerID string `gorm:"type:varchar(64);not null;index"`

	Status  string  `gorm:"type:varchar(10);not null"`
	Error   *string `gorm:"type:text"`
	Message string  `gorm:"type:text"`

	// Snapshot holds the sample and thresholds the decision was made on.
	Snapshot datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (AlertNotification) TableName() string {
	return "alert_notifications"
}
