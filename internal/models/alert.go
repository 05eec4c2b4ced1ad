package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ConditionType string

const (
	ConditionAbove   ConditionType = "above"
	ConditionBelow   ConditionType = "below"
	ConditionPctUp   ConditionType = "pct_up"
	ConditionPctDown ConditionType = "pct_down"
)

// DefaultCooldownMinutes applies to repeating alerts created without a cooldown.
const DefaultCooldownMinutes = 60

func (c ConditionType) Valid() bool {
	switch c {
	case ConditionAbove, ConditionBelow, ConditionPctUp, ConditionPctDown:
		return true
	default:
		return false
	}
}

// IsPercent reports whether the condition compares the 24h change rather than the price.
func (c ConditionType) IsPercent() bool {
	return c == ConditionPctUp || c == ConditionPctDown
}

func ParseConditionType(raw string) (ConditionType, bool) {
	c := ConditionType(strings.ToLower(strings.TrimSpace(raw)))
	return c, c.Valid()
}

// Alert is a user subscription on one resource's price or 24h change.
type Alert struct {
	ID      string `gorm:"type:varchar(36);primaryKey"`
	OwnerID string `gorm:"type:varchar(64);not null;index"`

	ResourceKey    string `gorm:"type:varchar(100);not null;index"`
	ResourceSymbol string `gorm:"type:varchar(20)"`
	ResourceName   string `gorm:"type:varchar(100)"`

	ConditionType  ConditionType    `gorm:"type:varchar(20);not null"`
	Threshold      decimal.Decimal  `gorm:"type:numeric(30,10);not null"`
	LastKnownValue *decimal.Decimal `gorm:"type:numeric(30,10)"`

	IsActive    bool `gorm:"not null;default:true;index:idx_alerts_eligible,priority:1"`
	IsTriggered bool `gorm:"not null;default:false;index:idx_alerts_eligible,priority:2"`

	TriggeredAt  *time.Time       `gorm:"type:timestamptz;index"`
	TriggerValue *decimal.Decimal `gorm:"type:numeric(30,10)"`

	NotificationsSent  int        `gorm:"not null;default:0"`
	LastNotificationAt *time.Time `gorm:"type:timestamptz"`

	Repeat          bool `gorm:"not null;default:false"`
	CooldownMinutes int  `gorm:"not null;default:60"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Alert) TableName() string {
	return "alerts"
}

func (a *Alert) BeforeCreate(tx *gorm.DB) error {
	if strings.TrimSpace(a.ID) == "" {
		a.ID = uuid.NewString()
	}
	if a.CooldownMinutes <= 0 {
		a.CooldownMinutes = DefaultCooldownMinutes
	}
	return nil
}

// Eligible reports whether the alert takes part in the next poll cycle.
func (a Alert) Eligible() bool {
	return a.IsActive && !a.IsTriggered
}
