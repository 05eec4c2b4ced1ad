package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// SystemSetting is one operator-controlled key. Feature switches keep a JSON
// boolean in Value.
type SystemSetting struct {
	ID          uint64         `gorm:"primaryKey;autoIncrement"`
	Key         string         `gorm:"type:varchar(120);not null;uniqueIndex"`
	Value       datatypes.JSON `gorm:"type:jsonb;not null"`
	Description string         `gorm:"type:text"`
	CreatedAt   time.Time      `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"type:timestamptz;autoUpdateTime;index"`
}

func (SystemSetting) TableName() string {
	return "system_settings"
}

func NewSwitchSetting(key string, enabled bool, at time.Time) *SystemSetting {
	raw, _ := json.Marshal(enabled)
	return &SystemSetting{
		Key:         key,
		Value:       datatypes.JSON(raw),
		Description: "feature switch",
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}

// Bool decodes Value as a switch. ok is false when the value is missing or
// not a boolean.
func (s *SystemSetting) Bool() (enabled bool, ok bool) {
	if s == nil || len(s.Value) == 0 {
		return false, false
	}
	if err := json.Unmarshal(s.Value, &enabled); err != nil {
		return false, false
	}
	return enabled, true
}
