package service

import (
	"context"
	"strings"
	"time"

	"cryptoalert/internal/models"
)

const (
	FeatureMonitor     = "feature.monitor"
	FeatureRetention   = "feature.retention"
	FeaturePriceMirror = "feature.price_mirror"
)

func DefaultFeatureSwitches() map[string]bool {
	return map[string]bool{
		FeatureMonitor:     true,
		FeatureRetention:   true,
		FeaturePriceMirror: true,
	}
}

// SettingsStore is the persistence used for runtime switches.
type SettingsStore interface {
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
}

// SystemSettingsService reads and flips the feature switches that gate the
// scheduler, the retention job and the price mirror.
type SystemSettingsService struct {
	Repo SettingsStore
}

// EnsureDefaultSwitches writes the default value of every switch that is not
// stored yet. Stored values are left alone.
func (s *SystemSettingsService) EnsureDefaultSwitches(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	now := time.Now().UTC()
	for key, enabled := range DefaultFeatureSwitches() {
		existing, err := s.Repo.GetSystemSettingByKey(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if err := s.Repo.UpsertSystemSetting(ctx, models.NewSwitchSetting(key, enabled, now)); err != nil {
			return err
		}
	}
	return nil
}

// IsEnabled returns fallback when the switch is unset, unreadable or the
// store is unavailable.
func (s *SystemSettingsService) IsEnabled(ctx context.Context, key string, fallback bool) bool {
	key = strings.TrimSpace(key)
	if s == nil || s.Repo == nil || key == "" {
		return fallback
	}
	item, err := s.Repo.GetSystemSettingByKey(ctx, key)
	if err != nil {
		return fallback
	}
	if enabled, ok := item.Bool(); ok {
		return enabled
	}
	return fallback
}

func (s *SystemSettingsService) SetEnabled(ctx context.Context, key string, enabled bool) error {
	key = strings.TrimSpace(key)
	if s == nil || s.Repo == nil || key == "" {
		return nil
	}
	return s.Repo.UpsertSystemSetting(ctx, models.NewSwitchSetting(key, enabled, time.Now().UTC()))
}
