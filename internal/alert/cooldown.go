package alert

import (
	"time"

	"cryptoalert/internal/models"
)

// CanNotify decides whether a satisfied alert may notify at now.
// One-shot alerts notify only while they are not triggered. Repeating
// alerts wait at least their cooldown since the last notification;
// defaultCooldown applies when the alert's own cooldown is not positive.
func CanNotify(a models.Alert, now time.Time, defaultCooldown time.Duration) bool {
	if !a.Repeat {
		return !a.IsTriggered
	}
	if a.LastNotificationAt == nil {
		return true
	}
	return now.Sub(*a.LastNotificationAt) >= Cooldown(a, defaultCooldown)
}

func Cooldown(a models.Alert, fallback time.Duration) time.Duration {
	if a.CooldownMinutes > 0 {
		return time.Duration(a.CooldownMinutes) * time.Minute
	}
	if fallback > 0 {
		return fallback
	}
	return models.DefaultCooldownMinutes * time.Minute
}
