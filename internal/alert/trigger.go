package alert

import (
	"time"

	"github.com/shopspring/decimal"

	"cryptoalert/internal/models"
)

// ApplyTrigger returns the alert as it should be persisted after a notify
// decision. The input is not modified. Repeating alerts come back re-armed
// with the trigger record kept.
func ApplyTrigger(a models.Alert, value decimal.Decimal, now time.Time) models.Alert {
	next := a
	v := value
	tv := value
	at := now
	notifiedAt := now

	next.LastKnownValue = &v
	next.IsTriggered = true
	next.TriggeredAt = &at
	next.TriggerValue = &tv
	next.LastNotificationAt = &notifiedAt
	next.NotificationsSent = a.NotificationsSent + 1

	if next.Repeat {
		next.IsTriggered = false
	}
	return next
}

// Rearm clears the trigger flag so a one-shot alert can fire again.
// NotificationsSent and the last trigger record are kept.
func Rearm(a models.Alert) models.Alert {
	next := a
	next.IsTriggered = false
	return next
}

// Event describes a fired alert for side channels such as pub/sub.
type Event struct {
	AlertID      string               `json:"alert_id"`
	OwnerID      string               `json:"owner_id"`
	ResourceKey  string               `json:"resource_key"`
	Symbol       string               `json:"symbol,omitempty"`
	Condition    models.ConditionType `json:"condition"`
	Threshold    decimal.Decimal      `json:"threshold"`
	Value        decimal.Decimal      `json:"value"`
	PctChange24h *decimal.Decimal     `json:"pct_change_24h,omitempty"`
	Repeat       bool                 `json:"repeat"`
	Notification int                  `json:"notification"`
	TriggeredAt  time.Time            `json:"triggered_at"`
}

func NewEvent(a models.Alert, s Sample, at time.Time) Event {
	return Event{
		AlertID:      a.ID,
		OwnerID:      a.OwnerID,
		ResourceKey:  a.ResourceKey,
		Symbol:       a.ResourceSymbol,
		Condition:    a.ConditionType,
		Threshold:    a.Threshold,
		Value:        s.Value,
		PctChange24h: s.PctChange24h,
		Repeat:       a.Repeat,
		Notification: a.NotificationsSent,
		TriggeredAt:  at,
	}
}
