package monitor

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"cryptoalert/internal/alert"
	"cryptoalert/internal/metrics"
	"cryptoalert/internal/models"
	"cryptoalert/internal/paas"
)

const auditTimeout = 5 * time.Second

// dispatch sends the notification in the background. The alert has already
// been persisted as triggered; a failed send does not revert it.
func (m *Monitor) dispatch(ctx context.Context, a models.Alert, s alert.Sample, at time.Time) {
	msg := alert.RenderMessage(a, s)
	event := alert.NewEvent(a, s, at)
	base := context.WithoutCancel(ctx)

	m.pending.Add(1)
	go func() {
		defer m.pending.Done()

		sendCtx, cancel := context.WithTimeout(base, m.notifyTimeout())
		defer cancel()

		var err error
		if m.Notifier != nil {
			err = m.Notifier.Send(sendCtx, a.OwnerID, msg)
		}
		status := models.DeliveryStatusSent
		if err != nil {
			status = models.DeliveryStatusFailed
			m.statsMu.Lock()
			m.stats.notifyFailures++
			m.statsMu.Unlock()
			m.logger().Warn("alert notification failed",
				zap.String("alert_id", a.ID),
				zap.String("owner_id", a.OwnerID),
				zap.Error(err),
			)
		}
		metrics.Notifications.WithLabelValues(status).Inc()

		// sendCtx may have expired with the send; audit on a fresh deadline.
		auditCtx, auditCancel := context.WithTimeout(base, auditTimeout)
		defer auditCancel()

		m.recordDelivery(auditCtx, a, event, msg, err)

		if m.Mirror != nil {
			if perr := m.Mirror.PublishTrigger(auditCtx, event); perr != nil {
				m.logger().Warn("alert trigger publish failed", zap.String("alert_id", a.ID), zap.Error(perr))
			}
		}

		paas.LogBestEffortCtx(base, "alert_triggered", "info", map[string]any{
			"alert_id":     a.ID,
			"owner_id":     a.OwnerID,
			"resource_key": a.ResourceKey,
			"condition":    string(a.ConditionType),
			"threshold":    a.Threshold.String(),
			"value":        s.Value.String(),
			"status":       status,
		})
	}()
}

func (m *Monitor) recordDelivery(ctx context.Context, a models.Alert, event alert.Event, msg string, sendErr error) {
	if m.Deliveries == nil {
		return
	}
	snapshot, _ := json.Marshal(event)
	row := &models.AlertNotification{
		AlertID:  a.ID,
		OwnerID:  a.OwnerID,
		Status:   models.DeliveryStatusSent,
		Message:  msg,
		Snapshot: datatypes.JSON(snapshot),
	}
	if sendErr != nil {
		e := sendErr.Error()
		row.Status = models.DeliveryStatusFailed
		row.Error = &e
	}
	if err := m.Deliveries.InsertAlertNotification(ctx, row); err != nil {
		m.logger().Warn("alert delivery log failed", zap.String("alert_id", a.ID), zap.Error(err))
	}
}
