package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"cryptoalert/internal/metrics"
)

// Cleanup deletes one-shot alerts triggered longer ago than window and prunes
// the delivery log over the same window. A non-positive window uses the
// configured retention window.
func (m *Monitor) Cleanup(ctx context.Context, window time.Duration) (int64, error) {
	if m == nil || m.Store == nil {
		return 0, nil
	}
	if window <= 0 {
		window = m.retentionWindow()
	}
	cutoff := m.now().Add(-window)

	removed, err := m.Store.DeleteTriggeredAlertsBefore(ctx, cutoff)
	if err != nil {
		metrics.CycleErrors.WithLabelValues("retention").Inc()
		m.logger().Error("retention delete alerts failed", zap.Time("cutoff", cutoff), zap.Error(err))
		return 0, err
	}
	metrics.RetentionRemoved.Add(float64(removed))

	var pruned int64
	if m.Deliveries != nil {
		pruned, err = m.Deliveries.DeleteAlertNotificationsBefore(ctx, cutoff)
		if err != nil {
			m.logger().Warn("retention prune deliveries failed", zap.Time("cutoff", cutoff), zap.Error(err))
		}
	}

	m.logger().Info("retention done",
		zap.Time("cutoff", cutoff),
		zap.Int64("alerts_removed", removed),
		zap.Int64("deliveries_pruned", pruned),
	)
	return removed, nil
}
