package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"cryptoalert/internal/alert"
	"cryptoalert/internal/metrics"
	"cryptoalert/internal/models"
)

var errNotConfigured = errors.New("monitor store or fetcher not configured")

// CycleResult summarizes one poll cycle.
type CycleResult struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Checked   int           `json:"checked"`
	Triggered int           `json:"triggered"`
	Keys      int           `json:"keys"`
	Skipped   int           `json:"skipped"`
	Errors    int           `json:"errors"`
	Err       string        `json:"error,omitempty"`
}

func (m *Monitor) runCycle(ctx context.Context) (res CycleResult) {
	ctx, span := otel.Tracer("cryptoalert/monitor").Start(ctx, "monitor.cycle", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	now := m.now()
	res.StartedAt = now
	began := time.Now()
	defer func() {
		res.Duration = time.Since(began)
		metrics.CycleDuration.Observe(res.Duration.Seconds())
		span.SetAttributes(
			attribute.Int("alerts.checked", res.Checked),
			attribute.Int("alerts.triggered", res.Triggered),
			attribute.Int("resources", res.Keys),
		)
		m.record(res)
	}()

	if m.Store == nil || m.Fetcher == nil {
		res.Err = errNotConfigured.Error()
		m.logger().Error("monitor cycle aborted", zap.Error(errNotConfigured))
		return res
	}

	items, err := m.Store.ListEligibleAlerts(ctx)
	if err != nil {
		metrics.CycleErrors.WithLabelValues("load").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "load alerts")
		res.Err = err.Error()
		m.logger().Error("monitor load alerts failed", zap.Error(err))
		return res
	}
	res.Checked = len(items)
	if len(items) == 0 {
		return res
	}

	groups := alert.GroupByResource(items)
	res.Keys = len(groups.Keys)
	if blank := len(items) - groups.Size(); blank > 0 {
		res.Skipped += blank
		m.logger().Warn("monitor skipped alerts without resource key", zap.Int("count", blank))
	}
	if len(groups.Keys) == 0 {
		return res
	}

	samples, err := m.Fetcher.FetchBatch(ctx, groups.Keys)
	if err != nil {
		metrics.CycleErrors.WithLabelValues("fetch").Inc()
		span.RecordError(err)
		m.logger().Warn("monitor fetch failed",
			zap.Strings("keys", groups.Keys),
			zap.Int("returned", len(samples)),
			zap.Error(err),
		)
	}

	m.prices.Update(samples, now)
	metrics.CachedResources.Set(float64(m.prices.Len()))
	if m.Mirror != nil && len(samples) > 0 {
		if err := m.Mirror.PublishPrices(ctx, samples, now); err != nil {
			m.logger().Warn("monitor mirror prices failed", zap.Error(err))
		}
	}

	for _, key := range groups.Keys {
		group := groups.ByKey[key]
		sample, ok := samples[key]
		if !ok {
			res.Skipped += len(group)
			m.logger().Warn("monitor no price for resource",
				zap.String("resource_key", key),
				zap.Int("alerts", len(group)),
			)
			continue
		}
		for _, a := range group {
			notified, err := m.process(ctx, a, sample, now)
			if err != nil {
				res.Errors++
				metrics.CycleErrors.WithLabelValues("evaluate").Inc()
				m.logger().Error("monitor alert evaluation failed",
					zap.String("alert_id", a.ID),
					zap.String("resource_key", key),
					zap.Error(err),
				)
				continue
			}
			if notified {
				res.Triggered++
			}
		}
	}

	if res.Triggered > 0 || res.Errors > 0 || res.Skipped > 0 {
		m.logger().Info("monitor cycle done",
			zap.Int("checked", res.Checked),
			zap.Int("triggered", res.Triggered),
			zap.Int("skipped", res.Skipped),
			zap.Int("errors", res.Errors),
		)
	}
	return res
}

// process evaluates one alert. A panic in here is turned into an error so the
// rest of the cycle still runs.
func (m *Monitor) process(ctx context.Context, a models.Alert, s alert.Sample, now time.Time) (notified bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			notified = false
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	ok, err := alert.Evaluate(a, s)
	if err != nil {
		return false, err
	}
	if !ok || !alert.CanNotify(a, now, m.defaultCooldown()) {
		m.refreshLastKnown(ctx, a, s)
		return false, nil
	}

	next := alert.ApplyTrigger(a, s.Value, now)
	if err := m.Store.SaveAlert(ctx, &next); err != nil {
		return false, fmt.Errorf("save alert: %w", err)
	}
	m.dispatch(ctx, next, s, now)
	return true, nil
}

func (m *Monitor) refreshLastKnown(ctx context.Context, a models.Alert, s alert.Sample) {
	if a.LastKnownValue != nil && a.LastKnownValue.Equal(s.Value) {
		return
	}
	if err := m.Store.UpdateLastKnownValue(ctx, a.ID, s.Value); err != nil {
		m.logger().Warn("monitor update last known value failed",
			zap.String("alert_id", a.ID),
			zap.Error(err),
		)
	}
}

func (m *Monitor) record(res CycleResult) {
	checkedAt := res.StartedAt
	m.statsMu.Lock()
	m.stats.lastCheckTime = &checkedAt
	m.stats.lastCycleDuration = res.Duration
	m.stats.alertsChecked = res.Checked
	m.stats.alertsTriggered = res.Triggered
	m.stats.cycles++
	m.stats.totalChecked += int64(res.Checked)
	m.stats.totalTriggered += int64(res.Triggered)
	m.statsMu.Unlock()

	metrics.AlertsChecked.Add(float64(res.Checked))
	metrics.AlertsTriggered.Add(float64(res.Triggered))
}
