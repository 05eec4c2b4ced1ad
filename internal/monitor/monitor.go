package monitor

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"cryptoalert/internal/alert"
	"cryptoalert/internal/config"
	"cryptoalert/internal/repository"
)

const (
	defaultInterval        = 2 * time.Minute
	defaultInitialDelay    = 5 * time.Second
	defaultRetentionWindow = 30 * 24 * time.Hour
	defaultNotifyTimeout   = 10 * time.Second
)

// Fetcher returns the latest sample per resource key. Keys the provider could
// not serve are omitted from the map.
type Fetcher interface {
	FetchBatch(ctx context.Context, keys []string) (map[string]alert.Sample, error)
}

// Notifier delivers a rendered message to an owner.
type Notifier interface {
	Send(ctx context.Context, ownerID string, message string) error
}

// Mirror receives prices and trigger events for outside consumers.
type Mirror interface {
	PublishPrices(ctx context.Context, samples map[string]alert.Sample, at time.Time) error
	PublishTrigger(ctx context.Context, event alert.Event) error
}

// Monitor polls eligible alerts, evaluates them against fresh prices and
// dispatches notifications. Store and Fetcher are required; the rest is optional.
type Monitor struct {
	Store      repository.SubscriptionStore
	Fetcher    Fetcher
	Notifier   Notifier
	Deliveries repository.DeliveryLog
	Mirror     Mirror
	Logger     *zap.Logger
	Config     config.MonitorConfig

	// Now overrides the clock in tests.
	Now func() time.Time

	prices PriceCache

	cycling atomic.Bool
	pending sync.WaitGroup

	schedMu sync.Mutex
	stop    chan struct{}

	statsMu sync.RWMutex
	stats   stats
}

type stats struct {
	lastCheckTime     *time.Time
	lastCycleDuration time.Duration
	alertsChecked     int
	alertsTriggered   int
	cycles            int64
	totalChecked      int64
	totalTriggered    int64
	notifyFailures    int64
	skippedTicks      int64
}

// Status is a read-only snapshot for operators.
type Status struct {
	IsRunning           bool       `json:"is_running"`
	CycleInFlight       bool       `json:"cycle_in_flight"`
	LastCheckTime       *time.Time `json:"last_check_time"`
	LastCycleMillis     int64      `json:"last_cycle_ms"`
	AlertsChecked       int        `json:"alerts_checked"`
	AlertsTriggered     int        `json:"alerts_triggered"`
	CachedResourceCount int        `json:"cached_resource_count"`
	Cycles              int64      `json:"cycles"`
	TotalChecked        int64      `json:"total_checked"`
	TotalTriggered      int64      `json:"total_triggered"`
	NotifyFailures      int64      `json:"notify_failures"`
	SkippedTicks        int64      `json:"skipped_ticks"`
	Interval            string     `json:"interval"`
}

type OwnerSummary struct {
	OwnerID string `json:"owner_id"`
	repository.OwnerAlertCounts
	MonitoringRunning bool `json:"monitoring_running"`
}

func (m *Monitor) Status() Status {
	if m == nil {
		return Status{}
	}
	m.statsMu.RLock()
	st := m.stats
	m.statsMu.RUnlock()

	out := Status{
		IsRunning:           m.IsRunning(),
		CycleInFlight:       m.cycling.Load(),
		LastCycleMillis:     st.lastCycleDuration.Milliseconds(),
		AlertsChecked:       st.alertsChecked,
		AlertsTriggered:     st.alertsTriggered,
		CachedResourceCount: m.prices.Len(),
		Cycles:              st.cycles,
		TotalChecked:        st.totalChecked,
		TotalTriggered:      st.totalTriggered,
		NotifyFailures:      st.notifyFailures,
		SkippedTicks:        st.skippedTicks,
		Interval:            m.interval().String(),
	}
	if st.lastCheckTime != nil {
		t := *st.lastCheckTime
		out.LastCheckTime = &t
	}
	return out
}

// OwnerSummary counts one owner's alerts. It works whether or not the
// scheduler is running.
func (m *Monitor) OwnerSummary(ctx context.Context, ownerID string) (OwnerSummary, error) {
	ownerID = strings.TrimSpace(ownerID)
	out := OwnerSummary{OwnerID: ownerID}
	if m == nil || m.Store == nil {
		return out, nil
	}
	counts, err := m.Store.CountAlertsByOwner(ctx, ownerID)
	if err != nil {
		return out, err
	}
	out.OwnerAlertCounts = counts
	out.MonitoringRunning = m.IsRunning()
	return out, nil
}

// Prices returns a copy of the price cache.
func (m *Monitor) Prices() map[string]CachedPrice {
	if m == nil {
		return map[string]CachedPrice{}
	}
	return m.prices.Snapshot()
}

// Flush waits for notification deliveries that are still in flight. It must
// not race a running cycle; use Shutdown when the scheduler may be active.
func (m *Monitor) Flush() {
	if m == nil {
		return
	}
	m.pending.Wait()
}

func (m *Monitor) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}

func (m *Monitor) logger() *zap.Logger {
	if m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger
}

func (m *Monitor) interval() time.Duration {
	if m.Config.Interval > 0 {
		return m.Config.Interval
	}
	return defaultInterval
}

func (m *Monitor) initialDelay() time.Duration {
	if m.Config.InitialDelay > 0 {
		return m.Config.InitialDelay
	}
	return defaultInitialDelay
}

func (m *Monitor) defaultCooldown() time.Duration {
	if m.Config.DefaultCooldownMinutes > 0 {
		return time.Duration(m.Config.DefaultCooldownMinutes) * time.Minute
	}
	return 0
}

func (m *Monitor) notifyTimeout() time.Duration {
	if m.Config.NotifyTimeout > 0 {
		return m.Config.NotifyTimeout
	}
	return defaultNotifyTimeout
}

func (m *Monitor) retentionWindow() time.Duration {
	if m.Config.RetentionWindow > 0 {
		return m.Config.RetentionWindow
	}
	return defaultRetentionWindow
}
