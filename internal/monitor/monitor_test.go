package monitor

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cryptoalert/internal/alert"
	"cryptoalert/internal/config"
	"cryptoalert/internal/models"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func newAlert(id, key string, cond models.ConditionType, threshold string) models.Alert {
	return models.Alert{
		ID:              id,
		OwnerID:         "owner-1",
		ResourceKey:     key,
		ConditionType:   cond,
		Threshold:       d(threshold),
		IsActive:        true,
		CooldownMinutes: 60,
	}
}

func newMonitor(store *stubStore, fetcher *stubFetcher, notifier *stubNotifier, clk *clock) *Monitor {
	return &Monitor{
		Store:      store,
		Fetcher:    fetcher,
		Notifier:   notifier,
		Deliveries: store,
		Config:     config.MonitorConfig{NotifyTimeout: time.Second},
		Now:        clk.Now,
	}
}

func TestCycle_Scenario(t *testing.T) {
	store := newStubStore(
		newAlert("1", "coinA", models.ConditionAbove, "100"),
		newAlert("2", "coinB", models.ConditionBelow, "10"),
		newAlert("3", "coinA", models.ConditionPctUp, "5"),
	)
	fetcher := &stubFetcher{samples: map[string]alert.Sample{
		"coinA": {Value: d("105"), PctChange24h: dp("6")},
		"coinB": {Value: d("12"), PctChange24h: dp("1")},
	}}
	notifier := &stubNotifier{}
	m := newMonitor(store, fetcher, notifier, &clock{t: t0})

	res, ok := m.ForceCheck(context.Background())
	m.Flush()
	if !ok {
		t.Fatalf("force check should run")
	}
	if fetcher.callCount() != 1 {
		t.Fatalf("fetch calls=%d want=1", fetcher.callCount())
	}
	if got := strings.Join(fetcher.calls[0], ","); got != "coinA,coinB" {
		t.Fatalf("fetch keys=%s want=coinA,coinB", got)
	}
	if res.Checked != 3 || res.Triggered != 2 {
		t.Fatalf("checked=%d triggered=%d want=3,2", res.Checked, res.Triggered)
	}
	if !store.get("1").IsTriggered || store.get("2").IsTriggered || !store.get("3").IsTriggered {
		t.Fatalf("unexpected trigger state: 1=%v 2=%v 3=%v",
			store.get("1").IsTriggered, store.get("2").IsTriggered, store.get("3").IsTriggered)
	}
	if a := store.get("1"); a.TriggerValue == nil || !a.TriggerValue.Equal(d("105")) || a.TriggeredAt == nil || !a.TriggeredAt.Equal(t0) {
		t.Fatalf("trigger record=%v at %v", a.TriggerValue, a.TriggeredAt)
	}
	if notifier.count() != 2 {
		t.Fatalf("sent=%d want=2", notifier.count())
	}
	if a := store.get("2"); a.LastKnownValue == nil || !a.LastKnownValue.Equal(d("12")) {
		t.Fatalf("last known value of non-triggering alert=%v want=12", a.LastKnownValue)
	}

	st := m.Status()
	if st.AlertsChecked != 3 || st.AlertsTriggered != 2 || st.CachedResourceCount != 2 {
		t.Fatalf("status=%+v", st)
	}
	if st.LastCheckTime == nil || !st.LastCheckTime.Equal(t0) {
		t.Fatalf("last check=%v want=%v", st.LastCheckTime, t0)
	}
}

func TestCycle_GroupingFetchesDistinctKeysOnce(t *testing.T) {
	var items []models.Alert
	keys := []string{"coinA", "coinB", "coinC"}
	for i := 0; i < 12; i++ {
		items = append(items, newAlert(string(rune('a'+i)), keys[i%3], models.ConditionAbove, "1000"))
	}
	store := newStubStore(items...)
	fetcher := &stubFetcher{samples: map[string]alert.Sample{
		"coinA": {Value: d("1")}, "coinB": {Value: d("1")}, "coinC": {Value: d("1")},
	}}
	m := newMonitor(store, fetcher, &stubNotifier{}, &clock{t: t0})

	m.ForceCheck(context.Background())
	if fetcher.callCount() != 1 {
		t.Fatalf("fetch calls=%d want=1", fetcher.callCount())
	}
	if len(fetcher.calls[0]) != 3 {
		t.Fatalf("fetch keys=%v want 3 distinct", fetcher.calls[0])
	}
}

func TestCycle_OneShotNotifiesOnce(t *testing.T) {
	store := newStubStore(newAlert("1", "coinA", models.ConditionAbove, "100"))
	fetcher := &stubFetcher{samples: map[string]alert.Sample{"coinA": {Value: d("150")}}}
	notifier := &stubNotifier{}
	clk := &clock{t: t0}
	m := newMonitor(store, fetcher, notifier, clk)

	for i := 0; i < 5; i++ {
		clk.Set(t0.Add(time.Duration(i) * 3 * time.Hour))
		m.ForceCheck(context.Background())
	}
	m.Flush()

	if notifier.count() != 1 {
		t.Fatalf("sent=%d want=1", notifier.count())
	}
	a := store.get("1")
	if !a.IsTriggered || a.NotificationsSent != 1 {
		t.Fatalf("triggered=%v notifications=%d", a.IsTriggered, a.NotificationsSent)
	}
	if fetcher.callCount() != 1 {
		t.Fatalf("triggered one-shot alert should not be fetched again, calls=%d", fetcher.callCount())
	}
}

func TestCycle_RearmedOneShotFiresAgain(t *testing.T) {
	store := newStubStore(newAlert("1", "coinA", models.ConditionAbove, "100"))
	fetcher := &stubFetcher{samples: map[string]alert.Sample{"coinA": {Value: d("150")}}}
	notifier := &stubNotifier{}
	clk := &clock{t: t0}
	m := newMonitor(store, fetcher, notifier, clk)

	m.ForceCheck(context.Background())
	rearmed := alert.Rearm(store.get("1"))
	if err := store.SaveAlert(context.Background(), &rearmed); err != nil {
		t.Fatalf("err=%v", err)
	}
	clk.Set(t0.Add(time.Minute))
	m.ForceCheck(context.Background())
	clk.Set(t0.Add(2 * time.Minute))
	m.ForceCheck(context.Background())
	m.Flush()

	if notifier.count() != 2 {
		t.Fatalf("sent=%d want=2", notifier.count())
	}
	a := store.get("1")
	if !a.IsTriggered || a.NotificationsSent != 2 {
		t.Fatalf("triggered=%v notifications=%d want=true 2", a.IsTriggered, a.NotificationsSent)
	}
}

func TestDispatch_TimedOutSendIsStillLogged(t *testing.T) {
	store := newStubStore(newAlert("1", "coinA", models.ConditionAbove, "100"))
	fetcher := &stubFetcher{samples: map[string]alert.Sample{"coinA": {Value: d("150")}}}
	mirror := &stubMirror{}
	m := &Monitor{
		Store:      store,
		Fetcher:    fetcher,
		Notifier:   blockingNotifier{},
		Deliveries: store,
		Mirror:     mirror,
		Config:     config.MonitorConfig{NotifyTimeout: 50 * time.Millisecond},
		Now:        (&clock{t: t0}).Now,
	}

	m.ForceCheck(context.Background())
	m.Flush()

	store.mu.Lock()
	rows := append([]models.AlertNotification(nil), store.deliveries...)
	store.mu.Unlock()
	if len(rows) != 1 || rows[0].Status != models.DeliveryStatusFailed || rows[0].Error == nil {
		t.Fatalf("deliveries=%+v want one failed row", rows)
	}
	mirror.mu.Lock()
	published := len(mirror.triggers)
	mirror.mu.Unlock()
	if published != 1 {
		t.Fatalf("published=%d want=1", published)
	}
	if got := m.Status().NotifyFailures; got != 1 {
		t.Fatalf("notify failures=%d want=1", got)
	}
}

func TestCycle_RepeatRespectsCooldown(t *testing.T) {
	a := newAlert("1", "coinA", models.ConditionAbove, "100")
	a.Repeat = true
	store := newStubStore(a)
	fetcher := &stubFetcher{samples: map[string]alert.Sample{"coinA": {Value: d("150")}}}
	notifier := &stubNotifier{}
	clk := &clock{t: t0}
	m := newMonitor(store, fetcher, notifier, clk)

	var triggered []int
	for _, minute := range []int{0, 2, 65} {
		clk.Set(t0.Add(time.Duration(minute) * time.Minute))
		res, _ := m.ForceCheck(context.Background())
		if res.Triggered > 0 {
			triggered = append(triggered, minute)
		}
	}
	m.Flush()

	if len(triggered) != 2 || triggered[0] != 0 || triggered[1] != 65 {
		t.Fatalf("triggered at=%v want=[0 65]", triggered)
	}
	if notifier.count() != 2 {
		t.Fatalf("sent=%d want=2", notifier.count())
	}
	got := store.get("1")
	if got.IsTriggered {
		t.Fatalf("repeating alert should stay armed")
	}
	if got.NotificationsSent != 2 {
		t.Fatalf("notifications=%d want=2", got.NotificationsSent)
	}
	if got.LastNotificationAt == nil || !got.LastNotificationAt.Equal(t0.Add(65*time.Minute)) {
		t.Fatalf("last notification=%v", got.LastNotificationAt)
	}
}

func TestCycle_BadAlertDoesNotAbortCycle(t *testing.T) {
	store := newStubStore(
		newAlert("bad", "coinA", models.ConditionType("sideways"), "1"),
		newAlert("b", "coinA", models.ConditionAbove, "100"),
		newAlert("c", "coinA", models.ConditionBelow, "200"),
	)
	fetcher := &stubFetcher{samples: map[string]alert.Sample{"coinA": {Value: d("150")}}}
	notifier := &stubNotifier{}
	m := newMonitor(store, fetcher, notifier, &clock{t: t0})

	res, _ := m.ForceCheck(context.Background())
	m.Flush()
	if res.Errors != 1 || res.Triggered != 2 {
		t.Fatalf("errors=%d triggered=%d want=1,2", res.Errors, res.Triggered)
	}
	if store.get("bad").IsTriggered {
		t.Fatalf("bad alert must not be triggered")
	}
	if notifier.count() != 2 {
		t.Fatalf("sent=%d want=2", notifier.count())
	}
}

func TestForceCheck_OverlapIsDropped(t *testing.T) {
	store := newStubStore(newAlert("1", "coinA", models.ConditionAbove, "100"))
	fetcher := &stubFetcher{
		samples: map[string]alert.Sample{"coinA": {Value: d("1")}},
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	m := newMonitor(store, fetcher, &stubNotifier{}, &clock{t: t0})

	done := make(chan bool, 1)
	go func() {
		_, ok := m.ForceCheck(context.Background())
		done <- ok
	}()
	<-fetcher.entered

	if _, ok := m.ForceCheck(context.Background()); ok {
		t.Fatalf("second force check should be dropped while a cycle runs")
	}
	close(fetcher.block)
	if ok := <-done; !ok {
		t.Fatalf("first force check should have run")
	}
	if fetcher.callCount() != 1 {
		t.Fatalf("fetch calls=%d want=1", fetcher.callCount())
	}
	if st := m.Status(); st.SkippedTicks != 1 {
		t.Fatalf("skipped ticks=%d want=1", st.SkippedTicks)
	}
}

func TestShutdown_WaitsForCycleAndDeliveries(t *testing.T) {
	store := newStubStore(newAlert("1", "coinA", models.ConditionAbove, "100"))
	fetcher := &stubFetcher{
		samples: map[string]alert.Sample{"coinA": {Value: d("150")}},
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	notifier := &stubNotifier{}
	m := newMonitor(store, fetcher, notifier, &clock{t: t0})

	go m.ForceCheck(context.Background())
	<-fetcher.entered

	done := make(chan error, 1)
	go func() { done <- m.Shutdown(context.Background()) }()

	select {
	case err := <-done:
		t.Fatalf("shutdown returned early err=%v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(fetcher.block)
	if err := <-done; err != nil {
		t.Fatalf("err=%v", err)
	}
	if notifier.count() != 1 {
		t.Fatalf("sent=%d want=1", notifier.count())
	}
	if _, ok := m.ForceCheck(context.Background()); ok {
		t.Fatalf("no cycle should run after shutdown")
	}
}

func TestShutdown_HonorsContext(t *testing.T) {
	fetcher := &stubFetcher{
		samples: map[string]alert.Sample{},
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	m := newMonitor(newStubStore(newAlert("1", "coinA", models.ConditionAbove, "100")), fetcher, &stubNotifier{}, &clock{t: t0})

	go m.ForceCheck(context.Background())
	<-fetcher.entered
	defer close(fetcher.block)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := m.Shutdown(ctx); err != context.DeadlineExceeded {
		t.Fatalf("err=%v want=%v", err, context.DeadlineExceeded)
	}
}

func TestCycle_NotifierFailureKeepsTriggerState(t *testing.T) {
	store := newStubStore(newAlert("1", "coinA", models.ConditionAbove, "100"))
	fetcher := &stubFetcher{samples: map[string]alert.Sample{"coinA": {Value: d("150")}}}
	notifier := &stubNotifier{err: context.DeadlineExceeded}
	m := newMonitor(store, fetcher, notifier, &clock{t: t0})

	res, _ := m.ForceCheck(context.Background())
	m.Flush()
	if res.Triggered != 1 {
		t.Fatalf("triggered=%d want=1", res.Triggered)
	}
	a := store.get("1")
	if !a.IsTriggered || a.NotificationsSent != 1 || a.LastNotificationAt == nil {
		t.Fatalf("trigger state reverted: %+v", a)
	}
	if st := m.Status(); st.NotifyFailures != 1 {
		t.Fatalf("notify failures=%d want=1", st.NotifyFailures)
	}
	if len(store.deliveries) != 1 || store.deliveries[0].Status != models.DeliveryStatusFailed || store.deliveries[0].Error == nil {
		t.Fatalf("deliveries=%+v", store.deliveries)
	}
}

func TestCycle_SaveFailureSkipsNotification(t *testing.T) {
	store := newStubStore(
		newAlert("1", "coinA", models.ConditionAbove, "100"),
		newAlert("2", "coinA", models.ConditionAbove, "100"),
	)
	store.failSave["1"] = true
	fetcher := &stubFetcher{samples: map[string]alert.Sample{"coinA": {Value: d("150")}}}
	notifier := &stubNotifier{}
	m := newMonitor(store, fetcher, notifier, &clock{t: t0})

	res, _ := m.ForceCheck(context.Background())
	m.Flush()
	if res.Errors != 1 || res.Triggered != 1 {
		t.Fatalf("errors=%d triggered=%d want=1,1", res.Errors, res.Triggered)
	}
	if notifier.count() != 1 {
		t.Fatalf("sent=%d want=1", notifier.count())
	}
	if store.get("1").IsTriggered {
		t.Fatalf("unsaved alert must stay eligible")
	}

	// once storage recovers the alert fires on the next cycle
	delete(store.failSave, "1")
	res, _ = m.ForceCheck(context.Background())
	m.Flush()
	if res.Triggered != 1 || !store.get("1").IsTriggered {
		t.Fatalf("retry triggered=%d", res.Triggered)
	}
}

func TestCycle_EmptySetSkipsFetch(t *testing.T) {
	store := newStubStore()
	fetcher := &stubFetcher{}
	m := newMonitor(store, fetcher, &stubNotifier{}, &clock{t: t0})

	res, ok := m.ForceCheck(context.Background())
	if !ok || res.Checked != 0 {
		t.Fatalf("ok=%v checked=%d", ok, res.Checked)
	}
	if fetcher.callCount() != 0 {
		t.Fatalf("fetch calls=%d want=0", fetcher.callCount())
	}
	if st := m.Status(); st.LastCheckTime == nil || st.AlertsChecked != 0 {
		t.Fatalf("status=%+v", st)
	}
}

func TestCycle_MissingKeysAndFetchErrors(t *testing.T) {
	store := newStubStore(
		newAlert("1", "coinA", models.ConditionAbove, "100"),
		newAlert("2", "coinB", models.ConditionAbove, "1"),
	)
	fetcher := &stubFetcher{
		samples: map[string]alert.Sample{"coinA": {Value: d("150")}},
		err:     context.DeadlineExceeded,
	}
	mirror := &stubMirror{}
	m := newMonitor(store, fetcher, &stubNotifier{}, &clock{t: t0})
	m.Mirror = mirror

	res, _ := m.ForceCheck(context.Background())
	m.Flush()
	if res.Triggered != 1 || res.Skipped != 1 {
		t.Fatalf("triggered=%d skipped=%d want=1,1", res.Triggered, res.Skipped)
	}
	if store.get("2").IsTriggered {
		t.Fatalf("alert without data must not trigger")
	}
	if _, ok := m.Prices()["coinB"]; ok {
		t.Fatalf("missing key should not be cached")
	}
	if mirror.prices != 1 || len(mirror.triggers) != 1 || mirror.triggers[0].AlertID != "1" {
		t.Fatalf("mirror prices=%d triggers=%v", mirror.prices, mirror.triggers)
	}
}

func TestCleanup(t *testing.T) {
	old := t0.Add(-40 * 24 * time.Hour)
	recent := t0.Add(-time.Hour)
	a1 := newAlert("old", "coinA", models.ConditionAbove, "1")
	a1.IsTriggered, a1.TriggeredAt = true, &old
	a2 := newAlert("recent", "coinA", models.ConditionAbove, "1")
	a2.IsTriggered, a2.TriggeredAt = true, &recent
	a3 := newAlert("repeat", "coinA", models.ConditionAbove, "1")
	a3.Repeat, a3.IsTriggered, a3.TriggeredAt = true, true, &old
	store := newStubStore(a1, a2, a3)
	m := newMonitor(store, &stubFetcher{}, &stubNotifier{}, &clock{t: t0})

	n, err := m.Cleanup(context.Background(), 0)
	if err != nil || n != 1 {
		t.Fatalf("removed=%d err=%v want=1,nil", n, err)
	}
	if want := t0.Add(-30 * 24 * time.Hour); !store.cutoff.Equal(want) {
		t.Fatalf("cutoff=%v want=%v", store.cutoff, want)
	}
	var left []string
	for id := range store.alerts {
		left = append(left, id)
	}
	sort.Strings(left)
	if strings.Join(left, ",") != "recent,repeat" {
		t.Fatalf("left=%v", left)
	}
}

func TestOwnerSummary(t *testing.T) {
	a1 := newAlert("1", "coinA", models.ConditionAbove, "1")
	a2 := newAlert("2", "coinA", models.ConditionAbove, "1")
	a2.IsTriggered = true
	a3 := newAlert("3", "coinA", models.ConditionAbove, "1")
	a3.OwnerID = "someone-else"
	m := newMonitor(newStubStore(a1, a2, a3), &stubFetcher{}, &stubNotifier{}, &clock{t: t0})

	sum, err := m.OwnerSummary(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if sum.Active != 1 || sum.Triggered != 1 || sum.Total != 2 || sum.MonitoringRunning {
		t.Fatalf("summary=%+v", sum)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	store := newStubStore(newAlert("1", "coinA", models.ConditionAbove, "1000"))
	fetcher := &stubFetcher{samples: map[string]alert.Sample{"coinA": {Value: d("1")}}}
	m := newMonitor(store, fetcher, &stubNotifier{}, &clock{t: t0})
	m.Config.Interval = 10 * time.Millisecond
	m.Config.InitialDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !m.Start(ctx) {
		t.Fatalf("first start should start")
	}
	if m.Start(ctx) {
		t.Fatalf("second start should be a no-op")
	}
	if !m.Status().IsRunning {
		t.Fatalf("status should report running")
	}

	deadline := time.Now().Add(2 * time.Second)
	for fetcher.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if fetcher.callCount() < 2 {
		t.Fatalf("scheduler ran %d cycles, want at least 2", fetcher.callCount())
	}

	if !m.Stop() {
		t.Fatalf("first stop should stop")
	}
	if m.Stop() {
		t.Fatalf("second stop should be a no-op")
	}
	if m.Status().IsRunning {
		t.Fatalf("status should report stopped")
	}
}

func TestStartReleasesOnContextCancel(t *testing.T) {
	m := newMonitor(newStubStore(), &stubFetcher{}, &stubNotifier{}, &clock{t: t0})
	m.Config.InitialDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for m.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if m.IsRunning() {
		t.Fatalf("scheduler should stop when its context ends")
	}
}
