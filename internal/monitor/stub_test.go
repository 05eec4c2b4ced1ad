package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"cryptoalert/internal/alert"
	"cryptoalert/internal/models"
	"cryptoalert/internal/repository"
)

// stubStore is an in-memory SubscriptionStore and DeliveryLog.
type stubStore struct {
	mu         sync.Mutex
	order      []string
	alerts     map[string]models.Alert
	failSave   map[string]bool
	saves      int
	listErr    error
	cutoff     time.Time
	deleteN    int64
	deliveries []models.AlertNotification
}

func newStubStore(items ...models.Alert) *stubStore {
	s := &stubStore{alerts: map[string]models.Alert{}, failSave: map[string]bool{}}
	for _, a := range items {
		s.order = append(s.order, a.ID)
		s.alerts[a.ID] = a
	}
	return s
}

func (s *stubStore) ListEligibleAlerts(ctx context.Context) ([]models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := []models.Alert{}
	for _, id := range s.order {
		a, ok := s.alerts[id]
		if ok && a.Eligible() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubStore) SaveAlert(ctx context.Context, item *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave[item.ID] {
		return errors.New("db down")
	}
	s.saves++
	s.alerts[item.ID] = *item
	return nil
}

func (s *stubStore) UpdateLastKnownValue(ctx context.Context, id string, value decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return repository.ErrNotFound
	}
	v := value
	a.LastKnownValue = &v
	s.alerts[id] = a
	return nil
}

func (s *stubStore) DeleteTriggeredAlertsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cutoff = cutoff
	var n int64
	for id, a := range s.alerts {
		if a.IsTriggered && !a.Repeat && a.TriggeredAt != nil && a.TriggeredAt.Before(cutoff) {
			delete(s.alerts, id)
			n++
		}
	}
	s.deleteN = n
	return n, nil
}

func (s *stubStore) CountAlertsByOwner(ctx context.Context, ownerID string) (repository.OwnerAlertCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out repository.OwnerAlertCounts
	for _, a := range s.alerts {
		if a.OwnerID != ownerID {
			continue
		}
		out.Total++
		if a.IsTriggered {
			out.Triggered++
		} else if a.IsActive {
			out.Active++
		}
	}
	return out, nil
}

func (s *stubStore) InsertAlertNotification(ctx context.Context, item *models.AlertNotification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries = append(s.deliveries, *item)
	return nil
}

func (s *stubStore) DeleteAlertNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (s *stubStore) get(id string) models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alerts[id]
}

// stubFetcher records every batch it is asked for.
type stubFetcher struct {
	mu      sync.Mutex
	samples map[string]alert.Sample
	err     error
	calls   [][]string

	// block, when set, holds FetchBatch until it is closed; entered is
	// signalled once the call has started.
	block   chan struct{}
	entered chan struct{}
}

func (f *stubFetcher) FetchBatch(ctx context.Context, keys []string) (map[string]alert.Sample, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), keys...))
	block, entered := f.block, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]alert.Sample, len(keys))
	for _, k := range keys {
		if s, ok := f.samples[k]; ok {
			out[k] = s
		}
	}
	return out, f.err
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type sent struct {
	ownerID string
	message string
}

type stubNotifier struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (n *stubNotifier) Send(ctx context.Context, ownerID string, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sent{ownerID: ownerID, message: message})
	return n.err
}

func (n *stubNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// blockingNotifier never delivers; it returns once ctx is done.
type blockingNotifier struct{}

func (blockingNotifier) Send(ctx context.Context, ownerID string, message string) error {
	<-ctx.Done()
	return ctx.Err()
}

type stubMirror struct {
	mu       sync.Mutex
	prices   int
	triggers []alert.Event
}

func (m *stubMirror) PublishPrices(ctx context.Context, samples map[string]alert.Sample, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices += len(samples)
	return nil
}

func (m *stubMirror) PublishTrigger(ctx context.Context, event alert.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggers = append(m.triggers, event)
	return nil
}

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}
