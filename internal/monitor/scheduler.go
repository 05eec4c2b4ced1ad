package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"cryptoalert/internal/metrics"
)

// Start begins polling. The first cycle runs after the initial delay, then one
// per interval. It returns false when the scheduler was already running.
func (m *Monitor) Start(ctx context.Context) bool {
	if m == nil {
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}
	m.schedMu.Lock()
	defer m.schedMu.Unlock()
	if m.stop != nil {
		return false
	}
	stop := make(chan struct{})
	m.stop = stop
	go m.loop(ctx, stop)

	m.logger().Info("monitor started",
		zap.Duration("interval", m.interval()),
		zap.Duration("initial_delay", m.initialDelay()),
	)
	return true
}

// Stop prevents future ticks. A cycle already running is left to finish, as
// are pending deliveries. It returns false when the scheduler was not running.
func (m *Monitor) Stop() bool {
	if m == nil {
		return false
	}
	m.schedMu.Lock()
	defer m.schedMu.Unlock()
	if m.stop == nil {
		return false
	}
	close(m.stop)
	m.stop = nil
	m.logger().Info("monitor stopped")
	return true
}

func (m *Monitor) IsRunning() bool {
	if m == nil {
		return false
	}
	m.schedMu.Lock()
	defer m.schedMu.Unlock()
	return m.stop != nil
}

// ForceCheck runs one cycle now and waits for it. It returns false without
// doing anything when another cycle is in flight.
func (m *Monitor) ForceCheck(ctx context.Context) (CycleResult, bool) {
	if m == nil {
		return CycleResult{}, false
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return m.tryCycle(ctx, "manual")
}

// Shutdown stops the scheduler, waits for an in-flight cycle to finish and
// then for its deliveries. It holds the cycle flag on return, so no later tick
// or ForceCheck runs. It returns ctx.Err() if ctx ends first.
func (m *Monitor) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	m.Stop()

	poll := time.NewTicker(10 * time.Millisecond)
	defer poll.Stop()
	for !m.cycling.CompareAndSwap(false, true) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-poll.C:
		}
	}

	flushed := make(chan struct{})
	go func() {
		m.pending.Wait()
		close(flushed)
	}()
	select {
	case <-flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Monitor) loop(ctx context.Context, stop chan struct{}) {
	defer m.release(stop)

	timer := time.NewTimer(m.initialDelay())
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-stop:
		return
	case <-timer.C:
		go m.tryCycle(ctx, "initial")
	}

	ticker := time.NewTicker(m.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			go m.tryCycle(ctx, "tick")
		}
	}
}

// release clears the running state when the loop exits on its own because
// its context ended.
func (m *Monitor) release(stop chan struct{}) {
	m.schedMu.Lock()
	defer m.schedMu.Unlock()
	if m.stop == stop {
		m.stop = nil
	}
}

func (m *Monitor) tryCycle(ctx context.Context, trigger string) (CycleResult, bool) {
	if !m.cycling.CompareAndSwap(false, true) {
		m.statsMu.Lock()
		m.stats.skippedTicks++
		m.statsMu.Unlock()
		metrics.SkippedTicks.Inc()
		m.logger().Warn("monitor cycle skipped: previous cycle still running", zap.String("trigger", trigger))
		return CycleResult{}, false
	}
	defer m.cycling.Store(false)
	return m.runCycle(ctx), true
}
