package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Pinger is anything that can report reachability. rowstore.Store satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RowStoreHealth is the result of the most recent ping.
type RowStoreHealth struct {
	Healthy bool
	// Checked is zero until the first ping returns.
	Checked             time.Time
	Latency             time.Duration
	Err                 string
	ConsecutiveFailures int
}

// HealthChecker pings the row store on a fixed interval, independently of
// pipeline runs, so /healthz reflects connectivity between refreshes.
type HealthChecker struct {
	target   Pinger
	interval time.Duration
	timeout  time.Duration
	metrics  *Metrics
	logger   *slog.Logger

	mu     sync.RWMutex
	status RowStoreHealth

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewHealthChecker creates a checker and starts pinging immediately.
// The row store counts as unhealthy until the first ping succeeds.
func NewHealthChecker(target Pinger, interval, timeout time.Duration, metrics *Metrics, logger *slog.Logger) *HealthChecker {
	if logger == nil {
		logger = slog.Default()
	}
	hc := &HealthChecker{
		target:   target,
		interval: interval,
		timeout:  timeout,
		metrics:  metrics,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
	go hc.loop()
	return hc
}

func (hc *HealthChecker) loop() {
	hc.ping()

	ticker := time.NewTicker(hc.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			hc.ping()
		case <-hc.stopCh:
			return
		}
	}
}

func (hc *HealthChecker) ping() {
	ctx, cancel := context.WithTimeout(context.Background(), hc.timeout)
	defer cancel()

	start := time.Now()
	err := hc.target.Ping(ctx)
	latency := time.Since(start)

	hc.mu.Lock()
	prev := hc.status
	next := RowStoreHealth{Healthy: err == nil, Checked: time.Now(), Latency: latency}
	if err != nil {
		next.Err = err.Error()
		next.ConsecutiveFailures = prev.ConsecutiveFailures + 1
	}
	hc.status = next
	hc.mu.Unlock()

	hc.metrics.UpdateRowStoreHealth(next.Healthy, latency)

	// Log transitions only; a steady state is visible in the gauge.
	switch {
	case !next.Healthy && (prev.Healthy || prev.Checked.IsZero()):
		hc.logger.Warn("row store unreachable", "err", next.Err, "latency", latency)
	case next.Healthy && !prev.Healthy && !prev.Checked.IsZero():
		hc.logger.Info("row store reachable again", "failures", prev.ConsecutiveFailures, "latency", latency)
	}
}

// Status returns the latest ping result.
func (hc *HealthChecker) Status() RowStoreHealth {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.status
}

// Healthy reports whether the last ping succeeded.
func (hc *HealthChecker) Healthy() bool {
	return hc.Status().Healthy
}

// LastCheck returns when the last ping returned.
func (hc *HealthChecker) LastCheck() time.Time {
	return hc.Status().Checked
}

// LastError returns the last ping error, or "" when healthy.
func (hc *HealthChecker) LastError() string {
	return hc.Status().Err
}

// Shutdown stops pinging. It is safe to call more than once.
func (hc *HealthChecker) Shutdown() {
	hc.stopOnce.Do(func() { close(hc.stopCh) })
}
