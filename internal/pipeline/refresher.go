package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Refresher re-runs the pipeline every interval and publishes each result
// to a State and an EventBus.
type Refresher struct {
	runner     *Runner
	state      *State
	bus        *EventBus
	history    *History
	interval   time.Duration
	runTimeout time.Duration
	logger     *slog.Logger
	now        func() time.Time

	started  atomic.Bool
	stopOnce sync.Once
	trigger  chan struct{}
	stopCh   chan struct{}
	done     chan struct{}
}

// NewRefresher creates a refresher. Call Start to begin polling.
func NewRefresher(runner *Runner, state *State, bus *EventBus, interval, runTimeout time.Duration, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		runner:     runner,
		state:      state,
		bus:        bus,
		interval:   interval,
		runTimeout: runTimeout,
		logger:     logger,
		now:        time.Now,
		trigger:    make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// SetHistory records every run into h. Call before Start.
func (r *Refresher) SetHistory(h *History) {
	r.history = h
}

// Start runs the pipeline immediately and then on every tick.
func (r *Refresher) Start() {
	if r.started.CompareAndSwap(false, true) {
		go r.loop()
	}
}

func (r *Refresher) loop() {
	defer close(r.done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-r.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	r.RunOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.RunOnce(ctx)
		case <-r.trigger:
			r.RunOnce(ctx)
		case <-r.stopCh:
			return
		}
	}
}

// Refresh asks for an out-of-band run. Requests made while one is already
// pending are coalesced.
func (r *Refresher) Refresh() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// RunOnce runs the pipeline synchronously and publishes the result.
func (r *Refresher) RunOnce(ctx context.Context) Snapshot {
	if r.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.runTimeout)
		defer cancel()
	}

	snap := r.runner.Run(ctx, r.now().UTC())
	published, changed := r.state.Publish(snap)
	if r.history != nil {
		r.history.Record(published, changed)
	}

	if r.bus != nil {
		ev := Event{
			Type:      EventChecked,
			Version:   published.Version,
			Timestamp: published.CheckedAt,
			Outcome:   string(published.Outcome()),
		}
		if changed {
			ev.Type = EventSnapshot
		}
		if published.Halt != nil {
			ev.Message = published.Halt.Message
		} else if published.Err != "" {
			ev.Message = published.Err
		}
		r.bus.Publish(ev)
	}

	if !changed {
		r.logger.Debug("data unchanged, keeping snapshot", "version", published.Version)
	}
	return published
}

// Shutdown stops the loop and waits for an in-flight run to return. It is
// safe to call more than once.
func (r *Refresher) Shutdown() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	if r.started.Load() {
		<-r.done
	}
}
