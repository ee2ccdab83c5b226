// Package pipeline runs fetch → clean on a timer and publishes snapshots.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gtnh-items-tracker/internal/monitor"
	"gtnh-items-tracker/internal/rowstore"
	"gtnh-items-tracker/internal/table"
)

// Snapshot is the result of one pipeline run. Exactly one of Table, Halt or
// Err describes the outcome.
type Snapshot struct {
	Version   uint64        `json:"version"`
	RunAt     time.Time     `json:"run_at"`
	CheckedAt time.Time     `json:"checked_at"`
	Duration  time.Duration `json:"duration"`
	Since     time.Time     `json:"since,omitempty"`

	Items []string     `json:"items"`
	Table *table.Table `json:"-"`
	Halt  *table.Halt  `json:"halt,omitempty"`
	Err   string       `json:"error,omitempty"`
}

// Outcome classifies the snapshot.
func (s *Snapshot) Outcome() monitor.Outcome {
	switch {
	case s.Err != "":
		return monitor.OutcomeError
	case s.Halt != nil:
		return monitor.OutcomeHalted
	default:
		return monitor.OutcomeOK
	}
}

// Runner performs single pipeline passes against a row store.
type Runner struct {
	store    rowstore.Store
	table    string
	lookback time.Duration
	align    time.Duration
	metrics  *monitor.Metrics
	logger   *slog.Logger
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Table string
	// Lookback > 0 restricts both queries to datetime > now-Lookback.
	Lookback time.Duration
	// Align truncates the lower bound so that runs inside one cache
	// lifetime issue identical queries. Usually the query cache TTL.
	Align time.Duration
}

func NewRunner(store rowstore.Store, cfg RunnerConfig, metrics *monitor.Metrics, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		store:    store,
		table:    cfg.Table,
		lookback: cfg.Lookback,
		align:    cfg.Align,
		metrics:  metrics,
		logger:   logger,
	}
}

// LowerBound returns the datetime filter for a run at now, or the zero time
// when no lookback is configured.
func (r *Runner) LowerBound(now time.Time) time.Time {
	if r.lookback <= 0 {
		return time.Time{}
	}
	b := now.Add(-r.lookback).UTC()
	if r.align > 0 {
		b = b.Truncate(r.align)
	}
	return b
}

// Run executes one full pass. Fetch failures end up in Snapshot.Err and
// empty-result checkpoints in Snapshot.Halt; neither is retried.
func (r *Runner) Run(ctx context.Context, now time.Time) Snapshot {
	start := time.Now()
	since := r.LowerBound(now)
	snap := Snapshot{RunAt: now, CheckedAt: now, Since: since}

	fetched := r.run(ctx, since, &snap)

	snap.Duration = time.Since(start)
	outcome := snap.Outcome()
	r.metrics.RecordRun(outcome, snap.Duration)

	switch outcome {
	case monitor.OutcomeError:
		r.logger.Error("pipeline run failed", "err", snap.Err, "duration", snap.Duration)
	case monitor.OutcomeHalted:
		r.logger.Warn("pipeline run halted", "level", snap.Halt.Level, "message", snap.Halt.Message, "duration", snap.Duration)
	default:
		r.metrics.RecordTable(fetched, snap.Table.Dropped, len(snap.Items))
		r.logger.Info("pipeline run complete",
			"items", len(snap.Items),
			"rows_fetched", fetched,
			"rows_kept", snap.Table.Len(),
			"rows_dropped", snap.Table.Dropped,
			"duration", snap.Duration,
		)
	}
	return snap
}

func (r *Runner) run(ctx context.Context, since time.Time, snap *Snapshot) int {
	itemsResp, err := r.store.Select(ctx, rowstore.Query{
		Table:   r.table,
		Columns: []string{rowstore.ColumnItem},
		Since:   since,
	})
	if err != nil {
		snap.Err = err.Error()
		return 0
	}
	items, err := table.DistinctItems(itemsResp)
	if err != nil {
		snap.Halt = haltFrom(err)
		return 0
	}
	snap.Items = items

	rowsResp, err := r.store.Select(ctx, rowstore.Query{Table: r.table, Since: since})
	if err != nil {
		snap.Err = err.Error()
		return 0
	}
	tbl, err := table.Clean(rowsResp)
	if err != nil {
		snap.Halt = haltFrom(err)
		return len(rowsResp.Data)
	}
	snap.Table = tbl
	return len(rowsResp.Data)
}

func haltFrom(err error) *table.Halt {
	var he *table.HaltError
	if errors.As(err, &he) {
		h := he.Halt
		return &h
	}
	return &table.Halt{Level: table.LevelError, Message: err.Error()}
}
