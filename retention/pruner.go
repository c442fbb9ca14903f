// Package retention deletes readings that have aged out. It runs on its own
// schedule and is never called from ingestion or queries.
package retention

import (
	"context"
	"log/slog"
	"time"

	"traffic-sensor-stream/models"
)

// Deleter is the part of the store the pruner needs.
type Deleter interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type Pruner struct {
	store    Deleter
	keep     time.Duration
	interval time.Duration
	now      func() time.Time
	onPrune  func(n int64)
	log      *slog.Logger
}

type Option func(*Pruner)

func WithClock(now func() time.Time) Option {
	return func(p *Pruner) {
		if now != nil {
			p.now = now
		}
	}
}

// WithPruneHook is called with the deleted count after every successful run.
func WithPruneHook(fn func(n int64)) Option {
	return func(p *Pruner) {
		p.onPrune = fn
	}
}

func NewPruner(store Deleter, keep, interval time.Duration, log *slog.Logger, opts ...Option) *Pruner {
	if log == nil {
		log = slog.Default()
	}
	p := &Pruner{
		store:    store,
		keep:     keep,
		interval: interval,
		now:      time.Now,
		log:      log.With(slog.String("component", "retention")),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Prune deletes readings recorded before cutoff. It is irreversible.
func (p *Pruner) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := p.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, models.WrapStorage("prune", err)
	}
	if p.onPrune != nil {
		p.onPrune(n)
	}
	return n, nil
}

// RunOnce prunes with the cutoff fixed at now - keep.
func (p *Pruner) RunOnce(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.keep)
	n, err := p.Prune(ctx, cutoff)
	if err != nil {
		p.log.Error("retention run failed", "cutoff", cutoff.Format(time.RFC3339), "err", err)
		return 0, err
	}
	if n > 0 {
		p.log.Info("pruned readings", "count", n, "cutoff", cutoff.Format(time.RFC3339))
	}
	return n, nil
}

// Run prunes once immediately and then on every tick until ctx is done.
// A non-positive keep or interval disables it.
func (p *Pruner) Run(ctx context.Context) {
	if p == nil || p.keep <= 0 || p.interval <= 0 {
		return
	}
	_, _ = p.RunOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = p.RunOnce(ctx)
		}
	}
}
