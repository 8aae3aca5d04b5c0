// Package poller refreshes the visible appointments on a fixed interval.
package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/apptremind-calendar/libs/runtime"
)

const DefaultInterval = 30 * time.Second

type Task func(ctx context.Context) error

type Poller struct {
	task     Task
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

type Config struct {
	Interval time.Duration
	// Timeout bounds a single tick; defaults to the interval.
	Timeout time.Duration
}

func New(task Task, logger *slog.Logger, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 || cfg.Timeout > cfg.Interval {
		cfg.Timeout = cfg.Interval
	}
	return &Poller{
		task:     task,
		logger:   runtime.OrDiscard(logger),
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
	}
}

// Run blocks until ctx is done. Errors are logged and the next tick runs as
// usual; there is no backoff.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.task(ctx); err != nil && ctx.Err() == nil {
		p.logger.Warn("poll failed", "err", err)
	}
}
