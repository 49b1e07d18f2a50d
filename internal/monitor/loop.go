// Package monitor runs the engine's polling loops: one verification loop
// per challenge family, plus lifecycle and settlement timers. Loops run
// concurrently with each other, but ticks of the same loop never overlap; a
// tick runs to completion, including all network calls, before the loop
// sleeps again.
package monitor

import (
	"context"
	"log/slog"
	"time"
)

// TickFunc is one loop iteration, a pure function of the tick instant.
type TickFunc func(ctx context.Context, now time.Time)

type Loop struct {
	name     string
	interval time.Duration
	tick     TickFunc
	log      *slog.Logger
}

func NewLoop(name string, interval time.Duration, tick TickFunc, log *slog.Logger) *Loop {
	return &Loop{name: name, interval: interval, tick: tick, log: log}
}

// Run ticks immediately, then on every interval until the context is
// cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("monitor loop started", "loop", l.name, "interval", l.interval)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.tick(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			l.log.Info("monitor loop stopped", "loop", l.name)
			return ctx.Err()
		case now := <-ticker.C:
			l.tick(ctx, now)
		}
	}
}
