package lib

import (
	"context"
	"time"

	"github.com/rentchain/rental-client/internal/interfaces"
	"go.uber.org/atomic"
)

// Polling is a cancellable recurring read. The function is invoked right away and then
// on every interval until Stop is called or the parent context is cancelled.
type Polling struct {
	interval time.Duration
	task     *Task

	ticks    *atomic.Uint64
	failures *atomic.Uint64
}

func StartPolling(ctx context.Context, name string, interval time.Duration, fn func(ctx context.Context) error, log interfaces.ILogger) *Polling {
	p := &Polling{
		interval: interval,
		ticks:    atomic.NewUint64(0),
		failures: atomic.NewUint64(0),
	}

	p.task = NewTaskFunc(func(ctx context.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			if err := fn(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				p.failures.Inc()
				log.Debugf("%s poll failed: %s", name, err)
			}
			p.ticks.Inc()

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	}, name)
	p.task.Start(ctx)

	return p
}

// Stop cancels polling; the returned channel is closed after the last in-flight read returned
func (p *Polling) Stop() <-chan struct{} {
	return p.task.Stop()
}

func (p *Polling) Done() <-chan struct{} {
	return p.task.Done()
}

func (p *Polling) Interval() time.Duration {
	return p.interval
}

func (p *Polling) Ticks() uint64 {
	return p.ticks.Load()
}

func (p *Polling) Failures() uint64 {
	return p.failures.Load()
}
