package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc runs one check cycle. A returned error is fatal and stops the
// loop; recoverable per-category failures are contained inside the cycle.
type TickFunc func(ctx context.Context, now time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval       time.Duration
	RunImmediately bool
	StartupDelay   time.Duration
}

// Scheduler drives the repeating check loop. Cancellation is honored only
// between cycles: an in-flight cycle runs to completion so the ledger is
// never left partially written.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking the tick function every interval until ctx is
// cancelled or the tick reports a fatal error.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := wait(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	if s.opts.RunImmediately {
		if err := tick(context.WithoutCancel(ctx), time.Now().UTC()); err != nil {
			return err
		}
	}

	for {
		s.logger.Debug().Dur("interval", s.opts.Interval).Msg("sleeping until next cycle")
		if err := wait(ctx, s.opts.Interval); err != nil {
			return err
		}

		// WithoutCancel keeps a stop request from aborting the cycle; the
		// loop observes it at the next boundary.
		if err := tick(context.WithoutCancel(ctx), time.Now().UTC()); err != nil {
			return err
		}
	}
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
