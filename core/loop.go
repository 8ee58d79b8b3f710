package core

import (
	"context"
	"fmt"
	"time"

	"github.com/signalsfoundry/star-system-simulator/internal/logging"
	"github.com/signalsfoundry/star-system-simulator/model"
	"github.com/signalsfoundry/star-system-simulator/timectrl"
)

// TickObserver receives one call per completed entity tick.
type TickObserver interface {
	ObserveTick(entity string, kind model.Kind, elapsed, period time.Duration)
}

// Option configures an entity loop.
type Option func(*loopOptions)

type loopOptions struct {
	log      logging.Logger
	observer TickObserver
}

// WithLogger sets the logger used by the entity loop.
func WithLogger(l logging.Logger) Option {
	return func(o *loopOptions) { o.log = l }
}

// WithTickObserver reports every tick to obs.
func WithTickObserver(obs TickObserver) Option {
	return func(o *loopOptions) { o.observer = obs }
}

func newLoopOptions(opts []Option) loopOptions {
	var o loopOptions
	for _, opt := range opts {
		opt(&o)
	}
	o.log = logging.OrNoop(o.log)
	return o
}

// runLoop drives step once per clock tick until ctx is done. Cancellation is
// a clean stop and returns nil; any other clock failure is returned.
func runLoop(ctx context.Context, id string, kind model.Kind, clock timectrl.Clock, o loopOptions, step func(elapsed time.Duration)) error {
	log := o.log.With(logging.String("entity", id), logging.String("kind", kind.String()))
	log.Info(ctx, "entity loop started", logging.Duration("period", clock.Period()))

	for {
		elapsed, err := clock.WaitTick(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info(ctx, "entity loop stopped")
				return nil
			}
			log.Error(ctx, "tick wait failed", logging.Err(err))
			return fmt.Errorf("%s %s: wait tick: %w", kind, id, err)
		}

		step(elapsed)

		if o.observer != nil {
			o.observer.ObserveTick(id, kind, elapsed, clock.Period())
		}
		if timectrl.Overrun(elapsed, clock.Period()) {
			log.Debug(ctx, "tick overrun",
				logging.Duration("elapsed", elapsed),
				logging.Duration("period", clock.Period()),
			)
		}
	}
}
