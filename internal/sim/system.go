// Package sim wires the central body, the satellites and the shared input
// and position state into a running star system.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/star-system-simulator/core"
	"github.com/signalsfoundry/star-system-simulator/internal/logging"
	"github.com/signalsfoundry/star-system-simulator/internal/observability"
	"github.com/signalsfoundry/star-system-simulator/kb"
	"github.com/signalsfoundry/star-system-simulator/model"
	"github.com/signalsfoundry/star-system-simulator/timectrl"
)

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("system already started")

// MetricsRecorder receives tick, entity and frame metrics.
// *observability.SimCollector implements it.
type MetricsRecorder interface {
	core.TickObserver
	SetEntityCount(kind model.Kind, n int)
	ObserveFrame()
}

// ClockFactory builds the tick source for one entity. Every entity gets its
// own clock so ticks are not aligned across entities.
type ClockFactory func(entityID string, period time.Duration) (timectrl.Clock, error)

// Clocks returns a factory building one mode clock per entity. timeScale
// applies to RealTime clocks.
func Clocks(mode timectrl.Mode, timeScale float64) ClockFactory {
	return func(_ string, period time.Duration) (timectrl.Clock, error) {
		return timectrl.New(mode, period, timectrl.WithTimeScale(timeScale))
	}
}

// Option configures a System.
type Option func(*System)

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *System) {
		s.metrics = m
	}
}

// WithClockFactory overrides the default wall clocks.
func WithClockFactory(f ClockFactory) Option {
	return func(s *System) {
		s.clocks = f
	}
}

// System owns every entity of one run. The render loop talks to it through
// SetInput/Frame and Sprites; entity goroutines talk to each other only
// through the entities' own guarded accessors.
type System struct {
	log     logging.Logger
	metrics MetricsRecorder
	clocks  ClockFactory

	input      *core.InputCell
	central    *core.CentralBody
	satellites []*core.Satellite
	registry   *kb.Registry

	started atomic.Bool
	frames  atomic.Uint64
	wg      sync.WaitGroup

	errMu sync.Mutex
	errs  []error
}

// New builds every entity of scene. It fails if a clock cannot be built or an
// entity ID repeats; both are start-up faults.
func New(scene Scene, log logging.Logger, opts ...Option) (*System, error) {
	s := &System{
		log:      logging.OrNoop(log),
		input:    core.NewInputCell(),
		registry: kb.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clocks == nil {
		timeScale := scene.TimeScale
		if timeScale == 0 {
			timeScale = 1
		}
		s.clocks = Clocks(scene.Mode, timeScale)
	}

	entityOpts := []core.Option{core.WithLogger(s.log)}
	if s.metrics != nil {
		entityOpts = append(entityOpts, core.WithTickObserver(s.metrics))
	}

	clock, err := s.clocks(scene.CentralBody.ID, scene.Period)
	if err != nil {
		return nil, fmt.Errorf("clock for %s: %w", scene.CentralBody.ID, err)
	}
	s.central = core.NewCentralBody(scene.CentralBody, clock, s.input, entityOpts...)
	if err := s.registry.Register(s.central); err != nil {
		return nil, err
	}

	for _, cfg := range scene.Satellites {
		clock, err := s.clocks(cfg.ID, scene.Period)
		if err != nil {
			return nil, fmt.Errorf("clock for %s: %w", cfg.ID, err)
		}
		sat := core.NewSatellite(cfg, s.central, clock, entityOpts...)
		if err := s.registry.Register(sat); err != nil {
			return nil, err
		}
		s.satellites = append(s.satellites, sat)
	}

	if s.metrics != nil {
		s.metrics.SetEntityCount(model.KindCentralBody, 1)
		s.metrics.SetEntityCount(model.KindSatellite, len(s.satellites))
	}
	return s, nil
}

// Start launches one goroutine per entity. Each runs until ctx is done.
func (s *System) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	spanCtx, span := observability.StartSpan(ctx, "sim.Start",
		attribute.String("central_body", s.central.ID()),
		attribute.Int("satellites", len(s.satellites)),
	)
	defer span.End()

	s.spawn(ctx, s.central.ID(), s.central.Run)
	for _, sat := range s.satellites {
		s.spawn(ctx, sat.ID(), sat.Run)
	}

	s.log.Info(spanCtx, "star system started",
		logging.String("central_body", s.central.ID()),
		logging.Int("satellites", len(s.satellites)),
	)
	return nil
}

func (s *System) spawn(ctx context.Context, id string, run func(context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := run(ctx); err != nil {
			s.log.Error(ctx, "entity loop failed", logging.String("entity", id), logging.Err(err))
			s.errMu.Lock()
			s.errs = append(s.errs, err)
			s.errMu.Unlock()
		}
	}()
}

// Wait blocks until every entity goroutine has returned and reports any loop
// that stopped for a reason other than cancellation.
func (s *System) Wait() error {
	s.wg.Wait()
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return errors.Join(s.errs...)
}

// SetInput publishes the latest input snapshot for the central body.
func (s *System) SetInput(in model.InputState) { s.input.Set(in) }

// Input returns the latest published input snapshot.
func (s *System) Input() model.InputState { return s.input.Get() }

// Sprites samples every entity once, central body first.
func (s *System) Sprites() []model.Sprite { return s.registry.Sprites() }

// Frame is one render-loop step: publish in, then sample every entity.
func (s *System) Frame(in model.InputState) []model.Sprite {
	s.SetInput(in)
	sprites := s.Sprites()
	s.frames.Add(1)
	if s.metrics != nil {
		s.metrics.ObserveFrame()
	}
	return sprites
}

// Frames returns how many frames have been sampled through Frame.
func (s *System) Frames() uint64 { return s.frames.Load() }

// CentralBody returns the central body.
func (s *System) CentralBody() *core.CentralBody { return s.central }

// Satellites returns the satellites in scene order.
func (s *System) Satellites() []*core.Satellite {
	return append([]*core.Satellite(nil), s.satellites...)
}

// Registry exposes the position registry.
func (s *System) Registry() *kb.Registry { return s.registry }
